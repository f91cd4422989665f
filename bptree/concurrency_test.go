package bptree

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConcurrentInsertsAllVisible(t *testing.T) {
	tree := setupTree(t, 64)

	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				k := w*perWorker + i
				require.NoError(t, tree.Insert(key(k), RecordID{PageID: int64(k)}))
			}
		}(w)
	}
	wg.Wait()

	for k := 0; k < workers*perWorker; k++ {
		v, ok, err := tree.GetValue(key(k))
		require.NoError(t, err)
		require.True(t, ok, "key %d missing after concurrent insert", k)
		require.Equal(t, int64(k), v.PageID)
	}
}

func TestConcurrentReadsDuringInserts(t *testing.T) {
	tree := setupTree(t, 64)

	const n = 500
	for i := 0; i < n; i++ {
		require.NoError(t, tree.Insert(key(i), RecordID{PageID: int64(i)}))
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := n; i < n*2; i++ {
			require.NoError(t, tree.Insert(key(i), RecordID{PageID: int64(i)}))
		}
		close(stop)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_, _, _ = tree.GetValue(key(n / 2))
			}
		}
	}()

	wg.Wait()

	for i := 0; i < n*2; i++ {
		_, ok, err := tree.GetValue(key(i))
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestConcurrentInsertAndRemoveDisjointKeys(t *testing.T) {
	tree := setupTree(t, 64)

	const n = 400
	for i := 0; i < n; i++ {
		require.NoError(t, tree.Insert(key(i), RecordID{PageID: int64(i)}))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i += 2 {
			require.NoError(t, tree.Remove(key(i)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := n; i < n+200; i++ {
			require.NoError(t, tree.Insert(key(i), RecordID{PageID: int64(i)}))
		}
	}()
	wg.Wait()

	for i := 1; i < n; i += 2 {
		_, ok, err := tree.GetValue(key(i))
		require.NoError(t, err)
		require.True(t, ok)
	}
	for i := n; i < n+200; i++ {
		_, ok, err := tree.GetValue(key(i))
		require.NoError(t, err)
		require.True(t, ok)
	}
}
