package bptree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"storagecore/buffer"
	"storagecore/disk"
	"storagecore/errs"
	"storagecore/header"
)

func key(n int) Key {
	var k Key
	for i := 0; i < KeyWidth; i++ {
		k[KeyWidth-1-i] = byte(n >> (8 * i))
	}
	return k
}

func setupTree(t *testing.T, poolCapacity int) *Tree {
	t.Helper()
	dir, err := os.MkdirTemp("", "bptree_test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	dm, err := disk.Open(filepath.Join(dir, "data.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })

	pool := buffer.New(poolCapacity, dm)
	hdr := header.New(pool)

	tree, err := Open(pool, hdr, "test_index")
	require.NoError(t, err)
	return tree
}

func TestEmptyTree(t *testing.T) {
	tree := setupTree(t, 32)
	require.True(t, tree.IsEmpty())

	_, ok, err := tree.GetValue(key(1))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInsertAndGetValue(t *testing.T) {
	tree := setupTree(t, 32)

	require.NoError(t, tree.Insert(key(1), RecordID{PageID: 10, SlotIndex: 0}))
	require.False(t, tree.IsEmpty())

	v, ok, err := tree.GetValue(key(1))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, RecordID{PageID: 10, SlotIndex: 0}, v)
}

func TestInsertDuplicateKeyFailsAndLeavesTreeUnchanged(t *testing.T) {
	tree := setupTree(t, 32)
	require.NoError(t, tree.Insert(key(1), RecordID{PageID: 1}))
	err := tree.Insert(key(1), RecordID{PageID: 2})
	require.ErrorIs(t, err, errs.ErrDuplicateKey)

	v, ok, err := tree.GetValue(key(1))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, RecordID{PageID: 1}, v)
}

func TestInsertManyTriggersSplits(t *testing.T) {
	tree := setupTree(t, 64)

	const n = 2000
	for i := 0; i < n; i++ {
		require.NoError(t, tree.Insert(key(i), RecordID{PageID: int64(i)}))
	}

	for i := 0; i < n; i++ {
		v, ok, err := tree.GetValue(key(i))
		require.NoError(t, err)
		require.True(t, ok, "key %d should be found", i)
		require.Equal(t, int64(i), v.PageID)
	}
}

func TestRemoveKey(t *testing.T) {
	tree := setupTree(t, 32)
	require.NoError(t, tree.Insert(key(1), RecordID{PageID: 1}))
	require.NoError(t, tree.Remove(key(1)))

	_, ok, err := tree.GetValue(key(1))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRemoveMissingKeyFails(t *testing.T) {
	tree := setupTree(t, 32)
	err := tree.Remove(key(99))
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestInsertAndRemoveManyKeepsConsistency(t *testing.T) {
	tree := setupTree(t, 64)

	const n = 1500
	for i := 0; i < n; i++ {
		require.NoError(t, tree.Insert(key(i), RecordID{PageID: int64(i)}))
	}
	for i := 0; i < n; i += 2 {
		require.NoError(t, tree.Remove(key(i)))
	}

	for i := 0; i < n; i++ {
		_, ok, err := tree.GetValue(key(i))
		require.NoError(t, err)
		if i%2 == 0 {
			require.False(t, ok, "key %d should have been removed", i)
		} else {
			require.True(t, ok, "key %d should still be present", i)
		}
	}
}

func TestIteratorRangeScanIsSorted(t *testing.T) {
	tree := setupTree(t, 64)

	order := []int{50, 10, 30, 20, 40}
	for _, k := range order {
		require.NoError(t, tree.Insert(key(k), RecordID{PageID: int64(k)}))
	}

	it := tree.BeginAtStart()
	defer it.Close()

	var got []int64
	for {
		got = append(got, it.Value().PageID)
		if !it.Next() {
			break
		}
	}
	require.Equal(t, []int64{10, 20, 30, 40, 50}, got)
}

func TestIteratorSeeksFromMidpoint(t *testing.T) {
	tree := setupTree(t, 64)
	for _, k := range []int{10, 20, 30, 40} {
		require.NoError(t, tree.Insert(key(k), RecordID{PageID: int64(k)}))
	}

	it := tree.Begin(key(25))
	defer it.Close()

	require.Equal(t, int64(30), it.Value().PageID)
}
