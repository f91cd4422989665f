package buffer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"storagecore/disk"
	"storagecore/page"
)

func setupPool(t *testing.T, capacity int) *Pool {
	t.Helper()
	dir, err := os.MkdirTemp("", "bufferpool_test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	dm, err := disk.Open(filepath.Join(dir, "data.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })

	return New(capacity, dm)
}

func TestNewPageFetchRoundTrip(t *testing.T) {
	pool := setupPool(t, 4)

	f, id, err := pool.NewPage()
	require.NoError(t, err)
	f.Data[0] = 0xAB
	require.True(t, pool.UnpinPage(id, true))
	require.NoError(t, pool.FlushPage(id))

	got, err := pool.FetchPage(id)
	require.NoError(t, err)
	require.Equal(t, byte(0xAB), got.Data[0])
	require.True(t, pool.UnpinPage(id, false))
}

func TestFetchPagePinsAndHitsDirectory(t *testing.T) {
	pool := setupPool(t, 4)

	_, id, err := pool.NewPage()
	require.NoError(t, err)
	require.True(t, pool.UnpinPage(id, false))

	f1, err := pool.FetchPage(id)
	require.NoError(t, err)
	f2, err := pool.FetchPage(id)
	require.NoError(t, err)
	require.Same(t, f1, f2)

	require.True(t, pool.UnpinPage(id, false))
	require.True(t, pool.UnpinPage(id, false))
}

func TestEvictionFlushesDirtyVictim(t *testing.T) {
	pool := setupPool(t, 1)

	f1, id1, err := pool.NewPage()
	require.NoError(t, err)
	f1.Data[0] = 0x42
	require.True(t, pool.UnpinPage(id1, true))

	_, id2, err := pool.NewPage()
	require.NoError(t, err)
	require.True(t, pool.UnpinPage(id2, false))

	back, err := pool.FetchPage(id1)
	require.NoError(t, err)
	require.Equal(t, byte(0x42), back.Data[0])
	pool.UnpinPage(id1, false)
}

func TestNewPageFailsWhenPoolExhaustedAndAllPinned(t *testing.T) {
	pool := setupPool(t, 1)

	_, _, err := pool.NewPage()
	require.NoError(t, err)

	_, _, err = pool.NewPage()
	require.Error(t, err)
}

func TestDeletePageRefusesPinnedPage(t *testing.T) {
	pool := setupPool(t, 2)

	_, id, err := pool.NewPage()
	require.NoError(t, err)
	require.False(t, pool.DeletePage(id))

	require.True(t, pool.UnpinPage(id, false))
	require.True(t, pool.DeletePage(id))
}

func TestCapacityMatchesFrameArray(t *testing.T) {
	pool := setupPool(t, 7)
	require.Equal(t, 7, pool.Capacity())
	_ = page.Size
}
