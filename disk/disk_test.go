package disk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"storagecore/page"
)

func TestNewFileReservesHeaderPage(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(filepath.Join(dir, "data.db"))
	require.NoError(t, err)
	defer m.Close()

	id, err := m.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, page.ID(1), id)
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(filepath.Join(dir, "data.db"))
	require.NoError(t, err)
	defer m.Close()

	id, err := m.AllocatePage()
	require.NoError(t, err)

	var buf [page.Size]byte
	buf[0] = 0x7F
	require.NoError(t, m.WritePage(id, &buf))

	var got [page.Size]byte
	require.NoError(t, m.ReadPage(id, &got))
	require.Equal(t, buf, got)
}

func TestReadUnwrittenPageIsZero(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(filepath.Join(dir, "data.db"))
	require.NoError(t, err)
	defer m.Close()

	id, err := m.AllocatePage()
	require.NoError(t, err)

	var got [page.Size]byte
	require.NoError(t, m.ReadPage(id, &got))
	var zero [page.Size]byte
	require.Equal(t, zero, got)
}

func TestDeallocateThenAllocateReusesID(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(filepath.Join(dir, "data.db"))
	require.NoError(t, err)
	defer m.Close()

	id, err := m.AllocatePage()
	require.NoError(t, err)
	m.DeallocatePage(id)

	reused, err := m.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, id, reused)
}

func TestReopenExistingFilePicksUpNextID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.db")

	m1, err := Open(path)
	require.NoError(t, err)
	id1, err := m1.AllocatePage()
	require.NoError(t, err)
	var buf [page.Size]byte
	require.NoError(t, m1.WritePage(id1, &buf))
	require.NoError(t, m1.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, info.Size(), int64(page.Size))

	m2, err := Open(path)
	require.NoError(t, err)
	defer m2.Close()
	id2, err := m2.AllocatePage()
	require.NoError(t, err)
	require.Greater(t, id2, id1)
}
