package header

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"storagecore/buffer"
	"storagecore/disk"
	"storagecore/errs"
	"storagecore/page"
)

func setupTable(t *testing.T) *Table {
	t.Helper()
	dir, err := os.MkdirTemp("", "header_test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	dm, err := disk.Open(filepath.Join(dir, "data.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })

	pool := buffer.New(8, dm)
	return New(pool)
}

func TestInsertAndGetRootID(t *testing.T) {
	tab := setupTable(t)

	require.NoError(t, tab.InsertRecord("orders_pk", page.ID(5)))
	id, ok, err := tab.GetRootID("orders_pk")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, page.ID(5), id)
}

func TestInsertDuplicateNameFails(t *testing.T) {
	tab := setupTable(t)
	require.NoError(t, tab.InsertRecord("idx", page.ID(1)))
	err := tab.InsertRecord("idx", page.ID(2))
	require.ErrorIs(t, err, errs.ErrDuplicateKey)
}

func TestUpdateMissingNameFails(t *testing.T) {
	tab := setupTable(t)
	err := tab.UpdateRecord("missing", page.ID(1))
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDeleteRecord(t *testing.T) {
	tab := setupTable(t)
	require.NoError(t, tab.InsertRecord("idx", page.ID(3)))
	require.NoError(t, tab.DeleteRecord("idx"))

	_, ok, err := tab.GetRootID("idx")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetRootIDUnknownName(t *testing.T) {
	tab := setupTable(t)
	_, ok, err := tab.GetRootID("nope")
	require.NoError(t, err)
	require.False(t, ok)
}
