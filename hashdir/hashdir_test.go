package hashdir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableInsertFind(t *testing.T) {
	tab := New[int, string](2, HashInt)
	tab.Insert(1, "one")
	tab.Insert(2, "two")

	v, ok := tab.Find(1)
	require.True(t, ok)
	require.Equal(t, "one", v)

	_, ok = tab.Find(99)
	require.False(t, ok)
}

func TestTableInsertOverwrites(t *testing.T) {
	tab := New[int, string](2, HashInt)
	tab.Insert(1, "one")
	tab.Insert(1, "uno")

	v, ok := tab.Find(1)
	require.True(t, ok)
	require.Equal(t, "uno", v)
}

func TestTableRemove(t *testing.T) {
	tab := New[int, string](2, HashInt)
	tab.Insert(1, "one")

	require.True(t, tab.Remove(1))
	_, ok := tab.Find(1)
	require.False(t, ok)
	require.False(t, tab.Remove(1))
}

func TestTableGrowsDirectoryOnOverflow(t *testing.T) {
	tab := New[int, int](1, HashInt)
	for i := 0; i < 64; i++ {
		tab.Insert(i, i*10)
	}

	for i := 0; i < 64; i++ {
		v, ok := tab.Find(i)
		require.True(t, ok, "key %d should be found", i)
		require.Equal(t, i*10, v)
	}
	require.Greater(t, tab.GlobalDepth(), 0)
	require.Greater(t, tab.NumBuckets(), 1)
}

func TestTableDirectoryNeverShrinksOnDelete(t *testing.T) {
	tab := New[int, int](1, HashInt)
	for i := 0; i < 64; i++ {
		tab.Insert(i, i)
	}
	depthAfterGrowth := tab.GlobalDepth()

	for i := 0; i < 63; i++ {
		tab.Remove(i)
	}
	require.Equal(t, depthAfterGrowth, tab.GlobalDepth())
}
