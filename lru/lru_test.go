package lru

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReplacerVictimIsLeastRecentlyUsed(t *testing.T) {
	r := New[int]()
	r.Insert(1)
	r.Insert(2)
	r.Insert(3)

	v, ok := r.Victim()
	require.True(t, ok)
	require.Equal(t, 1, v)
}

func TestReplacerInsertMovesToFront(t *testing.T) {
	r := New[int]()
	r.Insert(1)
	r.Insert(2)
	r.Insert(3)
	r.Insert(1) // re-insert: 1 is now most recent

	v, ok := r.Victim()
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestReplacerErase(t *testing.T) {
	r := New[int]()
	r.Insert(1)
	r.Insert(2)

	require.True(t, r.Erase(1))
	require.False(t, r.Erase(1))

	v, ok := r.Victim()
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestReplacerEmpty(t *testing.T) {
	r := New[int]()
	_, ok := r.Victim()
	require.False(t, ok)
	require.Equal(t, 0, r.Size())
}

func TestReplacerSizeTracksContents(t *testing.T) {
	r := New[string]()
	r.Insert("a")
	r.Insert("b")
	require.Equal(t, 2, r.Size())
	r.Erase("a")
	require.Equal(t, 1, r.Size())
}
