package bptree

import "storagecore/page"

// Iterator is a forward-only range scan over leaf entries. It holds
// one leaf R-latched at a time, advancing across the leaf chain via
// each node's Next pointer. Grounded on the teacher's Iterator
// (iterator.go), generalized to fixed-width Key/RecordID.
type Iterator struct {
	tree  *Tree
	frame *page.Frame
	node  *Node
	index int
	valid bool
}

// Begin starts a scan at the first key >= start. Call Close when done
// to release the pinned leaf.
func (t *Tree) Begin(start Key) *Iterator {
	it := &Iterator{tree: t}

	rootID := t.getRoot()
	if rootID == page.InvalidID {
		return it
	}

	f, n, err := t.fetchLatched(rootID, false)
	if err != nil {
		return it
	}
	for !n.Leaf {
		childID := n.Children[n.childFor(start)]
		cf, cn, err := t.fetchLatched(childID, false)
		if err != nil {
			f.RUnlock()
			t.pool.UnpinPage(n.PageID, false)
			return it
		}
		f.RUnlock()
		t.pool.UnpinPage(n.PageID, false)
		f, n = cf, cn
	}

	idx := n.insertAt(start)
	for idx >= len(n.Keys) {
		nextID := n.Next
		f.RUnlock()
		t.pool.UnpinPage(n.PageID, false)
		if nextID == page.InvalidID {
			return it
		}
		nf, nn, err := t.fetchLatched(nextID, false)
		if err != nil {
			return it
		}
		f, n, idx = nf, nn, 0
	}

	it.frame, it.node, it.index, it.valid = f, n, idx, true
	return it
}

// BeginAtStart starts a scan at the very first entry in key order.
func (t *Tree) BeginAtStart() *Iterator {
	var zero Key
	return t.Begin(zero)
}

// Next advances the iterator, returning false once exhausted.
func (it *Iterator) Next() bool {
	if !it.valid {
		return false
	}
	it.index++
	for it.index >= len(it.node.Keys) {
		nextID := it.node.Next
		it.frame.RUnlock()
		it.tree.pool.UnpinPage(it.node.PageID, false)
		if nextID == page.InvalidID {
			it.frame, it.node, it.valid = nil, nil, false
			return false
		}
		nf, nn, err := it.tree.fetchLatched(nextID, false)
		if err != nil {
			it.frame, it.node, it.valid = nil, nil, false
			return false
		}
		it.frame, it.node, it.index = nf, nn, 0
	}
	return true
}

// Key returns the current entry's key.
func (it *Iterator) Key() Key { return it.node.Keys[it.index] }

// Value returns the current entry's value.
func (it *Iterator) Value() RecordID { return it.node.Values[it.index] }

// Close releases the currently-held leaf. Safe to call multiple times
// and on an already-exhausted iterator.
func (it *Iterator) Close() {
	if it.frame != nil {
		it.frame.RUnlock()
		it.tree.pool.UnpinPage(it.node.PageID, false)
		it.frame, it.node = nil, nil
	}
	it.valid = false
}
