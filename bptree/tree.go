package bptree

import (
	"errors"
	"fmt"
	"sync"

	"storagecore/buffer"
	"storagecore/errs"
	"storagecore/header"
	"storagecore/page"
)

// Tree is a concurrent B+tree index backed by a shared buffer.Pool.
// Structural modifications use latch-coupling: a writer W-latches
// nodes on its way down, releasing ancestors once it reaches a node
// that cannot overflow/underflow from the operation (spec.md §4.4/9).
// Readers R-latch one node at a time, releasing the parent as soon as
// the child is latched.
//
// Grounded on the teacher's BPlusTree (struct.go/new_bplus_tree.go)
// for the overall shape (shared pool, named root persisted via the
// header table) and on original_source's b_plus_tree.cpp for the
// crabbing descent the teacher's single t.mu RWMutex does not
// implement.
type Tree struct {
	pool *buffer.Pool
	hdr  *header.Table
	name string

	rootMu sync.RWMutex
	rootID page.ID
}

// Open binds a named tree to pool, using hdr to recover (or register)
// its root page-id. A brand-new name starts with an invalid root; the
// root leaf is created lazily on the first Insert.
func Open(pool *buffer.Pool, hdr *header.Table, name string) (*Tree, error) {
	id, ok, err := hdr.GetRootID(name)
	if err != nil {
		return nil, fmt.Errorf("bptree: open %q: %w", name, err)
	}
	if !ok {
		id = page.InvalidID
	}
	return &Tree{pool: pool, hdr: hdr, name: name, rootID: id}, nil
}

func (t *Tree) getRoot() page.ID {
	t.rootMu.RLock()
	defer t.rootMu.RUnlock()
	return t.rootID
}

// persistRoot records id as the tree's root, inserting the header
// record on first use and updating it thereafter.
func (t *Tree) persistRoot(id page.ID) error {
	err := t.hdr.UpdateRecord(t.name, id)
	if errors.Is(err, errs.ErrNotFound) {
		return t.hdr.InsertRecord(t.name, id)
	}
	return err
}

// IsEmpty reports whether the tree holds zero entries.
func (t *Tree) IsEmpty() bool {
	rootID := t.getRoot()
	if rootID == page.InvalidID {
		return true
	}
	f, err := t.pool.FetchPage(rootID)
	if err != nil {
		return true
	}
	f.RLock()
	n := decodeNode(rootID, &f.Data)
	f.RUnlock()
	t.pool.UnpinPage(rootID, false)
	return n.Leaf && len(n.Keys) == 0
}

// fetchLatched fetches id and takes its frame's R or W latch,
// returning the decoded node alongside. This frame latch, not a
// separate lock, is the node's crabbing latch (spec.md §9).
func (t *Tree) fetchLatched(id page.ID, write bool) (*page.Frame, *Node, error) {
	f, err := t.pool.FetchPage(id)
	if err != nil {
		return nil, nil, err
	}
	if write {
		f.Lock()
	} else {
		f.RLock()
	}
	return f, decodeNode(id, &f.Data), nil
}

func (t *Tree) unlatch(f *page.Frame, write bool) {
	if write {
		f.Unlock()
	} else {
		f.RUnlock()
	}
}

func (t *Tree) persist(f *page.Frame, n *Node) error {
	return encodeNode(n, &f.Data)
}

// reparent updates childID's stored parent pointer to parentID. Used
// after a split or merge moves a child to a different internal node.
func (t *Tree) reparent(childID, parentID page.ID) error {
	f, n, err := t.fetchLatched(childID, true)
	if err != nil {
		return fmt.Errorf("bptree: reparent %d -> %d: %w", childID, parentID, err)
	}
	n.Parent = parentID
	err = t.persist(f, n)
	f.Unlock()
	t.pool.UnpinPage(childID, true)
	return err
}

// GetValue performs a point lookup, latch-coupling one R-latch at a
// time down to the leaf.
func (t *Tree) GetValue(key Key) (RecordID, bool, error) {
	rootID := t.getRoot()
	if rootID == page.InvalidID {
		return RecordID{}, false, nil
	}

	f, n, err := t.fetchLatched(rootID, false)
	if err != nil {
		return RecordID{}, false, fmt.Errorf("bptree: get value: %w", err)
	}
	for !n.Leaf {
		childID := n.Children[n.childFor(key)]
		cf, cn, err := t.fetchLatched(childID, false)
		if err != nil {
			f.RUnlock()
			t.pool.UnpinPage(n.PageID, false)
			return RecordID{}, false, fmt.Errorf("bptree: get value: %w", err)
		}
		f.RUnlock()
		t.pool.UnpinPage(n.PageID, false)
		f, n = cf, cn
	}
	defer func() {
		f.RUnlock()
		t.pool.UnpinPage(n.PageID, false)
	}()

	idx := n.findKey(key)
	if idx == -1 {
		return RecordID{}, false, nil
	}
	return n.Values[idx], true, nil
}
