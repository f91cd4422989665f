package bptree

import (
	"fmt"

	"storagecore/errs"
	"storagecore/page"
)

// Insert adds key->rid. It returns errs.ErrDuplicateKey, leaving the
// tree unchanged, if key is already present.
// Descent is crabbed: each child is W-latched before its parent is
// released, and ancestors are let go as soon as a child is proven
// safe for insertion (spec.md §4.4/9, grounded on original_source's
// b_plus_tree.cpp Insert/InsertIntoLeaf).
func (t *Tree) Insert(key Key, rid RecordID) error {
	t.rootMu.Lock()
	if t.rootID == page.InvalidID {
		f, id, err := t.pool.NewPage()
		if err != nil {
			t.rootMu.Unlock()
			return fmt.Errorf("bptree: insert: allocate root: %w", err)
		}
		f.Lock()
		n := newLeaf(id)
		n.Keys = []Key{key}
		n.Values = []RecordID{rid}
		err = t.persist(f, n)
		f.Unlock()
		t.pool.UnpinPage(id, true)
		if err != nil {
			t.rootMu.Unlock()
			return fmt.Errorf("bptree: insert: serialize root: %w", err)
		}
		t.rootID = id
		t.rootMu.Unlock()
		return t.persistRoot(id)
	}
	rootID := t.rootID

	tx := newTxn(true)
	tx.lockRoot(&t.rootMu)
	f, n, err := t.fetchLatched(rootID, true)
	if err != nil {
		tx.unlockRoot()
		return fmt.Errorf("bptree: insert: %w", err)
	}
	tx.push(f)
	if n.isSafeForInsert() {
		tx.releaseAncestors(t.pool)
	}

	for !n.Leaf {
		childID := n.Children[n.childFor(key)]
		cf, cn, err := t.fetchLatched(childID, true)
		if err != nil {
			tx.releaseAll(t.pool)
			return fmt.Errorf("bptree: insert: %w", err)
		}
		tx.push(cf)
		if cn.isSafeForInsert() {
			tx.releaseAncestors(t.pool)
		}
		f, n = cf, cn
	}

	if n.findKey(key) != -1 {
		tx.releaseAll(t.pool)
		return fmt.Errorf("bptree: insert %v: %w", key, errs.ErrDuplicateKey)
	}

	pos := n.insertAt(key)
	n.Keys = insertAt(n.Keys, pos, key)
	n.Values = insertAt(n.Values, pos, rid)

	if len(n.Keys) <= MaxKeys {
		err := t.persist(f, n)
		tx.releaseAll(t.pool)
		if err != nil {
			return fmt.Errorf("bptree: insert: %w", err)
		}
		return nil
	}

	return t.splitLeafAndPropagate(tx, f, n)
}

// splitLeafAndPropagate splits an overflowing leaf in two and inserts
// the separator key into the parent, recursing upward through the
// ancestors already held in tx.
func (t *Tree) splitLeafAndPropagate(tx *txn, leafFrame *page.Frame, leaf *Node) error {
	mid := len(leaf.Keys) / 2

	rf, rightID, err := t.pool.NewPage()
	if err != nil {
		tx.releaseAll(t.pool)
		return fmt.Errorf("bptree: split leaf: allocate sibling: %w", err)
	}
	rf.Lock()
	right := newLeaf(rightID)
	right.Keys = append([]Key(nil), leaf.Keys[mid:]...)
	right.Values = append([]RecordID(nil), leaf.Values[mid:]...)
	right.Next = leaf.Next
	right.Parent = leaf.Parent
	err = t.persist(rf, right)
	rf.Unlock()
	t.pool.UnpinPage(rightID, true)
	if err != nil {
		tx.releaseAll(t.pool)
		return fmt.Errorf("bptree: split leaf: serialize sibling: %w", err)
	}

	leaf.Keys = leaf.Keys[:mid]
	leaf.Values = leaf.Values[:mid]
	leaf.Next = rightID
	leftID := leaf.PageID
	err = t.persist(leafFrame, leaf)
	leafFrame.Unlock()
	t.pool.UnpinPage(leftID, true)
	if err != nil {
		tx.releaseAll(t.pool)
		return fmt.Errorf("bptree: split leaf: serialize left: %w", err)
	}
	tx.pages = tx.pages[:len(tx.pages)-1]

	sep := right.Keys[0]
	return t.insertIntoParent(tx, leftID, sep, rightID)
}

// insertIntoParent adds separator sep and rightID as leftID's new
// right sibling into leftID's parent (the top of tx, or a freshly
// created root if tx is now empty).
func (t *Tree) insertIntoParent(tx *txn, leftID page.ID, sep Key, rightID page.ID) error {
	if len(tx.pages) == 0 {
		return t.createNewRoot(tx, leftID, sep, rightID)
	}

	pf := tx.pages[len(tx.pages)-1]
	tx.pages = tx.pages[:len(tx.pages)-1]
	parent := decodeNode(pf.ID, &pf.Data)

	idx := 0
	for idx < len(parent.Children) && parent.Children[idx] != leftID {
		idx++
	}
	parent.Keys = insertAt(parent.Keys, idx, sep)
	parent.Children = insertAt(parent.Children, idx+1, rightID)

	if err := t.reparent(rightID, pf.ID); err != nil {
		pf.Unlock()
		t.pool.UnpinPage(pf.ID, true)
		tx.releaseAll(t.pool)
		return fmt.Errorf("bptree: insert into parent: %w", err)
	}

	if len(parent.Keys) <= MaxKeys {
		err := t.persist(pf, parent)
		pf.Unlock()
		t.pool.UnpinPage(pf.ID, true)
		tx.releaseAll(t.pool)
		if err != nil {
			return fmt.Errorf("bptree: insert into parent: %w", err)
		}
		return nil
	}

	return t.splitInternalAndPropagate(tx, pf, parent)
}

func (t *Tree) splitInternalAndPropagate(tx *txn, pf *page.Frame, node *Node) error {
	mid := len(node.Keys) / 2
	promote := node.Keys[mid]

	rf, rightID, err := t.pool.NewPage()
	if err != nil {
		pf.Unlock()
		t.pool.UnpinPage(pf.ID, true)
		tx.releaseAll(t.pool)
		return fmt.Errorf("bptree: split internal: allocate sibling: %w", err)
	}
	rf.Lock()
	right := newInternal(rightID)
	right.Keys = append([]Key(nil), node.Keys[mid+1:]...)
	right.Children = append([]page.ID(nil), node.Children[mid+1:]...)
	right.Parent = node.Parent
	err = t.persist(rf, right)
	rf.Unlock()
	t.pool.UnpinPage(rightID, true)
	if err != nil {
		pf.Unlock()
		t.pool.UnpinPage(pf.ID, true)
		tx.releaseAll(t.pool)
		return fmt.Errorf("bptree: split internal: serialize sibling: %w", err)
	}

	for _, c := range right.Children {
		if err := t.reparent(c, rightID); err != nil {
			pf.Unlock()
			t.pool.UnpinPage(pf.ID, true)
			tx.releaseAll(t.pool)
			return fmt.Errorf("bptree: split internal: %w", err)
		}
	}

	node.Keys = node.Keys[:mid]
	node.Children = node.Children[:mid+1]
	leftID := node.PageID
	err = t.persist(pf, node)
	pf.Unlock()
	t.pool.UnpinPage(leftID, true)
	if err != nil {
		tx.releaseAll(t.pool)
		return fmt.Errorf("bptree: split internal: serialize left: %w", err)
	}

	return t.insertIntoParent(tx, leftID, promote, rightID)
}

// createNewRoot builds a fresh internal root over leftID/rightID when
// the old root just split. tx.pages is empty here (the old root had
// no parent), but tx may still hold the root-id latch it took at the
// start of the descent — reuse that hold instead of re-locking, which
// would deadlock this goroutine against itself.
func (t *Tree) createNewRoot(tx *txn, leftID page.ID, sep Key, rightID page.ID) error {
	f, id, err := t.pool.NewPage()
	if err != nil {
		tx.unlockRoot()
		return fmt.Errorf("bptree: create new root: %w", err)
	}
	f.Lock()
	root := newInternal(id)
	root.Keys = []Key{sep}
	root.Children = []page.ID{leftID, rightID}
	err = t.persist(f, root)
	f.Unlock()
	t.pool.UnpinPage(id, true)
	if err != nil {
		tx.unlockRoot()
		return fmt.Errorf("bptree: create new root: serialize: %w", err)
	}

	if err := t.reparent(leftID, id); err != nil {
		tx.unlockRoot()
		return fmt.Errorf("bptree: create new root: %w", err)
	}
	if err := t.reparent(rightID, id); err != nil {
		tx.unlockRoot()
		return fmt.Errorf("bptree: create new root: %w", err)
	}

	if tx.rootLocked {
		t.rootID = id
		tx.unlockRoot()
	} else {
		t.rootMu.Lock()
		t.rootID = id
		t.rootMu.Unlock()
	}
	return t.persistRoot(id)
}
