package bptree

import (
	"fmt"

	"storagecore/errs"
	"storagecore/page"
)

// Remove deletes key from the tree, returning errs.ErrNotFound if it
// is absent. Descent is crabbed like Insert, releasing ancestors once
// a child is proven safe for deletion (spec.md §4.4/9, grounded on
// original_source's b_plus_tree.cpp Remove/CoalesceOrRedistribute).
func (t *Tree) Remove(key Key) error {
	t.rootMu.Lock()
	rootID := t.rootID
	if rootID == page.InvalidID {
		t.rootMu.Unlock()
		return fmt.Errorf("bptree: remove %v: %w", key, errs.ErrNotFound)
	}

	tx := newTxn(true)
	tx.lockRoot(&t.rootMu)
	f, n, err := t.fetchLatched(rootID, true)
	if err != nil {
		tx.unlockRoot()
		return fmt.Errorf("bptree: remove: %w", err)
	}
	tx.push(f)
	if n.isSafeForDelete() {
		tx.releaseAncestors(t.pool)
	}

	for !n.Leaf {
		childID := n.Children[n.childFor(key)]
		cf, cn, err := t.fetchLatched(childID, true)
		if err != nil {
			tx.releaseAll(t.pool)
			return fmt.Errorf("bptree: remove: %w", err)
		}
		tx.push(cf)
		if cn.isSafeForDelete() {
			tx.releaseAncestors(t.pool)
		}
		f, n = cf, cn
	}

	idx := n.findKey(key)
	if idx == -1 {
		tx.releaseAll(t.pool)
		return fmt.Errorf("bptree: remove %v: %w", key, errs.ErrNotFound)
	}
	n.Keys = removeAt(n.Keys, idx)
	n.Values = removeAt(n.Values, idx)
	if err := t.persist(f, n); err != nil {
		tx.releaseAll(t.pool)
		return fmt.Errorf("bptree: remove: %w", err)
	}

	if f.ID == rootID || len(n.Keys) >= MinKeys {
		tx.releaseAll(t.pool)
		return nil
	}

	tx.pages = tx.pages[:len(tx.pages)-1]
	return t.coalesceOrRedistribute(tx, f, n)
}

// coalesceOrRedistribute handles an underflowed non-root node: borrow
// a key from a sibling that has one to spare, or merge with a
// sibling, recursing upward if the merge underflows the parent too.
func (t *Tree) coalesceOrRedistribute(tx *txn, f *page.Frame, n *Node) error {
	if len(tx.pages) == 0 {
		// n has no latched parent. An underflowed node is never safe for
		// deletion, so the descent kept its parent in tx; this branch
		// only guards against a broken scratchpad.
		f.Unlock()
		t.pool.UnpinPage(n.PageID, true)
		return fmt.Errorf("bptree: remove: underflowed node %d has no parent in scratchpad", n.PageID)
	}

	pf := tx.pages[len(tx.pages)-1]
	parent := decodeNode(pf.ID, &pf.Data)

	idx := 0
	for idx < len(parent.Children) && parent.Children[idx] != n.PageID {
		idx++
	}

	leftID, rightID := page.InvalidID, page.InvalidID
	if idx > 0 {
		leftID = parent.Children[idx-1]
	}
	if idx < len(parent.Children)-1 {
		rightID = parent.Children[idx+1]
	}

	if leftID != page.InvalidID {
		lf, left, err := t.fetchLatched(leftID, true)
		if err == nil {
			if len(left.Keys) > MinKeys {
				t.redistributeFromLeft(left, n, parent, idx)
				_ = t.persist(lf, left)
				_ = t.persist(f, n)
				_ = t.persist(pf, parent)
				lf.Unlock()
				t.pool.UnpinPage(leftID, true)
				f.Unlock()
				t.pool.UnpinPage(n.PageID, true)
				tx.pages = tx.pages[:len(tx.pages)-1]
				pf.Unlock()
				t.pool.UnpinPage(pf.ID, true)
				tx.releaseAll(t.pool)
				return nil
			}
			lf.Unlock()
			t.pool.UnpinPage(leftID, false)
		}
	}

	if rightID != page.InvalidID {
		rf, right, err := t.fetchLatched(rightID, true)
		if err == nil {
			if len(right.Keys) > MinKeys {
				t.redistributeFromRight(n, right, parent, idx)
				_ = t.persist(f, n)
				_ = t.persist(rf, right)
				_ = t.persist(pf, parent)
				rf.Unlock()
				t.pool.UnpinPage(rightID, true)
				f.Unlock()
				t.pool.UnpinPage(n.PageID, true)
				tx.pages = tx.pages[:len(tx.pages)-1]
				pf.Unlock()
				t.pool.UnpinPage(pf.ID, true)
				tx.releaseAll(t.pool)
				return nil
			}
			rf.Unlock()
			t.pool.UnpinPage(rightID, false)
		}
	}

	// Neither sibling can spare a key: merge.
	if leftID != page.InvalidID {
		lf, left, err := t.fetchLatched(leftID, true)
		if err != nil {
			f.Unlock()
			t.pool.UnpinPage(n.PageID, true)
			tx.releaseAll(t.pool)
			return fmt.Errorf("bptree: remove: merge: %w", err)
		}
		if err := t.mergeInto(left, n, parent, idx-1); err != nil {
			lf.Unlock()
			t.pool.UnpinPage(leftID, true)
			f.Unlock()
			t.pool.UnpinPage(n.PageID, true)
			tx.releaseAll(t.pool)
			return fmt.Errorf("bptree: remove: merge: %w", err)
		}
		_ = t.persist(lf, left)
		lf.Unlock()
		t.pool.UnpinPage(leftID, true)
		deadID := n.PageID
		f.Unlock()
		t.pool.UnpinPage(deadID, false)
		tx.addDeleted(deadID)
		parent.Keys = removeAt(parent.Keys, idx-1)
		parent.Children = removeAt(parent.Children, idx)
	} else if rightID != page.InvalidID {
		rf, right, err := t.fetchLatched(rightID, true)
		if err != nil {
			f.Unlock()
			t.pool.UnpinPage(n.PageID, true)
			tx.releaseAll(t.pool)
			return fmt.Errorf("bptree: remove: merge: %w", err)
		}
		if err := t.mergeInto(n, right, parent, idx); err != nil {
			rf.Unlock()
			t.pool.UnpinPage(rightID, true)
			f.Unlock()
			t.pool.UnpinPage(n.PageID, true)
			tx.releaseAll(t.pool)
			return fmt.Errorf("bptree: remove: merge: %w", err)
		}
		_ = t.persist(f, n)
		f.Unlock()
		t.pool.UnpinPage(n.PageID, true)
		deadID := right.PageID
		rf.Unlock()
		t.pool.UnpinPage(deadID, false)
		tx.addDeleted(deadID)
		parent.Keys = removeAt(parent.Keys, idx)
		parent.Children = removeAt(parent.Children, idx+1)
	} else {
		f.Unlock()
		t.pool.UnpinPage(n.PageID, true)
		tx.releaseAll(t.pool)
		return fmt.Errorf("bptree: remove: underflowed node %d has no sibling", n.PageID)
	}

	_ = t.persist(pf, parent)
	tx.pages = tx.pages[:len(tx.pages)-1]

	// No ancestor left in tx means pf is either the tree root or the
	// topmost node the descent latched as safe for deletion; a safe
	// node keeps at least MinKeys keys, so adjustRoot only releases it.
	// (Checking via t.getRoot() here would deadlock — this goroutine
	// may still hold rootMu exclusively through tx.)
	if len(tx.pages) == 0 {
		return t.adjustRoot(tx, pf, parent)
	}
	if len(parent.Keys) >= MinKeys {
		pf.Unlock()
		t.pool.UnpinPage(pf.ID, true)
		tx.releaseAll(t.pool)
		return nil
	}
	return t.coalesceOrRedistribute(tx, pf, parent)
}

// mergeInto folds right's entries into left, pulling the separator
// key down from parent for internal merges, and reparenting any
// children that moved.
func (t *Tree) mergeInto(left, right, parent *Node, sepIdx int) error {
	if left.Leaf {
		left.Keys = append(left.Keys, right.Keys...)
		left.Values = append(left.Values, right.Values...)
		left.Next = right.Next
		return nil
	}
	separator := parent.Keys[sepIdx]
	left.Keys = append(append(left.Keys, separator), right.Keys...)
	left.Children = append(left.Children, right.Children...)
	for _, c := range right.Children {
		if err := t.reparent(c, left.PageID); err != nil {
			return err
		}
	}
	return nil
}

// redistributeFromLeft borrows left's last entry to become n's first,
// rotating the separator through parent.
func (t *Tree) redistributeFromLeft(left, n, parent *Node, idx int) {
	if n.Leaf {
		lastKey := left.Keys[len(left.Keys)-1]
		lastVal := left.Values[len(left.Values)-1]
		left.Keys = left.Keys[:len(left.Keys)-1]
		left.Values = left.Values[:len(left.Values)-1]
		n.Keys = insertAt(n.Keys, 0, lastKey)
		n.Values = insertAt(n.Values, 0, lastVal)
		parent.Keys[idx-1] = n.Keys[0]
		return
	}
	separator := parent.Keys[idx-1]
	lastKey := left.Keys[len(left.Keys)-1]
	lastChild := left.Children[len(left.Children)-1]
	left.Keys = left.Keys[:len(left.Keys)-1]
	left.Children = left.Children[:len(left.Children)-1]
	n.Keys = insertAt(n.Keys, 0, separator)
	n.Children = insertAt(n.Children, 0, lastChild)
	parent.Keys[idx-1] = lastKey
	_ = t.reparent(lastChild, n.PageID)
}

// redistributeFromRight borrows right's first entry to become n's
// last, rotating the separator through parent.
func (t *Tree) redistributeFromRight(n, right, parent *Node, idx int) {
	if n.Leaf {
		firstKey := right.Keys[0]
		firstVal := right.Values[0]
		right.Keys = right.Keys[1:]
		right.Values = right.Values[1:]
		n.Keys = append(n.Keys, firstKey)
		n.Values = append(n.Values, firstVal)
		parent.Keys[idx] = right.Keys[0]
		return
	}
	separator := parent.Keys[idx]
	firstKey := right.Keys[0]
	firstChild := right.Children[0]
	right.Keys = right.Keys[1:]
	right.Children = right.Children[1:]
	n.Keys = append(n.Keys, separator)
	n.Children = append(n.Children, firstChild)
	parent.Keys[idx] = firstKey
	_ = t.reparent(firstChild, n.PageID)
}

// adjustRoot collapses a root that has underflowed to zero keys,
// promoting its sole remaining child to root, or leaves a leaf root
// (which represents an emptied, but still valid, tree) untouched.
// This is always the last thing a descent does, so it releases tx's
// root-id latch and scheduled deletions itself rather than relying on
// a later releaseAll.
func (t *Tree) adjustRoot(tx *txn, f *page.Frame, n *Node) error {
	tx.unlockRoot()

	if n.Leaf || len(n.Keys) > 0 {
		f.Unlock()
		t.pool.UnpinPage(n.PageID, true)
		tx.flushDeleted(t.pool)
		return nil
	}

	newRootID := n.Children[0]
	oldRootID := n.PageID
	f.Unlock()
	t.pool.UnpinPage(oldRootID, false)

	if err := t.reparent(newRootID, page.InvalidID); err != nil {
		tx.flushDeleted(t.pool)
		return fmt.Errorf("bptree: adjust root: %w", err)
	}

	t.rootMu.Lock()
	t.rootID = newRootID
	t.rootMu.Unlock()
	if err := t.persistRoot(newRootID); err != nil {
		tx.flushDeleted(t.pool)
		return fmt.Errorf("bptree: adjust root: %w", err)
	}
	tx.addDeleted(oldRootID)
	tx.flushDeleted(t.pool)
	return nil
}
