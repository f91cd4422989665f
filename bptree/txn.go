package bptree

import (
	"sync"

	"storagecore/page"
)

// txn is the per-call scratchpad that accumulates latched-and-pinned
// ancestor frames during a crabbing descent, plus pages slated for
// deallocation once the operation commits. Grounded on
// original_source's Transaction class (GetPageSet/GetDeletedPageSet);
// kept as an explicit value threaded through each descent rather than
// a thread-local, as SPEC_FULL.md §5 describes.
//
// The tree's root-id latch is tracked here too (rootMu/rootLocked):
// spec.md §5 holds it in exclusive mode from the start of the descent
// until the first node proven safe is latched, exactly like any other
// ancestor, so it is released through the same releaseAncestors/
// releaseAll calls rather than by the caller unlocking it early.
type txn struct {
	pages   []*page.Frame
	deleted map[page.ID]bool
	write   bool // true if frames were W-latched (Insert/Remove), false if R-latched; GetValue and the iterator use no txn

	rootMu     *sync.RWMutex
	rootLocked bool
}

func newTxn(write bool) *txn {
	return &txn{deleted: make(map[page.ID]bool), write: write}
}

// lockRoot records that mu is already held (by the caller, before the
// descent began) and should be released as the first ancestor.
func (t *txn) lockRoot(mu *sync.RWMutex) {
	t.rootMu = mu
	t.rootLocked = true
}

// unlockRoot releases the root-id latch if it is still held. Safe to
// call more than once or when no root latch was ever taken.
func (t *txn) unlockRoot() {
	if t.rootLocked {
		t.rootMu.Unlock()
		t.rootLocked = false
	}
}

// push adds f (already latched per txn.write) to the ancestor set.
func (t *txn) push(f *page.Frame) { t.pages = append(t.pages, f) }

// framePool is the subset of buffer.Pool's interface the scratchpad
// needs to release frames and free pages scheduled via addDeleted.
type framePool interface {
	UnpinPage(page.ID, bool) bool
	DeletePage(page.ID) bool
}

// releaseAncestors unlatches and unpins every frame currently held
// except the last (the node the caller is about to work on), and
// releases the root-id latch if still held, per the standard crabbing
// rule: once a child is proven safe, every ancestor above it — the
// root-id latch included — can be let go.
func (t *txn) releaseAncestors(pool framePool) {
	t.unlockRoot()
	if len(t.pages) <= 1 {
		return
	}
	for _, f := range t.pages[:len(t.pages)-1] {
		t.unlatch(f)
		pool.UnpinPage(f.ID, false)
	}
	t.pages = t.pages[len(t.pages)-1:]
}

// releaseAll unlatches and unpins every frame still held, marking
// dirty for write transactions, releases the root-id latch if still
// held, and frees every page scheduled via addDeleted.
func (t *txn) releaseAll(pool framePool) {
	t.unlockRoot()
	for _, f := range t.pages {
		id := f.ID
		t.unlatch(f)
		pool.UnpinPage(id, t.write)
	}
	t.pages = nil
	t.flushDeleted(pool)
}

// flushDeleted frees every page scheduled via addDeleted since the
// last flush.
func (t *txn) flushDeleted(pool framePool) {
	for id := range t.deleted {
		pool.DeletePage(id)
	}
	t.deleted = make(map[page.ID]bool)
}

func (t *txn) unlatch(f *page.Frame) {
	if t.write {
		f.Unlock()
	} else {
		f.RUnlock()
	}
}

func (t *txn) addDeleted(id page.ID) { t.deleted[id] = true }
