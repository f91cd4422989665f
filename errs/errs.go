// Package errs declares the sentinel error kinds spec.md §7 names,
// shared across the buffer pool and the B+tree so callers can
// errors.Is against one set of values regardless of which package
// raised them.
package errs

import "errors"

var (
	// ErrResourceExhausted means the buffer pool could not provide a
	// frame: every frame is pinned and the free-list is empty.
	ErrResourceExhausted = errors.New("storagecore: no free frame available (all pages pinned)")

	// ErrNotFound means the named key or record is absent: returned by
	// bptree Tree.Remove and header Table.UpdateRecord. GetValue and
	// GetRootID report absence with a false bool instead.
	ErrNotFound = errors.New("storagecore: key not found")

	// ErrDuplicateKey means Insert was given a key already present.
	ErrDuplicateKey = errors.New("storagecore: duplicate key")

	// ErrIOFailure means a disk read or write failed.
	ErrIOFailure = errors.New("storagecore: disk i/o failure")

	// ErrPageNotResident means FlushPage named a page-id not currently
	// held by any frame. UnpinPage reports this case by returning false;
	// DeletePage still deallocates a non-resident page and returns true.
	ErrPageNotResident = errors.New("storagecore: page not resident in buffer pool")

	// ErrPagePinned means a page is still pinned by some caller. No
	// function in this module returns it: DeletePage reports a pinned
	// page by returning false.
	ErrPagePinned = errors.New("storagecore: page is pinned")
)
