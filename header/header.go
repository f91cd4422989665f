// Package header implements the name -> root-page-id record table that
// lives on the reserved header page (page.HeaderPageID) and lets
// multiple named B+tree indexes share one buffer pool and one disk
// file.
//
// Grounded on the teacher's diskManager.WriteRootID/ReadRootID (a
// single root-id slot baked into the file header of a one-tree-per-file
// layout) generalized to the name-keyed table spec.md §6 requires, and
// on node_to_index_page.go's fixed-width binary record layout idiom.
package header

import (
	"encoding/binary"
	"fmt"
	"sync"

	"storagecore/buffer"
	"storagecore/errs"
	"storagecore/page"
)

const (
	nameWidth  = 32
	recordSize = nameWidth + 8 // name + int64 root page-id
	maxRecords = (page.Size - 4) / recordSize
)

// Table is the header-page-backed name->root-id record table.
type Table struct {
	mu   sync.Mutex
	pool *buffer.Pool
}

// New wraps pool. The header page is page 0, which disk.Open reserves
// by starting allocation at 1; nothing writes it until the first
// record is stored, and an unwritten page 0 reads back as an empty
// table. New does not create or write it.
func New(pool *buffer.Pool) *Table {
	return &Table{pool: pool}
}

type record struct {
	name [nameWidth]byte
	used bool
	id   page.ID
}

func (t *Table) load() ([]record, *page.Frame, error) {
	f, err := t.pool.FetchPage(page.HeaderPageID)
	if err != nil {
		return nil, nil, fmt.Errorf("header: fetch header page: %w", err)
	}

	f.RLock()
	count := binary.LittleEndian.Uint32(f.Data[0:4])
	recs := make([]record, count)
	off := 4
	for i := 0; i < int(count); i++ {
		copy(recs[i].name[:], f.Data[off:off+nameWidth])
		recs[i].id = page.ID(binary.LittleEndian.Uint64(f.Data[off+nameWidth : off+recordSize]))
		recs[i].used = true
		off += recordSize
	}
	f.RUnlock()

	return recs, f, nil
}

func (t *Table) store(f *page.Frame, recs []record) error {
	if len(recs) > maxRecords {
		return fmt.Errorf("header: record table full (max %d entries)", maxRecords)
	}

	f.Lock()
	binary.LittleEndian.PutUint32(f.Data[0:4], uint32(len(recs)))
	off := 4
	for _, r := range recs {
		var nameBuf [nameWidth]byte
		copy(nameBuf[:], r.name[:])
		copy(f.Data[off:off+nameWidth], nameBuf[:])
		binary.LittleEndian.PutUint64(f.Data[off+nameWidth:off+recordSize], uint64(r.id))
		off += recordSize
	}
	f.Dirty = true
	f.Unlock()

	return nil
}

func encodeName(name string) ([nameWidth]byte, error) {
	var buf [nameWidth]byte
	if len(name) > nameWidth {
		return buf, fmt.Errorf("header: name %q exceeds %d bytes", name, nameWidth)
	}
	copy(buf[:], name)
	return buf, nil
}

// InsertRecord adds a new name -> id mapping. It returns
// errs.ErrDuplicateKey if name is already present.
func (t *Table) InsertRecord(name string, id page.ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	nameBuf, err := encodeName(name)
	if err != nil {
		return err
	}

	recs, f, err := t.load()
	if err != nil {
		return err
	}
	defer t.pool.UnpinPage(page.HeaderPageID, false)

	for _, r := range recs {
		if r.name == nameBuf {
			return fmt.Errorf("header: insert %q: %w", name, errs.ErrDuplicateKey)
		}
	}

	recs = append(recs, record{name: nameBuf, id: id, used: true})
	if err := t.store(f, recs); err != nil {
		return err
	}
	return t.pool.FlushPage(page.HeaderPageID)
}

// UpdateRecord changes the root-id for an existing name. It returns
// errs.ErrNotFound if name is not present.
func (t *Table) UpdateRecord(name string, id page.ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	nameBuf, err := encodeName(name)
	if err != nil {
		return err
	}

	recs, f, err := t.load()
	if err != nil {
		return err
	}
	defer t.pool.UnpinPage(page.HeaderPageID, false)

	for i := range recs {
		if recs[i].name == nameBuf {
			recs[i].id = id
			if err := t.store(f, recs); err != nil {
				return err
			}
			return t.pool.FlushPage(page.HeaderPageID)
		}
	}
	return fmt.Errorf("header: update %q: %w", name, errs.ErrNotFound)
}

// DeleteRecord removes name's mapping, if present. Deleting an absent
// name is a no-op, matching the teacher's idempotent record deletes.
func (t *Table) DeleteRecord(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	nameBuf, err := encodeName(name)
	if err != nil {
		return err
	}

	recs, f, err := t.load()
	if err != nil {
		return err
	}
	defer t.pool.UnpinPage(page.HeaderPageID, false)

	for i, r := range recs {
		if r.name == nameBuf {
			recs = append(recs[:i], recs[i+1:]...)
			if err := t.store(f, recs); err != nil {
				return err
			}
			return t.pool.FlushPage(page.HeaderPageID)
		}
	}
	return nil
}

// GetRootID looks up name's current root page-id.
func (t *Table) GetRootID(name string) (page.ID, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	nameBuf, err := encodeName(name)
	if err != nil {
		return page.InvalidID, false, err
	}

	recs, _, err := t.load()
	if err != nil {
		return page.InvalidID, false, err
	}
	defer t.pool.UnpinPage(page.HeaderPageID, false)

	for _, r := range recs {
		if r.name == nameBuf {
			return r.id, true, nil
		}
	}
	return page.InvalidID, false, nil
}
