// Package disk implements the block-device collaborator the buffer
// pool depends on: a single fixed-page-size file, read and written by
// page-id.
package disk

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"storagecore/page"
)

// Manager owns one on-disk file and hands out page-ids from it. It has
// no notion of pages beyond fixed-size byte ranges — layout, node
// format, and record format are the B+tree's concern.
//
// Grounded on the teacher's storage_engine/disk_manager: ReadAt/WriteAt
// against a single *os.File at pageID*page.Size offsets, a counter for
// the next unused page-id, and a free-list of deallocated ids so
// DeletePage-then-NewPage reuses space instead of growing the file
// forever.
type Manager struct {
	mu      sync.Mutex
	file    *os.File
	nextID  page.ID
	freeIDs []page.ID
}

// Open opens (or creates) path as the backing file for a Manager. Page
// id 0, the header page, is reserved: a brand-new file has its
// next-available id start at 1.
func Open(path string) (*Manager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("disk: open %s: %w", path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("disk: stat %s: %w", path, err)
	}

	existingPages := stat.Size() / page.Size
	next := page.ID(existingPages)
	if next < 1 {
		next = 1
	}

	return &Manager{file: f, nextID: next}, nil
}

// Close closes the backing file. It does not call Sync first.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil
	return err
}

// AllocatePage reserves a fresh page-id: a previously deallocated id if
// one is available, otherwise the next never-used id. It does not
// write anything — the buffer pool zeroes and writes the frame later.
func (m *Manager) AllocatePage() (page.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n := len(m.freeIDs); n > 0 {
		id := m.freeIDs[n-1]
		m.freeIDs = m.freeIDs[:n-1]
		return id, nil
	}

	id := m.nextID
	m.nextID++
	return id, nil
}

// DeallocatePage releases id back for future reuse. It performs no I/O
// of its own; any dirty frame bound to id must already have been
// evicted or flushed by the caller.
func (m *Manager) DeallocatePage(id page.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.freeIDs = append(m.freeIDs, id)
}

// ReadPage reads the page-sized block for id into data. Short reads
// (e.g. a page allocated but never yet written) are zero-padded, so a
// freshly allocated page reads back as all-zero bytes.
func (m *Manager) ReadPage(id page.ID, data *[page.Size]byte) error {
	m.mu.Lock()
	f := m.file
	m.mu.Unlock()

	if f == nil {
		return fmt.Errorf("disk: file closed")
	}
	if id < 0 {
		return fmt.Errorf("disk: invalid page id %d", id)
	}

	offset := int64(id) * page.Size
	n, err := f.ReadAt(data[:], offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("disk: read page %d: %w", id, err)
	}
	for i := n; i < page.Size; i++ {
		data[i] = 0
	}
	return nil
}

// WritePage writes data to the page-sized block for id.
func (m *Manager) WritePage(id page.ID, data *[page.Size]byte) error {
	m.mu.Lock()
	f := m.file
	m.mu.Unlock()

	if f == nil {
		return fmt.Errorf("disk: file closed")
	}
	if id < 0 {
		return fmt.Errorf("disk: invalid page id %d", id)
	}

	offset := int64(id) * page.Size
	if _, err := f.WriteAt(data[:], offset); err != nil {
		return fmt.Errorf("disk: write page %d: %w", id, err)
	}
	return nil
}
