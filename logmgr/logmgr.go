// Package logmgr declares the write-ahead-log collaborator the buffer
// pool optionally consults before flushing a dirty page. The log
// manager itself is out of scope (spec.md §1); only the edge the
// buffer pool touches is defined here.
package logmgr

// FlushedLSNGetter is the one method the buffer pool needs from a log
// manager: how far the log has durably flushed. A page whose LSN is
// not yet covered by the flushed LSN cannot safely be written back —
// doing so would violate write-ahead logging.
//
// Grounded on the teacher's bufferpool.WALFlushedLSNGetter, injected
// via SetWALManager and consulted in FlushPage/evictLRU — kept
// verbatim as the mechanism by which spec.md §6's "optional, may be
// absent" log manager is wired into the buffer pool.
type FlushedLSNGetter interface {
	GetFlushedLSN() uint64
}

// AlwaysFlushed is a trivial FlushedLSNGetter for tests and for
// running the buffer pool with logging disabled but a non-nil
// collaborator: every page is reported as already covered by the log.
type AlwaysFlushed struct{}

func (AlwaysFlushed) GetFlushedLSN() uint64 { return ^uint64(0) }
