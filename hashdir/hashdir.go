// Package hashdir implements an extendible hash table: a
// directory-based hash scheme where the directory doubles on overflow
// and individual buckets split when their local depth is exceeded. It
// is the buffer pool's page-id -> frame directory, but is written
// generically so it carries no frame-specific knowledge.
//
// Grounded on _examples/original_source/src/hash/extendible_hash.cpp,
// which defines the contract (HashKey, GetGlobalDepth, GetLocalDepth,
// GetNumBuckets, Find, getIdx) but ships Insert/Remove unimplemented —
// an assignment starter stub. The split/grow/retry algorithm here
// follows spec.md §4.2's description of the standard extendible
// hashing algorithm the original is a port of.
package hashdir

import "sync"

// bucket is a small mapping plus the local depth it was created at.
type bucket[K comparable, V any] struct {
	mu         sync.Mutex
	localDepth int
	items      map[K]V
}

// Table is a concurrent extendible hash directory from K to V.
//
// A single directory latch (mu) guards directory mutations (growth,
// rewiring slots to a new bucket) and the slice of bucket pointers;
// each bucket has its own latch guarding its contents. Find and Remove
// take the directory latch only long enough to look up the bucket
// pointer, then drop it and take the bucket latch. Insert holds the
// directory latch for its entire split loop, since growing the
// directory mutates shared state no bucket latch protects.
type Table[K comparable, V any] struct {
	mu          sync.Mutex
	globalDepth int
	bucketCap   int
	directory   []*bucket[K, V]
	hash        func(K) uint64
}

// New returns an empty Table whose buckets hold at most bucketCap
// entries before splitting, using hashFn to route keys to buckets.
func New[K comparable, V any](bucketCap int, hashFn func(K) uint64) *Table[K, V] {
	if bucketCap < 1 {
		bucketCap = 1
	}
	return &Table[K, V]{
		globalDepth: 0,
		bucketCap:   bucketCap,
		directory:   []*bucket[K, V]{{localDepth: 0, items: make(map[K]V, bucketCap)}},
		hash:        hashFn,
	}
}

// indexFor returns the directory slot key routes to under the current
// global depth. Caller must hold t.mu.
func (t *Table[K, V]) indexFor(k K) int {
	mask := uint64(1)<<uint(t.globalDepth) - 1
	return int(t.hash(k) & mask)
}

// Find looks up k. It returns the zero value and false if absent.
func (t *Table[K, V]) Find(k K) (V, bool) {
	t.mu.Lock()
	b := t.directory[t.indexFor(k)]
	t.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.items[k]
	return v, ok
}

// Remove deletes k if present, returning whether it was. Per spec.md
// §1's Non-goals, the directory never shrinks on delete.
func (t *Table[K, V]) Remove(k K) bool {
	t.mu.Lock()
	b := t.directory[t.indexFor(k)]
	t.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.items[k]; !ok {
		return false
	}
	delete(b.items, k)
	return true
}

// Insert adds or overwrites the mapping for k. When the routed bucket
// is full, it splits — possibly doubling the directory first — and
// retries until the (possibly new) routed bucket has room.
func (t *Table[K, V]) Insert(k K, v V) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		idx := t.indexFor(k)
		b := t.directory[idx]

		b.mu.Lock()
		if _, exists := b.items[k]; exists {
			b.items[k] = v
			b.mu.Unlock()
			return
		}
		if len(b.items) < t.bucketCap {
			b.items[k] = v
			b.mu.Unlock()
			return
		}

		t.splitBucket(idx, b)
		b.mu.Unlock()
		// Loop and re-route — k may now belong to the sibling bucket,
		// or the same bucket may simply have room after repartitioning.
	}
}

// splitBucket grows the directory if the overflowing bucket's local
// depth would exceed the global depth, allocates a sibling bucket at
// the incremented local depth, repartitions entries between the two by
// the newly-significant hash bit, and rewires every directory slot
// that pointed at the old bucket and has that bit set to point at the
// sibling instead. Caller must hold t.mu.
func (t *Table[K, V]) splitBucket(idx int, b *bucket[K, V]) {
	newLocalDepth := b.localDepth + 1
	if newLocalDepth > t.globalDepth {
		t.growDirectory()
	}

	sibling := &bucket[K, V]{localDepth: newLocalDepth, items: make(map[K]V, t.bucketCap)}
	b.localDepth = newLocalDepth

	splitBit := uint64(1) << uint(newLocalDepth-1)
	for k, v := range b.items {
		if t.hash(k)&splitBit != 0 {
			sibling.items[k] = v
			delete(b.items, k)
		}
	}

	for i := range t.directory {
		if t.directory[i] == b && uint64(i)&splitBit != 0 {
			t.directory[i] = sibling
		}
	}
}

// growDirectory doubles the directory, pointing every new slot at the
// same bucket its sibling slot already points at, and increments the
// global depth. Caller must hold t.mu.
func (t *Table[K, V]) growDirectory() {
	old := t.directory
	grown := make([]*bucket[K, V], len(old)*2)
	copy(grown, old)
	copy(grown[len(old):], old)
	t.directory = grown
	t.globalDepth++
}

// GlobalDepth returns the number of bits currently used to route keys.
func (t *Table[K, V]) GlobalDepth() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.globalDepth
}

// LocalDepth returns the local depth of the bucket currently holding
// k, or -1 if there is no such bucket (never the case in practice —
// every slot always points at some bucket).
func (t *Table[K, V]) LocalDepth(k K) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.directory[t.indexFor(k)]
	if b == nil {
		return -1
	}
	return b.localDepth
}

// NumBuckets returns the number of distinct buckets currently backing
// the directory (multiple directory slots may share one bucket).
func (t *Table[K, V]) NumBuckets() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[*bucket[K, V]]struct{})
	for _, b := range t.directory {
		seen[b] = struct{}{}
	}
	return len(seen)
}
