package hashdir

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// HashInt64 hashes a signed 64-bit key (page-ids are int64-backed) for
// use as a Table's hash function. Promoted from the teacher's
// indirect, declared-but-unused xxhash dependency (pulled in
// transitively via ristretto) to a direct one — see DESIGN.md.
func HashInt64[K ~int64](k K) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(int64(k)))
	return xxhash.Sum64(buf[:])
}

// HashInt hashes a plain int key, for Tables used outside the buffer
// pool's page-id directory (e.g. tests exercising the hash table on
// its own, per spec.md §8 scenario 3).
func HashInt(k int) uint64 {
	return HashInt64(int64(k))
}
