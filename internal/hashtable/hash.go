package hashtable

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// HashFunc computes a 64-bit hash for a key of type K. The extendible
// hash table only ever consults the low bits of the result, so callers
// don't need a cryptographic or even collision-resistant hash — just one
// with good bit distribution, which is exactly what xxhash offers cheaply.
type HashFunc[K any] func(K) uint64

// HashInt32 hashes a 32-bit key (e.g. a page id) via xxhash over its
// little-endian encoding.
func HashInt32[K ~int32](k K) uint64 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(k))
	return xxhash.Sum64(buf[:])
}

// HashInt64 hashes a 64-bit integer key via xxhash over its little-endian
// encoding.
func HashInt64[K ~int64](k K) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(k))
	return xxhash.Sum64(buf[:])
}

// HashString hashes a string key via xxhash directly, with no intermediate
// allocation.
func HashString[K ~string](k K) uint64 {
	return xxhash.Sum64String(string(k))
}
