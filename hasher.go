package exthash

import "github.com/cespare/xxhash/v2"

// HashFunc computes the fixed, deterministic 64-bit hash a table routes keys
// by. The low-order bits are the addressing bits: globalDepth of them index
// the directory. The function must be stable across processes for a given
// storage root, since bucket contents are partitioned by it.
type HashFunc[K comparable] func(K) uint64

// XXH64String hashes string keys with xxHash64.
func XXH64String(s string) uint64 {
	return xxhash.Sum64String(s)
}

// XXH64Bytes hashes byte-slice-convertible keys with xxHash64.
func XXH64Bytes(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// Uint64Identity uses the key itself as its hash. Only suitable when keys
// are already well distributed in their low bits.
func Uint64Identity(k uint64) uint64 {
	return k
}

// IntIdentity is Uint64Identity for int keys.
func IntIdentity(k int) uint64 {
	return uint64(k)
}
