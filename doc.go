// Package exthash provides a persistent extendible-hash index for Go.
//
// The index is a directory of addressable buckets that grows by doubling.
// Buckets split on overflow; every bucket is backed by its own file under a
// storage root and is rewritten atomically (temp file + rename) on every
// mutation, so a crash at any point leaves only fully committed bucket
// versions on disk. A separate checkpoint record captures the directory
// shape, including which slots alias the same bucket, and restores it
// exactly in a fresh process.
//
// # Quick start
//
//	table, err := exthash.New[string, int]("./data", exthash.XXH64String,
//	    exthash.WithBucketCapacity(4),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer table.Close()
//
//	_, _, err = table.Put("answer", 42)
//	v, ok := table.Get("answer")
//
//	if err := table.Save(); err != nil { // checkpoint the directory shape
//	    log.Fatal(err)
//	}
//
//	reloaded, err := exthash.Load[string, int]("./data", exthash.XXH64String)
//
// # Addressing
//
// Keys are routed by the low-order bits of a fixed, deterministic 64-bit
// hash: globalDepth bits index the directory, and the next bit above a
// bucket's local depth decides where each key lands when that bucket splits.
// The hash function is a constructor argument and must not change across the
// lifetime of a storage root.
//
// # Concurrency and durability
//
// A table serializes all mutations behind one lock per instance; Get may run
// concurrently with other Gets but never overlaps a mutation. Persistence is
// write-through by default: the atomic file write is on the critical path of
// every Put and Remove. WithDurability(DurabilityBatch) trades that for
// batched writes flushed on Flush/Save.
//
// A storage root is exclusively owned by one table instance within one
// process. No cross-process coordination is provided; sharing a root between
// instances is undefined behavior.
package exthash
