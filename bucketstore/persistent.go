package bucketstore

import (
	"errors"
	"fmt"

	"github.com/hupe1980/exthash/bucket"
)

// ErrBucketFull is returned when an insert is attempted on a full bucket for
// a new key. The table never lets this happen on the normal routing path; it
// guards the split redistribution path.
var ErrBucketFull = errors.New("bucket full")

// Bucket wraps an in-memory bucket with a stable file name bound to a Store.
//
// Every mutating call applies the in-memory mutation first and then persists
// the bucket's full state (write-through), or marks the bucket dirty in batch
// durability mode. If the durable write fails, the in-memory state has
// already advanced and diverges from disk: the caller must treat this as a
// fatal, table-wide failure and discard the table instance.
type Bucket[K comparable, V any] struct {
	mem      *bucket.Bucket[K, V]
	store    *Store
	fileName string
	dirty    bool
}

// Create creates an empty bucket and persists it under fileName immediately,
// so the file exists from bucket-construction time onward.
func Create[K comparable, V any](store *Store, fileName string, localDepth, capacity int) (*Bucket[K, V], error) {
	mem, err := bucket.New[K, V](localDepth, capacity)
	if err != nil {
		return nil, err
	}
	b := &Bucket[K, V]{mem: mem, store: store, fileName: fileName}
	if err := b.persistNow(); err != nil {
		return nil, err
	}
	return b, nil
}

// Open loads a bucket from its file under the Store's root. The storage root
// is supplied by the Store rather than recorded in the file, so bucket files
// are portable across a moved storage root.
func Open[K comparable, V any](store *Store, fileName string) (*Bucket[K, V], error) {
	data, err := store.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	mem, err := unmarshalBucket[K, V](data)
	if err != nil {
		return nil, fmt.Errorf("bucketstore: load %s: %w", fileName, err)
	}
	return &Bucket[K, V]{mem: mem, store: store, fileName: fileName}, nil
}

// FileName returns the bucket's stable logical file name.
func (b *Bucket[K, V]) FileName() string { return b.fileName }

// LocalDepth returns the bucket's local depth.
func (b *Bucket[K, V]) LocalDepth() int { return b.mem.LocalDepth() }

// Capacity returns the bucket's fixed capacity.
func (b *Bucket[K, V]) Capacity() int { return b.mem.Capacity() }

// Len returns the number of stored items.
func (b *Bucket[K, V]) Len() int { return b.mem.Len() }

// IsFull reports whether the bucket is at capacity.
func (b *Bucket[K, V]) IsFull() bool { return b.mem.IsFull() }

// Get returns the value bound to key. Read-only, no persistence.
func (b *Bucket[K, V]) Get(key K) (V, bool) { return b.mem.Get(key) }

// ContainsKey reports whether key is present. Read-only, no persistence.
func (b *Bucket[K, V]) ContainsKey(key K) bool { return b.mem.ContainsKey(key) }

// SnapshotItems returns a defensive copy of the items.
func (b *Bucket[K, V]) SnapshotItems() map[K]V { return b.mem.SnapshotItems() }

// Insert upserts the key and persists the new state.
func (b *Bucket[K, V]) Insert(key K, value V) (prev V, existed bool, err error) {
	prev, existed, ok := b.mem.Insert(key, value)
	if !ok {
		return prev, existed, fmt.Errorf("%w: %s", ErrBucketFull, b.fileName)
	}
	return prev, existed, b.persist()
}

// Remove deletes the key and persists the new, possibly unchanged, state.
// The write is issued even when the key was absent: a no-op remove is not
// optimized away.
func (b *Bucket[K, V]) Remove(key K) (prev V, existed bool, err error) {
	prev, existed = b.mem.Remove(key)
	return prev, existed, b.persist()
}

// Clear removes all items and persists the empty state.
func (b *Bucket[K, V]) Clear() error {
	b.mem.Clear()
	return b.persist()
}

// SetLocalDepth updates the local depth and persists it.
func (b *Bucket[K, V]) SetLocalDepth(d int) error {
	b.mem.SetLocalDepth(d)
	return b.persist()
}

// Flush writes the bucket's state if it has unpersisted mutations. It is a
// no-op in sync durability mode, where every mutation already reached disk.
func (b *Bucket[K, V]) Flush() error {
	if !b.dirty {
		return nil
	}
	return b.persistNow()
}

func (b *Bucket[K, V]) persist() error {
	if b.store.durability == DurabilityBatch {
		b.dirty = true
		return nil
	}
	return b.persistNow()
}

func (b *Bucket[K, V]) persistNow() error {
	data, err := marshalBucket(b.store.codec, b.store.compression, b.mem)
	if err != nil {
		return fmt.Errorf("bucketstore: encode %s: %w", b.fileName, err)
	}
	if err := b.store.WriteAtomic(b.fileName, data); err != nil {
		return err
	}
	b.dirty = false
	return nil
}
