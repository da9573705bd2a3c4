// Package bucket implements the fixed-capacity associative container used by
// the extendible-hash directory. It is pure in-memory logic; durability is
// layered on top by package bucketstore.
package bucket

import "fmt"

// Bucket is a fixed-capacity key/value container carrying a local depth.
//
// The local depth is the number of low-order hash bits all keys in the bucket
// are guaranteed to share. It only ever increases, via splits driven by the
// owning table.
type Bucket[K comparable, V any] struct {
	items      map[K]V
	localDepth int
	capacity   int
}

// New creates an empty bucket with the given local depth and capacity.
func New[K comparable, V any](localDepth, capacity int) (*Bucket[K, V], error) {
	if localDepth < 0 {
		return nil, fmt.Errorf("invalid local depth: %d", localDepth)
	}
	if capacity < 1 {
		return nil, fmt.Errorf("invalid capacity: %d", capacity)
	}
	return &Bucket[K, V]{
		items:      make(map[K]V, capacity),
		localDepth: localDepth,
		capacity:   capacity,
	}, nil
}

// LocalDepth returns the bucket's local depth.
func (b *Bucket[K, V]) LocalDepth() int { return b.localDepth }

// SetLocalDepth sets the bucket's local depth. Callers only ever increase it.
func (b *Bucket[K, V]) SetLocalDepth(d int) { b.localDepth = d }

// Capacity returns the fixed capacity set at creation.
func (b *Bucket[K, V]) Capacity() int { return b.capacity }

// Len returns the number of items currently stored.
func (b *Bucket[K, V]) Len() int { return len(b.items) }

// IsFull reports whether the bucket holds capacity items.
func (b *Bucket[K, V]) IsFull() bool { return len(b.items) >= b.capacity }

// Insert upserts the key. It refuses only when the bucket is full and the key
// is new; an existing key is always updated in place.
//
// ok reports whether the insert was applied; prev and existed describe the
// previous binding of the key.
func (b *Bucket[K, V]) Insert(key K, value V) (prev V, existed, ok bool) {
	prev, existed = b.items[key]
	if !existed && b.IsFull() {
		ok = false
		return
	}
	b.items[key] = value
	ok = true
	return
}

// Get returns the value bound to key.
func (b *Bucket[K, V]) Get(key K) (V, bool) {
	v, ok := b.items[key]
	return v, ok
}

// ContainsKey reports whether key is present.
func (b *Bucket[K, V]) ContainsKey(key K) bool {
	_, ok := b.items[key]
	return ok
}

// Remove deletes key and returns its previous value.
func (b *Bucket[K, V]) Remove(key K) (prev V, existed bool) {
	prev, existed = b.items[key]
	delete(b.items, key)
	return
}

// Clear removes all items.
func (b *Bucket[K, V]) Clear() {
	clear(b.items)
}

// SnapshotItems returns a defensive copy of the items, for split
// redistribution: the original map is cleared as part of the same operation.
func (b *Bucket[K, V]) SnapshotItems() map[K]V {
	snapshot := make(map[K]V, len(b.items))
	for k, v := range b.items {
		snapshot[k] = v
	}
	return snapshot
}
