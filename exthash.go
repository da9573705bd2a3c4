package exthash

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/hupe1980/exthash/bucketstore"
	"github.com/hupe1980/exthash/checkpoint"
)

// hashWidth bounds the number of consecutive splits a single Put may
// trigger: past 64 splits there is no further hash bit that could separate
// the colliding keys, so the insert fails with ErrCapacityExceeded instead
// of looping forever.
const hashWidth = 64

// bucketID is the opaque arena id of a bucket. It doubles as the stable
// on-disk id: bucket ids are minted from a monotonic counter and map 1:1 to
// file names, so "N directory slots hold the same id" is exactly the
// aliasing a checkpoint has to reconstruct.
type bucketID int32

func bucketFileName(id bucketID) string {
	return fmt.Sprintf("bucket_%d.bin", id)
}

func parseBucketFileName(name string) (bucketID, error) {
	s, ok := strings.CutPrefix(name, "bucket_")
	if ok {
		s, ok = strings.CutSuffix(s, ".bin")
	}
	if !ok {
		return 0, fmt.Errorf("unexpected bucket file name %q", name)
	}
	id, err := strconv.ParseInt(s, 10, 32)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("unexpected bucket file name %q", name)
	}
	return bucketID(id), nil
}

// Table is a persistent extendible-hash index mapping K to V.
//
// All mutations are serialized behind one lock per instance and persist
// write-through before returning (unless DurabilityBatch is configured).
// Get may run concurrently with other Gets but never overlaps a mutation.
type Table[K comparable, V any] struct {
	mu     sync.RWMutex
	hash   HashFunc[K]
	store  *bucketstore.Store
	logger *Logger

	capacity    int
	globalDepth int

	// dir holds one arena id per slot; len(dir) == 1<<globalDepth. buckets
	// is the arena: every bucket ever minted, all of them referenced by at
	// least one slot (splitting never orphans a bucket).
	dir          []bucketID
	buckets      map[bucketID]*bucketstore.Bucket[K, V]
	nextBucketID int32

	// maxSplits is hashWidth; tests shrink it to reach the bound without
	// growing the directory to 2^64 slots.
	maxSplits int

	// failed latches after a durable write fails mid-mutation: memory and
	// disk have diverged and every further operation returns ErrTableFailed.
	failed bool
}

// New creates a table over the given storage directory, which is created if
// missing. The hash function must be stable for the lifetime of the storage
// root. By default the table starts at global depth 1 with two depth-1
// buckets; see WithInitialDepth for the single-bucket starting shape.
func New[K comparable, V any](storageDir string, hash HashFunc[K], opts ...Option) (*Table[K, V], error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if hash == nil {
		return nil, ErrNilHashFunc
	}
	if o.bucketCapacity < 1 {
		return nil, &ErrInvalidCapacity{Capacity: o.bucketCapacity}
	}
	if o.initialDepth != twoBucketShape && (o.initialDepth < 0 || o.initialDepth > 30) {
		return nil, &ErrInvalidDepth{Depth: o.initialDepth}
	}

	store, err := bucketstore.NewStore(bucketstore.Config{
		FS:          o.fs,
		Root:        storageDir,
		Codec:       o.codec,
		Compression: o.compression,
		Durability:  o.durability,
	})
	if err != nil {
		return nil, err
	}

	t := &Table[K, V]{
		hash:      hash,
		store:     store,
		logger:    o.logger,
		capacity:  o.bucketCapacity,
		buckets:   make(map[bucketID]*bucketstore.Bucket[K, V]),
		maxSplits: hashWidth,
	}

	if o.initialDepth == twoBucketShape {
		t.globalDepth = 1
		id0, err := t.mintBucket(1)
		if err != nil {
			return nil, err
		}
		id1, err := t.mintBucket(1)
		if err != nil {
			return nil, err
		}
		t.dir = []bucketID{id0, id1}
	} else {
		t.globalDepth = o.initialDepth
		id0, err := t.mintBucket(0)
		if err != nil {
			return nil, err
		}
		t.dir = make([]bucketID, 1<<t.globalDepth)
		for i := range t.dir {
			t.dir[i] = id0
		}
	}

	return t, nil
}

// Load restores a table from the checkpoint under storageDir. The hash
// function must be the one the table was built with. Bucket capacity and
// directory shape come from the checkpoint; any inconsistency between the
// checkpoint and the bucket files fails with ErrCorruptMetadata and no table
// is returned.
func Load[K comparable, V any](storageDir string, hash HashFunc[K], opts ...Option) (*Table[K, V], error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if hash == nil {
		return nil, ErrNilHashFunc
	}

	store, err := bucketstore.NewStore(bucketstore.Config{
		FS:          o.fs,
		Root:        storageDir,
		Codec:       o.codec,
		Compression: o.compression,
		Durability:  o.durability,
	})
	if err != nil {
		return nil, err
	}

	m, slots, err := checkpoint.Restore[K, V](store)
	if err != nil {
		o.logger.LogRestore(storageDir, 0, 0, err)
		return nil, err
	}

	t := &Table[K, V]{
		hash:         hash,
		store:        store,
		logger:       o.logger,
		capacity:     m.BucketCapacity,
		globalDepth:  m.GlobalDepth,
		dir:          make([]bucketID, len(slots)),
		buckets:      make(map[bucketID]*bucketstore.Bucket[K, V]),
		nextBucketID: m.NextBucketID,
		maxSplits:    hashWidth,
	}

	ids := make(map[*bucketstore.Bucket[K, V]]bucketID, len(slots))
	for slot, b := range slots {
		id, seen := ids[b]
		if !seen {
			id, err = parseBucketFileName(b.FileName())
			if err != nil || int32(id) >= m.NextBucketID {
				return nil, fmt.Errorf("%w: bucket file name %q does not fit the id counter %d",
					ErrCorruptMetadata, b.FileName(), m.NextBucketID)
			}
			ids[b] = id
			t.buckets[id] = b
		}
		t.dir[slot] = id
	}

	t.logger.LogRestore(storageDir, len(t.buckets), t.globalDepth, nil)

	return t, nil
}

// mintBucket creates and persists a new empty bucket with the next id.
func (t *Table[K, V]) mintBucket(localDepth int) (bucketID, error) {
	id := bucketID(t.nextBucketID)
	b, err := bucketstore.Create[K, V](t.store, bucketFileName(id), localDepth, t.capacity)
	if err != nil {
		return 0, err
	}
	t.nextBucketID++
	t.buckets[id] = b
	return id, nil
}

// slotFor routes a key: the low globalDepth bits of its hash index the
// directory.
func (t *Table[K, V]) slotFor(key K) int {
	return int(t.hash(key) & uint64(len(t.dir)-1))
}

// Put inserts or updates the key and returns its previous value, splitting
// the target bucket (and doubling the directory as needed) until the
// insertion fits. The key is re-routed against the grown directory after
// every split.
func (t *Table[K, V]) Put(key K, value V) (prev V, existed bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.failed {
		err = ErrTableFailed
		return
	}

	for splits := 0; ; splits++ {
		b := t.buckets[t.dir[t.slotFor(key)]]
		if !b.IsFull() || b.ContainsKey(key) {
			prev, existed, err = b.Insert(key, value)
			if err != nil {
				t.failed = true
			}
			return
		}
		if splits >= t.maxSplits {
			err = fmt.Errorf("%w: %d consecutive splits at capacity %d", ErrCapacityExceeded, splits, t.capacity)
			return
		}
		if err = t.split(t.slotFor(key)); err != nil {
			return
		}
	}
}

// Get returns the value bound to the key. Read-only: no mutation, no
// persistence.
func (t *Table[K, V]) Get(key K) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.buckets[t.dir[t.slotFor(key)]].Get(key)
}

// Remove deletes the key and returns its previous value. The target
// bucket's state is persisted whether or not the key was present; a no-op
// remove is deliberately not optimized away.
func (t *Table[K, V]) Remove(key K) (prev V, existed bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.failed {
		err = ErrTableFailed
		return
	}

	prev, existed, err = t.buckets[t.dir[t.slotFor(key)]].Remove(key)
	if err != nil {
		t.failed = true
	}
	return
}

// split replaces the overflowing bucket at slotIndex with two buckets of one
// greater local depth, doubling the directory first when the bucket's local
// depth has reached the global depth.
func (t *Table[K, V]) split(slotIndex int) error {
	oldID := t.dir[slotIndex]
	old := t.buckets[oldID]
	d := old.LocalDepth()

	if d == t.globalDepth {
		// Append a full copy of the slot sequence to itself: slot i and slot
		// i+2^oldDepth now alias the same bucket, preserving every fan-in
		// while adding one addressable bit.
		t.dir = append(t.dir, t.dir...)
		t.globalDepth++
		t.logger.LogDoubling(t.globalDepth, len(t.dir))
	}

	newID, err := t.mintBucket(d + 1)
	if err != nil {
		return err
	}
	if err := old.SetLocalDepth(d + 1); err != nil {
		t.failed = true
		return err
	}

	// Slots referencing old whose bit d is set move to the new bucket; the
	// rest keep pointing at old.
	bit := 1 << d
	for i, id := range t.dir {
		if id == oldID && i&bit != 0 {
			t.dir[i] = newID
		}
	}

	// Redistribute through the normal routing path: the newly significant
	// bit sends each key to old or new. Both are empty and share old's
	// former contents, so no insert here can overflow.
	snapshot := old.SnapshotItems()
	if err := old.Clear(); err != nil {
		t.failed = true
		return err
	}
	for k, v := range snapshot {
		if _, _, err := t.buckets[t.dir[t.slotFor(k)]].Insert(k, v); err != nil {
			t.failed = true
			return err
		}
	}

	t.logger.LogSplit(old.FileName(), d+1, t.globalDepth)

	return nil
}

// Save checkpoints the table: flushes any unpersisted bucket state (batch
// durability), then atomically writes the metadata record that lets Load
// reconstruct the directory's aliasing exactly.
func (t *Table[K, V]) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.failed {
		return ErrTableFailed
	}

	if err := t.flushLocked(); err != nil {
		return err
	}

	names := make([]string, len(t.dir))
	for i, id := range t.dir {
		names[i] = t.buckets[id].FileName()
	}

	err := checkpoint.Save(t.store, &checkpoint.Meta{
		BucketCapacity: t.capacity,
		GlobalDepth:    t.globalDepth,
		StorageRoot:    t.store.Root(),
		NextBucketID:   t.nextBucketID,
		DirFileNames:   names,
	})
	t.logger.LogCheckpoint(t.store.Root(), len(t.buckets), err)
	return err
}

// Flush persists every bucket with unwritten mutations. It is a no-op in
// sync durability mode.
func (t *Table[K, V]) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.failed {
		return ErrTableFailed
	}
	return t.flushLocked()
}

func (t *Table[K, V]) flushLocked() error {
	for _, b := range t.buckets {
		if err := b.Flush(); err != nil {
			t.failed = true
			return err
		}
	}
	return nil
}

// Close flushes unpersisted bucket state. The table holds no open file
// handles between operations, so there is nothing else to release.
func (t *Table[K, V]) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.failed {
		return ErrTableFailed
	}
	return t.flushLocked()
}

// Len returns the number of stored items, summed over unique buckets.
func (t *Table[K, V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, b := range t.buckets {
		n += b.Len()
	}
	return n
}

// GlobalDepth returns the number of low-order hash bits currently addressing
// the directory.
func (t *Table[K, V]) GlobalDepth() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.globalDepth
}

// DirectorySize returns the directory length, always 1<<GlobalDepth.
func (t *Table[K, V]) DirectorySize() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.dir)
}
