package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/exthash/bucketstore"
)

func newTestStore(t *testing.T) *bucketstore.Store {
	t.Helper()
	store, err := bucketstore.NewStore(bucketstore.Config{Root: t.TempDir()})
	require.NoError(t, err)
	return store
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	m := &Meta{
		BucketCapacity: 4,
		GlobalDepth:    2,
		StorageRoot:    store.Root(),
		NextBucketID:   3,
		DirFileNames:   []string{"bucket_0.bin", "bucket_1.bin", "bucket_2.bin", "bucket_1.bin"},
	}
	require.NoError(t, Save(store, m))

	loaded, err := Load(store)
	require.NoError(t, err)
	assert.Equal(t, m, loaded)
}

func TestSave_DirectoryLengthMismatch(t *testing.T) {
	store := newTestStore(t)

	err := Save(store, &Meta{
		BucketCapacity: 4,
		GlobalDepth:    2,
		DirFileNames:   []string{"bucket_0.bin"},
	})
	assert.Error(t, err)
}

func TestLoad_Missing(t *testing.T) {
	store := newTestStore(t)
	_, err := Load(store)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestLoad_BitFlip(t *testing.T) {
	store := newTestStore(t)

	m := &Meta{
		BucketCapacity: 4,
		GlobalDepth:    1,
		StorageRoot:    store.Root(),
		NextBucketID:   2,
		DirFileNames:   []string{"bucket_0.bin", "bucket_1.bin"},
	}
	require.NoError(t, Save(store, m))

	data, err := store.ReadFile(FileName)
	require.NoError(t, err)
	data[10] ^= 0x01
	require.NoError(t, store.WriteAtomic(FileName, data))

	_, err = Load(store)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestRestore_SharedReferences(t *testing.T) {
	store := newTestStore(t)

	// Shape: global depth 2, b0 with local depth 1 aliased by slots 0 and 2,
	// b1/b2 with local depth 2 in slots 1 and 3.
	b0, err := bucketstore.Create[int, string](store, "bucket_0.bin", 1, 4)
	require.NoError(t, err)
	_, _, err = b0.Insert(4, "four")
	require.NoError(t, err)

	_, err = bucketstore.Create[int, string](store, "bucket_1.bin", 2, 4)
	require.NoError(t, err)
	_, err = bucketstore.Create[int, string](store, "bucket_2.bin", 2, 4)
	require.NoError(t, err)

	m := &Meta{
		BucketCapacity: 4,
		GlobalDepth:    2,
		StorageRoot:    store.Root(),
		NextBucketID:   3,
		DirFileNames:   []string{"bucket_0.bin", "bucket_1.bin", "bucket_0.bin", "bucket_2.bin"},
	}
	require.NoError(t, Save(store, m))

	loaded, dir, err := Restore[int, string](store)
	require.NoError(t, err)
	assert.Equal(t, m, loaded)
	require.Len(t, dir, 4)

	// Slots naming the same file share one in-memory bucket.
	assert.Same(t, dir[0], dir[2])
	assert.NotSame(t, dir[0], dir[1])

	v, ok := dir[2].Get(4)
	assert.True(t, ok)
	assert.Equal(t, "four", v)
}

func TestRestore_MissingBucketFile(t *testing.T) {
	store := newTestStore(t)

	_, err := bucketstore.Create[int, string](store, "bucket_0.bin", 1, 4)
	require.NoError(t, err)

	m := &Meta{
		BucketCapacity: 4,
		GlobalDepth:    1,
		StorageRoot:    store.Root(),
		NextBucketID:   2,
		DirFileNames:   []string{"bucket_0.bin", "bucket_missing.bin"},
	}
	require.NoError(t, Save(store, m))

	_, _, err = Restore[int, string](store)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestRestore_FanInMismatch(t *testing.T) {
	store := newTestStore(t)

	// Local depth 2 implies fan-in 1 at global depth 2, but the record
	// aliases it into two slots.
	_, err := bucketstore.Create[int, string](store, "bucket_0.bin", 2, 4)
	require.NoError(t, err)
	_, err = bucketstore.Create[int, string](store, "bucket_1.bin", 1, 4)
	require.NoError(t, err)

	m := &Meta{
		BucketCapacity: 4,
		GlobalDepth:    2,
		StorageRoot:    store.Root(),
		NextBucketID:   2,
		DirFileNames:   []string{"bucket_0.bin", "bucket_1.bin", "bucket_0.bin", "bucket_1.bin"},
	}
	require.NoError(t, Save(store, m))

	_, _, err = Restore[int, string](store)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestRestore_ResidueClassMismatch(t *testing.T) {
	store := newTestStore(t)

	// Fan-in counts are right but bucket_0 is referenced from slots 0 and 1,
	// which do not share its low bit.
	_, err := bucketstore.Create[int, string](store, "bucket_0.bin", 1, 4)
	require.NoError(t, err)
	_, err = bucketstore.Create[int, string](store, "bucket_1.bin", 1, 4)
	require.NoError(t, err)

	m := &Meta{
		BucketCapacity: 4,
		GlobalDepth:    2,
		StorageRoot:    store.Root(),
		NextBucketID:   2,
		DirFileNames:   []string{"bucket_0.bin", "bucket_0.bin", "bucket_1.bin", "bucket_1.bin"},
	}
	require.NoError(t, Save(store, m))

	_, _, err = Restore[int, string](store)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestRestore_CapacityMismatch(t *testing.T) {
	store := newTestStore(t)

	_, err := bucketstore.Create[int, string](store, "bucket_0.bin", 0, 8)
	require.NoError(t, err)

	m := &Meta{
		BucketCapacity: 4,
		GlobalDepth:    0,
		StorageRoot:    store.Root(),
		NextBucketID:   1,
		DirFileNames:   []string{"bucket_0.bin"},
	}
	require.NoError(t, Save(store, m))

	_, _, err = Restore[int, string](store)
	assert.ErrorIs(t, err, ErrCorrupt)
}
