package bucketstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/exthash/codec"
	"github.com/hupe1980/exthash/internal/fs"
)

func newTestStore(t *testing.T, opts ...func(*Config)) *Store {
	t.Helper()
	cfg := Config{Root: t.TempDir()}
	for _, opt := range opts {
		opt(&cfg)
	}
	store, err := NewStore(cfg)
	require.NoError(t, err)
	return store
}

func TestNewStore_Validation(t *testing.T) {
	_, err := NewStore(Config{})
	assert.ErrorIs(t, err, ErrEmptyRoot)
}

func TestCreateOpen_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	b, err := Create[string, int](store, "bucket_0.bin", 1, 4)
	require.NoError(t, err)

	// The empty bucket is persisted at construction time.
	_, err = store.Stat("bucket_0.bin")
	require.NoError(t, err)

	_, _, err = b.Insert("a", 1)
	require.NoError(t, err)
	_, _, err = b.Insert("b", 2)
	require.NoError(t, err)

	loaded, err := Open[string, int](store, "bucket_0.bin")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.LocalDepth())
	assert.Equal(t, 4, loaded.Capacity())
	assert.Equal(t, 2, loaded.Len())

	v, ok := loaded.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestWriteThrough_EveryMutation(t *testing.T) {
	store := newTestStore(t)

	b, err := Create[int, string](store, "bucket_1.bin", 0, 4)
	require.NoError(t, err)

	_, _, err = b.Insert(1, "one")
	require.NoError(t, err)

	reload := func() *Bucket[int, string] {
		loaded, err := Open[int, string](store, "bucket_1.bin")
		require.NoError(t, err)
		return loaded
	}

	assert.Equal(t, 1, reload().Len())

	_, _, err = b.Remove(1)
	require.NoError(t, err)
	assert.Equal(t, 0, reload().Len())

	// A no-op remove still rewrites the file.
	_, existed, err := b.Remove(99)
	require.NoError(t, err)
	assert.False(t, existed)

	require.NoError(t, b.SetLocalDepth(3))
	assert.Equal(t, 3, reload().LocalDepth())

	_, _, err = b.Insert(2, "two")
	require.NoError(t, err)
	require.NoError(t, b.Clear())
	assert.Equal(t, 0, reload().Len())
}

func TestCodecsAndCompression(t *testing.T) {
	codecs := []codec.Codec{codec.JSON{}, codec.Msgpack{}}
	compressions := []CompressionType{CompressionNone, CompressionLZ4, CompressionZSTD}

	for _, c := range codecs {
		for _, compression := range compressions {
			t.Run(c.Name()+"/"+compression.String(), func(t *testing.T) {
				store := newTestStore(t, func(cfg *Config) {
					cfg.Codec = c
					cfg.Compression = compression
				})

				b, err := Create[string, string](store, "bucket_0.bin", 2, 64)
				require.NoError(t, err)

				// Repetitive values compress well; the record must round-trip
				// either way.
				for i := 0; i < 32; i++ {
					key := string(rune('a' + i%26))
					_, _, err := b.Insert(key+"-key", "value-value-value-value")
					require.NoError(t, err)
				}

				loaded, err := Open[string, string](store, "bucket_0.bin")
				require.NoError(t, err)
				assert.Equal(t, b.Len(), loaded.Len())
				assert.Equal(t, b.SnapshotItems(), loaded.SnapshotItems())
			})
		}
	}
}

func TestOpen_CodecFromHeader(t *testing.T) {
	root := t.TempDir()

	writer, err := NewStore(Config{Root: root, Codec: codec.Msgpack{}})
	require.NoError(t, err)
	b, err := Create[string, int](writer, "bucket_0.bin", 0, 4)
	require.NoError(t, err)
	_, _, err = b.Insert("k", 7)
	require.NoError(t, err)

	// A store configured for JSON still decodes the file with the codec
	// recorded in its header.
	reader, err := NewStore(Config{Root: root, Codec: codec.JSON{}})
	require.NoError(t, err)
	loaded, err := Open[string, int](reader, "bucket_0.bin")
	require.NoError(t, err)

	v, ok := loaded.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestPortability_MovedRoot(t *testing.T) {
	base := t.TempDir()
	oldRoot := filepath.Join(base, "old")
	newRoot := filepath.Join(base, "new")

	store, err := NewStore(Config{Root: oldRoot})
	require.NoError(t, err)
	b, err := Create[string, int](store, "bucket_0.bin", 1, 4)
	require.NoError(t, err)
	_, _, err = b.Insert("k", 1)
	require.NoError(t, err)

	// The file does not record the storage root; it loads from wherever the
	// caller's store points.
	require.NoError(t, os.Rename(oldRoot, newRoot))

	moved, err := NewStore(Config{Root: newRoot})
	require.NoError(t, err)
	loaded, err := Open[string, int](moved, "bucket_0.bin")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
}

func TestAtomicWrite_FailureKeepsCommittedVersion(t *testing.T) {
	faulty := fs.NewFaultyFS(nil)
	store := newTestStore(t, func(cfg *Config) { cfg.FS = faulty })

	b, err := Create[string, int](store, "bucket_0.bin", 0, 4)
	require.NoError(t, err)
	_, _, err = b.Insert("committed", 1)
	require.NoError(t, err)

	// Fail the temp-file write: the canonical file must keep the prior
	// fully committed version.
	faulty.AddRule("bucket_0.bin.tmp", fs.Fault{FailAfterBytes: 0})
	_, _, err = b.Insert("lost", 2)
	require.ErrorIs(t, err, fs.ErrInjected)

	// In-memory state has already advanced; disk has not. The table-level
	// contract is to discard the instance at this point.
	assert.True(t, b.ContainsKey("lost"))

	faulty.ClearRules()
	loaded, err := Open[string, int](store, "bucket_0.bin")
	require.NoError(t, err)
	assert.True(t, loaded.ContainsKey("committed"))
	assert.False(t, loaded.ContainsKey("lost"))
}

func TestAtomicWrite_RenameFailure(t *testing.T) {
	faulty := fs.NewFaultyFS(nil)
	store := newTestStore(t, func(cfg *Config) { cfg.FS = faulty })

	b, err := Create[string, int](store, "bucket_0.bin", 0, 4)
	require.NoError(t, err)

	faulty.FailRename("bucket_0.bin", nil)
	_, _, err = b.Insert("k", 1)
	require.ErrorIs(t, err, fs.ErrInjected)

	// The temp file is cleaned up after the failed rename.
	faulty.ClearRules()
	_, err = store.Stat("bucket_0.bin.tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestBatchDurability_FlushWrites(t *testing.T) {
	store := newTestStore(t, func(cfg *Config) { cfg.Durability = DurabilityBatch })

	b, err := Create[string, int](store, "bucket_0.bin", 0, 8)
	require.NoError(t, err)

	_, _, err = b.Insert("k", 1)
	require.NoError(t, err)

	// Not flushed yet: the file still holds the empty creation state.
	loaded, err := Open[string, int](store, "bucket_0.bin")
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Len())

	require.NoError(t, b.Flush())

	loaded, err = Open[string, int](store, "bucket_0.bin")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())

	// Flush with nothing dirty is a no-op.
	require.NoError(t, b.Flush())
}
