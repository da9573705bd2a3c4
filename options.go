package exthash

import (
	"github.com/hupe1980/exthash/bucketstore"
	"github.com/hupe1980/exthash/codec"
	"github.com/hupe1980/exthash/internal/fs"
)

// CompressionType selects the compression applied to bucket file payloads.
type CompressionType = bucketstore.CompressionType

// Compression types, re-exported for convenience.
const (
	CompressionNone = bucketstore.CompressionNone
	CompressionLZ4  = bucketstore.CompressionLZ4
	CompressionZSTD = bucketstore.CompressionZSTD
)

// DurabilityMode selects when bucket mutations reach disk.
type DurabilityMode = bucketstore.DurabilityMode

// Durability modes, re-exported for convenience.
const (
	DurabilitySync  = bucketstore.DurabilitySync
	DurabilityBatch = bucketstore.DurabilityBatch
)

const (
	defaultBucketCapacity = 4

	// twoBucketShape marks the default starting shape: global depth 1 with
	// two depth-1 buckets. WithInitialDepth switches to a single depth-0
	// bucket aliased by all slots.
	twoBucketShape = -1
)

type options struct {
	bucketCapacity int
	initialDepth   int
	codec          codec.Codec
	compression    CompressionType
	durability     DurabilityMode
	logger         *Logger
	fs             fs.FileSystem
}

// Option configures table constructor/load behavior.
type Option func(*options)

func defaultOptions() options {
	return options{
		bucketCapacity: defaultBucketCapacity,
		initialDepth:   twoBucketShape,
		codec:          codec.Default,
		compression:    CompressionNone,
		durability:     DurabilitySync,
		logger:         NoopLogger(),
		fs:             fs.Default,
	}
}

// WithBucketCapacity sets the fixed per-bucket capacity. It is immutable for
// the table's lifetime; Load takes it from the checkpoint instead.
func WithBucketCapacity(n int) Option {
	return func(o *options) {
		o.bucketCapacity = n
	}
}

// WithInitialDepth starts a new table at global depth d with a single
// depth-0 bucket aliased by all 2^d directory slots, instead of the default
// depth-1 shape with two buckets. Load ignores this option.
func WithInitialDepth(d int) Option {
	return func(o *options) {
		o.initialDepth = d
	}
}

// WithCodec configures the codec used for keys and values in bucket files.
//
// If nil is passed, codec.Default is used. Existing files are self-describing
// and decode with the codec they were written with.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression compresses bucket file payloads with the given algorithm.
func WithCompression(t CompressionType) Option {
	return func(o *options) {
		o.compression = t
	}
}

// WithDurability selects the durability policy.
//
// DurabilitySync (the default) persists every mutation synchronously before
// the operation returns. DurabilityBatch defers writes until Flush or Save:
// lower write amplification, but mutations since the last flush are lost on
// a crash.
func WithDurability(m DurabilityMode) Option {
	return func(o *options) {
		o.durability = m
	}
}

// WithLogger configures the logger. Pass nil to disable logging.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithFileSystem swaps the file system implementation. Used by tests to
// inject write failures.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys == nil {
			fsys = fs.Default
		}
		o.fs = fsys
	}
}
