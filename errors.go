package exthash

import (
	"errors"
	"fmt"

	"github.com/hupe1980/exthash/bucketstore"
	"github.com/hupe1980/exthash/checkpoint"
)

var (
	// ErrCapacityExceeded is returned when a Put would require more
	// consecutive splits than the hash width allows: the colliding keys
	// cannot be separated by any additional addressing bit.
	ErrCapacityExceeded = errors.New("capacity exceeded: colliding keys cannot be split apart")

	// ErrTableFailed is returned by every operation after a durable write
	// failed mid-mutation. In-memory state has diverged from disk at that
	// point and the instance must be discarded; reload from the last
	// checkpoint instead.
	ErrTableFailed = errors.New("table failed: in-memory state diverged from disk")

	// ErrNilHashFunc is returned when a table is constructed without a hash
	// function.
	ErrNilHashFunc = errors.New("nil hash function")

	// ErrCorruptMetadata is returned by Load when the checkpoint names a
	// missing or unreadable bucket file, or the reconstructed directory
	// violates the depth/fan-in invariants.
	ErrCorruptMetadata = checkpoint.ErrCorrupt

	// ErrEmptyStorageDir is returned when no storage directory is supplied.
	ErrEmptyStorageDir = bucketstore.ErrEmptyRoot
)

// ErrInvalidCapacity indicates a non-positive bucket capacity.
type ErrInvalidCapacity struct {
	Capacity int
}

func (e *ErrInvalidCapacity) Error() string {
	return fmt.Sprintf("invalid bucket capacity: %d", e.Capacity)
}

// ErrInvalidDepth indicates an out-of-range initial global depth.
type ErrInvalidDepth struct {
	Depth int
}

func (e *ErrInvalidDepth) Error() string {
	return fmt.Sprintf("invalid initial global depth: %d", e.Depth)
}
