// Package bucketstore layers durability onto package bucket: every bucket is
// serialized to its own file under a storage root, written via a temp file
// plus atomic rename so readers and crashed processes only ever observe fully
// committed versions.
package bucketstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hupe1980/exthash/codec"
	"github.com/hupe1980/exthash/internal/fs"
)

// DurabilityMode selects when bucket mutations reach disk.
type DurabilityMode uint8

const (
	// DurabilitySync persists a bucket's full state synchronously on every
	// mutation, before the operation returns. This is the default.
	DurabilitySync DurabilityMode = iota

	// DurabilityBatch only marks mutated buckets dirty; their state reaches
	// disk on the next Flush (or checkpoint). Mutations between the last
	// flush and a crash are lost. This trades durability for a lower write
	// amplification on bulk loads.
	DurabilityBatch
)

// String implements fmt.Stringer.
func (m DurabilityMode) String() string {
	switch m {
	case DurabilitySync:
		return "sync"
	case DurabilityBatch:
		return "batch"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

// ErrEmptyRoot is returned when a Store is created without a storage root.
var ErrEmptyRoot = errors.New("empty storage root")

// Config configures a Store.
type Config struct {
	// FS is the file system to write through. Defaults to the local FS.
	FS fs.FileSystem

	// Root is the storage directory holding all bucket and checkpoint files.
	// It is created if missing and must be exclusively owned by one table
	// instance; concurrent external mutation is undefined behavior.
	Root string

	// Codec encodes keys and values inside bucket files. Defaults to
	// codec.Default. Files record the codec name and are decoded with the
	// codec they were written with.
	Codec codec.Codec

	// Compression applied to bucket file payloads. Defaults to none.
	Compression CompressionType

	// Durability selects write-through or batched persistence.
	Durability DurabilityMode
}

// Store owns the on-disk representation of a table's buckets. It is the only
// writer of a bucket's file.
type Store struct {
	fs          fs.FileSystem
	root        string
	codec       codec.Codec
	compression CompressionType
	durability  DurabilityMode
}

// NewStore creates a Store rooted at cfg.Root, creating the directory if
// needed.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Root == "" {
		return nil, ErrEmptyRoot
	}
	if cfg.FS == nil {
		cfg.FS = fs.Default
	}
	if cfg.Codec == nil {
		cfg.Codec = codec.Default
	}
	if err := cfg.FS.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("bucketstore: create root %s: %w", cfg.Root, err)
	}
	return &Store{
		fs:          cfg.FS,
		root:        cfg.Root,
		codec:       cfg.Codec,
		compression: cfg.Compression,
		durability:  cfg.Durability,
	}, nil
}

// Root returns the storage root directory.
func (s *Store) Root() string { return s.root }

// Durability returns the configured durability mode.
func (s *Store) Durability() DurabilityMode { return s.durability }

// WriteAtomic durably writes data to the named file under the storage root:
// temp sibling file, write, sync, close, rename over the canonical name, then
// directory sync. A reader never observes a partially written file.
func (s *Store) WriteAtomic(name string, data []byte) error {
	path := filepath.Join(s.root, name)
	tmpPath := path + ".tmp"

	f, err := s.fs.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("bucketstore: create %s: %w", tmpPath, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		s.fs.Remove(tmpPath)
		return fmt.Errorf("bucketstore: write %s: %w", tmpPath, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		s.fs.Remove(tmpPath)
		return fmt.Errorf("bucketstore: sync %s: %w", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		s.fs.Remove(tmpPath)
		return fmt.Errorf("bucketstore: close %s: %w", tmpPath, err)
	}

	if err := s.fs.Rename(tmpPath, path); err != nil {
		s.fs.Remove(tmpPath)
		return fmt.Errorf("bucketstore: rename %s: %w", path, err)
	}

	return s.syncDir()
}

// ReadFile reads the named file under the storage root.
func (s *Store) ReadFile(name string) ([]byte, error) {
	data, err := fs.ReadFile(s.fs, filepath.Join(s.root, name))
	if err != nil {
		return nil, fmt.Errorf("bucketstore: read %s: %w", name, err)
	}
	return data, nil
}

// Stat reports whether the named file exists under the storage root.
func (s *Store) Stat(name string) (os.FileInfo, error) {
	return s.fs.Stat(filepath.Join(s.root, name))
}

// syncDir persists the rename itself.
func (s *Store) syncDir() error {
	f, err := s.fs.OpenFile(s.root, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("bucketstore: open root for sync: %w", err)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return fmt.Errorf("bucketstore: sync root: %w", err)
	}
	return nil
}
