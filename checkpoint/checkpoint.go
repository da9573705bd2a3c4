// Package checkpoint persists and restores the shape of an extendible-hash
// table: capacities, global depth, the per-slot bucket file names whose
// duplicates encode shared bucket references, and the id counter used to mint
// new file names.
//
// A checkpoint is valid iff every named bucket file exists and is loadable
// and the reconstructed fan-in of every bucket matches
// 2^(globalDepth-localDepth). Anything else fails the load entirely; no
// partial table is ever returned.
package checkpoint

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/exthash/bucketstore"
	"github.com/hupe1980/exthash/internal/hash"
)

// FileName is the checkpoint file name under the storage root. The record is
// replaced atomically on every save, so a single canonical name suffices.
const FileName = "CHECKPOINT"

// Checkpoint file format, version 1. All integers little-endian.
//
//	magic          [4]byte "EXM1"
//	version        uint16
//	reserved       uint16
//	bucketCapacity uint32
//	globalDepth    uint32
//	nextBucketID   uint32
//	storageRoot    uvarint len + bytes
//	dirCount       uint32  == 1<<globalDepth
//	dirFileNames   dirCount times: uvarint len + bytes
//	crc            uint32  CRC32C over everything before it
var metaMagic = [4]byte{'E', 'X', 'M', '1'}

const metaFormatVersion = uint16(1)

// ErrCorrupt is returned when a checkpoint record is unreadable, names a
// missing or unloadable bucket file, or describes a directory that violates
// the depth/fan-in invariants.
var ErrCorrupt = errors.New("corrupt checkpoint")

// restoreConcurrency bounds parallel bucket file loads.
const restoreConcurrency = 8

// Meta is the table shape snapshotted by a checkpoint.
type Meta struct {
	BucketCapacity int
	GlobalDepth    int
	// StorageRoot records where the table lived when the checkpoint was
	// taken. It is informational: loading always resolves bucket files
	// against the caller's store, so a moved storage root restores cleanly.
	StorageRoot  string
	NextBucketID int32
	// DirFileNames has one entry per directory slot; duplicates encode slots
	// sharing one bucket.
	DirFileNames []string
}

// Save atomically writes the checkpoint record under the store's root.
func Save(store *bucketstore.Store, m *Meta) error {
	if m.GlobalDepth < 0 || len(m.DirFileNames) != 1<<m.GlobalDepth {
		return fmt.Errorf("checkpoint: directory length %d does not match global depth %d", len(m.DirFileNames), m.GlobalDepth)
	}

	buf := make([]byte, 0, 32+len(m.StorageRoot)+len(m.DirFileNames)*16)
	buf = append(buf, metaMagic[:]...)
	buf = binary.LittleEndian.AppendUint16(buf, metaFormatVersion)
	buf = binary.LittleEndian.AppendUint16(buf, 0)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(m.BucketCapacity))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(m.GlobalDepth))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(m.NextBucketID))
	buf = binary.AppendUvarint(buf, uint64(len(m.StorageRoot)))
	buf = append(buf, m.StorageRoot...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.DirFileNames)))
	for _, name := range m.DirFileNames {
		buf = binary.AppendUvarint(buf, uint64(len(name)))
		buf = append(buf, name...)
	}
	buf = binary.LittleEndian.AppendUint32(buf, hash.CRC32C(buf))

	return store.WriteAtomic(FileName, buf)
}

// Load reads and structurally validates the checkpoint record. It does not
// touch bucket files; use Restore to rebuild a full directory.
func Load(store *bucketstore.Store) (*Meta, error) {
	data, err := store.ReadFile(FileName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	if len(data) < 12 {
		return nil, fmt.Errorf("%w: truncated record", ErrCorrupt)
	}
	if [4]byte(data[0:4]) != metaMagic {
		return nil, fmt.Errorf("%w: invalid magic", ErrCorrupt)
	}
	if v := binary.LittleEndian.Uint16(data[4:6]); v != metaFormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, v)
	}
	body, trailer := data[:len(data)-4], data[len(data)-4:]
	if binary.LittleEndian.Uint32(trailer) != hash.CRC32C(body) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	rest := body[8:]
	if len(rest) < 12 {
		return nil, fmt.Errorf("%w: truncated record", ErrCorrupt)
	}
	m := &Meta{
		BucketCapacity: int(binary.LittleEndian.Uint32(rest[0:4])),
		GlobalDepth:    int(binary.LittleEndian.Uint32(rest[4:8])),
		NextBucketID:   int32(binary.LittleEndian.Uint32(rest[8:12])),
	}
	rest = rest[12:]

	root, rest, err := readBlob(rest)
	if err != nil {
		return nil, fmt.Errorf("%w: storage root: %w", ErrCorrupt, err)
	}
	m.StorageRoot = string(root)

	if len(rest) < 4 {
		return nil, fmt.Errorf("%w: truncated record", ErrCorrupt)
	}
	dirCount := int(binary.LittleEndian.Uint32(rest[0:4]))
	rest = rest[4:]

	if m.GlobalDepth < 0 || m.GlobalDepth > 31 || dirCount != 1<<m.GlobalDepth {
		return nil, fmt.Errorf("%w: directory length %d does not match global depth %d", ErrCorrupt, dirCount, m.GlobalDepth)
	}
	if m.BucketCapacity < 1 {
		return nil, fmt.Errorf("%w: invalid bucket capacity %d", ErrCorrupt, m.BucketCapacity)
	}

	m.DirFileNames = make([]string, dirCount)
	for i := range m.DirFileNames {
		name, r, err := readBlob(rest)
		if err != nil {
			return nil, fmt.Errorf("%w: slot %d name: %w", ErrCorrupt, i, err)
		}
		if len(name) == 0 {
			return nil, fmt.Errorf("%w: slot %d has empty file name", ErrCorrupt, i)
		}
		m.DirFileNames[i] = string(name)
		rest = r
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(rest))
	}

	return m, nil
}

// Restore loads the checkpoint and rebuilds the directory: one bucket per
// unique file name (loaded concurrently), aliased into every slot naming it,
// with the depth and fan-in invariants verified before anything is returned.
func Restore[K comparable, V any](store *bucketstore.Store) (*Meta, []*bucketstore.Bucket[K, V], error) {
	m, err := Load(store)
	if err != nil {
		return nil, nil, err
	}

	// Unique names in first-seen slot order.
	slotsByName := make(map[string][]int)
	var names []string
	for slot, name := range m.DirFileNames {
		if _, seen := slotsByName[name]; !seen {
			names = append(names, name)
		}
		slotsByName[name] = append(slotsByName[name], slot)
	}

	loaded := make([]*bucketstore.Bucket[K, V], len(names))

	var g errgroup.Group
	g.SetLimit(restoreConcurrency)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			b, err := bucketstore.Open[K, V](store, name)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrCorrupt, err)
			}
			loaded[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	dir := make([]*bucketstore.Bucket[K, V], len(m.DirFileNames))
	for i, name := range names {
		b := loaded[i]
		if err := validateBucket(m, name, b.LocalDepth(), b.Capacity(), slotsByName[name]); err != nil {
			return nil, nil, err
		}
		for _, slot := range slotsByName[name] {
			dir[slot] = b
		}
	}

	return m, dir, nil
}

// validateBucket checks one reconstructed bucket against the depth and
// fan-in invariants: localDepth <= globalDepth, fan-in exactly
// 2^(globalDepth-localDepth), and the referencing slots exactly those sharing
// the bucket's low localDepth index bits.
func validateBucket(m *Meta, name string, localDepth, capacity int, slots []int) error {
	if capacity != m.BucketCapacity {
		return fmt.Errorf("%w: bucket %s has capacity %d, table expects %d", ErrCorrupt, name, capacity, m.BucketCapacity)
	}
	if localDepth < 0 || localDepth > m.GlobalDepth {
		return fmt.Errorf("%w: bucket %s has local depth %d beyond global depth %d", ErrCorrupt, name, localDepth, m.GlobalDepth)
	}
	if want := 1 << (m.GlobalDepth - localDepth); len(slots) != want {
		return fmt.Errorf("%w: bucket %s has fan-in %d, want %d", ErrCorrupt, name, len(slots), want)
	}
	mask := (1 << localDepth) - 1
	base := slots[0] & mask
	for _, slot := range slots {
		if slot&mask != base {
			return fmt.Errorf("%w: bucket %s referenced from slot %d outside its residue class", ErrCorrupt, name, slot)
		}
	}
	return nil
}

// readBlob reads one uvarint-length-prefixed byte string.
func readBlob(data []byte) (blob, rest []byte, err error) {
	n, width := binary.Uvarint(data)
	if width <= 0 {
		return nil, nil, errors.New("truncated blob")
	}
	data = data[width:]
	if uint64(len(data)) < n {
		return nil, nil, errors.New("truncated blob")
	}
	return data[:n], data[n:], nil
}
