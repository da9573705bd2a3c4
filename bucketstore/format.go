package bucketstore

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/exthash/bucket"
	"github.com/hupe1980/exthash/codec"
	"github.com/hupe1980/exthash/internal/hash"
)

// Bucket file format, version 1. All integers little-endian.
//
//	magic     [4]byte  "EXB1"
//	version   uint16
//	compress  uint8    compression actually applied to the payload
//	nameLen   uint8    codec name length
//	name      []byte   codec name
//	rawLen    uint32   uncompressed payload length
//	storedLen uint32   stored payload length
//	payload   []byte   possibly compressed
//	crc       uint32   CRC32C over everything before it
//
// Payload:
//
//	localDepth uint32
//	capacity   uint32
//	count      uint32
//	items      count times: uvarint keyLen, key bytes, uvarint valLen, val bytes
//
// Keys and values are encoded with the named codec.
var bucketMagic = [4]byte{'E', 'X', 'B', '1'}

const bucketFormatVersion = uint16(1)

var (
	// ErrInvalidMagic is returned when a file does not start with the bucket
	// file magic.
	ErrInvalidMagic = errors.New("invalid bucket file magic")
	// ErrInvalidVersion is returned for unsupported format versions.
	ErrInvalidVersion = errors.New("unsupported bucket file version")
	// ErrChecksum is returned when the CRC32C trailer does not match.
	ErrChecksum = errors.New("bucket file checksum mismatch")
	// ErrUnknownCodec is returned when a file names a codec this build does
	// not provide.
	ErrUnknownCodec = errors.New("unknown codec")
	// ErrUnknownCompression is returned for unrecognized compression types.
	ErrUnknownCompression = errors.New("unknown compression type")
	// ErrTruncated is returned when a file is shorter than its own framing.
	ErrTruncated = errors.New("truncated bucket file")
)

// marshalBucket serializes the bucket's full state into a self-describing
// binary record.
func marshalBucket[K comparable, V any](c codec.Codec, compression CompressionType, b *bucket.Bucket[K, V]) ([]byte, error) {
	items := b.SnapshotItems()

	payload := make([]byte, 0, 12+len(items)*16)
	payload = binary.LittleEndian.AppendUint32(payload, uint32(b.LocalDepth()))
	payload = binary.LittleEndian.AppendUint32(payload, uint32(b.Capacity()))
	payload = binary.LittleEndian.AppendUint32(payload, uint32(len(items)))

	for k, v := range items {
		kb, err := c.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key: %w", err)
		}
		vb, err := c.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal value: %w", err)
		}
		payload = binary.AppendUvarint(payload, uint64(len(kb)))
		payload = append(payload, kb...)
		payload = binary.AppendUvarint(payload, uint64(len(vb)))
		payload = append(payload, vb...)
	}

	stored, applied, err := compressPayload(payload, compression)
	if err != nil {
		return nil, err
	}

	name := c.Name()
	if len(name) > 255 {
		return nil, fmt.Errorf("codec name too long: %q", name)
	}

	buf := make([]byte, 0, 16+len(name)+len(stored))
	buf = append(buf, bucketMagic[:]...)
	buf = binary.LittleEndian.AppendUint16(buf, bucketFormatVersion)
	buf = append(buf, byte(applied), byte(len(name)))
	buf = append(buf, name...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(payload)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(stored)))
	buf = append(buf, stored...)
	buf = binary.LittleEndian.AppendUint32(buf, hash.CRC32C(buf))

	return buf, nil
}

// unmarshalBucket parses a bucket record and reconstructs a live bucket.
func unmarshalBucket[K comparable, V any](data []byte) (*bucket.Bucket[K, V], error) {
	if len(data) < 8 {
		return nil, ErrTruncated
	}
	if [4]byte(data[0:4]) != bucketMagic {
		return nil, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint16(data[4:6]); v != bucketFormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, v)
	}

	// Verify the trailer before trusting any length field.
	if len(data) < 12 {
		return nil, ErrTruncated
	}
	body, trailer := data[:len(data)-4], data[len(data)-4:]
	if binary.LittleEndian.Uint32(trailer) != hash.CRC32C(body) {
		return nil, ErrChecksum
	}

	compression := CompressionType(data[6])
	nameLen := int(data[7])
	rest := body[8:]
	if len(rest) < nameLen+8 {
		return nil, ErrTruncated
	}
	codecName := string(rest[:nameLen])
	rest = rest[nameLen:]

	c, ok := codec.ByName(codecName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, codecName)
	}

	rawLen := int(binary.LittleEndian.Uint32(rest[0:4]))
	storedLen := int(binary.LittleEndian.Uint32(rest[4:8]))
	rest = rest[8:]
	if len(rest) != storedLen {
		return nil, ErrTruncated
	}

	payload, err := decompressPayload(rest, rawLen, compression)
	if err != nil {
		return nil, err
	}
	if len(payload) < 12 {
		return nil, ErrTruncated
	}

	localDepth := int(binary.LittleEndian.Uint32(payload[0:4]))
	capacity := int(binary.LittleEndian.Uint32(payload[4:8]))
	count := int(binary.LittleEndian.Uint32(payload[8:12]))
	payload = payload[12:]

	b, err := bucket.New[K, V](localDepth, capacity)
	if err != nil {
		return nil, fmt.Errorf("bucket record: %w", err)
	}

	for i := 0; i < count; i++ {
		kb, rem, err := readBlob(payload)
		if err != nil {
			return nil, fmt.Errorf("item %d key: %w", i, err)
		}
		vb, rem, err := readBlob(rem)
		if err != nil {
			return nil, fmt.Errorf("item %d value: %w", i, err)
		}
		payload = rem

		var k K
		if err := c.Unmarshal(kb, &k); err != nil {
			return nil, fmt.Errorf("unmarshal key: %w", err)
		}
		var v V
		if err := c.Unmarshal(vb, &v); err != nil {
			return nil, fmt.Errorf("unmarshal value: %w", err)
		}
		if _, _, ok := b.Insert(k, v); !ok {
			return nil, fmt.Errorf("bucket record holds more than %d items", capacity)
		}
	}
	if len(payload) != 0 {
		return nil, fmt.Errorf("%d trailing payload bytes", len(payload))
	}

	return b, nil
}

// readBlob reads one uvarint-length-prefixed byte string.
func readBlob(data []byte) (blob, rest []byte, err error) {
	n, width := binary.Uvarint(data)
	if width <= 0 {
		return nil, nil, ErrTruncated
	}
	data = data[width:]
	if uint64(len(data)) < n {
		return nil, nil, ErrTruncated
	}
	return data[:n], data[n:], nil
}
