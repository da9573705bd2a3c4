// Package hash provides the checksum used for on-disk integrity verification.
//
// Bucket and checkpoint files carry a CRC32-Castagnoli (CRC32C) trailer.
// CRC32C is hardware accelerated on x86 (SSE4.2) and ARM (CRC extension) and
// detects accidental storage corruption; it is not cryptographically secure.
package hash

import (
	"hash"
	"hash/crc32"
)

// crc32cTable is pre-computed for the CRC32-Castagnoli polynomial.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// NewCRC32C returns a new CRC32-Castagnoli hash.Hash32.
func NewCRC32C() hash.Hash32 {
	return crc32.New(crc32cTable)
}
