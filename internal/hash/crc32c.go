package hash

import (
	"encoding/binary"
	"hash"
	"hash/crc32"
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// NewCRC32C returns a new CRC32-Castagnoli hash.Hash32.
func NewCRC32C() hash.Hash32 {
	return crc32.New(crc32cTable)
}

// Row returns the checksum of a stored row: the little-endian key
// followed by the encoded payload. Binding the key into the checksum
// detects rows that were written to the wrong record.
func Row(key uint64, payload []byte) uint32 {
	var k [8]byte
	binary.LittleEndian.PutUint64(k[:], key)
	crc := crc32.Update(0, crc32cTable, k[:])
	return crc32.Update(crc, crc32cTable, payload)
}
