package file

import (
	"encoding/binary"
	"math"

	"github.com/hupe1980/embedstore/internal/hash"
)

// Record layout (little endian):
//
//	[key uint64][size uint32][crc uint32][payload size bytes]
//
// crc covers the key and the payload. A size of tombstone marks a delete
// and carries no payload.
const (
	headerSize = 16
	tombstone  = math.MaxUint32
)

type header struct {
	key  uint64
	size uint32
	crc  uint32
}

func (h header) deleted() bool { return h.size == tombstone }

func (h header) payloadLen() int64 {
	if h.deleted() {
		return 0
	}
	return int64(h.size)
}

func decodeHeader(b []byte) header {
	return header{
		key:  binary.LittleEndian.Uint64(b[0:]),
		size: binary.LittleEndian.Uint32(b[8:]),
		crc:  binary.LittleEndian.Uint32(b[12:]),
	}
}

// appendRecord appends one encoded record to dst.
func appendRecord(dst []byte, key uint64, payload []byte) []byte {
	var h [headerSize]byte
	binary.LittleEndian.PutUint64(h[0:], key)
	binary.LittleEndian.PutUint32(h[8:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(h[12:], hash.Row(key, payload))
	dst = append(dst, h[:]...)
	return append(dst, payload...)
}

func appendTombstone(dst []byte, key uint64) []byte {
	var h [headerSize]byte
	binary.LittleEndian.PutUint64(h[0:], key)
	binary.LittleEndian.PutUint32(h[8:], tombstone)
	binary.LittleEndian.PutUint32(h[12:], hash.Row(key, nil))
	return append(dst, h[:]...)
}

// location addresses a live payload inside the log.
type location struct {
	off  int64
	size uint32
}
