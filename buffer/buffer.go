package buffer

import (
	"errors"

	"github.com/hupe1980/embedstore/internal/mem"
)

var (
	// ErrClosed is returned when a mapped buffer is used after Close.
	ErrClosed = errors.New("buffer: closed")
	// ErrInvalidSize is returned for non-positive sizes.
	ErrInvalidSize = errors.New("buffer: invalid size")
	// ErrUnsupported is returned by Map on platforms without shared mappings.
	ErrUnsupported = errors.New("buffer: mapping not supported on this platform")
)

// Buffer is a contiguous value region owned outside the store.
// The store views it for its lifetime and never frees it.
type Buffer interface {
	Bytes() []byte
}

// Heap is a 64-byte aligned heap buffer.
type Heap struct {
	data []byte
}

// NewHeap allocates a zeroed, 64-byte aligned buffer of size bytes.
func NewHeap(size int) (*Heap, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	return &Heap{data: mem.AllocAligned(size)}, nil
}

// Bytes returns the buffer contents.
func (h *Heap) Bytes() []byte { return h.data }

// Slice adapts a caller-owned byte slice. No alignment is guaranteed.
type Slice []byte

// Bytes returns the slice itself.
func (s Slice) Bytes() []byte { return s }
