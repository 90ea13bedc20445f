package mem

import (
	"unsafe"
)

// Alignment is the byte alignment of every buffer returned by AllocAligned.
// 64 bytes satisfies every element type and keeps rows cache-line aligned.
const Alignment = 64

// AllocAligned allocates a byte slice of the given size whose first byte
// sits at an address divisible by Alignment.
//
// The slice over-allocates by Alignment bytes. The underlying array is kept
// alive by the returned slice.
func AllocAligned(size int) []byte {
	if size <= 0 {
		return nil
	}

	buf := make([]byte, size+Alignment)

	addr := uintptr(unsafe.Pointer(&buf[0])) //nolint:gosec // unsafe is required for memory alignment
	offset := int((Alignment - (addr & (Alignment - 1))) & (Alignment - 1))

	return buf[offset : offset+size : offset+size]
}

// IsAligned reports whether the first byte of b sits at a multiple of align.
// Empty slices are always aligned.
func IsAligned(b []byte, align uintptr) bool {
	if len(b) == 0 || align <= 1 {
		return true
	}
	return uintptr(unsafe.Pointer(&b[0]))%align == 0 //nolint:gosec // unsafe is required for memory alignment
}
