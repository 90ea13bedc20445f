package buffer

import (
	"os"
	"sync/atomic"
)

// Mapped is a file-backed buffer shared with other processes mapping the
// same file. Page-aligned by construction.
type Mapped struct {
	data   []byte
	path   string
	closed atomic.Bool
}

// Map opens (creating if needed) the file at path, sizes it to size bytes
// and maps it read-write and shared. Existing contents are preserved.
func Map(path string, size int) (*Mapped, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := f.Truncate(int64(size)); err != nil {
		return nil, err
	}

	data, err := mmap(f, size)
	if err != nil {
		return nil, err
	}
	return &Mapped{data: data, path: path}, nil
}

// Bytes returns the mapped region, or nil after Close.
func (m *Mapped) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Path returns the backing file path.
func (m *Mapped) Path() string { return m.path }

// Sync flushes dirty pages to the backing file.
func (m *Mapped) Sync() error {
	if m.closed.Load() {
		return ErrClosed
	}
	return msync(m.data)
}

// Close unmaps the region. It is idempotent.
func (m *Mapped) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	return munmap(m.data)
}
