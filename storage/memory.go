package storage

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// Memory is an in-memory Backend. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	rowSize int
	rows    map[uint64][]byte
	closed  bool
}

// NewMemory creates an in-memory backend for rows of rowSize bytes.
func NewMemory(rowSize int) *Memory {
	return &Memory{
		rowSize: rowSize,
		rows:    make(map[uint64][]byte),
	}
}

func (m *Memory) Write(_ context.Context, keys []uint64, values []byte) error {
	if err := ValidateBatch(keys, values, m.rowSize); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	for i, k := range keys {
		row, ok := m.rows[k]
		if !ok {
			row = make([]byte, m.rowSize)
			m.rows[k] = row
		}
		copy(row, Row(values, m.rowSize, i))
	}
	return nil
}

func (m *Memory) Read(_ context.Context, keys []uint64, values []byte) error {
	if err := ValidateBatch(keys, values, m.rowSize); err != nil {
		return err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	for i, k := range keys {
		row, ok := m.rows[k]
		if !ok {
			return &NotFoundError{Key: k}
		}
		copy(Row(values, m.rowSize, i), row)
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, keys []uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	for _, k := range keys {
		delete(m.rows, k)
	}
	return nil
}

func (m *Memory) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrClosed
	}
	return len(m.rows), nil
}

func (m *Memory) Keys(_ context.Context) ([]uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	return slices.Sorted(maps.Keys(m.rows)), nil
}

// Close releases the rows. It is idempotent.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.rows = nil
	return nil
}
