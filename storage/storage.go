package storage

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a read names a key that was never written.
	ErrNotFound = errors.New("storage: key not found")
	// ErrBatchShape is returned when values does not hold len(keys) rows.
	ErrBatchShape = errors.New("storage: batch shape mismatch")
	// ErrClosed is returned by operations on a closed backend.
	ErrClosed = errors.New("storage: backend closed")
	// ErrCorrupt is returned when a persisted row fails validation.
	ErrCorrupt = errors.New("storage: corrupt row")
)

// Backend is the persistent tier behind a store.
//
// Rows are fixed width. values holds len(keys) rows laid out back to back,
// row i at [i*rowSize, (i+1)*rowSize). Write overwrites existing rows.
// Read fills values in key order and fails with an error wrapping
// ErrNotFound if any key was never written.
type Backend interface {
	Write(ctx context.Context, keys []uint64, values []byte) error
	Read(ctx context.Context, keys []uint64, values []byte) error
	Close() error
}

// Deleter is implemented by backends that can drop rows.
// Deleting an absent key is not an error.
type Deleter interface {
	Delete(ctx context.Context, keys []uint64) error
}

// Syncer is implemented by backends that buffer writes.
type Syncer interface {
	Sync(ctx context.Context) error
}

// Counter is implemented by backends that can count stored rows.
type Counter interface {
	Len(ctx context.Context) (int, error)
}

// Lister is implemented by backends that can enumerate stored keys.
// Keys are returned in ascending order.
type Lister interface {
	Keys(ctx context.Context) ([]uint64, error)
}

// NotFoundError names the first missing key of a read.
type NotFoundError struct {
	Key uint64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("storage: key %d not found", e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ValidateBatch checks that values holds exactly len(keys) rows of rowSize bytes.
func ValidateBatch(keys []uint64, values []byte, rowSize int) error {
	if rowSize <= 0 {
		return fmt.Errorf("%w: row size %d", ErrBatchShape, rowSize)
	}
	if len(values) != len(keys)*rowSize {
		return fmt.Errorf("%w: %d keys need %d bytes, got %d", ErrBatchShape, len(keys), len(keys)*rowSize, len(values))
	}
	return nil
}

// Row returns row i of a batch.
func Row(values []byte, rowSize, i int) []byte {
	return values[i*rowSize : (i+1)*rowSize : (i+1)*rowSize]
}

// LastIndices returns the batch index of the last occurrence of every key,
// in first-seen key order. Backends that write keys independently use it
// so a duplicated key keeps its last row.
func LastIndices(keys []uint64) []int {
	last := make(map[uint64]int, len(keys))
	order := make([]uint64, 0, len(keys))
	for i, k := range keys {
		if _, ok := last[k]; !ok {
			order = append(order, k)
		}
		last[k] = i
	}
	idx := make([]int, len(order))
	for i, k := range order {
		idx[i] = last[k]
	}
	return idx
}

// Namespace returns the name under which a backend stores the rows of one
// embedding table.
func Namespace(embeddingKey int32) string {
	return fmt.Sprintf("emb-%d", embeddingKey)
}
