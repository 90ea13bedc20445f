package embedstore

import (
	"context"

	"github.com/hupe1980/embedstore/buffer"
)

// Store is a fixed-capacity row cache in front of a persistent backend.
//
// Get and Put are batched: values holds len(keys)*Dim elements, row i at
// [i*Dim, (i+1)*Dim). A failed call reports an error and the caller must
// not trust any element of values; the store's own bookkeeping stays
// consistent.
type Store[K Key, V Element] interface {
	// Initialize binds the store to an externally owned value buffer of
	// Capacity*Dim elements. The buffer must stay valid until Finalize.
	Initialize(buf buffer.Buffer) error
	// Finalize writes resident rows back, then drops the buffer and slot
	// bookkeeping. It is idempotent and may be followed by Initialize.
	Finalize() error
	// Get copies the current row of every key into values, filling misses
	// from the backend.
	Get(ctx context.Context, keys []K, values []V) error
	// Put stores the rows of values under keys. New rows stay resident until
	// eviction writes them back.
	Put(ctx context.Context, keys []K, values []V) error
	// Flush writes every resident row to the backend. Rows stay resident.
	Flush(ctx context.Context) error
	// Stats returns occupancy and traffic counters.
	Stats() Stats
	// Config returns the table configuration.
	Config() Config
}

// Stats is a snapshot of a store's occupancy and traffic.
type Stats struct {
	Capacity      int
	Occupied      int
	Free          int
	Hits          int64
	Misses        int64
	Evictions     int64
	BackendReads  int64
	BackendWrites int64
}

// HitRate returns hits / (hits + misses).
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
