package embedstore

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordGet is called after each Get. keys is the batch length and
	// misses the number of distinct keys filled from the backend.
	RecordGet(keys, misses int, duration time.Duration, err error)

	// RecordPut is called after each Put. misses is the number of distinct
	// keys that needed a new slot.
	RecordPut(keys, misses int, duration time.Duration, err error)

	// RecordEviction is called after victims were written back.
	RecordEviction(evicted int, duration time.Duration, err error)

	// RecordFlush is called after each Flush.
	RecordFlush(rows int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordGet(int, int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordPut(int, int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordEviction(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordFlush(int, time.Duration, error)    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	GetCount       atomic.Int64
	GetErrors      atomic.Int64
	GetKeys        atomic.Int64
	GetMisses      atomic.Int64
	GetTotalNanos  atomic.Int64
	PutCount       atomic.Int64
	PutErrors      atomic.Int64
	PutKeys        atomic.Int64
	PutMisses      atomic.Int64
	PutTotalNanos  atomic.Int64
	EvictionCount  atomic.Int64
	EvictionErrors atomic.Int64
	EvictedRows    atomic.Int64
	FlushCount     atomic.Int64
	FlushErrors    atomic.Int64
	FlushedRows    atomic.Int64
}

// RecordGet implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGet(keys, misses int, duration time.Duration, err error) {
	b.GetCount.Add(1)
	b.GetKeys.Add(int64(keys))
	b.GetMisses.Add(int64(misses))
	b.GetTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.GetErrors.Add(1)
	}
}

// RecordPut implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPut(keys, misses int, duration time.Duration, err error) {
	b.PutCount.Add(1)
	b.PutKeys.Add(int64(keys))
	b.PutMisses.Add(int64(misses))
	b.PutTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.PutErrors.Add(1)
	}
}

// RecordEviction implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEviction(evicted int, _ time.Duration, err error) {
	b.EvictionCount.Add(1)
	if err != nil {
		b.EvictionErrors.Add(1)
		return
	}
	b.EvictedRows.Add(int64(evicted))
}

// RecordFlush implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFlush(rows int, _ time.Duration, err error) {
	b.FlushCount.Add(1)
	if err != nil {
		b.FlushErrors.Add(1)
		return
	}
	b.FlushedRows.Add(int64(rows))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		GetCount:       b.GetCount.Load(),
		GetErrors:      b.GetErrors.Load(),
		GetKeys:        b.GetKeys.Load(),
		GetMisses:      b.GetMisses.Load(),
		GetAvgNanos:    avg(b.GetTotalNanos.Load(), b.GetCount.Load()),
		PutCount:       b.PutCount.Load(),
		PutErrors:      b.PutErrors.Load(),
		PutKeys:        b.PutKeys.Load(),
		PutMisses:      b.PutMisses.Load(),
		PutAvgNanos:    avg(b.PutTotalNanos.Load(), b.PutCount.Load()),
		EvictionCount:  b.EvictionCount.Load(),
		EvictionErrors: b.EvictionErrors.Load(),
		EvictedRows:    b.EvictedRows.Load(),
		FlushCount:     b.FlushCount.Load(),
		FlushErrors:    b.FlushErrors.Load(),
		FlushedRows:    b.FlushedRows.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	GetCount       int64
	GetErrors      int64
	GetKeys        int64
	GetMisses      int64
	GetAvgNanos    int64
	PutCount       int64
	PutErrors      int64
	PutKeys        int64
	PutMisses      int64
	PutAvgNanos    int64
	EvictionCount  int64
	EvictionErrors int64
	EvictedRows    int64
	FlushCount     int64
	FlushErrors    int64
	FlushedRows    int64
}

// MissRate returns the fraction of looked-up keys that missed the cache.
func (s BasicMetricsStats) MissRate() float64 {
	if s.GetKeys == 0 {
		return 0
	}
	return float64(s.GetMisses) / float64(s.GetKeys)
}
