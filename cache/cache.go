package cache

import "sync/atomic"

// Entry is a key and the value it maps to.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// Cache is a bounded key to value map with a replacement policy.
//
// The policy only ever removes entries inside TryEvict or Remove. Put on a
// full cache for a new key is a contract violation by the caller: the
// reference policies accept it and grow past Capacity rather than silently
// dropping an entry the caller still tracks.
type Cache[K comparable, V any] interface {
	// Exists reports whether key is resident without touching policy state.
	Exists(key K) bool
	// Get returns the value for key. A hit may update recency or frequency.
	Get(key K) (V, bool)
	// Put inserts key or updates its value.
	Put(key K, value V)
	// TryEvict makes room for reserve new entries by evicting
	// max(0, Len()+reserve-Capacity()) entries, appending them to evicted.
	// It returns ok=false when reserve exceeds Capacity.
	TryEvict(reserve int, evicted []Entry[K, V]) ([]Entry[K, V], bool)
	// Remove deletes key and reports whether it was resident.
	Remove(key K) bool
	// Range calls fn for every entry until fn returns false.
	// fn must not mutate the cache.
	Range(fn func(key K, value V) bool)
	Len() int
	Capacity() int
}

// Stats is a snapshot of policy counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

// StatsReporter is implemented by caches that count hits, misses and evictions.
type StatsReporter interface {
	Stats() Stats
}

type counters struct {
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

func (c *counters) hit(ok bool) {
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
}

func (c *counters) snapshot() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// evictCount returns how many entries must go so that reserve more fit,
// and whether the request is satisfiable at all.
func evictCount(length, capacity, reserve int) (int, bool) {
	if reserve < 0 || reserve > capacity {
		return 0, false
	}
	n := length + reserve - capacity
	if n <= 0 {
		return 0, true
	}
	return min(n, length), true
}
