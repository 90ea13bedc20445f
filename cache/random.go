package cache

import (
	"math/rand/v2"
	"sync"
)

// Random evicts uniformly random entries. The generator is seeded so runs
// are reproducible.
type Random[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	entries  []Entry[K, V]
	index    map[K]int
	rng      *rand.Rand

	counters
}

// NewRandom creates a random-eviction cache holding up to capacity entries.
func NewRandom[K comparable, V any](capacity int, seed uint64) *Random[K, V] {
	return &Random[K, V]{
		capacity: capacity,
		entries:  make([]Entry[K, V], 0, max(capacity, 0)),
		index:    make(map[K]int, max(capacity, 0)),
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (c *Random[K, V]) Exists(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.index[key]
	return ok
}

func (c *Random[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[key]
	c.hit(ok)
	if !ok {
		var zero V
		return zero, false
	}
	return c.entries[i].Value, true
}

func (c *Random[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i, ok := c.index[key]; ok {
		c.entries[i].Value = value
		return
	}
	c.index[key] = len(c.entries)
	c.entries = append(c.entries, Entry[K, V]{Key: key, Value: value})
}

func (c *Random[K, V]) TryEvict(reserve int, evicted []Entry[K, V]) ([]Entry[K, V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := evictCount(len(c.entries), c.capacity, reserve)
	for range n {
		i := c.rng.IntN(len(c.entries))
		evicted = append(evicted, c.entries[i])
		c.removeAt(i)
	}
	c.evictions.Add(int64(n))
	return evicted, ok
}

func (c *Random[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[key]
	if ok {
		c.removeAt(i)
	}
	return ok
}

func (c *Random[K, V]) Range(fn func(key K, value V) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		if !fn(e.Key, e.Value) {
			return
		}
	}
}

func (c *Random[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Random[K, V]) Capacity() int { return c.capacity }

// Stats returns hit, miss and eviction counters.
func (c *Random[K, V]) Stats() Stats { return c.snapshot() }

// removeAt swaps the last entry into position i.
func (c *Random[K, V]) removeAt(i int) {
	delete(c.index, c.entries[i].Key)
	last := len(c.entries) - 1
	if i != last {
		c.entries[i] = c.entries[last]
		c.index[c.entries[i].Key] = i
	}
	var zero Entry[K, V]
	c.entries[last] = zero
	c.entries = c.entries[:last]
}
