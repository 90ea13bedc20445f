package cache

import (
	"container/list"
	"maps"
	"slices"
	"sync"
)

type lfuItem[K comparable, V any] struct {
	Entry[K, V]
	freq int
	elem *list.Element
}

// LFU evicts the least frequently used entry first. Ties are broken by
// recency: among equally used entries the least recently touched goes.
type LFU[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[K]*lfuItem[K, V]
	buckets  map[int]*list.List // freq -> items, most recent at front
	minFreq  int

	counters
}

// NewLFU creates an LFU cache holding up to capacity entries.
func NewLFU[K comparable, V any](capacity int) *LFU[K, V] {
	return &LFU[K, V]{
		capacity: capacity,
		items:    make(map[K]*lfuItem[K, V], max(capacity, 0)),
		buckets:  make(map[int]*list.List),
	}
}

func (c *LFU[K, V]) Exists(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

func (c *LFU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[key]
	c.hit(ok)
	if !ok {
		var zero V
		return zero, false
	}
	c.touch(it)
	return it.Value, true
}

func (c *LFU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if it, ok := c.items[key]; ok {
		it.Value = value
		c.touch(it)
		return
	}

	it := &lfuItem[K, V]{Entry: Entry[K, V]{Key: key, Value: value}, freq: 1}
	it.elem = c.bucket(1).PushFront(it)
	c.items[key] = it
	c.minFreq = 1
}

func (c *LFU[K, V]) TryEvict(reserve int, evicted []Entry[K, V]) ([]Entry[K, V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := evictCount(len(c.items), c.capacity, reserve)
	for range n {
		b := c.buckets[c.minFreq]
		it := b.Back().Value.(*lfuItem[K, V])
		c.unlink(it)
		evicted = append(evicted, it.Entry)
	}
	c.evictions.Add(int64(n))
	return evicted, ok
}

func (c *LFU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[key]
	if ok {
		c.unlink(it)
	}
	return ok
}

// Range visits entries from least to most frequently used.
func (c *LFU[K, V]) Range(fn func(key K, value V) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, f := range slices.Sorted(maps.Keys(c.buckets)) {
		for e := c.buckets[f].Back(); e != nil; e = e.Prev() {
			it := e.Value.(*lfuItem[K, V])
			if !fn(it.Key, it.Value) {
				return
			}
		}
	}
}

func (c *LFU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LFU[K, V]) Capacity() int { return c.capacity }

// Stats returns hit, miss and eviction counters.
func (c *LFU[K, V]) Stats() Stats { return c.snapshot() }

func (c *LFU[K, V]) bucket(freq int) *list.List {
	b, ok := c.buckets[freq]
	if !ok {
		b = list.New()
		c.buckets[freq] = b
	}
	return b
}

func (c *LFU[K, V]) touch(it *lfuItem[K, V]) {
	old := c.buckets[it.freq]
	old.Remove(it.elem)
	if old.Len() == 0 {
		delete(c.buckets, it.freq)
		if c.minFreq == it.freq {
			c.minFreq = it.freq + 1
		}
	}
	it.freq++
	it.elem = c.bucket(it.freq).PushFront(it)
}

func (c *LFU[K, V]) unlink(it *lfuItem[K, V]) {
	b := c.buckets[it.freq]
	b.Remove(it.elem)
	delete(c.items, it.Key)
	if b.Len() > 0 {
		return
	}
	delete(c.buckets, it.freq)
	if it.freq != c.minFreq || len(c.items) == 0 {
		return
	}
	c.minFreq = 0
	for f := range c.buckets {
		if c.minFreq == 0 || f < c.minFreq {
			c.minFreq = f
		}
	}
}
