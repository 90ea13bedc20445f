package cache

import (
	"container/list"
	"sync"
)

// FIFO evicts entries in insertion order. Hits and updates do not
// change an entry's position.
type FIFO[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[K]*list.Element
	order    *list.List

	counters
}

// NewFIFO creates a FIFO cache holding up to capacity entries.
func NewFIFO[K comparable, V any](capacity int) *FIFO[K, V] {
	return &FIFO[K, V]{
		capacity: capacity,
		items:    make(map[K]*list.Element, max(capacity, 0)),
		order:    list.New(),
	}
}

func (c *FIFO[K, V]) Exists(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

func (c *FIFO[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.items[key]
	c.hit(ok)
	if !ok {
		var zero V
		return zero, false
	}
	return ent.Value.(*Entry[K, V]).Value, true
}

func (c *FIFO[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		ent.Value.(*Entry[K, V]).Value = value
		return
	}
	c.items[key] = c.order.PushBack(&Entry[K, V]{Key: key, Value: value})
}

func (c *FIFO[K, V]) TryEvict(reserve int, evicted []Entry[K, V]) ([]Entry[K, V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := evictCount(c.order.Len(), c.capacity, reserve)
	for range n {
		e := c.order.Front()
		c.order.Remove(e)
		kv := e.Value.(*Entry[K, V])
		delete(c.items, kv.Key)
		evicted = append(evicted, *kv)
	}
	c.evictions.Add(int64(n))
	return evicted, ok
}

func (c *FIFO[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if ok {
		c.order.Remove(e)
		delete(c.items, key)
	}
	return ok
}

// Range visits entries from oldest to newest.
func (c *FIFO[K, V]) Range(fn func(key K, value V) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for e := c.order.Front(); e != nil; e = e.Next() {
		kv := e.Value.(*Entry[K, V])
		if !fn(kv.Key, kv.Value) {
			return
		}
	}
}

func (c *FIFO[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *FIFO[K, V]) Capacity() int { return c.capacity }

// Stats returns hit, miss and eviction counters.
func (c *FIFO[K, V]) Stats() Stats { return c.snapshot() }
