package cache

import (
	"container/list"
	"sync"
)

// LRU evicts the least recently used entry first.
type LRU[K comparable, V any] struct {
	mu        sync.Mutex
	capacity  int
	items     map[K]*list.Element
	evictList *list.List

	counters
}

// NewLRU creates an LRU cache holding up to capacity entries.
func NewLRU[K comparable, V any](capacity int) *LRU[K, V] {
	return &LRU[K, V]{
		capacity:  capacity,
		items:     make(map[K]*list.Element, max(capacity, 0)),
		evictList: list.New(),
	}
}

func (c *LRU[K, V]) Exists(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.items[key]
	c.hit(ok)
	if !ok {
		var zero V
		return zero, false
	}
	c.evictList.MoveToFront(ent)
	return ent.Value.(*Entry[K, V]).Value, true
}

func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.evictList.MoveToFront(ent)
		ent.Value.(*Entry[K, V]).Value = value
		return
	}
	c.items[key] = c.evictList.PushFront(&Entry[K, V]{Key: key, Value: value})
}

func (c *LRU[K, V]) TryEvict(reserve int, evicted []Entry[K, V]) ([]Entry[K, V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := evictCount(c.evictList.Len(), c.capacity, reserve)
	for range n {
		ent := c.evictList.Back()
		evicted = append(evicted, *c.removeElement(ent))
	}
	c.evictions.Add(int64(n))
	return evicted, ok
}

func (c *LRU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.items[key]
	if ok {
		c.removeElement(ent)
	}
	return ok
}

// Range visits entries from most to least recently used.
func (c *LRU[K, V]) Range(fn func(key K, value V) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for e := c.evictList.Front(); e != nil; e = e.Next() {
		kv := e.Value.(*Entry[K, V])
		if !fn(kv.Key, kv.Value) {
			return
		}
	}
}

func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

func (c *LRU[K, V]) Capacity() int { return c.capacity }

// Stats returns hit, miss and eviction counters.
func (c *LRU[K, V]) Stats() Stats { return c.snapshot() }

func (c *LRU[K, V]) removeElement(e *list.Element) *Entry[K, V] {
	c.evictList.Remove(e)
	kv := e.Value.(*Entry[K, V])
	delete(c.items, kv.Key)
	return kv
}
