package embedstore

import (
	"context"
	"sync"

	"github.com/hupe1980/embedstore/buffer"
)

type synchronized[K Key, V Element] struct {
	mu sync.Mutex
	s  Store[K, V]
}

// Synchronized returns a Store that serializes every call to s.
// Stores are not safe for concurrent use on their own.
func Synchronized[K Key, V Element](s Store[K, V]) Store[K, V] {
	return &synchronized[K, V]{s: s}
}

func (w *synchronized[K, V]) Initialize(buf buffer.Buffer) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.s.Initialize(buf)
}

func (w *synchronized[K, V]) Finalize() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.s.Finalize()
}

func (w *synchronized[K, V]) Get(ctx context.Context, keys []K, values []V) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.s.Get(ctx, keys, values)
}

func (w *synchronized[K, V]) Put(ctx context.Context, keys []K, values []V) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.s.Put(ctx, keys, values)
}

func (w *synchronized[K, V]) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.s.Flush(ctx)
}

func (w *synchronized[K, V]) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.s.Stats()
}

func (w *synchronized[K, V]) Config() Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.s.Config()
}
