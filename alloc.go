package embedstore

import (
	"context"
	"sync"

	"github.com/hupe1980/embedstore/internal/mem"
	"github.com/hupe1980/embedstore/resource"
)

// Allocator supplies the scratch buffers a store uses to move rows between
// the value buffer and the backend. Buffers are 64-byte aligned.
type Allocator interface {
	// Alloc returns a buffer of exactly n bytes.
	Alloc(ctx context.Context, n int) ([]byte, error)
	// Free returns a buffer obtained from Alloc.
	Free(b []byte)
}

// PoolAllocator recycles scratch buffers through a sync.Pool and charges
// live bytes to an optional resource controller.
type PoolAllocator struct {
	pool sync.Pool
	rc   *resource.Controller
}

// NewPoolAllocator creates a pool allocator. rc may be nil.
func NewPoolAllocator(rc *resource.Controller) *PoolAllocator {
	return &PoolAllocator{rc: rc}
}

// Alloc implements Allocator. It blocks while the memory budget is exhausted
// and fails if n exceeds the whole budget.
func (a *PoolAllocator) Alloc(ctx context.Context, n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	if err := a.rc.AcquireMemory(ctx, int64(n)); err != nil {
		return nil, err
	}

	if p, ok := a.pool.Get().(*[]byte); ok && cap(*p) >= n {
		return (*p)[:n], nil
	}
	return mem.AllocAligned(n), nil
}

// Free implements Allocator.
func (a *PoolAllocator) Free(b []byte) {
	if b == nil {
		return
	}
	a.rc.ReleaseMemory(int64(len(b)))
	b = b[:cap(b)]
	a.pool.Put(&b)
}
