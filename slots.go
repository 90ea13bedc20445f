package embedstore

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// slotPool tracks free slots. Take and put are LIFO; the bitmap mirrors
// the stack for O(1) membership checks.
type slotPool struct {
	stack    []int
	free     *roaring.Bitmap
	capacity int
}

func newSlotPool(capacity int) *slotPool {
	p := &slotPool{
		stack:    make([]int, capacity),
		free:     roaring.New(),
		capacity: capacity,
	}
	// Slot 0 is handed out first.
	for i := range capacity {
		p.stack[i] = capacity - 1 - i
	}
	p.free.AddRange(0, uint64(capacity))
	return p
}

func (p *slotPool) len() int { return len(p.stack) }

func (p *slotPool) contains(slot int) bool {
	return slot >= 0 && slot < p.capacity && p.free.Contains(uint32(slot))
}

// take removes n slots. It takes nothing and returns false if fewer are free.
func (p *slotPool) take(n int) ([]int, bool) {
	if n > len(p.stack) {
		return nil, false
	}
	cut := len(p.stack) - n
	out := make([]int, n)
	// Pop order: the top of the stack goes first.
	for i := range n {
		out[i] = p.stack[len(p.stack)-1-i]
	}
	p.stack = p.stack[:cut]
	for _, s := range out {
		p.free.Remove(uint32(s))
	}
	return out, true
}

// put returns slots to the pool. It rejects out-of-range and double frees
// without changing the pool.
func (p *slotPool) put(slots ...int) error {
	seen := roaring.New()
	for _, s := range slots {
		if s < 0 || s >= p.capacity {
			return fmt.Errorf("slot %d out of range [0, %d)", s, p.capacity)
		}
		if p.free.Contains(uint32(s)) || !seen.CheckedAdd(uint32(s)) {
			return fmt.Errorf("slot %d freed twice", s)
		}
	}
	p.stack = append(p.stack, slots...)
	p.free.Or(seen)
	return nil
}

// bitmap returns a copy of the free set.
func (p *slotPool) bitmap() *roaring.Bitmap {
	return p.free.Clone()
}
