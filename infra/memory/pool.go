package memory

import "fmt"

// PoolStats are single-writer counters; the owning task updates them
// and observers read snapshots via Stats().
type PoolStats struct {
	Allocations uint64
	PeakUsage   uint64
	Failures    uint64
}

// Pool is a fixed slab of T with a LIFO index free-list. Alloc and
// Free are O(1) and allocation-free; the slab never grows, which both
// bounds worst-case memory and gives the engine its back-pressure
// signal (Alloc failing).
//
// LIFO reuse keeps recently-touched slots hot in cache.
type Pool[T any] struct {
	slots []T
	free  []uint32
	stats PoolStats
}

func NewPool[T any](capacity int) *Pool[T] {
	if capacity <= 0 {
		panic("memory: pool capacity must be positive")
	}
	p := &Pool[T]{
		slots: make([]T, capacity),
		free:  make([]uint32, capacity),
	}
	// Seed the free list so the first allocations walk the slab in
	// order: free[top] == 0.
	for i := range p.free {
		p.free[i] = uint32(capacity - 1 - i)
	}
	return p
}

// Alloc leases the most recently freed slot. The slot's contents are
// whatever the previous owner left; callers must fully initialise.
func (p *Pool[T]) Alloc() (*T, uint32, bool) {
	n := len(p.free)
	if n == 0 {
		p.stats.Failures++
		return nil, 0, false
	}
	idx := p.free[n-1]
	p.free = p.free[:n-1]

	p.stats.Allocations++
	if used := uint64(p.InUse()); used > p.stats.PeakUsage {
		p.stats.PeakUsage = used
	}
	return &p.slots[idx], idx, true
}

// Free returns a slot to the pool. A slot index outside the slab or a
// free-list overflow (the double-free signature) is an invariant
// violation and panics.
func (p *Pool[T]) Free(idx uint32) {
	if int(idx) >= len(p.slots) {
		panic(fmt.Sprintf("memory: free of slot %d outside pool of %d", idx, len(p.slots)))
	}
	if len(p.free) >= len(p.slots) {
		panic("memory: pool free-list overflow (double free)")
	}
	p.free = append(p.free, idx)
}

// At returns the slot at idx without changing its lease state.
func (p *Pool[T]) At(idx uint32) *T {
	return &p.slots[idx]
}

func (p *Pool[T]) Cap() int   { return len(p.slots) }
func (p *Pool[T]) InUse() int { return len(p.slots) - len(p.free) }

func (p *Pool[T]) Stats() PoolStats { return p.stats }
