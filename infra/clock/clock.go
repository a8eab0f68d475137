// Package clock provides the monotonic tick source used to stamp
// orders. Ticks are arbitrary monotonic units; FIFO position, not the
// tick, is the matching authority.
package clock

import "time"

// Ticker yields strictly non-decreasing 64-bit ticks.
type Ticker interface {
	Ticks() uint64
}

// Monotonic reads the runtime's monotonic clock, anchored at creation.
type Monotonic struct {
	base time.Time
}

func NewMonotonic() *Monotonic {
	return &Monotonic{base: time.Now()}
}

func (m *Monotonic) Ticks() uint64 {
	return uint64(time.Since(m.base))
}

// Counter is a deterministic tick source for tests: each call advances
// by one.
type Counter struct {
	n uint64
}

func (c *Counter) Ticks() uint64 {
	c.n++
	return c.n
}
