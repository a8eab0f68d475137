// Package orderbook implements the single-symbol limit order book:
// contiguous sorted price-level arrays, an intrusive FIFO per level,
// an open-addressing order index for O(1) cancels, and the
// top-of-book change tracker.
//
// A book is single-writer by contract; its owning partition processor
// is the only goroutine that touches it. No operation allocates: order
// records come from a fixed slab pool and outputs go to a
// caller-supplied fixed buffer.
package orderbook
