// Package memory provides the fixed-capacity allocation primitives for
// the matching hot path: a slab Pool with an index free-list so order
// records are leased and returned in O(1) without touching the Go
// allocator after startup.
//
// The package is dependency-free and single-threaded by contract; each
// partition owns its own pool.
package memory
