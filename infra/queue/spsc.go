// Package queue implements the bounded lock-free SPSC ring buffers
// that connect the I/O tasks to the matching processors. Exactly one
// goroutine may call the producer side and exactly one the consumer
// side for the lifetime of the queue.
package queue

import "sync/atomic"

// ProducerStats are written by the producer goroutine only.
type ProducerStats struct {
	Enqueued uint64
	Failures uint64 // enqueue attempts rejected because the ring was full
}

// ConsumerStats are written by the consumer goroutine only.
type ConsumerStats struct {
	Dequeued   uint64
	Batches    uint64
	EmptyPolls uint64
}

// SPSC is a single-producer single-consumer ring of T.
//
// head is owned by the consumer, tail by the producer; each sits on its
// own cache line so the two sides never invalidate each other's line.
// The memory-ordering contract is the classic one: the producer
// publishes a slot with a release store of tail after writing the item,
// the consumer acquires tail before reading, and vice versa for head so
// the producer can safely reuse a drained slot.
//
// One slot stays reserved to distinguish full from empty, so the
// usable capacity is len(buf)-1.
type SPSC[T any] struct {
	head uint64 // consumer index
	_    [56]byte
	tail uint64 // producer index
	_    [56]byte
	prod ProducerStats
	_    [48]byte
	cons ConsumerStats
	_    [40]byte
	buf  []T
	mask uint64
}

// New allocates a ring with the given power-of-two size.
func New[T any](size int) *SPSC[T] {
	if size <= 1 || size&(size-1) != 0 {
		panic("queue: size must be a power of two > 1")
	}
	return &SPSC[T]{
		buf:  make([]T, size),
		mask: uint64(size - 1),
	}
}

// Enqueue publishes v. It returns false when the ring is full; a full
// ring is a real back-pressure signal the producer must count, never
// wait on. Producer-only.
func (q *SPSC[T]) Enqueue(v T) bool {
	tail := q.tail
	next := (tail + 1) & q.mask
	if next == atomic.LoadUint64(&q.head) {
		q.prod.Failures++
		return false
	}
	q.buf[tail] = v
	atomic.StoreUint64(&q.tail, next)
	q.prod.Enqueued++
	return true
}

// Dequeue pops one item into out. An empty ring is normal and returns
// false. Consumer-only.
func (q *SPSC[T]) Dequeue(out *T) bool {
	head := q.head
	if head == atomic.LoadUint64(&q.tail) {
		q.cons.EmptyPolls++
		return false
	}
	*out = q.buf[head]
	atomic.StoreUint64(&q.head, (head+1)&q.mask)
	q.cons.Dequeued++
	return true
}

// DequeueBatch drains up to len(out) items with a single acquire of
// tail and a single release of head, amortising the atomic traffic
// across the batch. Returns the number of items written. Consumer-only.
func (q *SPSC[T]) DequeueBatch(out []T) int {
	head := q.head
	tail := atomic.LoadUint64(&q.tail)
	avail := int((tail - head) & q.mask)
	if avail == 0 {
		q.cons.EmptyPolls++
		return 0
	}
	n := avail
	if n > len(out) {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		out[i] = q.buf[(head+uint64(i))&q.mask]
	}
	atomic.StoreUint64(&q.head, (head+uint64(n))&q.mask)
	q.cons.Dequeued += uint64(n)
	q.cons.Batches++
	return n
}

// Len is approximate under concurrency; monitoring only.
func (q *SPSC[T]) Len() int {
	head := atomic.LoadUint64(&q.head)
	tail := atomic.LoadUint64(&q.tail)
	return int((tail - head) & q.mask)
}

func (q *SPSC[T]) Empty() bool {
	return atomic.LoadUint64(&q.head) == atomic.LoadUint64(&q.tail)
}

// Cap is the usable capacity (one slot is reserved).
func (q *SPSC[T]) Cap() int { return len(q.buf) - 1 }

// ProducerStats returns a snapshot; call from the producer goroutine
// or after the producer has stopped.
func (q *SPSC[T]) ProducerStats() ProducerStats { return q.prod }

// ConsumerStats returns a snapshot; consumer-side counterpart.
func (q *SPSC[T]) ConsumerStats() ConsumerStats { return q.cons }
