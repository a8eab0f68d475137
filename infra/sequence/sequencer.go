package sequence

import "sync/atomic"

// Sequencer stamps envelopes with monotonically increasing sequence
// numbers. Sequences are informative (downstream consumers reorder
// across partitions with them), not load-bearing for correctness.
type Sequencer struct {
	next atomic.Uint64
}

// New creates a sequencer that will issue start+1 first.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

// Next returns the next sequence number.
func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued sequence.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}
