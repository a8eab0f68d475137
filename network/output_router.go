package network

import (
	"context"
	"runtime"
	"time"

	"matchd/infra/queue"
	"matchd/protocol"
)

// Tap observes the broadcast stream: multicast publisher, websocket
// hub, Kafka broadcaster. Publish must not block; slow taps shed
// internally.
type Tap interface {
	Publish(m *protocol.OutputMessage, seq uint64)
}

// RouterStats are owned by the router goroutine.
type RouterStats struct {
	Delivered  uint64
	Broadcasts uint64
	Unrouted   uint64 // unicast to a client that is gone
	SendErrors uint64
}

// OutputRouter is the single consumer of every partition's output
// queue. Unicast envelopes go to the owning client's sink; broadcast
// envelopes go to the taps, and top-of-book updates additionally to
// every connected client (trade participants already got their copy).
type OutputRouter struct {
	queues []*queue.SPSC[protocol.OutputEnvelope]
	reg    *Registry
	taps   []Tap

	batch     []protocol.OutputEnvelope
	spinLimit int
	idleSleep time.Duration

	stats RouterStats
}

func NewOutputRouter(queues []*queue.SPSC[protocol.OutputEnvelope], reg *Registry, taps ...Tap) *OutputRouter {
	return &OutputRouter{
		queues:    queues,
		reg:       reg,
		taps:      taps,
		batch:     make([]protocol.OutputEnvelope, 64),
		spinLimit: 100,
		idleSleep: 100 * time.Microsecond,
	}
}

// Run drains the output queues until ctx is cancelled, then makes one
// final sweep so acks produced during shutdown still leave.
func (r *OutputRouter) Run(ctx context.Context) {
	idle := 0
	for {
		if ctx.Err() != nil {
			r.sweep()
			return
		}

		n := 0
		for _, q := range r.queues {
			for {
				got := q.DequeueBatch(r.batch)
				if got == 0 {
					break
				}
				n += got
				for i := 0; i < got; i++ {
					r.deliver(&r.batch[i])
				}
			}
		}
		if n == 0 {
			if idle++; idle < r.spinLimit {
				runtime.Gosched()
			} else {
				time.Sleep(r.idleSleep)
			}
			continue
		}
		idle = 0
	}
}

func (r *OutputRouter) sweep() {
	for _, q := range r.queues {
		for {
			got := q.DequeueBatch(r.batch)
			if got == 0 {
				break
			}
			for i := 0; i < got; i++ {
				r.deliver(&r.batch[i])
			}
		}
	}
}

func (r *OutputRouter) deliver(env *protocol.OutputEnvelope) {
	if env.ClientID == protocol.BroadcastClient {
		r.stats.Broadcasts++
		for _, t := range r.taps {
			t.Publish(&env.Msg, env.Seq)
		}
		if env.Msg.Kind == protocol.KindTopOfBook {
			r.reg.Each(func(_ uint32, s Sink) {
				if s.Send(&env.Msg) != nil {
					r.stats.SendErrors++
				}
			})
		}
		return
	}

	s, ok := r.reg.Get(env.ClientID)
	if !ok {
		r.stats.Unrouted++
		return
	}
	if err := s.Send(&env.Msg); err != nil {
		r.stats.SendErrors++
		return
	}
	r.stats.Delivered++
}

func (r *OutputRouter) Stats() RouterStats { return r.stats }
