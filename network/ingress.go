package network

import (
	"net/netip"
	"runtime"
	"sync"
	"sync/atomic"

	"matchd/infra/queue"
	"matchd/infra/sequence"
	"matchd/protocol"
)

// enqueueRetries bounds how long a transport goroutine yields to a
// full partition queue before the message is dropped and counted.
const enqueueRetries = 256

// Ingress routes parsed input messages onto the partition queues.
// Orders and cancels go to the symbol's partition; flushes and
// disconnect sweeps fan out to every partition.
//
// The queues are single-producer rings, so each one is guarded by a
// mutex that collapses the transport goroutines into one logical
// producer. The consumer side stays lock-free.
type Ingress struct {
	mus    []sync.Mutex
	queues []*queue.SPSC[protocol.InputEnvelope]
	seq    *sequence.Sequencer

	routed  atomic.Uint64
	dropped atomic.Uint64
}

func NewIngress(queues []*queue.SPSC[protocol.InputEnvelope]) *Ingress {
	return &Ingress{
		mus:    make([]sync.Mutex, len(queues)),
		queues: queues,
		seq:    sequence.New(0),
	}
}

// Submit routes one parsed message from a client. Cancels carry no
// symbol on the CSV wire; they route on the zero symbol, which lands
// on partition 0, and unknown orders get an idempotent cancel ack
// there.
func (g *Ingress) Submit(msg *protocol.InputMessage, clientID uint32, addr netip.AddrPort) {
	env := protocol.InputEnvelope{Msg: *msg, ClientID: clientID, Addr: addr}
	if msg.Kind == protocol.KindFlush {
		g.fanout(&env)
		return
	}
	part := protocol.PartitionFor(msg.Symbol) % len(g.queues)
	g.push(part, &env)
}

// Disconnect sweeps the client's resting orders out of every
// partition. Delivered through the input queues so books are only
// ever touched by their processor.
func (g *Ingress) Disconnect(clientID uint32) {
	env := protocol.InputEnvelope{
		Msg:      protocol.InputMessage{Kind: protocol.KindCancelClient},
		ClientID: clientID,
	}
	g.fanout(&env)
}

func (g *Ingress) fanout(env *protocol.InputEnvelope) {
	for part := range g.queues {
		g.push(part, env)
	}
}

func (g *Ingress) push(part int, env *protocol.InputEnvelope) {
	e := *env
	e.Seq = g.seq.Next()

	g.mus[part].Lock()
	defer g.mus[part].Unlock()

	for i := 0; i < enqueueRetries; i++ {
		if g.queues[part].Enqueue(e) {
			g.routed.Add(1)
			return
		}
		runtime.Gosched()
	}
	g.dropped.Add(1)
}

// Routed and Dropped report lifetime ingress counters.
func (g *Ingress) Routed() uint64  { return g.routed.Load() }
func (g *Ingress) Dropped() uint64 { return g.dropped.Load() }
