// Package service runs the partition processors: the long-lived tasks
// that drain input envelopes, drive the matching engine, and fan the
// results out to the output queues.
package service

import (
	"context"
	"runtime"
	"time"

	"matchd/domain/engine"
	"matchd/infra/queue"
	"matchd/infra/sequence"
	"matchd/protocol"
)

const (
	// BatchSize is how many envelopes one drain attempt takes.
	BatchSize = 32

	// DefaultSpinLimit is how many empty polls to burn spinning
	// before the loop starts sleeping.
	DefaultSpinLimit = 100

	// DefaultIdleSleep is the sleep once the spin budget is spent.
	DefaultIdleSleep = 100 * time.Microsecond

	// drainLimit bounds the shutdown drain.
	drainLimit = 4096
)

// Stats are owned by the processor goroutine; snapshot via Stats()
// after shutdown or accept approximate reads.
type Stats struct {
	Messages    uint64
	Batches     uint64
	Outputs     uint64
	Trades      uint64
	EmptyPolls  uint64
	OutputDrops uint64 // output-queue-full events
}

// Processor binds one input queue, one matching engine, and one output
// queue into a partition pipeline. It is the sole consumer of its
// input queue and the sole producer of its output queue.
type Processor struct {
	id  int
	in  *queue.SPSC[protocol.InputEnvelope]
	out *queue.SPSC[protocol.OutputEnvelope]
	eng *engine.Engine
	seq *sequence.Sequencer

	batch  []protocol.InputEnvelope
	outbuf *protocol.OutputBuffer

	spinLimit int
	idleSleep time.Duration

	stats Stats
}

type Option func(*Processor)

// WithIdlePolicy tunes the spin/sleep thresholds.
func WithIdlePolicy(spinLimit int, idleSleep time.Duration) Option {
	return func(p *Processor) {
		if spinLimit > 0 {
			p.spinLimit = spinLimit
		}
		if idleSleep > 0 {
			p.idleSleep = idleSleep
		}
	}
}

func NewProcessor(id int, in *queue.SPSC[protocol.InputEnvelope], out *queue.SPSC[protocol.OutputEnvelope], eng *engine.Engine, opts ...Option) *Processor {
	p := &Processor{
		id:        id,
		in:        in,
		out:       out,
		eng:       eng,
		seq:       sequence.New(0),
		batch:     make([]protocol.InputEnvelope, BatchSize),
		outbuf:    protocol.NewOutputBuffer(protocol.MaxOutputMessages),
		spinLimit: DefaultSpinLimit,
		idleSleep: DefaultIdleSleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Processor) ID() int              { return p.id }
func (p *Processor) Engine() *engine.Engine { return p.eng }
func (p *Processor) Stats() Stats         { return p.stats }

// Run loops until ctx is cancelled, then drains a bounded backlog and
// returns. Intended to be spawned once per partition.
func (p *Processor) Run(ctx context.Context) {
	idle := 0
	for {
		if ctx.Err() != nil {
			p.drain()
			return
		}

		n := p.in.DequeueBatch(p.batch)
		if n == 0 {
			p.stats.EmptyPolls++
			if idle++; idle < p.spinLimit {
				runtime.Gosched()
			} else {
				time.Sleep(p.idleSleep)
			}
			continue
		}
		idle = 0
		p.processBatch(p.batch[:n])
	}
}

func (p *Processor) drain() {
	for i := 0; i < drainLimit/BatchSize; i++ {
		n := p.in.DequeueBatch(p.batch)
		if n == 0 {
			return
		}
		p.processBatch(p.batch[:n])
	}
}

func (p *Processor) processBatch(envs []protocol.InputEnvelope) {
	var outputs, trades uint64

	for i := range envs {
		p.outbuf.Reset()
		p.eng.Process(&envs[i], p.outbuf)

		msgs := p.outbuf.Messages()
		outputs += uint64(len(msgs))
		for j := range msgs {
			if msgs[j].Kind == protocol.KindTrade {
				trades++
			}
			p.publish(&msgs[j])
		}
	}

	p.stats.Messages += uint64(len(envs))
	p.stats.Batches++
	p.stats.Outputs += outputs
	p.stats.Trades += trades
}

// publish fans one engine output into envelopes:
//
//   - Ack / CancelAck unicast to the originating client;
//   - Trade unicast to each distinct participant, plus one broadcast
//     copy for market data;
//   - TopOfBook broadcast only.
func (p *Processor) publish(m *protocol.OutputMessage) {
	switch m.Kind {
	case protocol.KindAck, protocol.KindCancelAck:
		p.send(m, m.ClientID)

	case protocol.KindTrade:
		if m.BuyClientID != protocol.BroadcastClient {
			p.send(m, m.BuyClientID)
		}
		if m.SellClientID != protocol.BroadcastClient && m.SellClientID != m.BuyClientID {
			p.send(m, m.SellClientID)
		}
		p.send(m, protocol.BroadcastClient)

	case protocol.KindTopOfBook:
		p.send(m, protocol.BroadcastClient)
	}
}

func (p *Processor) send(m *protocol.OutputMessage, clientID uint32) {
	env := protocol.OutputEnvelope{
		Msg:      *m,
		ClientID: clientID,
		Seq:      p.seq.Next(),
	}
	if !p.out.Enqueue(env) {
		// Best-effort stream: count and move on, never block the
		// matching thread on a slow consumer.
		p.stats.OutputDrops++
	}
}
