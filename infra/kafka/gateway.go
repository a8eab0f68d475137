package kafka

import (
	"context"
	"encoding/binary"
	"log"
	"net/netip"
	"sync/atomic"

	"github.com/segmentio/kafka-go"

	"matchd/network"
	"matchd/protocol"
)

// Gateway consumes input messages from an orders topic. Each record
// value is one wire message, binary frame or CSV line; the dialect is
// detected per record. The gateway registers itself as a client, so
// engine responses flow back through its sink onto the response topic.
type Gateway struct {
	reader    *kafka.Reader
	responses *Producer
	reg       *network.Registry
	in        *network.Ingress
	clientID  uint32

	consumed    atomic.Uint64
	parseErrors atomic.Uint64
}

func NewGateway(brokers []string, ordersTopic, responsesTopic, groupID string, reg *network.Registry, in *network.Ingress) *Gateway {
	return &Gateway{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    ordersTopic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 1 << 20,
		}),
		responses: NewProducer(brokers, responsesTopic),
		reg:       reg,
		in:        in,
	}
}

// Run consumes until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	g.clientID = g.reg.AddStream(&responseSink{gw: g, ctx: ctx})
	defer func() {
		g.reg.Remove(g.clientID)
		g.in.Disconnect(g.clientID)
	}()
	log.Printf("[kafka] gateway consuming %q as client %d", g.reader.Config().Topic, g.clientID)

	for {
		rec, err := g.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		g.consume(rec.Value)
	}
}

func (g *Gateway) consume(value []byte) {
	var msg protocol.InputMessage
	var ok bool
	if protocol.IsBinary(value) {
		msg, _, ok = protocol.DecodeBinaryInput(value)
	} else {
		msg, ok = protocol.ParseCSVLine(string(value))
	}
	if !ok {
		g.parseErrors.Add(1)
		return
	}
	g.consumed.Add(1)
	g.in.Submit(&msg, g.clientID, netip.AddrPort{})
}

func (g *Gateway) Close() error {
	err := g.reader.Close()
	if cerr := g.responses.Close(); err == nil {
		err = cerr
	}
	return err
}

func (g *Gateway) Consumed() uint64    { return g.consumed.Load() }
func (g *Gateway) ParseErrors() uint64 { return g.parseErrors.Load() }

// responseSink turns engine outputs for the gateway client into
// records on the response topic, keyed by user id so one user's
// responses stay ordered.
type responseSink struct {
	gw  *Gateway
	ctx context.Context
}

func (s *responseSink) Send(m *protocol.OutputMessage) error {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, m.UserID)
	value := protocol.AppendBinaryOutput(make([]byte, 0, 64), m)
	return s.gw.responses.Send(s.ctx, key, value)
}

func (s *responseSink) Close() error { return nil }
