package network

import (
	"testing"

	"github.com/stretchr/testify/require"

	"matchd/infra/queue"
	"matchd/protocol"
)

type captureSink struct{ msgs []protocol.OutputMessage }

func (s *captureSink) Send(m *protocol.OutputMessage) error {
	s.msgs = append(s.msgs, *m)
	return nil
}
func (s *captureSink) Close() error { return nil }

type captureTap struct{ msgs []protocol.OutputMessage }

func (t *captureTap) Publish(m *protocol.OutputMessage, _ uint64) {
	t.msgs = append(t.msgs, *m)
}

func TestUnicastDelivery(t *testing.T) {
	reg := NewRegistry()
	sink := &captureSink{}
	id := reg.AddStream(sink)

	q := queue.New[protocol.OutputEnvelope](16)
	r := NewOutputRouter([]*queue.SPSC[protocol.OutputEnvelope]{q}, reg)

	ack := protocol.AckMessage(protocol.SymbolFromString("IBM"), 1, 1, id)
	q.Enqueue(protocol.OutputEnvelope{Msg: ack, ClientID: id, Seq: 1})
	r.sweep()

	require.Len(t, sink.msgs, 1)
	require.Equal(t, protocol.KindAck, sink.msgs[0].Kind)
	require.Equal(t, uint64(1), r.Stats().Delivered)
}

func TestBroadcastTopOfBookReachesClientsAndTaps(t *testing.T) {
	reg := NewRegistry()
	a, b := &captureSink{}, &captureSink{}
	reg.AddStream(a)
	reg.AddStream(b)
	tap := &captureTap{}

	q := queue.New[protocol.OutputEnvelope](16)
	r := NewOutputRouter([]*queue.SPSC[protocol.OutputEnvelope]{q}, reg, tap)

	tob := protocol.TopOfBookMessage(protocol.SymbolFromString("IBM"), protocol.SideBuy, 100, 10)
	q.Enqueue(protocol.OutputEnvelope{Msg: tob, ClientID: protocol.BroadcastClient, Seq: 1})
	r.sweep()

	require.Len(t, a.msgs, 1)
	require.Len(t, b.msgs, 1)
	require.Len(t, tap.msgs, 1)
}

func TestBroadcastTradeReachesTapsOnly(t *testing.T) {
	reg := NewRegistry()
	sink := &captureSink{}
	reg.AddStream(sink)
	tap := &captureTap{}

	q := queue.New[protocol.OutputEnvelope](16)
	r := NewOutputRouter([]*queue.SPSC[protocol.OutputEnvelope]{q}, reg, tap)

	trade := protocol.TradeMessage(protocol.SymbolFromString("IBM"), 1, 1, 1, 2, 2, 2, 100, 5)
	q.Enqueue(protocol.OutputEnvelope{Msg: trade, ClientID: protocol.BroadcastClient, Seq: 1})
	r.sweep()

	// Participants already received their unicast copies.
	require.Empty(t, sink.msgs)
	require.Len(t, tap.msgs, 1)
}

func TestUnknownClientCounted(t *testing.T) {
	reg := NewRegistry()
	q := queue.New[protocol.OutputEnvelope](16)
	r := NewOutputRouter([]*queue.SPSC[protocol.OutputEnvelope]{q}, reg)

	ack := protocol.AckMessage(protocol.SymbolFromString("IBM"), 1, 1, 99)
	q.Enqueue(protocol.OutputEnvelope{Msg: ack, ClientID: 99, Seq: 1})
	r.sweep()

	require.Equal(t, uint64(1), r.Stats().Unrouted)
	require.Zero(t, r.Stats().Delivered)
}

func TestSweepDrainsAllQueues(t *testing.T) {
	reg := NewRegistry()
	sink := &captureSink{}
	id := reg.AddStream(sink)

	q0 := queue.New[protocol.OutputEnvelope](16)
	q1 := queue.New[protocol.OutputEnvelope](16)
	r := NewOutputRouter([]*queue.SPSC[protocol.OutputEnvelope]{q0, q1}, reg)

	ack := protocol.AckMessage(protocol.SymbolFromString("A"), 1, 1, id)
	q0.Enqueue(protocol.OutputEnvelope{Msg: ack, ClientID: id})
	q1.Enqueue(protocol.OutputEnvelope{Msg: ack, ClientID: id})
	r.sweep()

	require.Len(t, sink.msgs, 2)
	require.True(t, q0.Empty())
	require.True(t, q1.Empty())
}
