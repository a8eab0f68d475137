package network

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"matchd/infra/queue"
	"matchd/protocol"
)

func newTestIngress() (*Ingress, []*queue.SPSC[protocol.InputEnvelope]) {
	queues := []*queue.SPSC[protocol.InputEnvelope]{
		queue.New[protocol.InputEnvelope](1 << 8),
		queue.New[protocol.InputEnvelope](1 << 8),
	}
	return NewIngress(queues), queues
}

func TestSubmitRoutesBySymbol(t *testing.T) {
	g, queues := newTestIngress()

	ibm := protocol.NewOrderMessage(1, protocol.SymbolFromString("IBM"), 100, 10, protocol.SideBuy, 1)
	nvda := protocol.NewOrderMessage(1, protocol.SymbolFromString("NVDA"), 100, 10, protocol.SideBuy, 2)
	g.Submit(&ibm, 1, netip.AddrPort{})
	g.Submit(&nvda, 1, netip.AddrPort{})

	require.Equal(t, 1, queues[0].Len())
	require.Equal(t, 1, queues[1].Len())

	var env protocol.InputEnvelope
	require.True(t, queues[0].Dequeue(&env))
	require.Equal(t, "IBM", env.Msg.Symbol.String())
	require.True(t, queues[1].Dequeue(&env))
	require.Equal(t, "NVDA", env.Msg.Symbol.String())
}

func TestCancelWithoutSymbolGoesToPartitionZero(t *testing.T) {
	g, queues := newTestIngress()

	cancel := protocol.CancelMessage(1, 1)
	g.Submit(&cancel, 1, netip.AddrPort{})

	require.Equal(t, 1, queues[0].Len())
	require.Zero(t, queues[1].Len())
}

func TestFlushFansOut(t *testing.T) {
	g, queues := newTestIngress()

	flush := protocol.FlushMessage()
	g.Submit(&flush, 1, netip.AddrPort{})

	var env protocol.InputEnvelope
	for i, q := range queues {
		require.Equal(t, 1, q.Len(), "partition %d", i)
		require.True(t, q.Dequeue(&env))
		require.Equal(t, protocol.KindFlush, env.Msg.Kind)
	}
}

func TestDisconnectFansOut(t *testing.T) {
	g, queues := newTestIngress()

	g.Disconnect(7)

	var env protocol.InputEnvelope
	for i, q := range queues {
		require.Equal(t, 1, q.Len(), "partition %d", i)
		require.True(t, q.Dequeue(&env))
		require.Equal(t, protocol.KindCancelClient, env.Msg.Kind)
		require.Equal(t, uint32(7), env.ClientID)
	}
}

func TestFullQueueCountsDrop(t *testing.T) {
	queues := []*queue.SPSC[protocol.InputEnvelope]{
		queue.New[protocol.InputEnvelope](2), // capacity 1
	}
	g := NewIngress(queues)

	msg := protocol.NewOrderMessage(1, protocol.SymbolFromString("IBM"), 100, 10, protocol.SideBuy, 1)
	g.Submit(&msg, 1, netip.AddrPort{})
	g.Submit(&msg, 1, netip.AddrPort{})

	require.Equal(t, uint64(1), g.Routed())
	require.Equal(t, uint64(1), g.Dropped())
}

func TestSeqAssignedPerEnvelope(t *testing.T) {
	g, queues := newTestIngress()

	msg := protocol.NewOrderMessage(1, protocol.SymbolFromString("IBM"), 100, 10, protocol.SideBuy, 1)
	g.Submit(&msg, 1, netip.AddrPort{})
	g.Submit(&msg, 1, netip.AddrPort{})

	var a, b protocol.InputEnvelope
	require.True(t, queues[0].Dequeue(&a))
	require.True(t, queues[0].Dequeue(&b))
	require.Greater(t, b.Seq, a.Seq)
}
