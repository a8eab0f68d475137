package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"matchd/infra/clock"
	"matchd/protocol"
)

func newTestEngine(cfg Config) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = &clock.Counter{}
	}
	if cfg.PoolCapacity == 0 {
		cfg.PoolCapacity = 1024
	}
	return New(cfg)
}

func newOrder(e *Engine, out *protocol.OutputBuffer, sym string, user, oid uint32, side protocol.Side, px, qty uint32) {
	env := protocol.InputEnvelope{
		Msg:      protocol.NewOrderMessage(user, protocol.SymbolFromString(sym), px, qty, side, oid),
		ClientID: user,
	}
	e.Process(&env, out)
}

func cancel(e *Engine, out *protocol.OutputBuffer, user, oid, clientID uint32) {
	env := protocol.InputEnvelope{
		Msg:      protocol.CancelMessage(user, oid),
		ClientID: clientID,
	}
	e.Process(&env, out)
}

func TestBooksCreatedPerSymbol(t *testing.T) {
	e := newTestEngine(Config{})
	out := protocol.NewOutputBuffer(0)

	newOrder(e, out, "IBM", 1, 1, protocol.SideBuy, 100, 10)
	newOrder(e, out, "AAPL", 1, 2, protocol.SideBuy, 100, 10)
	newOrder(e, out, "IBM", 1, 3, protocol.SideBuy, 99, 10)

	require.Len(t, e.Books(), 2)
}

func TestMatchWithinSymbolOnly(t *testing.T) {
	e := newTestEngine(Config{})
	out := protocol.NewOutputBuffer(0)

	newOrder(e, out, "IBM", 1, 1, protocol.SideBuy, 100, 10)
	out.Reset()
	// Crossing price but different symbol: must rest, not trade.
	newOrder(e, out, "AAPL", 2, 2, protocol.SideSell, 90, 10)

	for _, m := range out.Messages() {
		require.NotEqual(t, protocol.KindTrade, m.Kind)
	}
}

func TestCancelRoutesThroughTracker(t *testing.T) {
	e := newTestEngine(Config{})
	out := protocol.NewOutputBuffer(0)

	newOrder(e, out, "IBM", 1, 1, protocol.SideBuy, 100, 10)

	out.Reset()
	cancel(e, out, 1, 1, 1)
	require.Equal(t, protocol.KindCancelAck, out.Messages()[0].Kind)
	require.Equal(t, "IBM", out.Messages()[0].Symbol.String())

	// The book actually emptied.
	require.Zero(t, e.Books()[0].BestBidPrice())
}

func TestCancelUnknownOrderAcked(t *testing.T) {
	e := newTestEngine(Config{})
	out := protocol.NewOutputBuffer(0)

	cancel(e, out, 9, 9, 5)
	require.Equal(t, 1, out.Len())
	ack := out.Messages()[0]
	require.Equal(t, protocol.KindCancelAck, ack.Kind)
	require.Equal(t, uint32(9), ack.UserID)
	require.Equal(t, uint32(5), ack.ClientID)
}

func TestCancelAfterFill(t *testing.T) {
	e := newTestEngine(Config{})
	out := protocol.NewOutputBuffer(0)

	newOrder(e, out, "IBM", 1, 1, protocol.SideBuy, 100, 10)
	newOrder(e, out, "IBM", 2, 2, protocol.SideSell, 100, 10)

	// The resting order traded away; cancel is still acked.
	out.Reset()
	cancel(e, out, 1, 1, 1)
	require.Equal(t, 1, out.Len())
	require.Equal(t, protocol.KindCancelAck, out.Messages()[0].Kind)
}

func TestFlushClearsEverything(t *testing.T) {
	e := newTestEngine(Config{})
	out := protocol.NewOutputBuffer(0)

	newOrder(e, out, "IBM", 1, 1, protocol.SideBuy, 100, 10)
	newOrder(e, out, "NVDA", 2, 2, protocol.SideSell, 200, 10)

	out.Reset()
	env := protocol.InputEnvelope{Msg: protocol.FlushMessage()}
	e.Process(&env, out)

	acks := 0
	for _, m := range out.Messages() {
		if m.Kind == protocol.KindCancelAck {
			acks++
		}
	}
	require.Equal(t, 2, acks)
	require.Zero(t, e.Pool().InUse())

	// Tracker was cleared: a re-used identity is a fresh order.
	out.Reset()
	cancel(e, out, 1, 1, 1)
	require.True(t, out.Messages()[0].Symbol.IsZero())
}

func TestSymbolCapAcksAndDrops(t *testing.T) {
	e := newTestEngine(Config{MaxSymbols: 1})
	out := protocol.NewOutputBuffer(0)

	newOrder(e, out, "IBM", 1, 1, protocol.SideBuy, 100, 10)

	out.Reset()
	newOrder(e, out, "AAPL", 2, 2, protocol.SideBuy, 100, 10)
	require.Equal(t, 1, out.Len())
	require.Equal(t, protocol.KindAck, out.Messages()[0].Kind)
	require.Equal(t, uint64(1), e.Stats().SymbolDrops)
	require.Len(t, e.Books(), 1)
}

func TestCancelClientOrdersAcrossBooks(t *testing.T) {
	e := newTestEngine(Config{})
	out := protocol.NewOutputBuffer(0)

	newOrder(e, out, "IBM", 1, 1, protocol.SideBuy, 100, 10)
	newOrder(e, out, "NVDA", 1, 2, protocol.SideSell, 200, 10)
	newOrder(e, out, "IBM", 2, 3, protocol.SideBuy, 99, 10)

	out.Reset()
	env := protocol.InputEnvelope{
		Msg:      protocol.InputMessage{Kind: protocol.KindCancelClient},
		ClientID: 1,
	}
	e.Process(&env, out)

	acks := 0
	for _, m := range out.Messages() {
		if m.Kind == protocol.KindCancelAck {
			acks++
			require.Equal(t, uint32(1), m.UserID)
		}
	}
	require.Equal(t, 2, acks)
	require.Equal(t, 1, e.Pool().InUse())

	// Swept identities are gone from the tracker too.
	out.Reset()
	cancel(e, out, 1, 1, 1)
	require.True(t, out.Messages()[0].Symbol.IsZero())
}

func TestSymbolMapFindInsert(t *testing.T) {
	m := newSymbolMap(16)
	a := protocol.SymbolFromString("IBM")
	b := protocol.SymbolFromString("NVDA")

	require.True(t, m.insert(a, 0))
	require.True(t, m.insert(b, 1))

	idx, ok := m.find(a)
	require.True(t, ok)
	require.Equal(t, uint32(0), idx)
	idx, ok = m.find(b)
	require.True(t, ok)
	require.Equal(t, uint32(1), idx)

	_, ok = m.find(protocol.SymbolFromString("TSLA"))
	require.False(t, ok)
}

func TestOrderSymbolMapLifecycle(t *testing.T) {
	m := newOrderSymbolMap(16)
	sym := protocol.SymbolFromString("IBM")
	key := uint64(1)<<32 | 2

	require.True(t, m.insert(key, sym))
	got, ok := m.find(key)
	require.True(t, ok)
	require.Equal(t, sym, got)

	require.True(t, m.remove(key))
	_, ok = m.find(key)
	require.False(t, ok)

	// Tombstone reuse.
	require.True(t, m.insert(key, sym))
	m.clear()
	_, ok = m.find(key)
	require.False(t, ok)
}
