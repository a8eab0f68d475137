package broadcaster

import (
	"testing"

	"github.com/stretchr/testify/require"

	"matchd/protocol"
)

func TestEventRoundTrip(t *testing.T) {
	sym := protocol.SymbolFromString("NVDA")
	trade := protocol.TradeMessage(sym, 1, 11, 5, 2, 22, 6, 100, 7)

	data := AppendEvent(nil, &trade, 42)
	got, seq, ok := DecodeEvent(data)
	require.True(t, ok)
	require.Equal(t, uint64(42), seq)
	require.Equal(t, protocol.KindTrade, got.Kind)
	require.Equal(t, "NVDA", got.Symbol.String())
	require.Equal(t, uint32(1), got.BuyUserID)
	require.Equal(t, uint32(11), got.BuyOrderID)
	require.Equal(t, uint32(2), got.SellUserID)
	require.Equal(t, uint32(22), got.SellOrderID)
	require.Equal(t, uint32(100), got.Price)
	require.Equal(t, uint32(7), got.Quantity)
}

func TestEventEliminatedTopOfBook(t *testing.T) {
	gone := protocol.TopOfBookEliminatedMessage(protocol.SymbolFromString("IBM"), protocol.SideSell)

	data := AppendEvent(nil, &gone, 1)
	got, _, ok := DecodeEvent(data)
	require.True(t, ok)
	require.Equal(t, protocol.KindTopOfBook, got.Kind)
	require.Equal(t, protocol.SideSell, got.Side)
	require.True(t, got.Eliminated)
	require.Zero(t, got.Price)
}

func TestEventZeroFieldsOmitted(t *testing.T) {
	ack := protocol.AckMessage(protocol.SymbolFromString("A"), 1, 2, 0)
	withAck := len(AppendEvent(nil, &ack, 0))

	trade := protocol.TradeMessage(protocol.SymbolFromString("A"), 1, 2, 3, 4, 5, 6, 7, 8)
	withTrade := len(AppendEvent(nil, &trade, 0))

	require.Less(t, withAck, withTrade)
}

func TestEventRejectsTruncated(t *testing.T) {
	trade := protocol.TradeMessage(protocol.SymbolFromString("IBM"), 1, 1, 0, 2, 2, 0, 10, 5)
	data := AppendEvent(nil, &trade, 9)

	_, _, ok := DecodeEvent(data[:len(data)-1])
	require.False(t, ok)
}
