package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBinaryNewOrderRoundTrip(t *testing.T) {
	in := NewOrderMessage(7, SymbolFromString("NVDA"), 500, 25, SideBuy, 9)
	frame := AppendBinaryInput(nil, &in)
	require.Len(t, frame, BinaryNewOrderSize)
	require.True(t, IsBinary(frame))

	got, n, ok := DecodeBinaryInput(frame)
	require.True(t, ok)
	require.Equal(t, BinaryNewOrderSize, n)
	require.Equal(t, in.UserID, got.UserID)
	require.Equal(t, "NVDA", got.Symbol.String())
	require.Equal(t, in.Price, got.Price)
	require.Equal(t, in.Quantity, got.Quantity)
	require.Equal(t, in.Side, got.Side)
	require.Equal(t, in.UserOrderID, got.UserOrderID)
}

func TestBinaryCancelAndFlush(t *testing.T) {
	cancel := CancelMessage(3, 4)
	frame := AppendBinaryInput(nil, &cancel)
	require.Len(t, frame, BinaryCancelSize)
	got, _, ok := DecodeBinaryInput(frame)
	require.True(t, ok)
	require.Equal(t, KindCancel, got.Kind)
	require.Equal(t, uint32(3), got.UserID)
	require.Equal(t, uint32(4), got.UserOrderID)

	flush := FlushMessage()
	frame = AppendBinaryInput(nil, &flush)
	require.Len(t, frame, BinaryFlushSize)
	got, _, ok = DecodeBinaryInput(frame)
	require.True(t, ok)
	require.Equal(t, KindFlush, got.Kind)
}

func TestBinaryInputValidation(t *testing.T) {
	// Zero quantity.
	in := InputMessage{Kind: KindNewOrder, UserID: 1, UserOrderID: 1,
		Symbol: SymbolFromString("A"), Side: SideBuy, Price: 10}
	frame := AppendBinaryInput(nil, &in)
	_, n, ok := DecodeBinaryInput(frame)
	require.False(t, ok)
	require.Equal(t, BinaryNewOrderSize, n, "frame must still be consumed")

	// Bad side byte.
	in.Quantity = 5
	frame = AppendBinaryInput(nil, &in)
	frame[22] = 'Q'
	_, _, ok = DecodeBinaryInput(frame)
	require.False(t, ok)
}

func TestBinaryShortBuffer(t *testing.T) {
	in := NewOrderMessage(1, SymbolFromString("A"), 1, 1, SideBuy, 1)
	frame := AppendBinaryInput(nil, &in)
	_, n, ok := DecodeBinaryInput(frame[:10])
	require.False(t, ok)
	require.Zero(t, n)
}

func TestBinaryStreamFraming(t *testing.T) {
	a := NewOrderMessage(1, SymbolFromString("AAPL"), 10, 5, SideBuy, 1)
	b := CancelMessage(1, 1)
	c := FlushMessage()
	stream := AppendBinaryInput(nil, &a)
	stream = AppendBinaryInput(stream, &b)
	stream = AppendBinaryInput(stream, &c)

	var kinds []InputKind
	for len(stream) > 0 {
		msg, n, ok := DecodeBinaryInput(stream)
		require.True(t, ok)
		kinds = append(kinds, msg.Kind)
		stream = stream[n:]
	}
	require.Equal(t, []InputKind{KindNewOrder, KindCancel, KindFlush}, kinds)
}

func TestBinaryOutputRoundTrip(t *testing.T) {
	sym := SymbolFromString("TSLA")

	trade := TradeMessage(sym, 1, 11, 0, 2, 22, 0, 100, 7)
	frame := AppendBinaryOutput(nil, &trade)
	require.Len(t, frame, BinaryTradeSize)
	got, n, ok := DecodeBinaryOutput(frame)
	require.True(t, ok)
	require.Equal(t, BinaryTradeSize, n)
	require.Equal(t, trade.BuyUserID, got.BuyUserID)
	require.Equal(t, trade.SellOrderID, got.SellOrderID)
	require.Equal(t, trade.Price, got.Price)
	require.Equal(t, trade.Quantity, got.Quantity)

	gone := TopOfBookEliminatedMessage(sym, SideBuy)
	frame = AppendBinaryOutput(nil, &gone)
	got, _, ok = DecodeBinaryOutput(frame)
	require.True(t, ok)
	require.True(t, got.Eliminated)
	require.Equal(t, SideBuy, got.Side)
}

func TestBinarySymbolTruncation(t *testing.T) {
	in := NewOrderMessage(1, SymbolFromString("LONGSYMBOLNAME"), 1, 1, SideBuy, 1)
	frame := AppendBinaryInput(nil, &in)
	got, _, ok := DecodeBinaryInput(frame)
	require.True(t, ok)
	require.Equal(t, "LONGSYMB", got.Symbol.String())
}
