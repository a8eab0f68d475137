package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseNewOrder(t *testing.T) {
	msg, ok := ParseCSVLine("N, 1, IBM, 10, 100, B, 2")
	require.True(t, ok)
	require.Equal(t, KindNewOrder, msg.Kind)
	require.Equal(t, uint32(1), msg.UserID)
	require.Equal(t, "IBM", msg.Symbol.String())
	require.Equal(t, uint32(10), msg.Price)
	require.Equal(t, uint32(100), msg.Quantity)
	require.Equal(t, SideBuy, msg.Side)
	require.Equal(t, uint32(2), msg.UserOrderID)
}

func TestParseMarketOrder(t *testing.T) {
	msg, ok := ParseCSVLine("N, 1, VAL, 0, 7, S, 3")
	require.True(t, ok)
	require.Equal(t, uint32(0), msg.Price)
	require.Equal(t, SideSell, msg.Side)
}

func TestParseCancel(t *testing.T) {
	msg, ok := ParseCSVLine("C, 5, 9")
	require.True(t, ok)
	require.Equal(t, KindCancel, msg.Kind)
	require.Equal(t, uint32(5), msg.UserID)
	require.Equal(t, uint32(9), msg.UserOrderID)
	require.True(t, msg.Symbol.IsZero())
}

func TestParseFlush(t *testing.T) {
	msg, ok := ParseCSVLine("F")
	require.True(t, ok)
	require.Equal(t, KindFlush, msg.Kind)
}

func TestParseSkipsBlanksAndComments(t *testing.T) {
	for _, line := range []string{"", "   ", "# scenario 1", "#"} {
		_, ok := ParseCSVLine(line)
		require.False(t, ok, "line %q", line)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	bad := []string{
		"X, 1, 2",
		"N, 1, IBM, 10, 100, B",     // missing field
		"N, 1, IBM, 10, 0, B, 2",    // zero quantity
		"N, 1, IBM, 10, 100, Q, 2",  // bad side
		"N, x, IBM, 10, 100, B, 2",  // bad number
		"N, 1, , 10, 100, B, 2",     // empty symbol
		"C, 5",                      // short cancel
		"F, 1",                      // flush takes no fields
	}
	for _, line := range bad {
		_, ok := ParseCSVLine(line)
		require.False(t, ok, "line %q", line)
	}
}

func TestFormatOutputs(t *testing.T) {
	sym := SymbolFromString("IBM")

	ack := AckMessage(sym, 1, 2, 0)
	require.Equal(t, "A, 1, 2", FormatCSV(&ack))

	cancel := CancelAckMessage(sym, 1, 2, 0)
	require.Equal(t, "C, 1, 2", FormatCSV(&cancel))

	trade := TradeMessage(sym, 1, 101, 0, 2, 102, 0, 10, 50)
	require.Equal(t, "T, 1, 101, 2, 102, 10, 50", FormatCSV(&trade))

	tob := TopOfBookMessage(sym, SideBuy, 10, 50)
	require.Equal(t, "B, B, 10, 50", FormatCSV(&tob))

	gone := TopOfBookEliminatedMessage(sym, SideSell)
	require.Equal(t, "B, S, -, -", FormatCSV(&gone))
}

func TestAppendCSVNewlineTerminated(t *testing.T) {
	ack := AckMessage(SymbolFromString("A"), 1, 1, 0)
	b := AppendCSV(nil, &ack)
	require.Equal(t, byte('\n'), b[len(b)-1])
}
