package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPartitionSplit(t *testing.T) {
	cases := map[string]int{
		"AAPL": 0,
		"IBM":  0,
		"MSFT": 0,
		"NVDA": 1,
		"TSLA": 1,
		"ZM":   1,
		"aapl": 0, // folded to uppercase
		"nvda": 1,
	}
	for sym, want := range cases {
		require.Equal(t, want, PartitionFor(SymbolFromString(sym)), "symbol %s", sym)
	}
}

func TestPartitionBoundaries(t *testing.T) {
	require.Equal(t, 0, PartitionFor(SymbolFromString("M")))
	require.Equal(t, 1, PartitionFor(SymbolFromString("N")))
	require.Equal(t, 1, PartitionFor(SymbolFromString("Z")))
}

func TestPartitionNonAlphabetic(t *testing.T) {
	require.Equal(t, 0, PartitionFor(SymbolFromString("9X")))
	require.Equal(t, 0, PartitionFor(Symbol{}))
}

func TestPartitionExhaustive(t *testing.T) {
	// Every first byte must land in {0, 1}, and letters must agree
	// with the reference predicate.
	for c := 0; c < 256; c++ {
		var sym Symbol
		sym[0] = byte(c)
		got := PartitionFor(sym)
		require.Contains(t, []int{0, 1}, got)

		up := byte(c) &^ 0x20
		want := 0
		if up >= 'N' && up <= 'Z' && (byte(c) >= 'A' && byte(c) <= 'Z' || byte(c) >= 'a' && byte(c) <= 'z') {
			want = 1
		}
		if byte(c) >= 'A' && byte(c) <= 'z' {
			require.Equal(t, want, got, "byte %d (%c)", c, c)
		}
	}
}
