package network

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"matchd/protocol"
)

type nullSink struct{ closed bool }

func (s *nullSink) Send(*protocol.OutputMessage) error { return nil }
func (s *nullSink) Close() error                       { s.closed = true; return nil }

func TestStreamIDsFromOne(t *testing.T) {
	r := NewRegistry()

	a := r.AddStream(&nullSink{})
	b := r.AddStream(&nullSink{})
	require.Equal(t, uint32(1), a)
	require.Equal(t, uint32(2), b)
	require.Equal(t, 2, r.Len())
}

func TestDatagramIDsAboveBase(t *testing.T) {
	r := NewRegistry()
	addr := netip.MustParseAddrPort("127.0.0.1:5000")

	id := r.AddDatagram(addr, func() Sink { return &nullSink{} })
	require.True(t, protocol.IsDatagramClient(id))

	// Same address keeps the same identity.
	again := r.AddDatagram(addr, func() Sink {
		t.Fatal("sink rebuilt for a known address")
		return nil
	})
	require.Equal(t, id, again)
	require.Equal(t, 1, r.Len())
}

func TestRemoveClosesSink(t *testing.T) {
	r := NewRegistry()
	s := &nullSink{}
	id := r.AddStream(s)

	r.Remove(id)
	require.True(t, s.closed)
	_, ok := r.Get(id)
	require.False(t, ok)

	// Removing twice is harmless.
	r.Remove(id)
}

func TestEachVisitsAll(t *testing.T) {
	r := NewRegistry()
	r.AddStream(&nullSink{})
	r.AddStream(&nullSink{})

	seen := 0
	r.Each(func(uint32, Sink) { seen++ })
	require.Equal(t, 2, seen)
}

func TestPeakTracksHighWater(t *testing.T) {
	r := NewRegistry()
	a := r.AddStream(&nullSink{})
	r.AddStream(&nullSink{})
	r.Remove(a)

	require.Equal(t, 1, r.Len())
	require.Equal(t, 2, r.Peak())
}
