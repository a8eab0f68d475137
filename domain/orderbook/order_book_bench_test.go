package orderbook

import (
	"testing"

	"matchd/protocol"
)

func BenchmarkAddCancel(b *testing.B) {
	pool := NewOrderPool(1 << 16)
	book := NewOrderBook(testSym, pool, 0, false)
	out := protocol.NewOutputBuffer(0)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		oid := uint32(i%1000 + 1)
		msg := protocol.NewOrderMessage(1, testSym, 100+oid%50, 10, protocol.SideBuy, oid)
		book.AddOrder(&msg, 1, uint64(i), out)
		book.CancelOrder(1, oid, 1, out)
		out.Reset()
	}
}

func BenchmarkCrossingFlow(b *testing.B) {
	pool := NewOrderPool(1 << 16)
	book := NewOrderBook(testSym, pool, 0, false)
	out := protocol.NewOutputBuffer(0)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		oid := uint32(i + 1)
		buy := protocol.NewOrderMessage(1, testSym, 100, 10, protocol.SideBuy, oid)
		book.AddOrder(&buy, 1, uint64(i), out)
		sell := protocol.NewOrderMessage(2, testSym, 100, 10, protocol.SideSell, oid)
		book.AddOrder(&sell, 2, uint64(i), out)
		out.Reset()
	}
}

func BenchmarkRestAtManyLevels(b *testing.B) {
	pool := NewOrderPool(1 << 16)
	book := NewOrderBook(testSym, pool, 0, false)
	out := protocol.NewOutputBuffer(0)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		oid := uint32(i%4096 + 1)
		msg := protocol.NewOrderMessage(1, testSym, 1+oid%512, 10, protocol.SideBuy, oid)
		book.AddOrder(&msg, 1, uint64(i), out)
		book.CancelOrder(1, oid, 1, out)
		out.Reset()
	}
}
