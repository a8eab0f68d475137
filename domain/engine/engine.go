// Package engine routes input messages to per-symbol order books
// within one partition. An Engine is owned by exactly one processor
// goroutine; nothing here is safe for concurrent use.
package engine

import (
	"matchd/domain/orderbook"
	"matchd/infra/clock"
	"matchd/protocol"
)

// DefaultMaxSymbols caps the books one partition may host.
const DefaultMaxSymbols = 256

// DefaultPoolCapacity bounds live orders per partition.
const DefaultPoolCapacity = 1 << 16

type Config struct {
	MaxSymbols     int
	MaxPriceLevels int
	PoolCapacity   int
	// AckOnReject controls whether pool-exhausted orders still ack.
	AckOnReject bool
	Clock       clock.Ticker
}

func (c *Config) fill() {
	if c.MaxSymbols <= 0 {
		c.MaxSymbols = DefaultMaxSymbols
	}
	if c.MaxPriceLevels <= 0 {
		c.MaxPriceLevels = orderbook.DefaultMaxPriceLevels
	}
	if c.PoolCapacity <= 0 {
		c.PoolCapacity = DefaultPoolCapacity
	}
	if c.Clock == nil {
		c.Clock = clock.NewMonotonic()
	}
}

// Stats are single-writer drop counters, reported at shutdown and
// exported through metrics.
type Stats struct {
	SymbolDrops uint64 // book table at capacity
	TrackDrops  uint64 // order→symbol map probe exhaustion
}

// Engine owns a fixed array of books plus the two indexes that make a
// partition self-contained: symbol → book, and order → symbol for
// cancels. The order pool is shared by every book in the partition.
type Engine struct {
	cfg     Config
	books   []*orderbook.OrderBook
	symbols symbolMap
	tracker orderSymbolMap
	pool    *orderbook.OrderPool
	stats   Stats
}

func New(cfg Config) *Engine {
	cfg.fill()
	return &Engine{
		cfg:     cfg,
		books:   make([]*orderbook.OrderBook, 0, cfg.MaxSymbols),
		symbols: newSymbolMap(cfg.MaxSymbols),
		tracker: newOrderSymbolMap(cfg.PoolCapacity),
		pool:    orderbook.NewOrderPool(cfg.PoolCapacity),
	}
}

// Pool exposes the partition's order pool for stats reporting.
func (e *Engine) Pool() *orderbook.OrderPool { return e.pool }

func (e *Engine) Stats() Stats { return e.stats }

// Books exposes the live books; read-only, for snapshots and stats.
func (e *Engine) Books() []*orderbook.OrderBook { return e.books }

// Process dispatches one envelope, appending every output to out.
func (e *Engine) Process(env *protocol.InputEnvelope, out *protocol.OutputBuffer) {
	switch env.Msg.Kind {
	case protocol.KindNewOrder:
		e.processNewOrder(&env.Msg, env.ClientID, out)
	case protocol.KindCancel:
		e.processCancel(&env.Msg, env.ClientID, out)
	case protocol.KindFlush:
		e.Flush(out)
	case protocol.KindCancelClient:
		e.CancelClientOrders(env.ClientID, out)
	}
}

func (e *Engine) processNewOrder(msg *protocol.InputMessage, clientID uint32, out *protocol.OutputBuffer) {
	book := e.bookFor(msg.Symbol)
	if book == nil {
		// Symbol table full. The client still sees its Ack; the order
		// goes nowhere.
		e.stats.SymbolDrops++
		out.Append(protocol.AckMessage(msg.Symbol, msg.UserID, msg.UserOrderID, clientID))
		return
	}

	if orderbook.ValidOrderKey(msg.UserID, msg.UserOrderID) {
		if !e.tracker.insert(orderbook.MakeOrderKey(msg.UserID, msg.UserOrderID), msg.Symbol) {
			e.stats.TrackDrops++
		}
	}

	book.AddOrder(msg, clientID, e.cfg.Clock.Ticks(), out)
}

func (e *Engine) processCancel(msg *protocol.InputMessage, clientID uint32, out *protocol.OutputBuffer) {
	key := orderbook.MakeOrderKey(msg.UserID, msg.UserOrderID)

	sym, ok := e.tracker.find(key)
	if !ok {
		// Unknown order: cancel is idempotent, ack it anyway.
		out.Append(protocol.CancelAckMessage(protocol.Symbol{}, msg.UserID, msg.UserOrderID, clientID))
		return
	}

	idx, ok := e.symbols.find(sym)
	if !ok {
		out.Append(protocol.CancelAckMessage(sym, msg.UserID, msg.UserOrderID, clientID))
		e.tracker.remove(key)
		return
	}

	e.books[idx].CancelOrder(msg.UserID, msg.UserOrderID, clientID, out)
	e.tracker.remove(key)
}

// Flush clears every book in the partition and the cancel tracker.
func (e *Engine) Flush(out *protocol.OutputBuffer) {
	for _, book := range e.books {
		book.Flush(out)
	}
	e.tracker.clear()
}

// CancelClientOrders revokes every resting order owned by clientID
// across all books. The caller guarantees no concurrent input is in
// flight for this partition (it arrives via the input queue).
func (e *Engine) CancelClientOrders(clientID uint32, out *protocol.OutputBuffer) int {
	type ident struct{ user, order uint32 }
	var victims []ident

	n := 0
	for _, book := range e.books {
		victims = victims[:0]
		book.EachOrder(func(o *orderbook.Order) {
			if o.ClientID == clientID {
				victims = append(victims, ident{o.UserID, o.UserOrderID})
			}
		})
		for _, v := range victims {
			book.CancelOrder(v.user, v.order, clientID, out)
			e.tracker.remove(orderbook.MakeOrderKey(v.user, v.order))
			n++
		}
	}
	return n
}

// bookFor returns the symbol's book, creating it on first touch.
// Returns nil when the partition is at its symbol cap.
func (e *Engine) bookFor(sym protocol.Symbol) *orderbook.OrderBook {
	if idx, ok := e.symbols.find(sym); ok {
		return e.books[idx]
	}

	if len(e.books) >= e.cfg.MaxSymbols {
		return nil
	}
	idx := uint32(len(e.books))
	if !e.symbols.insert(sym, idx) {
		return nil
	}
	book := orderbook.NewOrderBook(sym, e.pool, e.cfg.MaxPriceLevels, e.cfg.AckOnReject)
	e.books = append(e.books, book)
	return book
}
