package orderbook

import "matchd/protocol"

const (
	// DefaultMaxPriceLevels caps the active levels per side. Typical
	// books use ~100 levels; the cap exists to bound memory and the
	// matching walk, not to be reached.
	DefaultMaxPriceLevels = 4096

	// TypicalOrdersPerLevel sizes the outer matching bound.
	TypicalOrdersPerLevel = 20

	// MaxOrdersAtPriceLevel bounds the FIFO walk within one level.
	MaxOrdersAtPriceLevel = 1 << 16
)

// BookStats count orders dropped by capacity policy (spec'd as silent
// drops, visible to monitoring only).
type BookStats struct {
	LevelDrops uint64 // level array at capacity
	IndexDrops uint64 // order index probe exhaustion
	KeyDrops   uint64 // identity collides with an index sentinel
}

// OrderBook is a single-symbol book with price-time priority.
//
// Levels are contiguous sorted arrays: bids descending, asks
// ascending, so index 0 is always the best price on either side.
// Insertion shifts the tail right, removal shifts it left; with ~100
// live levels the copies stay within a couple of cache lines and beat
// pointer-chasing tree nodes.
type OrderBook struct {
	Symbol protocol.Symbol

	bids []PriceLevel // sorted descending by price
	asks []PriceLevel // sorted ascending by price

	lookup orderMap
	pool   *OrderPool

	prevBestBidPx  uint32
	prevBestBidQty uint32
	prevBestAskPx  uint32
	prevBestAskQty uint32

	// A side that has ever quoted emits an elimination message when it
	// empties; a fresh book's initial zeros never do.
	bidEverActive bool
	askEverActive bool

	// ackOnReject emits the Ack even when pool exhaustion drops the
	// order. Default off: the missing Ack is the monitoring signal.
	ackOnReject bool

	stats BookStats
}

func NewOrderBook(sym protocol.Symbol, pool *OrderPool, maxLevels int, ackOnReject bool) *OrderBook {
	if maxLevels <= 0 {
		maxLevels = DefaultMaxPriceLevels
	}
	return &OrderBook{
		Symbol:      sym,
		bids:        make([]PriceLevel, 0, maxLevels),
		asks:        make([]PriceLevel, 0, maxLevels),
		lookup:      newOrderMap(lookupCapacity(pool.Cap())),
		pool:        pool,
		ackOnReject: ackOnReject,
	}
}

// lookupCapacity sizes a book's order index. One book rarely holds
// the whole partition pool; clamping keeps per-book tables compact
// while the 2x headroom in newOrderMap holds the load factor down.
func lookupCapacity(poolCap int) int {
	const lo, hi = 1 << 10, 1 << 14
	switch {
	case poolCap < lo:
		return poolCap
	case poolCap > hi:
		return hi
	}
	return poolCap
}

// ---------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------

func (b *OrderBook) BestBidPrice() uint32 {
	if len(b.bids) == 0 {
		return 0
	}
	return b.bids[0].Price
}

func (b *OrderBook) BestAskPrice() uint32 {
	if len(b.asks) == 0 {
		return 0
	}
	return b.asks[0].Price
}

func (b *OrderBook) BestBidQty() uint32 {
	if len(b.bids) == 0 {
		return 0
	}
	return b.bids[0].TotalQty
}

func (b *OrderBook) BestAskQty() uint32 {
	if len(b.asks) == 0 {
		return 0
	}
	return b.asks[0].TotalQty
}

// Bids exposes the bid levels for read-only walks (snapshots, tests).
func (b *OrderBook) Bids() []PriceLevel { return b.bids }

// Asks exposes the ask levels for read-only walks.
func (b *OrderBook) Asks() []PriceLevel { return b.asks }

func (b *OrderBook) Stats() BookStats { return b.stats }

// EachOrder visits every resting order, bids first (best to worst),
// each level head-to-tail. The callback must not mutate the book.
func (b *OrderBook) EachOrder(fn func(*Order)) {
	walk := func(levels []PriceLevel) {
		for i := range levels {
			for o := levels[i].head; o != nil; o = o.next {
				fn(o)
			}
		}
	}
	walk(b.bids)
	walk(b.asks)
}

// ---------------------------------------------------------------------
// AddOrder
// ---------------------------------------------------------------------

// AddOrder runs the full new-order pipeline: ack, match, rest or
// discard, top-of-book check. Outputs are appended to out in that
// order. ts stamps the order; FIFO position is the matching authority.
func (b *OrderBook) AddOrder(msg *protocol.InputMessage, clientID uint32, ts uint64, out *protocol.OutputBuffer) {
	if !ValidOrderKey(msg.UserID, msg.UserOrderID) {
		b.stats.KeyDrops++
		return
	}

	o, slot, ok := b.pool.Alloc()
	if !ok {
		// Pool exhausted: the pool counted the failure. Whether the
		// client still sees an Ack is policy.
		if b.ackOnReject {
			out.Append(protocol.AckMessage(b.Symbol, msg.UserID, msg.UserOrderID, clientID))
		}
		return
	}
	o.init(msg, clientID, ts, slot)

	out.Append(protocol.AckMessage(b.Symbol, o.UserID, o.UserOrderID, clientID))

	b.match(o, out)

	if o.Remaining > 0 && o.Type == protocol.TypeLimit {
		if !b.rest(o) {
			b.pool.Free(o.slot)
		}
	} else {
		// Fully filled, or a market-order residual: never rests.
		b.pool.Free(o.slot)
	}

	b.checkTopOfBook(out)
}

// match walks crossing opposite levels best-first, trading FIFO
// head-to-tail within each level. Trades print at the passive price.
func (b *OrderBook) match(o *Order, out *protocol.OutputBuffer) {
	buy := o.Side == protocol.SideBuy

	for outer := 0; o.Remaining > 0; outer++ {
		if outer > DefaultMaxPriceLevels*TypicalOrdersPerLevel {
			panic("orderbook: unbounded matching walk")
		}

		var level *PriceLevel
		if buy {
			if len(b.asks) == 0 {
				return
			}
			level = &b.asks[0]
			if o.Type != protocol.TypeMarket && o.Price < level.Price {
				return
			}
		} else {
			if len(b.bids) == 0 {
				return
			}
			level = &b.bids[0]
			if o.Type != protocol.TypeMarket && o.Price > level.Price {
				return
			}
		}

		inner := 0
		for passive := level.head; o.Remaining > 0 && passive != nil; {
			if inner++; inner > MaxOrdersAtPriceLevel {
				panic("orderbook: unbounded level walk")
			}
			next := passive.next

			qty := o.Remaining
			if passive.Remaining < qty {
				qty = passive.Remaining
			}

			// Legs are assigned by participant side, not by role.
			if buy {
				out.Append(protocol.TradeMessage(b.Symbol,
					o.UserID, o.UserOrderID, o.ClientID,
					passive.UserID, passive.UserOrderID, passive.ClientID,
					level.Price, qty))
			} else {
				out.Append(protocol.TradeMessage(b.Symbol,
					passive.UserID, passive.UserOrderID, passive.ClientID,
					o.UserID, o.UserOrderID, o.ClientID,
					level.Price, qty))
			}

			o.fill(qty)
			passive.fill(qty)
			level.TotalQty -= qty

			if passive.Filled() {
				b.lookup.remove(MakeOrderKey(passive.UserID, passive.UserOrderID))
				level.Remove(passive)
				b.pool.Free(passive.slot)
			}

			passive = next
		}

		if level.Empty() {
			if buy {
				b.asks = removeLevel(b.asks, 0)
			} else {
				b.bids = removeLevel(b.bids, 0)
			}
		}
	}
}

// rest inserts the residual limit order at its own price. Returns
// false when a capacity policy dropped it.
func (b *OrderBook) rest(o *Order) bool {
	var levels []PriceLevel
	desc := o.Side == protocol.SideBuy
	if desc {
		levels = b.bids
	} else {
		levels = b.asks
	}

	idx := findLevel(levels, o.Price, desc)
	if idx < 0 {
		if len(levels) == cap(levels) {
			b.stats.LevelDrops++
			return false
		}
		levels, idx = insertLevel(levels, o.Price, desc)
		if desc {
			b.bids = levels
		} else {
			b.asks = levels
		}
	}

	level := &levels[idx]
	level.Enqueue(o)

	key := MakeOrderKey(o.UserID, o.UserOrderID)
	if !b.lookup.insert(key, orderLocation{side: o.Side, price: o.Price, order: o}) {
		b.stats.IndexDrops++
		level.TotalQty -= o.Remaining
		level.Remove(o)
		if level.Empty() {
			if desc {
				b.bids = removeLevel(b.bids, idx)
			} else {
				b.asks = removeLevel(b.asks, idx)
			}
		}
		return false
	}
	return true
}

// ---------------------------------------------------------------------
// CancelOrder
// ---------------------------------------------------------------------

// CancelOrder is idempotent from the client's point of view: a
// CancelAck is emitted whether or not the order is live. reqClient
// routes the ack when no live order names an owner.
func (b *OrderBook) CancelOrder(userID, userOrderID, reqClient uint32, out *protocol.OutputBuffer) {
	key := MakeOrderKey(userID, userOrderID)
	loc, found := b.lookup.find(key)
	if !found {
		out.Append(protocol.CancelAckMessage(b.Symbol, userID, userOrderID, reqClient))
		return
	}

	o := loc.order
	desc := loc.side == protocol.SideBuy
	var levels []PriceLevel
	if desc {
		levels = b.bids
	} else {
		levels = b.asks
	}

	if idx := findLevel(levels, loc.price, desc); idx >= 0 {
		level := &levels[idx]
		level.TotalQty -= o.Remaining
		level.Remove(o)
		if level.Empty() {
			if desc {
				b.bids = removeLevel(b.bids, idx)
			} else {
				b.asks = removeLevel(b.asks, idx)
			}
		}
	}

	clientID := o.ClientID
	b.pool.Free(o.slot)
	b.lookup.remove(key)

	out.Append(protocol.CancelAckMessage(b.Symbol, userID, userOrderID, clientID))

	b.checkTopOfBook(out)
}

// CancelClientOrders revokes every resting order owned by clientID;
// used when a stream client disconnects. Identities are gathered
// before any mutation so the walk never observes its own removals.
// Returns the number of orders cancelled.
func (b *OrderBook) CancelClientOrders(clientID uint32, out *protocol.OutputBuffer) int {
	type ident struct{ user, order uint32 }
	var victims []ident

	collect := func(levels []PriceLevel) {
		for i := range levels {
			for o := levels[i].head; o != nil; o = o.next {
				if o.ClientID == clientID {
					victims = append(victims, ident{o.UserID, o.UserOrderID})
				}
			}
		}
	}
	collect(b.bids)
	collect(b.asks)

	for _, v := range victims {
		b.CancelOrder(v.user, v.order, clientID, out)
	}
	return len(victims)
}

// ---------------------------------------------------------------------
// Flush
// ---------------------------------------------------------------------

// Flush cancels everything: a CancelAck per resting order (bids first,
// then asks, each level walked head-to-tail), then the teardown, then
// a single top-of-book check that reports the eliminations.
func (b *OrderBook) Flush(out *protocol.OutputBuffer) {
	drain := func(levels []PriceLevel) {
		for i := range levels {
			level := &levels[i]
			for o := level.head; o != nil; {
				next := o.next
				out.Append(protocol.CancelAckMessage(b.Symbol, o.UserID, o.UserOrderID, o.ClientID))
				b.pool.Free(o.slot)
				o = next
			}
			*level = PriceLevel{}
		}
	}
	drain(b.bids)
	drain(b.asks)

	b.bids = b.bids[:0]
	b.asks = b.asks[:0]
	b.lookup.clear()

	b.checkTopOfBook(out)
}

// ---------------------------------------------------------------------
// Top of book
// ---------------------------------------------------------------------

func (b *OrderBook) checkTopOfBook(out *protocol.OutputBuffer) {
	bidPx, bidQty := b.BestBidPrice(), b.BestBidQty()
	askPx, askQty := b.BestAskPrice(), b.BestAskQty()

	if bidPx > 0 {
		b.bidEverActive = true
	}
	if askPx > 0 {
		b.askEverActive = true
	}

	if bidPx != b.prevBestBidPx || bidQty != b.prevBestBidQty {
		if bidPx == 0 && b.bidEverActive {
			out.Append(protocol.TopOfBookEliminatedMessage(b.Symbol, protocol.SideBuy))
		} else if bidPx > 0 {
			out.Append(protocol.TopOfBookMessage(b.Symbol, protocol.SideBuy, bidPx, bidQty))
		}
		b.prevBestBidPx = bidPx
		b.prevBestBidQty = bidQty
	}

	if askPx != b.prevBestAskPx || askQty != b.prevBestAskQty {
		if askPx == 0 && b.askEverActive {
			out.Append(protocol.TopOfBookEliminatedMessage(b.Symbol, protocol.SideSell))
		} else if askPx > 0 {
			out.Append(protocol.TopOfBookMessage(b.Symbol, protocol.SideSell, askPx, askQty))
		}
		b.prevBestAskPx = askPx
		b.prevBestAskQty = askQty
	}
}

// ---------------------------------------------------------------------
// Level array helpers
// ---------------------------------------------------------------------

// findLevel binary-searches the sorted level array. Returns -1 when
// the price has no level.
func findLevel(levels []PriceLevel, price uint32, desc bool) int {
	lo, hi := 0, len(levels)-1
	for lo <= hi {
		mid := int(uint(lo+hi) >> 1)
		p := levels[mid].Price
		if p == price {
			return mid
		}
		if (desc && p > price) || (!desc && p < price) {
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return -1
}

// insertLevel shifts the tail right and seeds a fresh level at the
// sorted position. Caller has checked capacity.
func insertLevel(levels []PriceLevel, price uint32, desc bool) ([]PriceLevel, int) {
	lo, hi := 0, len(levels)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		p := levels[mid].Price
		if (desc && p > price) || (!desc && p < price) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}

	levels = levels[:len(levels)+1]
	copy(levels[lo+1:], levels[lo:])
	levels[lo] = PriceLevel{Price: price}
	return levels, lo
}

func removeLevel(levels []PriceLevel, idx int) []PriceLevel {
	copy(levels[idx:], levels[idx+1:])
	levels[len(levels)-1] = PriceLevel{} // drop stale order links
	return levels[:len(levels)-1]
}
