package orderbook

import (
	"matchd/infra/memory"
	"matchd/protocol"
)

// Order is a pool-owned order record. The next/prev links embed the
// price-level FIFO directly in the record, so resting an order needs
// no side allocation. The symbol is implied by the book holding the
// order and is deliberately not stored here.
type Order struct {
	UserID      uint32
	UserOrderID uint32
	Price       uint32 // 0 = market order
	Quantity    uint32 // original quantity
	Remaining   uint32
	ClientID    uint32
	Side        protocol.Side
	Type        protocol.OrderType
	Ts          uint64

	slot uint32 // index of this record in its pool
	next *Order
	prev *Order
}

// OrderPool is the fixed slab the hot path leases order records from.
type OrderPool = memory.Pool[Order]

func NewOrderPool(capacity int) *OrderPool {
	return memory.NewPool[Order](capacity)
}

func (o *Order) init(msg *protocol.InputMessage, clientID uint32, ts uint64, slot uint32) {
	o.UserID = msg.UserID
	o.UserOrderID = msg.UserOrderID
	o.Price = msg.Price
	o.Quantity = msg.Quantity
	o.Remaining = msg.Quantity
	o.ClientID = clientID
	o.Side = msg.Side
	if msg.Price == 0 {
		o.Type = protocol.TypeMarket
	} else {
		o.Type = protocol.TypeLimit
	}
	o.Ts = ts
	o.slot = slot
	o.next = nil
	o.prev = nil
}

// Filled reports whether the order has no remaining quantity.
func (o *Order) Filled() bool {
	return o.Remaining == 0
}

// fill consumes up to qty and returns the amount actually filled.
func (o *Order) fill(qty uint32) uint32 {
	if qty > o.Remaining {
		qty = o.Remaining
	}
	o.Remaining -= qty
	return qty
}

// Next supports read-only FIFO traversal.
func (o *Order) Next() *Order {
	return o.next
}
