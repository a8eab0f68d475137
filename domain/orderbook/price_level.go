package orderbook

// PriceLevel groups all resting orders at one price on one side.
// The FIFO is intrusive (links live in the Order) and append-only at
// the tail, so FIFO position alone encodes time priority.
type PriceLevel struct {
	Price    uint32
	TotalQty uint32 // sum of Remaining over the FIFO

	head *Order
	tail *Order

	OrderCount int
}

// Enqueue appends o at the tail.
func (l *PriceLevel) Enqueue(o *Order) {
	o.next = nil
	o.prev = l.tail
	if l.tail != nil {
		l.tail.next = o
	} else {
		l.head = o
	}
	l.tail = o

	l.TotalQty += o.Remaining
	l.OrderCount++
}

// Remove unlinks o in O(1). The caller owns the TotalQty adjustment:
// trades decrement it per fill, cancels subtract the order's remainder.
func (l *PriceLevel) Remove(o *Order) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		l.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		l.tail = o.prev
	}
	o.next = nil
	o.prev = nil
	l.OrderCount--
}

func (l *PriceLevel) Empty() bool {
	return l.head == nil
}

// Head supports read-only traversal.
func (l *PriceLevel) Head() *Order {
	return l.head
}
