package protocol

import "net/netip"

// MaxSymbolLength is the fixed width of a symbol identifier on the wire
// and in every in-memory index.
const MaxSymbolLength = 16

// Symbol is a fixed-width, NUL-padded ASCII instrument identifier.
// The zero value is the empty symbol and doubles as the "empty" marker
// in the symbol map.
type Symbol [MaxSymbolLength]byte

func SymbolFromString(s string) Symbol {
	var sym Symbol
	n := len(s)
	if n > MaxSymbolLength {
		n = MaxSymbolLength
	}
	copy(sym[:], s[:n])
	return sym
}

func (s Symbol) String() string {
	for i := 0; i < MaxSymbolLength; i++ {
		if s[i] == 0 {
			return string(s[:i])
		}
	}
	return string(s[:])
}

func (s Symbol) IsZero() bool {
	return s[0] == 0
}

// Side uses the wire characters directly so codecs never translate.
type Side uint8

const (
	SideBuy  Side = 'B'
	SideSell Side = 'S'
)

type OrderType uint8

const (
	TypeMarket OrderType = iota // price == 0
	TypeLimit                   // price > 0
)

// Client id conventions shared by the registry, the router, and the
// processors.
const (
	// BroadcastClient addresses the market-data fan-out rather than a
	// single client.
	BroadcastClient uint32 = 0

	// DatagramClientBase is the first id handed to datagram clients;
	// stream clients live strictly below it.
	DatagramClientBase uint32 = 0x8000_0000

	// InvalidClient is the sentinel for "no client".
	InvalidClient uint32 = ^uint32(0)
)

// IsDatagramClient reports whether id was assigned by the UDP receiver.
func IsDatagramClient(id uint32) bool {
	return id > DatagramClientBase && id != InvalidClient
}

// ---------------------------------------------------------------------
// Input messages
// ---------------------------------------------------------------------

type InputKind uint8

const (
	KindNewOrder InputKind = iota
	KindCancel
	KindFlush
	// KindCancelClient is generated internally when a stream client
	// disconnects. It never appears on the wire; it rides the input
	// queues so client-wide cancellation runs on the engine thread
	// with no concurrent input, exactly like Flush.
	KindCancelClient
)

// InputMessage is the parsed form of every inbound command. It is a
// flat tagged record rather than an interface so envelopes stay
// pointer-free and queue slots can be reused without allocation.
type InputMessage struct {
	Kind        InputKind
	Side        Side
	UserID      uint32
	UserOrderID uint32
	Price       uint32 // 0 = market order
	Quantity    uint32
	Symbol      Symbol
}

func NewOrderMessage(userID uint32, sym Symbol, price, qty uint32, side Side, userOrderID uint32) InputMessage {
	return InputMessage{
		Kind:        KindNewOrder,
		Side:        side,
		UserID:      userID,
		UserOrderID: userOrderID,
		Price:       price,
		Quantity:    qty,
		Symbol:      sym,
	}
}

func CancelMessage(userID, userOrderID uint32) InputMessage {
	return InputMessage{Kind: KindCancel, UserID: userID, UserOrderID: userOrderID}
}

func FlushMessage() InputMessage {
	return InputMessage{Kind: KindFlush}
}

// ---------------------------------------------------------------------
// Output messages
// ---------------------------------------------------------------------

type OutputKind uint8

const (
	KindAck OutputKind = iota
	KindCancelAck
	KindTrade
	KindTopOfBook
)

// OutputMessage is the flat union of everything the engine emits.
// Routing ids travel with the message so the output router never has
// to consult engine state.
type OutputMessage struct {
	Kind   OutputKind
	Side   Side // top-of-book only
	Symbol Symbol

	// Ack / CancelAck
	UserID      uint32
	UserOrderID uint32
	ClientID    uint32

	// Trade legs, assigned by participant side.
	BuyUserID    uint32
	BuyOrderID   uint32
	SellUserID   uint32
	SellOrderID  uint32
	BuyClientID  uint32
	SellClientID uint32

	// Trade price/qty, or top-of-book aggregate.
	Price    uint32
	Quantity uint32

	// Eliminated marks a top-of-book side with no remaining liquidity.
	Eliminated bool
}

func AckMessage(sym Symbol, userID, userOrderID, clientID uint32) OutputMessage {
	return OutputMessage{Kind: KindAck, Symbol: sym, UserID: userID, UserOrderID: userOrderID, ClientID: clientID}
}

func CancelAckMessage(sym Symbol, userID, userOrderID, clientID uint32) OutputMessage {
	return OutputMessage{Kind: KindCancelAck, Symbol: sym, UserID: userID, UserOrderID: userOrderID, ClientID: clientID}
}

func TradeMessage(sym Symbol, buyUser, buyOrder, buyClient, sellUser, sellOrder, sellClient, price, qty uint32) OutputMessage {
	return OutputMessage{
		Kind:         KindTrade,
		Symbol:       sym,
		BuyUserID:    buyUser,
		BuyOrderID:   buyOrder,
		BuyClientID:  buyClient,
		SellUserID:   sellUser,
		SellOrderID:  sellOrder,
		SellClientID: sellClient,
		Price:        price,
		Quantity:     qty,
	}
}

func TopOfBookMessage(sym Symbol, side Side, price, qty uint32) OutputMessage {
	return OutputMessage{Kind: KindTopOfBook, Symbol: sym, Side: side, Price: price, Quantity: qty}
}

func TopOfBookEliminatedMessage(sym Symbol, side Side) OutputMessage {
	return OutputMessage{Kind: KindTopOfBook, Symbol: sym, Side: side, Eliminated: true}
}

// ---------------------------------------------------------------------
// Envelopes
// ---------------------------------------------------------------------

// InputEnvelope wraps an input message with its routing metadata for
// transit through the SPSC queues.
type InputEnvelope struct {
	Msg      InputMessage
	ClientID uint32
	Addr     netip.AddrPort // set for datagram clients only
	Seq      uint64
}

// OutputEnvelope carries one engine output toward the router.
// ClientID selects unicast delivery; BroadcastClient fans out.
type OutputEnvelope struct {
	Msg      OutputMessage
	ClientID uint32
	Seq      uint64
}
