package broadcaster

import (
	"google.golang.org/protobuf/encoding/protowire"

	"matchd/protocol"
)

// Wire schema for market-data events (proto3 semantics, zero values
// omitted):
//
//	1 kind        varint ('A','C','T','B')
//	2 seq         varint
//	3 symbol      bytes
//	4 side        varint
//	5 price       varint
//	6 quantity    varint
//	7 user_id     varint
//	8 user_order  varint
//	9 buy_user    varint
//	10 buy_order  varint
//	11 sell_user  varint
//	12 sell_order varint
//	13 eliminated varint (bool)
const (
	fieldKind       = 1
	fieldSeq        = 2
	fieldSymbol     = 3
	fieldSide       = 4
	fieldPrice      = 5
	fieldQuantity   = 6
	fieldUserID     = 7
	fieldUserOrder  = 8
	fieldBuyUser    = 9
	fieldBuyOrder   = 10
	fieldSellUser   = 11
	fieldSellOrder  = 12
	fieldEliminated = 13
)

func appendUvarint(dst []byte, field protowire.Number, v uint64) []byte {
	if v == 0 {
		return dst
	}
	dst = protowire.AppendTag(dst, field, protowire.VarintType)
	return protowire.AppendVarint(dst, v)
}

// AppendEvent encodes one broadcast message.
func AppendEvent(dst []byte, m *protocol.OutputMessage, seq uint64) []byte {
	dst = appendUvarint(dst, fieldKind, uint64(m.Kind))
	dst = appendUvarint(dst, fieldSeq, seq)

	if !m.Symbol.IsZero() {
		dst = protowire.AppendTag(dst, fieldSymbol, protowire.BytesType)
		dst = protowire.AppendBytes(dst, symbolBytes(m.Symbol))
	}

	dst = appendUvarint(dst, fieldSide, uint64(m.Side))
	dst = appendUvarint(dst, fieldPrice, uint64(m.Price))
	dst = appendUvarint(dst, fieldQuantity, uint64(m.Quantity))
	dst = appendUvarint(dst, fieldUserID, uint64(m.UserID))
	dst = appendUvarint(dst, fieldUserOrder, uint64(m.UserOrderID))
	dst = appendUvarint(dst, fieldBuyUser, uint64(m.BuyUserID))
	dst = appendUvarint(dst, fieldBuyOrder, uint64(m.BuyOrderID))
	dst = appendUvarint(dst, fieldSellUser, uint64(m.SellUserID))
	dst = appendUvarint(dst, fieldSellOrder, uint64(m.SellOrderID))
	if m.Eliminated {
		dst = appendUvarint(dst, fieldEliminated, 1)
	}
	return dst
}

// DecodeEvent is the inverse of AppendEvent, for consumers and tests.
func DecodeEvent(data []byte) (m protocol.OutputMessage, seq uint64, ok bool) {
	for len(data) > 0 {
		field, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return m, 0, false
		}
		data = data[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return m, 0, false
			}
			data = data[n:]
			switch field {
			case fieldKind:
				m.Kind = protocol.OutputKind(v)
			case fieldSeq:
				seq = v
			case fieldSide:
				m.Side = protocol.Side(v)
			case fieldPrice:
				m.Price = uint32(v)
			case fieldQuantity:
				m.Quantity = uint32(v)
			case fieldUserID:
				m.UserID = uint32(v)
			case fieldUserOrder:
				m.UserOrderID = uint32(v)
			case fieldBuyUser:
				m.BuyUserID = uint32(v)
			case fieldBuyOrder:
				m.BuyOrderID = uint32(v)
			case fieldSellUser:
				m.SellUserID = uint32(v)
			case fieldSellOrder:
				m.SellOrderID = uint32(v)
			case fieldEliminated:
				m.Eliminated = v != 0
			}

		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return m, 0, false
			}
			data = data[n:]
			if field == fieldSymbol {
				m.Symbol = protocol.SymbolFromString(string(v))
			}

		default:
			n := protowire.ConsumeFieldValue(field, typ, data)
			if n < 0 {
				return m, 0, false
			}
			data = data[n:]
		}
	}
	return m, seq, true
}

func symbolBytes(sym protocol.Symbol) []byte {
	n := 0
	for n < len(sym) && sym[n] != 0 {
		n++
	}
	return sym[:n]
}
