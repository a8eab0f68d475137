package protocol

import "encoding/binary"

// Binary wire dialect: packed frames, big-endian integers, 8-byte
// NUL-padded symbols. Every frame opens with the magic byte followed
// by the message type, so the TCP scanner can interleave binary and
// CSV clients on the same port.

const (
	// BinaryMagic identifies a binary frame ('M' for Match).
	BinaryMagic = 0x4D

	// BinarySymbolLen is the symbol width on the binary wire. Longer
	// symbols are truncated, as in the CSV-to-binary bridge.
	BinarySymbolLen = 8
)

// Input frame types.
const (
	binNewOrder = 'N'
	binCancel   = 'C'
	binFlush    = 'F'
)

// Output frame types.
const (
	binAck       = 'A'
	binCancelAck = 'X'
	binTrade     = 'T'
	binTopOfBook = 'B'
)

// Frame sizes, header included.
const (
	BinaryNewOrderSize  = 2 + 4 + BinarySymbolLen + 4 + 4 + 1 + 4
	BinaryCancelSize    = 2 + 4 + 4
	BinaryFlushSize     = 2
	BinaryAckSize       = 2 + BinarySymbolLen + 4 + 4
	BinaryCancelAckSize = 2 + BinarySymbolLen + 4 + 4
	BinaryTradeSize     = 2 + BinarySymbolLen + 4*6
	BinaryTopOfBookSize = 2 + BinarySymbolLen + 1 + 4 + 4 + 1 // trailing pad byte
)

// IsBinary reports whether data opens a binary frame.
func IsBinary(data []byte) bool {
	return len(data) >= 2 && data[0] == BinaryMagic
}

// BinaryInputFrameSize returns the full frame length implied by the
// two-byte header, or 0 if the type byte is unknown.
func BinaryInputFrameSize(data []byte) int {
	if !IsBinary(data) {
		return 0
	}
	switch data[1] {
	case binNewOrder:
		return BinaryNewOrderSize
	case binCancel:
		return BinaryCancelSize
	case binFlush:
		return BinaryFlushSize
	}
	return 0
}

// DecodeBinaryInput decodes one input frame. It returns the number of
// bytes consumed; ok is false when the buffer holds no complete,
// well-formed frame yet.
func DecodeBinaryInput(data []byte) (msg InputMessage, n int, ok bool) {
	size := BinaryInputFrameSize(data)
	if size == 0 || len(data) < size {
		return msg, 0, false
	}

	switch data[1] {
	case binNewOrder:
		msg.Kind = KindNewOrder
		msg.UserID = binary.BigEndian.Uint32(data[2:])
		copy(msg.Symbol[:BinarySymbolLen], data[6:6+BinarySymbolLen])
		msg.Price = binary.BigEndian.Uint32(data[14:])
		msg.Quantity = binary.BigEndian.Uint32(data[18:])
		if s := Side(data[22]); s == SideBuy || s == SideSell {
			msg.Side = s
		} else {
			return InputMessage{}, size, false
		}
		msg.UserOrderID = binary.BigEndian.Uint32(data[23:])
		if msg.Quantity == 0 || msg.Symbol.IsZero() {
			return InputMessage{}, size, false
		}

	case binCancel:
		msg.Kind = KindCancel
		msg.UserID = binary.BigEndian.Uint32(data[2:])
		msg.UserOrderID = binary.BigEndian.Uint32(data[6:])

	case binFlush:
		msg.Kind = KindFlush
	}

	return msg, size, true
}

// AppendBinaryInput encodes m as a binary input frame. Used by the
// Kafka gateway tests and bundled load tools; servers only decode.
func AppendBinaryInput(dst []byte, m *InputMessage) []byte {
	switch m.Kind {
	case KindNewOrder:
		dst = append(dst, BinaryMagic, binNewOrder)
		dst = binary.BigEndian.AppendUint32(dst, m.UserID)
		dst = appendBinarySymbol(dst, m.Symbol)
		dst = binary.BigEndian.AppendUint32(dst, m.Price)
		dst = binary.BigEndian.AppendUint32(dst, m.Quantity)
		dst = append(dst, byte(m.Side))
		dst = binary.BigEndian.AppendUint32(dst, m.UserOrderID)
	case KindCancel:
		dst = append(dst, BinaryMagic, binCancel)
		dst = binary.BigEndian.AppendUint32(dst, m.UserID)
		dst = binary.BigEndian.AppendUint32(dst, m.UserOrderID)
	case KindFlush:
		dst = append(dst, BinaryMagic, binFlush)
	}
	return dst
}

// AppendBinaryOutput encodes m as a binary output frame.
func AppendBinaryOutput(dst []byte, m *OutputMessage) []byte {
	switch m.Kind {
	case KindAck:
		dst = append(dst, BinaryMagic, binAck)
		dst = appendBinarySymbol(dst, m.Symbol)
		dst = binary.BigEndian.AppendUint32(dst, m.UserID)
		dst = binary.BigEndian.AppendUint32(dst, m.UserOrderID)

	case KindCancelAck:
		dst = append(dst, BinaryMagic, binCancelAck)
		dst = appendBinarySymbol(dst, m.Symbol)
		dst = binary.BigEndian.AppendUint32(dst, m.UserID)
		dst = binary.BigEndian.AppendUint32(dst, m.UserOrderID)

	case KindTrade:
		dst = append(dst, BinaryMagic, binTrade)
		dst = appendBinarySymbol(dst, m.Symbol)
		dst = binary.BigEndian.AppendUint32(dst, m.BuyUserID)
		dst = binary.BigEndian.AppendUint32(dst, m.BuyOrderID)
		dst = binary.BigEndian.AppendUint32(dst, m.SellUserID)
		dst = binary.BigEndian.AppendUint32(dst, m.SellOrderID)
		dst = binary.BigEndian.AppendUint32(dst, m.Price)
		dst = binary.BigEndian.AppendUint32(dst, m.Quantity)

	case KindTopOfBook:
		dst = append(dst, BinaryMagic, binTopOfBook)
		dst = appendBinarySymbol(dst, m.Symbol)
		dst = append(dst, byte(m.Side))
		// Price 0 marks an eliminated side on this wire.
		dst = binary.BigEndian.AppendUint32(dst, m.Price)
		dst = binary.BigEndian.AppendUint32(dst, m.Quantity)
		dst = append(dst, 0)
	}
	return dst
}

// DecodeBinaryOutput decodes one output frame; the inverse of
// AppendBinaryOutput, used by client tooling and tests.
func DecodeBinaryOutput(data []byte) (msg OutputMessage, n int, ok bool) {
	if !IsBinary(data) {
		return msg, 0, false
	}

	readSymbol := func(off int) Symbol {
		var s Symbol
		copy(s[:BinarySymbolLen], data[off:off+BinarySymbolLen])
		return s
	}

	switch data[1] {
	case binAck, binCancelAck:
		if len(data) < BinaryAckSize {
			return msg, 0, false
		}
		if data[1] == binAck {
			msg.Kind = KindAck
		} else {
			msg.Kind = KindCancelAck
		}
		msg.Symbol = readSymbol(2)
		msg.UserID = binary.BigEndian.Uint32(data[10:])
		msg.UserOrderID = binary.BigEndian.Uint32(data[14:])
		return msg, BinaryAckSize, true

	case binTrade:
		if len(data) < BinaryTradeSize {
			return msg, 0, false
		}
		msg.Kind = KindTrade
		msg.Symbol = readSymbol(2)
		msg.BuyUserID = binary.BigEndian.Uint32(data[10:])
		msg.BuyOrderID = binary.BigEndian.Uint32(data[14:])
		msg.SellUserID = binary.BigEndian.Uint32(data[18:])
		msg.SellOrderID = binary.BigEndian.Uint32(data[22:])
		msg.Price = binary.BigEndian.Uint32(data[26:])
		msg.Quantity = binary.BigEndian.Uint32(data[30:])
		return msg, BinaryTradeSize, true

	case binTopOfBook:
		if len(data) < BinaryTopOfBookSize {
			return msg, 0, false
		}
		msg.Kind = KindTopOfBook
		msg.Symbol = readSymbol(2)
		msg.Side = Side(data[10])
		msg.Price = binary.BigEndian.Uint32(data[11:])
		msg.Quantity = binary.BigEndian.Uint32(data[15:])
		msg.Eliminated = msg.Price == 0
		return msg, BinaryTopOfBookSize, true
	}

	return msg, 0, false
}

func appendBinarySymbol(dst []byte, sym Symbol) []byte {
	return append(dst, sym[:BinarySymbolLen]...)
}
