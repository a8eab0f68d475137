package protocol

import (
	"strconv"
	"strings"
)

// CSV wire dialect.
//
// Input:
//	N, user, symbol, price, qty, side, userOrderId
//	C, user, userOrderId
//	F
// Output:
//	A, userId, userOrderId
//	C, userId, userOrderId
//	T, userIdBuy, userOrderIdBuy, userIdSell, userOrderIdSell, price, qty
//	B, side, price, totalQuantity      (eliminated side: "B, side, -, -")
//
// Blank lines and '#' comments are ignored.

// ParseCSVLine parses one input line. ok is false for blanks, comments
// and malformed messages; those are silently skipped by callers.
func ParseCSVLine(line string) (msg InputMessage, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '#' {
		return msg, false
	}

	fields := strings.Split(line, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	switch fields[0] {
	case "N":
		if len(fields) != 7 {
			return msg, false
		}
		userID, ok1 := parseU32(fields[1])
		price, ok3 := parseU32(fields[3])
		qty, ok4 := parseU32(fields[4])
		side, ok5 := parseSide(fields[5])
		orderID, ok6 := parseU32(fields[6])
		if !(ok1 && ok3 && ok4 && ok5 && ok6) || fields[2] == "" || qty == 0 {
			return msg, false
		}
		return NewOrderMessage(userID, SymbolFromString(fields[2]), price, qty, side, orderID), true

	case "C":
		if len(fields) != 3 {
			return msg, false
		}
		userID, ok1 := parseU32(fields[1])
		orderID, ok2 := parseU32(fields[2])
		if !ok1 || !ok2 {
			return msg, false
		}
		return CancelMessage(userID, orderID), true

	case "F":
		if len(fields) != 1 {
			return msg, false
		}
		return FlushMessage(), true
	}

	return msg, false
}

func parseU32(s string) (uint32, bool) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

func parseSide(s string) (Side, bool) {
	switch s {
	case "B":
		return SideBuy, true
	case "S":
		return SideSell, true
	}
	return 0, false
}

// AppendCSV formats m and appends it to dst, newline-terminated.
// Appending into a caller-owned buffer keeps the output path free of
// per-message allocation.
func AppendCSV(dst []byte, m *OutputMessage) []byte {
	switch m.Kind {
	case KindAck:
		dst = append(dst, 'A')
		dst = appendField(dst, uint64(m.UserID))
		dst = appendField(dst, uint64(m.UserOrderID))

	case KindCancelAck:
		dst = append(dst, 'C')
		dst = appendField(dst, uint64(m.UserID))
		dst = appendField(dst, uint64(m.UserOrderID))

	case KindTrade:
		dst = append(dst, 'T')
		dst = appendField(dst, uint64(m.BuyUserID))
		dst = appendField(dst, uint64(m.BuyOrderID))
		dst = appendField(dst, uint64(m.SellUserID))
		dst = appendField(dst, uint64(m.SellOrderID))
		dst = appendField(dst, uint64(m.Price))
		dst = appendField(dst, uint64(m.Quantity))

	case KindTopOfBook:
		dst = append(dst, 'B', ',', ' ', byte(m.Side))
		if m.Eliminated {
			dst = append(dst, ", -, -"...)
		} else {
			dst = appendField(dst, uint64(m.Price))
			dst = appendField(dst, uint64(m.Quantity))
		}
	}
	return append(dst, '\n')
}

// FormatCSV is the convenience form used off the hot path.
func FormatCSV(m *OutputMessage) string {
	b := AppendCSV(make([]byte, 0, 96), m)
	return string(b[:len(b)-1])
}

func appendField(dst []byte, v uint64) []byte {
	dst = append(dst, ',', ' ')
	return strconv.AppendUint(dst, v, 10)
}
