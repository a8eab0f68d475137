package engine

import "matchd/protocol"

// Two open-addressing tables back the multi-symbol router: symbol →
// book index, and order key → symbol (cancels arrive without a
// symbol). Same probing discipline as the per-book order index.
const (
	hashEmpty     uint64 = 0
	hashTombstone uint64 = ^uint64(0)
	maxProbe             = 64
)

// hashSymbol is FNV-1a over the fixed-width symbol bytes.
func hashSymbol(sym protocol.Symbol) uint64 {
	h := uint64(14695981039346656037)
	for i := 0; i < len(sym) && sym[i] != 0; i++ {
		h ^= uint64(sym[i])
		h *= 1099511628211
	}
	return h
}

// symbolMap maps a symbol to its slot in the partition's books array.
// Books live for the life of the partition, so there is no removal
// and the zero symbol marks an empty slot.
type symbolMap struct {
	syms []protocol.Symbol
	idxs []uint32
	mask uint64
	size int
}

func newSymbolMap(capacity int) symbolMap {
	sz := uint64(1)
	for sz < uint64(capacity)*2 {
		sz <<= 1
	}
	return symbolMap{
		syms: make([]protocol.Symbol, sz),
		idxs: make([]uint32, sz),
		mask: sz - 1,
	}
}

func (m *symbolMap) insert(sym protocol.Symbol, idx uint32) bool {
	i := hashSymbol(sym) & m.mask
	for p := 0; p < maxProbe; p++ {
		if m.syms[i].IsZero() {
			m.syms[i] = sym
			m.idxs[i] = idx
			m.size++
			return true
		}
		if m.syms[i] == sym {
			m.idxs[i] = idx
			return true
		}
		i = (i + 1) & m.mask
	}
	return false
}

func (m *symbolMap) find(sym protocol.Symbol) (uint32, bool) {
	i := hashSymbol(sym) & m.mask
	for p := 0; p < maxProbe; p++ {
		if m.syms[i].IsZero() {
			return 0, false
		}
		if m.syms[i] == sym {
			return m.idxs[i], true
		}
		i = (i + 1) & m.mask
	}
	return 0, false
}

// orderSymbolMap tracks which symbol an order key belongs to, so a
// Cancel can find its book. Tombstones keep probe chains intact.
type orderSymbolMap struct {
	keys []uint64
	syms []protocol.Symbol
	mask uint64
	size int
}

func newOrderSymbolMap(capacity int) orderSymbolMap {
	sz := uint64(1)
	for sz < uint64(capacity)*2 {
		sz <<= 1
	}
	return orderSymbolMap{
		keys: make([]uint64, sz),
		syms: make([]protocol.Symbol, sz),
		mask: sz - 1,
	}
}

func mix(k uint64) uint64 {
	k ^= k >> 30
	k *= 0xbf58476d1ce4e5b9
	k ^= k >> 27
	k *= 0x94d049bb133111eb
	k ^= k >> 31
	return k
}

func (m *orderSymbolMap) insert(key uint64, sym protocol.Symbol) bool {
	i := mix(key) & m.mask
	for p := 0; p < maxProbe; p++ {
		k := m.keys[i]
		if k == hashEmpty || k == hashTombstone {
			m.keys[i] = key
			m.syms[i] = sym
			m.size++
			return true
		}
		if k == key {
			m.syms[i] = sym
			return true
		}
		i = (i + 1) & m.mask
	}
	return false
}

func (m *orderSymbolMap) find(key uint64) (protocol.Symbol, bool) {
	i := mix(key) & m.mask
	for p := 0; p < maxProbe; p++ {
		k := m.keys[i]
		if k == hashEmpty {
			return protocol.Symbol{}, false
		}
		if k == key {
			return m.syms[i], true
		}
		i = (i + 1) & m.mask
	}
	return protocol.Symbol{}, false
}

func (m *orderSymbolMap) remove(key uint64) bool {
	i := mix(key) & m.mask
	for p := 0; p < maxProbe; p++ {
		k := m.keys[i]
		if k == hashEmpty {
			return false
		}
		if k == key {
			m.keys[i] = hashTombstone
			m.syms[i] = protocol.Symbol{}
			m.size--
			return true
		}
		i = (i + 1) & m.mask
	}
	return false
}

func (m *orderSymbolMap) clear() {
	for i := range m.keys {
		m.keys[i] = hashEmpty
		m.syms[i] = protocol.Symbol{}
	}
	m.size = 0
}
