package orderbook

import "matchd/protocol"

// Open-addressing index from (userID, userOrderID) to the live resting
// order. Linear probing with a hard probe cap; the table is sized so
// the cap is unreachable at the engineered load factor, making probe
// exhaustion an invariant failure rather than an expected outcome.
const (
	hashEmpty     uint64 = 0
	hashTombstone uint64 = ^uint64(0)
	maxProbe             = 64
)

// MakeOrderKey packs the order identity into the index key. The two
// sentinel keys are unreachable for any identity accepted by
// ValidOrderKey.
func MakeOrderKey(userID, userOrderID uint32) uint64 {
	return uint64(userID)<<32 | uint64(userOrderID)
}

// ValidOrderKey rejects the identities that would collide with the
// empty and tombstone sentinels. Enforced at the input boundary.
func ValidOrderKey(userID, userOrderID uint32) bool {
	k := MakeOrderKey(userID, userOrderID)
	return k != hashEmpty && k != hashTombstone
}

type orderLocation struct {
	side  protocol.Side
	price uint32
	order *Order
}

type orderMap struct {
	keys []uint64
	locs []orderLocation
	mask uint64
	size int
}

func newOrderMap(capacity int) orderMap {
	// 2x headroom keeps probe sequences short at the worst case.
	sz := uint64(1)
	for sz < uint64(capacity)*2 {
		sz <<= 1
	}
	return orderMap{
		keys: make([]uint64, sz),
		locs: make([]orderLocation, sz),
		mask: sz - 1,
	}
}

// mix is the 64->64 finalizer from splitmix64; cheap and good enough
// to spread sequential order ids across the table.
func mix(k uint64) uint64 {
	k ^= k >> 30
	k *= 0xbf58476d1ce4e5b9
	k ^= k >> 27
	k *= 0x94d049bb133111eb
	k ^= k >> 31
	return k
}

// insert returns false on probe exhaustion; the caller counts and
// drops. Tombstoned slots are reused.
func (m *orderMap) insert(key uint64, loc orderLocation) bool {
	idx := mix(key) & m.mask
	for i := 0; i < maxProbe; i++ {
		k := m.keys[idx]
		if k == hashEmpty || k == hashTombstone {
			m.keys[idx] = key
			m.locs[idx] = loc
			m.size++
			return true
		}
		if k == key {
			m.locs[idx] = loc
			return true
		}
		idx = (idx + 1) & m.mask
	}
	return false
}

func (m *orderMap) find(key uint64) (orderLocation, bool) {
	idx := mix(key) & m.mask
	for i := 0; i < maxProbe; i++ {
		k := m.keys[idx]
		if k == hashEmpty {
			return orderLocation{}, false
		}
		if k == key {
			return m.locs[idx], true
		}
		idx = (idx + 1) & m.mask
	}
	return orderLocation{}, false
}

func (m *orderMap) remove(key uint64) bool {
	idx := mix(key) & m.mask
	for i := 0; i < maxProbe; i++ {
		k := m.keys[idx]
		if k == hashEmpty {
			return false
		}
		if k == key {
			m.keys[idx] = hashTombstone
			m.locs[idx] = orderLocation{}
			m.size--
			return true
		}
		idx = (idx + 1) & m.mask
	}
	return false
}

func (m *orderMap) clear() {
	for i := range m.keys {
		m.keys[i] = hashEmpty
		m.locs[i] = orderLocation{}
	}
	m.size = 0
}
