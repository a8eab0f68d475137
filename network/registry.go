package network

import (
	"net/netip"
	"sync"

	"matchd/protocol"
)

// Registry maps client ids to delivery sinks. Stream clients get ids
// from 1 upward; datagram clients get ids above DatagramClientBase,
// keyed by source address so a chatty UDP client keeps one identity.
type Registry struct {
	mu         sync.RWMutex
	sinks      map[uint32]Sink
	byAddr     map[netip.AddrPort]uint32
	nextStream uint32
	nextDgram  uint32
	peak       int
}

func NewRegistry() *Registry {
	return &Registry{
		sinks:  make(map[uint32]Sink),
		byAddr: make(map[netip.AddrPort]uint32),
	}
}

// AddStream registers a connection-oriented client.
func (r *Registry) AddStream(s Sink) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextStream++
	id := r.nextStream
	r.sinks[id] = s
	if len(r.sinks) > r.peak {
		r.peak = len(r.sinks)
	}
	return id
}

// AddDatagram registers (or looks up) a datagram client by source
// address. make is only invoked for a new address.
func (r *Registry) AddDatagram(addr netip.AddrPort, make func() Sink) uint32 {
	r.mu.RLock()
	id, ok := r.byAddr[addr]
	r.mu.RUnlock()
	if ok {
		return id
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byAddr[addr]; ok {
		return id
	}
	r.nextDgram++
	id = protocol.DatagramClientBase + r.nextDgram
	r.sinks[id] = make()
	r.byAddr[addr] = id
	if len(r.sinks) > r.peak {
		r.peak = len(r.sinks)
	}
	return id
}

// Remove drops the client and closes its sink.
func (r *Registry) Remove(id uint32) {
	r.mu.Lock()
	s, ok := r.sinks[id]
	if ok {
		delete(r.sinks, id)
	}
	r.mu.Unlock()
	if ok {
		s.Close()
	}
}

func (r *Registry) Get(id uint32) (Sink, bool) {
	r.mu.RLock()
	s, ok := r.sinks[id]
	r.mu.RUnlock()
	return s, ok
}

// Each calls fn for every registered client. Holds the read lock for
// the duration; fn must not re-enter the registry.
func (r *Registry) Each(fn func(id uint32, s Sink)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, s := range r.sinks {
		fn(id, s)
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinks)
}

// Peak reports the high-water client count, for the shutdown summary.
func (r *Registry) Peak() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.peak
}

// CloseAll tears down every sink, for shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sinks {
		s.Close()
		delete(r.sinks, id)
	}
	for addr := range r.byAddr {
		delete(r.byAddr, addr)
	}
}
