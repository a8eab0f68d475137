package network

import (
	"log"
	"net"
	"sync"
	"sync/atomic"

	"matchd/protocol"
)

// Multicast publishes the broadcast stream as binary frames to a UDP
// multicast group. Delivery is best effort; subscribers that need a
// gap-free feed should use the sequence numbers to detect loss.
type Multicast struct {
	mu   sync.Mutex
	conn *net.UDPConn
	buf  []byte

	sent   atomic.Uint64
	errors atomic.Uint64
}

func NewMulticast(group string) (*Multicast, error) {
	addr, err := net.ResolveUDPAddr("udp", group)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, err
	}
	log.Printf("[multicast] publishing to %s", addr)
	return &Multicast{conn: conn, buf: make([]byte, 0, 128)}, nil
}

func (m *Multicast) Publish(msg *protocol.OutputMessage, seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.buf = protocol.AppendBinaryOutput(m.buf[:0], msg)
	if _, err := m.conn.Write(m.buf); err != nil {
		m.errors.Add(1)
		return
	}
	m.sent.Add(1)
}

func (m *Multicast) Close() error { return m.conn.Close() }

func (m *Multicast) Sent() uint64   { return m.sent.Load() }
func (m *Multicast) Errors() uint64 { return m.errors.Load() }
