// Package network hosts the transport edge: TCP and UDP accept paths,
// the client registry, the ingress router that feeds the partition
// queues, and the output router that delivers engine results back to
// clients and market-data taps.
package network

import (
	"bufio"
	"net"
	"net/netip"
	"sync"

	"matchd/protocol"
)

// Codec selects the wire dialect a client speaks. Detected per
// connection from the first byte (binary frames open with the magic).
type Codec uint8

const (
	CodecCSV Codec = iota
	CodecBinary
)

func (c Codec) String() string {
	if c == CodecBinary {
		return "binary"
	}
	return "csv"
}

// Sink delivers one output message to a client. Implementations must
// be safe for concurrent Send calls; the output router and the
// shutdown path may race.
type Sink interface {
	Send(m *protocol.OutputMessage) error
	Close() error
}

// streamSink writes to one TCP connection. Writes are serialized with
// a mutex and flushed per message so acks are never stuck behind the
// bufio high-water mark.
type streamSink struct {
	mu    sync.Mutex
	conn  net.Conn
	w     *bufio.Writer
	codec Codec
	buf   []byte
}

func newStreamSink(conn net.Conn, codec Codec) *streamSink {
	return &streamSink{
		conn:  conn,
		w:     bufio.NewWriterSize(conn, 64<<10),
		codec: codec,
		buf:   make([]byte, 0, 128),
	}
}

func (s *streamSink) Send(m *protocol.OutputMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf = s.buf[:0]
	if s.codec == CodecBinary {
		s.buf = protocol.AppendBinaryOutput(s.buf, m)
	} else {
		s.buf = protocol.AppendCSV(s.buf, m)
	}
	if _, err := s.w.Write(s.buf); err != nil {
		return err
	}
	return s.w.Flush()
}

func (s *streamSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	return s.conn.Close()
}

// datagramSink replies through the shared UDP socket to the client's
// source address. Closing it is a no-op; the socket outlives clients.
type datagramSink struct {
	mu    sync.Mutex
	pc    *net.UDPConn
	addr  netip.AddrPort
	codec Codec
	buf   []byte
}

func newDatagramSink(pc *net.UDPConn, addr netip.AddrPort, codec Codec) *datagramSink {
	return &datagramSink{
		pc:    pc,
		addr:  addr,
		codec: codec,
		buf:   make([]byte, 0, 128),
	}
}

func (d *datagramSink) Send(m *protocol.OutputMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.buf = d.buf[:0]
	if d.codec == CodecBinary {
		d.buf = protocol.AppendBinaryOutput(d.buf, m)
	} else {
		d.buf = protocol.AppendCSV(d.buf, m)
	}
	_, err := d.pc.WriteToUDPAddrPort(d.buf, d.addr)
	return err
}

func (d *datagramSink) Close() error { return nil }
