package network

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net"
	"net/netip"
	"sync/atomic"

	"matchd/protocol"
)

// UDPServer receives datagram clients on one shared socket. A datagram
// may pack several messages: binary frames back to back, or CSV lines
// separated by newlines. The dialect is detected per datagram, replies
// go back to the source address in the same dialect.
type UDPServer struct {
	addr string
	pc   *net.UDPConn
	reg  *Registry
	in   *Ingress

	datagrams   atomic.Uint64
	messages    atomic.Uint64
	parseErrors atomic.Uint64
}

func NewUDPServer(addr string, reg *Registry, in *Ingress) *UDPServer {
	return &UDPServer{addr: addr, reg: reg, in: in}
}

func (s *UDPServer) Listen() error {
	laddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return err
	}
	pc, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return err
	}
	s.pc = pc
	log.Printf("[udp] listening on %s", pc.LocalAddr())
	return nil
}

// Serve reads datagrams until ctx is cancelled.
func (s *UDPServer) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.pc.Close()
	}()

	buf := make([]byte, 64<<10)
	for {
		n, raddr, err := s.pc.ReadFromUDPAddrPort(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if n == 0 {
			continue
		}
		s.datagrams.Add(1)

		data := buf[:n]
		codec := CodecCSV
		if protocol.IsBinary(data) {
			codec = CodecBinary
		}
		id := s.reg.AddDatagram(raddr, func() Sink {
			return newDatagramSink(s.pc, raddr, codec)
		})

		if codec == CodecBinary {
			s.consumeBinary(data, id, raddr)
		} else {
			s.consumeCSV(data, id, raddr)
		}
	}
}

func (s *UDPServer) consumeBinary(data []byte, id uint32, raddr netip.AddrPort) {
	for len(data) >= 2 {
		msg, n, ok := protocol.DecodeBinaryInput(data)
		if n == 0 {
			// Truncated or unrecognized tail; the rest of the datagram
			// is unusable.
			s.parseErrors.Add(1)
			return
		}
		if ok {
			s.messages.Add(1)
			s.in.Submit(&msg, id, raddr)
		} else {
			s.parseErrors.Add(1)
		}
		data = data[n:]
	}
}

func (s *UDPServer) consumeCSV(data []byte, id uint32, raddr netip.AddrPort) {
	for len(data) > 0 {
		line := data
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line = data[:i]
			data = data[i+1:]
		} else {
			data = nil
		}
		msg, ok := protocol.ParseCSVLine(string(line))
		if !ok {
			continue
		}
		s.messages.Add(1)
		s.in.Submit(&msg, id, raddr)
	}
}

func (s *UDPServer) Datagrams() uint64   { return s.datagrams.Load() }
func (s *UDPServer) Messages() uint64    { return s.messages.Load() }
func (s *UDPServer) ParseErrors() uint64 { return s.parseErrors.Load() }
