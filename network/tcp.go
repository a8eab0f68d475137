package network

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"

	"matchd/protocol"
)

// TCPServer accepts stream clients. Each connection speaks either the
// CSV or the binary dialect; the first byte decides (binary frames
// open with the magic), and the choice sticks for the connection.
type TCPServer struct {
	addr string
	ln   net.Listener
	reg  *Registry
	in   *Ingress
	wg   sync.WaitGroup

	accepted    atomic.Uint64
	active      atomic.Int64
	messages    atomic.Uint64
	parseErrors atomic.Uint64
}

func NewTCPServer(addr string, reg *Registry, in *Ingress) *TCPServer {
	return &TCPServer{addr: addr, reg: reg, in: in}
}

// Listen binds the socket. Split from Serve so the caller can fail
// fast on a bad address before spawning anything.
func (s *TCPServer) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	log.Printf("[tcp] listening on %s", ln.Addr())
	return nil
}

// Serve accepts until ctx is cancelled, then waits for the per-client
// readers to finish.
func (s *TCPServer) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			return err
		}
		s.accepted.Add(1)
		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *TCPServer) handle(conn net.Conn) {
	defer s.wg.Done()
	s.active.Add(1)
	defer s.active.Add(-1)

	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}

	br := bufio.NewReaderSize(conn, 64<<10)
	first, err := br.Peek(1)
	if err != nil {
		conn.Close()
		return
	}
	codec := CodecCSV
	if first[0] == protocol.BinaryMagic {
		codec = CodecBinary
	}

	sink := newStreamSink(conn, codec)
	id := s.reg.AddStream(sink)
	log.Printf("[tcp] client %d connected from %s (%s)", id, conn.RemoteAddr(), codec)

	defer func() {
		s.reg.Remove(id)
		// Revoke the client's resting orders once the connection dies.
		s.in.Disconnect(id)
		log.Printf("[tcp] client %d disconnected", id)
	}()

	if codec == CodecBinary {
		s.readBinary(br, id)
	} else {
		s.readCSV(br, id)
	}
}

func (s *TCPServer) readCSV(br *bufio.Reader, id uint32) {
	sc := bufio.NewScanner(br)
	sc.Buffer(make([]byte, 0, 4096), 64<<10)
	for sc.Scan() {
		msg, ok := protocol.ParseCSVLine(sc.Text())
		if !ok {
			continue
		}
		s.messages.Add(1)
		s.in.Submit(&msg, id, netip.AddrPort{})
	}
}

func (s *TCPServer) readBinary(br *bufio.Reader, id uint32) {
	frame := make([]byte, protocol.BinaryNewOrderSize)
	for {
		if _, err := io.ReadFull(br, frame[:2]); err != nil {
			return
		}
		size := protocol.BinaryInputFrameSize(frame[:2])
		if size == 0 {
			// Unknown type byte means the stream is desynced; there is
			// no way to resynchronize a length-implied framing.
			s.parseErrors.Add(1)
			log.Printf("[tcp] client %d: bad frame header, dropping connection", id)
			return
		}
		if size > 2 {
			if _, err := io.ReadFull(br, frame[2:size]); err != nil {
				return
			}
		}
		msg, _, ok := protocol.DecodeBinaryInput(frame[:size])
		if !ok {
			s.parseErrors.Add(1)
			continue
		}
		s.messages.Add(1)
		s.in.Submit(&msg, id, netip.AddrPort{})
	}
}

// Stats counters for the shutdown summary and metrics.
func (s *TCPServer) Accepted() uint64    { return s.accepted.Load() }
func (s *TCPServer) Active() int64       { return s.active.Load() }
func (s *TCPServer) Messages() uint64    { return s.messages.Load() }
func (s *TCPServer) ParseErrors() uint64 { return s.parseErrors.Load() }
