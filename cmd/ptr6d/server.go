package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"time"

	"github.com/markdingo/rrl"

	"github.com/cpjudd/ptr6d/dnsutil"
	"github.com/cpjudd/ptr6d/log"
)

const (
	udpReadBufferSize = 4096 // Queries are tiny; this is generous

	// An established TCP connection may sit idle between queries (rfc7766
	// encourages reuse) but once a length prefix arrives the payload has to follow
	// promptly or the peer is violating the framing contract.
	tcpIdleTimeout    = time.Minute * 2
	tcpPayloadTimeout = time.Second * 10
)

// server is created for each enabled transport. It owns the listen socket and the
// accept loop; resolution happens on the shared dispatcher pool, never here.
type server struct {
	cfg        *config
	dispatcher *dispatcher
	rrlHandler *rrl.RRL // May be nil if not configured. UDP only.

	network string // dnsutil.UDPNetwork or dnsutil.TCPNetwork
	address string

	pc       net.PacketConn // UDP listen socket
	listener net.Listener   // TCP listen socket

	serveWG sync.WaitGroup // Accept loop, joined by stop()

	connMu sync.Mutex // Active TCP connections, closed on stop()
	conns  map[net.Conn]struct{}
	connWG sync.WaitGroup

	statsMu sync.RWMutex
	stats   serverStats

	cookieSecrets [2]uint64
}

func newServer(cfg *config, d *dispatcher, network, address string) *server {
	return &server{
		cfg:        cfg,
		dispatcher: d,
		network:    network,
		address:    address,
		conns:      make(map[net.Conn]struct{}),
	}
}

// listen opens the listen socket but does not start accepting. Split from serve so
// that startup can fail fast on a bad address before any go-routines exist.
func (t *server) listen() error {
	var err error
	switch t.network {
	case dnsutil.UDPNetwork:
		t.pc, err = net.ListenPacket(t.network, t.address)
	case dnsutil.TCPNetwork:
		t.listener, err = net.Listen(t.network, t.address)
	default:
		err = fmt.Errorf("unknown network '%s'", t.network)
	}

	return err
}

// start launches the accept loop. The WaitGroup Add happens here, before the
// go-routine, so a stop() racing a fresh start() still joins the loop.
func (t *server) start() {
	t.serveWG.Add(1)
	go t.serve()
}

// serve runs the accept loop until stop() closes the listen socket. It never performs
// resolution work itself; every inbound query is handed straight to the dispatcher.
func (t *server) serve() {
	defer t.serveWG.Done()
	switch t.network {
	case dnsutil.UDPNetwork:
		t.serveUDP()
	case dnsutil.TCPNetwork:
		t.serveTCP()
	}
}

// stop closes the listen socket, which unblocks the accept loop, and waits for that
// loop to exit before returning. The join matters: a query read just before the socket
// closed must reach the dispatcher while submission is still open, which is what lets
// the owner stop all servers and only then stop the dispatcher. Once the accept loop is
// down any established TCP connections are known to conns, so they can be closed and
// their readers waited on.
func (t *server) stop() {
	if t.pc != nil {
		t.pc.Close()
	}
	if t.listener != nil {
		t.listener.Close()
	}
	t.serveWG.Wait()
	t.connMu.Lock()
	for conn := range t.conns {
		conn.Close()
	}
	t.connMu.Unlock()
	t.connWG.Wait()
}

func (t *server) serveUDP() {
	for {
		buf := make([]byte, udpReadBufferSize)
		n, addr, err := t.pc.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Minor("UDP read: ", err.Error())
			continue
		}
		t.dispatcher.submit(&unit{
			srv:    t,
			raw:    buf[:n],
			src:    addr,
			sender: &datagramSender{pc: t.pc, addr: addr},
		})
	}
}

func (t *server) serveTCP() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Minor("TCP accept: ", err.Error())
			continue
		}
		t.trackConn(conn, true)
		t.connWG.Add(1)
		go t.readConn(conn)
	}
}

func (t *server) trackConn(conn net.Conn, add bool) {
	t.connMu.Lock()
	if add {
		t.conns[conn] = struct{}{}
	} else {
		delete(t.conns, conn)
	}
	t.connMu.Unlock()
}

// readConn reads length-prefixed queries off one TCP connection until EOF, error or
// framing violation. Each frame is a 2-byte big-endian payload length followed by
// exactly that many bytes. A frame whose payload cannot be read in full is a protocol
// violation: the connection is dropped without a reply and the listener carries on.
func (t *server) readConn(conn net.Conn) {
	defer t.connWG.Done()
	defer t.trackConn(conn, false)
	defer conn.Close()

	sender := &streamSender{conn: conn}
	hdr := make([]byte, 2)
	for {
		conn.SetReadDeadline(time.Now().Add(tcpIdleTimeout))
		_, err := io.ReadFull(conn, hdr)
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				log.Debug("TCP length read from ", conn.RemoteAddr().String(),
					": ", err.Error())
			}
			return
		}
		size := binary.BigEndian.Uint16(hdr)
		payload := make([]byte, size)
		conn.SetReadDeadline(time.Now().Add(tcpPayloadTimeout))
		_, err = io.ReadFull(conn, payload)
		if err != nil {
			t.addFramingError()
			log.Minor("TCP framing violation from ", conn.RemoteAddr().String(),
				": ", err.Error())
			return
		}
		t.dispatcher.submit(&unit{
			srv:    t,
			raw:    payload,
			src:    conn.RemoteAddr(),
			sender: sender,
		})
	}
}

func (t *server) addStats(from *serverStats) {
	t.statsMu.Lock()
	t.stats.add(from)
	t.statsMu.Unlock()
}

// Called from delivery go-routines which don't carry a request around.
func (t *server) addDeliveryError() {
	t.statsMu.Lock()
	t.stats.gen.deliveryErrors++
	t.statsMu.Unlock()
}

// Called from connection readers which likewise don't carry a request.
func (t *server) addFramingError() {
	t.statsMu.Lock()
	t.stats.gen.framingErrors++
	t.statsMu.Unlock()
}

// datagramSender delivers one reply datagram back to the originating address.
type datagramSender struct {
	pc   net.PacketConn
	addr net.Addr
}

func (t *datagramSender) send(b []byte) error {
	_, err := t.pc.WriteTo(b, t.addr)

	return err
}

// streamSender writes length-prefixed replies to the originating TCP connection. The
// mutex keeps concurrently completing replies from interleaving their frames; replies
// may legitimately be written out of query order. A write to a connection the client
// has already closed is suppressed silently as that's expected client behavior, not a
// fault.
type streamSender struct {
	mu   sync.Mutex
	conn net.Conn
}

func (t *streamSender) send(b []byte) error {
	if len(b) > math.MaxUint16 {
		return fmt.Errorf("reply of %d bytes overflows TCP length prefix", len(b))
	}
	frame := make([]byte, 2+len(b))
	binary.BigEndian.PutUint16(frame, uint16(len(b)))
	copy(frame[2:], b)

	t.mu.Lock()
	_, err := t.conn.Write(frame)
	t.mu.Unlock()
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		err = nil
	}

	return err
}
