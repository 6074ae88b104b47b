package mock

import (
	"net"
	"sync"
	"time"
)

// Datagram is one packet exchanged thru a PacketConn.
type Datagram struct {
	Payload []byte
	Addr    net.Addr
}

// PacketConn is a scripted net.PacketConn. Tests queue inbound datagrams with Inject()
// and examine outbound datagrams with Sent(). Close() causes a blocked ReadFrom() to
// return net.ErrClosed, which is how listener loops are told to exit.
type PacketConn struct {
	mu     sync.Mutex
	cond   *sync.Cond
	closed bool
	inbound []Datagram
	sent    []Datagram

	// WriteErr, if set, is returned by every subsequent WriteTo.
	WriteErr error
}

func NewPacketConn() *PacketConn {
	t := &PacketConn{}
	t.cond = sync.NewCond(&t.mu)

	return t
}

// Inject queues an inbound datagram for a subsequent ReadFrom.
func (t *PacketConn) Inject(payload []byte, addr net.Addr) {
	t.mu.Lock()
	t.inbound = append(t.inbound, Datagram{Payload: payload, Addr: addr})
	t.mu.Unlock()
	t.cond.Broadcast()
}

// Sent returns all datagrams written so far.
func (t *PacketConn) Sent() []Datagram {
	t.mu.Lock()
	defer t.mu.Unlock()
	ret := make([]Datagram, len(t.sent))
	copy(ret, t.sent)

	return ret
}

// WaitSent blocks until at least n datagrams have been written or the conn is closed.
func (t *PacketConn) WaitSent(n int) []Datagram {
	t.mu.Lock()
	defer t.mu.Unlock()
	for len(t.sent) < n && !t.closed {
		t.cond.Wait()
	}
	ret := make([]Datagram, len(t.sent))
	copy(ret, t.sent)

	return ret
}

func (t *PacketConn) ReadFrom(p []byte) (int, net.Addr, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for len(t.inbound) == 0 && !t.closed {
		t.cond.Wait()
	}
	if t.closed {
		return 0, nil, net.ErrClosed
	}
	dg := t.inbound[0]
	t.inbound = t.inbound[1:]
	n := copy(p, dg.Payload)

	return n, dg.Addr, nil
}

func (t *PacketConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	t.mu.Lock()
	defer func() {
		t.mu.Unlock()
		t.cond.Broadcast()
	}()
	if t.WriteErr != nil {
		return 0, t.WriteErr
	}
	if t.closed {
		return 0, net.ErrClosed
	}
	b := make([]byte, len(p))
	copy(b, p)
	t.sent = append(t.sent, Datagram{Payload: b, Addr: addr})

	return len(p), nil
}

func (t *PacketConn) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.cond.Broadcast()

	return nil
}

func (t *PacketConn) LocalAddr() net.Addr {
	return NewNetAddr("udp", "[::1]:5353")
}

func (t *PacketConn) SetDeadline(time.Time) error {
	return nil
}

func (t *PacketConn) SetReadDeadline(time.Time) error {
	return nil
}

func (t *PacketConn) SetWriteDeadline(time.Time) error {
	return nil
}
