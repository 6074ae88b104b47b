package main

import (
	"net"
	"sync"

	"github.com/cpjudd/ptr6d/dnsutil"
	"github.com/cpjudd/ptr6d/log"
)

// replySender abstracts the transport handle a reply travels back thru: a framed write
// on the originating TCP connection or a datagram to the originating address. Senders
// must be safe for concurrent use as delivery tasks run independently.
type replySender interface {
	send(b []byte) error
}

// unit is one query's worth of work: the raw wire bytes in, the raw reply bytes out and
// the sender needed to deliver them. A unit is owned by exactly one go-routine at a
// time - listener, then worker, then delivery task - and is discarded after delivery.
type unit struct {
	srv    *server
	raw    []byte
	src    net.Addr
	reply  []byte // Populated by resolve(); nil means no reply is sent
	sender replySender
}

// dispatcher runs the resolution tier: a fixed number of workers fed from an unbounded
// queue. Submission never blocks the listener loops; excess load queues rather than
// being shed, on the theory that DNS clients are small, self-limiting and retry anyway.
// Completed units are handed to an independent delivery go-routine per unit so a slow
// or dead client can never stall the pool.
type dispatcher struct {
	submitCh  chan *unit
	workCh    chan *unit
	workerWG  sync.WaitGroup
	deliverWG sync.WaitGroup
}

func newDispatcher(maxWorkers int) *dispatcher {
	t := &dispatcher{
		submitCh: make(chan *unit),
		workCh:   make(chan *unit),
	}

	go t.pump()
	for ix := 0; ix < maxWorkers; ix++ {
		t.workerWG.Add(1)
		go t.worker()
	}

	return t
}

// submit hands a unit to the pool. It only ever blocks momentarily on the pump's
// select, never on resolution work.
func (t *dispatcher) submit(u *unit) {
	t.submitCh <- u
}

// stop closes submission and waits for in-flight units to resolve and deliver. Callers
// must have stopped all listener loops first; a submit after stop panics.
func (t *dispatcher) stop() {
	close(t.submitCh)
	t.workerWG.Wait()
	t.deliverWG.Wait()
}

// pump shuttles units from submitCh to workCh via an intermediate backlog slice. The
// backlog is what makes the queue unbounded: when all workers are busy, units
// accumulate here instead of blocking the listeners.
func (t *dispatcher) pump() {
	var backlog []*unit
	in := t.submitCh
	for in != nil || len(backlog) > 0 {
		var out chan *unit
		var next *unit
		if len(backlog) > 0 {
			out = t.workCh
			next = backlog[0]
		}
		select {
		case u, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			backlog = append(backlog, u)
		case out <- next:
			backlog = backlog[1:]
		}
	}
	close(t.workCh)
}

func (t *dispatcher) worker() {
	defer t.workerWG.Done()
	for u := range t.workCh {
		u.srv.resolve(u)
		if len(u.reply) == 0 {
			continue
		}
		t.deliverWG.Add(1)
		go t.deliver(u)
	}
}

// deliver writes the reply back thru the originating transport. Failures are logged and
// the unit discarded - DNS clients re-query on timeout so a retry here buys nothing.
func (t *dispatcher) deliver(u *unit) {
	defer t.deliverWG.Done()
	err := u.sender.send(u.reply)
	if err != nil {
		u.srv.addDeliveryError()
		log.Minor("Reply delivery to ", u.src.String(), " failed: ",
			dnsutil.ShortenSendError(err).Error())
	}
}
