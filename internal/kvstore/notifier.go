package kvstore

import (
	"sync/atomic"
)

type delivery struct {
	event     ChangeEvent
	listeners []Listener
}

type subscribeReq struct {
	fn   Listener
	resp chan uint64
}

// notifier fans change events out to registered listeners.
//
// A single loop goroutine owns the listener table; a second goroutine calls
// listeners in publish order, so a listener may freely call back into the store.
type notifier struct {
	source string

	subscribeCh   chan subscribeReq
	unsubscribeCh chan uint64
	publishCh     chan ChangeEvent
	deliverCh     chan delivery

	stopCh    chan struct{}
	stopped   chan struct{}
	delivered chan struct{}
	closed    atomic.Bool
}

func newNotifier(source string) *notifier {
	n := &notifier{
		source:        source,
		subscribeCh:   make(chan subscribeReq),
		unsubscribeCh: make(chan uint64),
		publishCh:     make(chan ChangeEvent, 256),
		deliverCh:     make(chan delivery, 256),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
		delivered:     make(chan struct{}),
	}
	go n.run()
	go n.deliver()
	return n
}

func (n *notifier) run() {
	defer close(n.stopped)
	defer close(n.deliverCh)

	listeners := make(map[uint64]Listener)
	var order []uint64
	var nextID uint64

	for {
		select {
		case <-n.stopCh:
			return

		case req := <-n.subscribeCh:
			nextID++
			listeners[nextID] = req.fn
			order = append(order, nextID)
			req.resp <- nextID

		case id := <-n.unsubscribeCh:
			if _, ok := listeners[id]; ok {
				delete(listeners, id)
				for i, v := range order {
					if v == id {
						order = append(order[:i], order[i+1:]...)
						break
					}
				}
			}

		case ev := <-n.publishCh:
			if len(order) == 0 {
				continue
			}
			fns := make([]Listener, 0, len(order))
			for _, id := range order {
				fns = append(fns, listeners[id])
			}
			select {
			case n.deliverCh <- delivery{event: ev, listeners: fns}:
			case <-n.stopCh:
				return
			}
		}
	}
}

func (n *notifier) deliver() {
	defer close(n.delivered)
	for d := range n.deliverCh {
		for _, fn := range d.listeners {
			fn(d.event)
		}
	}
}

// subscribe registers fn and returns its unsubscribe function.
func (n *notifier) subscribe(fn Listener) func() {
	if n.closed.Load() {
		return func() {}
	}
	req := subscribeReq{fn: fn, resp: make(chan uint64, 1)}
	select {
	case n.subscribeCh <- req:
	case <-n.stopped:
		return func() {}
	}
	id := <-req.resp

	var once atomic.Bool
	return func() {
		if !once.CompareAndSwap(false, true) || n.closed.Load() {
			return
		}
		select {
		case n.unsubscribeCh <- id:
		case <-n.stopped:
		}
	}
}

// publish queues changes for delivery. Empty change sets are dropped.
func (n *notifier) publish(changes map[string]Change, source string) {
	if len(changes) == 0 || n.closed.Load() {
		return
	}
	if source == "" {
		source = n.source
	}
	ev := ChangeEvent{Area: AreaLocal, Source: source, Changes: changes}
	select {
	case n.publishCh <- ev:
	case <-n.stopped:
	}
}

// close stops the loop and waits for in-flight deliveries to finish.
func (n *notifier) close() {
	if n.closed.CompareAndSwap(false, true) {
		close(n.stopCh)
	}
	<-n.stopped
	<-n.delivered
}
