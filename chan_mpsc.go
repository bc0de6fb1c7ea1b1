package corosched

import (
	"sync"
	"sync/atomic"

	"github.com/xlaez/corosched/internal/waitlist"
)

// chanShared is the state an unbounded MPSC channel's Sender and
// Receiver halves both touch: the queue itself, the count of live
// senders, and the list of coroutines parked waiting for a value.
type chanShared[T any] struct {
	mu        sync.Mutex
	cond      sync.Cond
	queue     []T
	senders   atomic.Int64
	recvAlive atomic.Bool

	recvWaiters waitlist.List[*coroutine]
}

// Sender is the send half of an unbounded MPSC channel. It is safe to
// clone logically by calling Clone from multiple coroutines.
type Sender[T any] struct {
	ch *chanShared[T]
}

// Receiver is the single receive half of an unbounded MPSC channel.
type Receiver[T any] struct {
	ch *chanShared[T]
}

// Channel returns a connected Sender/Receiver pair for an unbounded
// MPSC channel.
func Channel[T any]() (Sender[T], Receiver[T]) {
	ch := &chanShared[T]{}
	ch.cond.L = &ch.mu
	ch.senders.Store(1)
	ch.recvAlive.Store(true)
	return Sender[T]{ch: ch}, Receiver[T]{ch: ch}
}

// Clone returns another Sender sharing this channel, incrementing its
// live-sender count; the channel disconnects for the receiver only
// once every clone has been dropped via Close.
func (s Sender[T]) Clone() Sender[T] {
	s.ch.senders.Add(1)
	return s
}

// Close drops this Sender handle. Once every clone has been closed,
// a parked Receiver.Recv wakes with RecvError.
func (s Sender[T]) Close() {
	if s.ch.senders.Add(-1) != 0 {
		return
	}
	s.ch.mu.Lock()
	var waiters []*coroutine
	for {
		h, ok := s.ch.recvWaiters.PopFront()
		if !ok {
			break
		}
		waiters = append(waiters, h)
	}
	s.ch.mu.Unlock()
	s.ch.cond.Broadcast()
	for _, h := range waiters {
		wakeParked(h)
	}
}

// Send enqueues v and wakes one parked receiver, if any. It never
// blocks: the channel is unbounded. Once the Receiver has Closed, Send
// returns SendError instead of enqueueing.
func (s Sender[T]) Send(v T) error {
	if !s.ch.recvAlive.Load() {
		return SendError[T]{Value: v}
	}
	s.ch.mu.Lock()
	s.ch.queue = append(s.ch.queue, v)
	h, hasWaiter := s.ch.recvWaiters.PopFront()
	s.ch.mu.Unlock()

	s.ch.cond.Signal()
	if hasWaiter {
		wakeParked(h)
	}
	return nil
}

// Close drops the receive half. Any Sender.Send after this returns
// SendError instead of enqueueing into a queue nobody will ever drain.
func (r Receiver[T]) Close() {
	r.ch.recvAlive.Store(false)
}

// TryRecv returns the next queued value without parking, or
// TryRecvError wrapping ErrEmpty/ErrDisconnected.
func (r Receiver[T]) TryRecv() (T, error) {
	var zero T
	r.ch.mu.Lock()
	defer r.ch.mu.Unlock()

	if len(r.ch.queue) > 0 {
		v := r.ch.queue[0]
		r.ch.queue = r.ch.queue[1:]
		return v, nil
	}
	if r.ch.senders.Load() == 0 {
		return zero, TryRecvError{err: ErrDisconnected}
	}
	return zero, TryRecvError{err: ErrEmpty}
}

// Recv returns the next value, parking the calling coroutine if the
// channel is currently empty. With no current Processor it falls back
// to blocking the OS thread on a condition variable, for callers
// outside a scheduler.
//
// Each park is only a hint that the queue may now hold something: a
// wake re-enters the loop and re-checks rather than trusting the value
// captured before parking, since that value was never actually set by
// a park that raced no concurrent Send.
func (r Receiver[T]) Recv() (T, error) {
	p, hasProc := currentProcessor()
	if !hasProc {
		return r.ch.blockingRecv()
	}

	for {
		var result T
		var resultErr error
		settled := false
		p.takeCurrentCoroutine(func(h *coroutine) {
			r.ch.mu.Lock()
			switch {
			case len(r.ch.queue) > 0:
				result = r.ch.queue[0]
				r.ch.queue = r.ch.queue[1:]
				r.ch.mu.Unlock()
				settled = true
				p.sched.readyHandle(h)
			case r.ch.senders.Load() == 0:
				resultErr = RecvError{}
				r.ch.mu.Unlock()
				settled = true
				p.sched.readyHandle(h)
			default:
				// Double-check under the same lock that guards Send's
				// append, so a concurrent Send can never enqueue and
				// find an empty wait list between our check above and
				// this park.
				r.ch.recvWaiters.PushBackLocked(h)
				r.ch.mu.Unlock()
			}
		})
		if settled {
			return result, resultErr
		}
	}
}

// blockingRecv is the non-scheduler fallback: a plain mutex/condvar
// wait, used when Recv is called from a goroutine with no current
// Processor (e.g. from ordinary application code bridging into the
// channel from outside any Scheduler.Run).
func (c *chanShared[T]) blockingRecv() (T, error) {
	var zero T
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.queue) == 0 {
		if c.senders.Load() == 0 {
			return zero, RecvError{}
		}
		c.cond.Wait()
	}
	v := c.queue[0]
	c.queue = c.queue[1:]
	return v, nil
}

// wakeParked reschedules h through the currently active Scheduler.
// Used by channel wakers that may be running on any goroutine, not
// necessarily a Processor's own.
func wakeParked(h *coroutine) {
	if s := activeScheduler.Load(); s != nil {
		s.readyHandle(h)
	}
}
