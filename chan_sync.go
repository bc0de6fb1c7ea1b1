package corosched

import (
	"sync"
	"sync/atomic"

	"github.com/xlaez/corosched/internal/waitlist"
)

// syncChanShared is the bounded-MPSC analogue of chanShared: sends
// that would overflow capacity park on sendWaiters instead of growing
// the queue, symmetric with recvWaiters for an empty queue.
type syncChanShared[T any] struct {
	mu        sync.Mutex
	sendCond  sync.Cond
	recvCond  sync.Cond
	queue     []T
	cap       int
	senders   atomic.Int64
	recvAlive atomic.Bool

	sendWaiters waitlist.List[*coroutine]
	recvWaiters waitlist.List[*coroutine]
}

// SyncSender is the send half of a bounded MPSC channel.
type SyncSender[T any] struct {
	ch *syncChanShared[T]
}

// SyncReceiver is the single receive half of a bounded MPSC channel.
type SyncReceiver[T any] struct {
	ch *syncChanShared[T]
}

// SyncChannel returns a connected SyncSender/SyncReceiver pair whose
// queue holds at most capacity values before Send parks.
func SyncChannel[T any](capacity int) (SyncSender[T], SyncReceiver[T]) {
	if capacity < 0 {
		capacity = 0
	}
	ch := &syncChanShared[T]{cap: capacity}
	ch.sendCond.L = &ch.mu
	ch.recvCond.L = &ch.mu
	ch.senders.Store(1)
	ch.recvAlive.Store(true)
	return SyncSender[T]{ch: ch}, SyncReceiver[T]{ch: ch}
}

// Clone returns another SyncSender sharing this channel.
func (s SyncSender[T]) Clone() SyncSender[T] {
	s.ch.senders.Add(1)
	return s
}

// Close drops this SyncSender handle; once every clone has closed, a
// parked SyncReceiver.Recv wakes with RecvError.
func (s SyncSender[T]) Close() {
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
	s.ch.recvCond.Broadcast()
	for _, h := range waiters {
		wakeParked(h)
	}
}

// TrySend enqueues v without parking, failing with TrySendError
// wrapping ErrFull if the channel is at capacity or ErrDisconnected if
// no receiver remains.
func (s SyncSender[T]) TrySend(v T) error {
	if !s.ch.recvAlive.Load() {
		return TrySendError[T]{Value: v, err: ErrDisconnected}
	}
	s.ch.mu.Lock()
	if len(s.ch.queue) >= s.ch.cap {
		s.ch.mu.Unlock()
		return TrySendError[T]{Value: v, err: ErrFull}
	}
	s.ch.queue = append(s.ch.queue, v)
	h, hasWaiter := s.ch.recvWaiters.PopFront()
	s.ch.mu.Unlock()

	s.ch.recvCond.Signal()
	if hasWaiter {
		wakeParked(h)
	}
	return nil
}

// Send enqueues v, parking the calling coroutine if the channel is
// currently at capacity. A wake while parked is only a hint that room
// may have opened up, so it loops back and re-checks rather than
// assuming the enqueue already happened. Once the Receiver has Closed,
// Send returns SendError instead of parking forever for room nobody
// will ever make.
func (s SyncSender[T]) Send(v T) error {
	p, hasProc := currentProcessor()
	if !hasProc {
		return s.ch.blockingSend(v)
	}

	for {
		var resultErr error
		settled := false
		p.takeCurrentCoroutine(func(h *coroutine) {
			s.ch.mu.Lock()
			switch {
			case !s.ch.recvAlive.Load():
				s.ch.mu.Unlock()
				resultErr = SendError[T]{Value: v}
				settled = true
				p.sched.readyHandle(h)
			case len(s.ch.queue) < s.ch.cap:
				s.ch.queue = append(s.ch.queue, v)
				rh, hasWaiter := s.ch.recvWaiters.PopFront()
				s.ch.mu.Unlock()
				s.ch.recvCond.Signal()
				settled = true
				p.sched.readyHandle(h)
				if hasWaiter {
					wakeParked(rh)
				}
			default:
				s.ch.sendWaiters.PushBackLocked(h)
				s.ch.mu.Unlock()
			}
		})
		if settled {
			return resultErr
		}
	}
}

func (c *syncChanShared[T]) blockingSend(v T) error {
	c.mu.Lock()
	for len(c.queue) >= c.cap {
		if !c.recvAlive.Load() {
			c.mu.Unlock()
			return SendError[T]{Value: v}
		}
		c.sendCond.Wait()
	}
	if !c.recvAlive.Load() {
		c.mu.Unlock()
		return SendError[T]{Value: v}
	}
	c.queue = append(c.queue, v)
	h, hasWaiter := c.recvWaiters.PopFront()
	c.mu.Unlock()
	c.recvCond.Signal()
	if hasWaiter {
		wakeParked(h)
	}
	return nil
}

// Close drops the receive half. Any SyncSender.Send or TrySend after
// this returns SendError/TrySendError{ErrDisconnected}, and any sender
// already parked waiting for room is woken to observe it rather than
// left waiting for room nobody will ever make.
func (r SyncReceiver[T]) Close() {
	r.ch.recvAlive.Store(false)
	r.ch.mu.Lock()
	var waiters []*coroutine
	for {
		h, ok := r.ch.sendWaiters.PopFront()
		if !ok {
			break
		}
		waiters = append(waiters, h)
	}
	r.ch.mu.Unlock()
	r.ch.sendCond.Broadcast()
	for _, h := range waiters {
		wakeParked(h)
	}
}

// TryRecv returns the next queued value without parking.
func (r SyncReceiver[T]) TryRecv() (T, error) {
	var zero T
	r.ch.mu.Lock()
	if len(r.ch.queue) > 0 {
		v := r.ch.queue[0]
		r.ch.queue = r.ch.queue[1:]
		h, hasWaiter := r.ch.sendWaiters.PopFront()
		r.ch.mu.Unlock()
		r.ch.sendCond.Signal()
		if hasWaiter {
			wakeParked(h)
		}
		return v, nil
	}
	senders := r.ch.senders.Load()
	r.ch.mu.Unlock()

	if senders == 0 {
		return zero, TryRecvError{err: ErrDisconnected}
	}
	return zero, TryRecvError{err: ErrEmpty}
}

// Recv returns the next value, parking the calling coroutine if the
// channel is currently empty. As with Send, a wake from parked only
// hints that the queue may have changed, so it loops back and
// re-checks rather than trusting a result captured before the park.
func (r SyncReceiver[T]) Recv() (T, error) {
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
				sh, hasSendWaiter := r.ch.sendWaiters.PopFront()
				r.ch.mu.Unlock()
				r.ch.sendCond.Signal()
				settled = true
				p.sched.readyHandle(h)
				if hasSendWaiter {
					wakeParked(sh)
				}
			case r.ch.senders.Load() == 0:
				resultErr = RecvError{}
				r.ch.mu.Unlock()
				settled = true
				p.sched.readyHandle(h)
			default:
				r.ch.recvWaiters.PushBackLocked(h)
				r.ch.mu.Unlock()
			}
		})
		if settled {
			return result, resultErr
		}
	}
}

func (c *syncChanShared[T]) blockingRecv() (T, error) {
	var zero T
	c.mu.Lock()
	for len(c.queue) == 0 {
		if c.senders.Load() == 0 {
			c.mu.Unlock()
			return zero, RecvError{}
		}
		c.recvCond.Wait()
	}
	v := c.queue[0]
	c.queue = c.queue[1:]
	h, hasWaiter := c.sendWaiters.PopFront()
	c.mu.Unlock()
	c.sendCond.Signal()
	if hasWaiter {
		wakeParked(h)
	}
	return v, nil
}
