package corosched

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Evented is implemented by any type backed by a nonblocking file
// descriptor that wants to park the calling coroutine until that
// descriptor becomes ready, rather than blocking the OS thread.
type Evented interface {
	// fd returns the underlying nonblocking descriptor.
	fd() int
	// savedTimeoutMs returns the deadline, in milliseconds relative to
	// the moment waitEvent is called, or -1 for no deadline.
	savedTimeoutMs() int64
}

// evented is an embeddable helper implementing the timeout half of
// Evented; adapters embed it and implement fd() themselves.
type evented struct {
	timeoutMs int64
}

func newEvented() evented {
	return evented{timeoutMs: -1}
}

func (e *evented) saveTimeout(ms int64) { e.timeoutMs = ms }
func (e *evented) takeTimeout() int64 {
	t := e.timeoutMs
	e.timeoutMs = -1
	return t
}
func (e *evented) savedTimeoutMs() int64 { return e.timeoutMs }

// wouldBlock reports whether err is the nonblocking-retry signal from
// a raw syscall, in which case the caller should park and retry rather
// than propagate the error.
func wouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINPROGRESS)
}

// waitEvent parks the calling coroutine until fd is ready for interest
// (or the saved timeout expires), via the active Scheduler's I/O
// driver. It is the single place every adapter's retry loop calls into.
func waitEvent(fd int, interest Interest, timeoutMs int64) error {
	p, ok := currentProcessor()
	if !ok {
		return ErrNoProcessor
	}

	var regErr error
	p.takeCurrentCoroutine(func(h *coroutine) {
		_, regErr = p.sched.io.register(fd, interest, h, timeoutMs)
		if regErr != nil {
			// Registration failed synchronously (e.g. duplicate fd);
			// re-ready immediately so the coroutine doesn't park
			// forever waiting for a wake that will never come.
			p.sched.readyHandle(h)
		}
	})
	if regErr != nil {
		return regErr
	}

	h := mustCurrentCoroutine()
	err := h.ioErr
	h.ioErr = nil
	return err
}

func mustCurrentCoroutine() *coroutine {
	p, ok := currentProcessor()
	if !ok {
		panic("corosched: no current processor after resume")
	}
	return p.current
}

// retryOp runs attempt in a loop, parking on fd between attempts
// whenever it reports EAGAIN/EWOULDBLOCK/EINPROGRESS, until it
// succeeds, reports a different error, or timeoutMs (-1 for none)
// expires.
func retryOp[T any](ev Evented, interest Interest, attempt func() (T, error), timeoutMs int64) (T, error) {
	var zero T
	for {
		v, err := attempt()
		if err == nil {
			return v, nil
		}
		if !wouldBlock(err) {
			return zero, err
		}
		if werr := waitEvent(ev.fd(), interest, timeoutMs); werr != nil {
			return zero, werr
		}
	}
}
