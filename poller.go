package corosched

import "errors"

// Interest is the set of readiness directions a descriptor can be
// registered for.
type Interest uint8

const (
	// InterestRead means "wake me when the descriptor is readable".
	InterestRead Interest = 1 << iota
	// InterestWrite means "wake me when the descriptor is writable".
	InterestWrite
)

// pollCallback is invoked by a poller implementation when a registered
// fd becomes ready.
type pollCallback func(fd int, got Interest)

// pollerEntry is the per-fd registration record shared by every
// platform poller implementation.
type pollerEntry struct {
	cb     pollCallback
	active bool
}

// poller is the readiness notifier behind the I/O driver: one
// implementation per platform, selected at compile time exactly as
// the pack's eventloop package selects epoll/kqueue/poll by build tag.
type poller interface {
	// init prepares the underlying notifier (epoll/kqueue instance).
	init() error
	// close releases the underlying notifier.
	close() error
	// add registers fd for the given interest; cb fires from inside
	// poll whenever fd becomes ready.
	add(fd int, interest Interest, cb pollCallback) error
	// remove deregisters fd.
	remove(fd int) error
	// poll blocks for up to timeoutMs milliseconds (or forever if
	// negative) waiting for readiness, dispatching callbacks inline.
	poll(timeoutMs int) error
}

var (
	errFDAlreadyRegistered = errors.New("corosched: fd already registered")
	errFDNotRegistered     = errors.New("corosched: fd not registered")
	errPollerClosed        = errors.New("corosched: poller closed")
)
