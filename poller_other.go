//go:build !linux && !darwin && !windows

package corosched

import (
	"sync"

	"golang.org/x/sys/unix"
)

// pollFallbackPoller is the readiness notifier for the remaining
// unix-like targets (BSDs and similar) that have no epoll/kqueue
// implementation in this module: a plain poll(2) loop, rebuilding its
// pollfd slice whenever the registration set changes.
type pollFallbackPoller struct {
	mu     sync.Mutex
	fds    map[int]pollerEntry
	ints   map[int]Interest
	closed bool
}

func newPoller() poller {
	return &pollFallbackPoller{fds: make(map[int]pollerEntry), ints: make(map[int]Interest)}
}

func (p *pollFallbackPoller) init() error  { return nil }
func (p *pollFallbackPoller) close() error { p.mu.Lock(); p.closed = true; p.mu.Unlock(); return nil }

func (p *pollFallbackPoller) add(fd int, interest Interest, cb pollCallback) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errPollerClosed
	}
	if _, ok := p.fds[fd]; ok {
		return errFDAlreadyRegistered
	}
	p.fds[fd] = pollerEntry{cb: cb, active: true}
	p.ints[fd] = interest
	return nil
}

func (p *pollFallbackPoller) remove(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.fds[fd]; !ok {
		return errFDNotRegistered
	}
	delete(p.fds, fd)
	delete(p.ints, fd)
	return nil
}

func (p *pollFallbackPoller) poll(timeoutMs int) error {
	p.mu.Lock()
	pfds := make([]unix.PollFd, 0, len(p.fds))
	order := make([]int, 0, len(p.fds))
	for fd, interest := range p.ints {
		var events int16
		if interest&InterestRead != 0 {
			events |= unix.POLLIN
		}
		if interest&InterestWrite != 0 {
			events |= unix.POLLOUT
		}
		pfds = append(pfds, unix.PollFd{Fd: int32(fd), Events: events})
		order = append(order, fd)
	}
	p.mu.Unlock()

	if len(pfds) == 0 {
		// Nothing registered; still honor the timeout so callers
		// waiting purely on a timer make progress.
		if timeoutMs > 0 {
			unix.Poll(nil, timeoutMs)
		}
		return nil
	}

	n, err := unix.Poll(pfds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}
	if n == 0 {
		return nil
	}

	for idx, pfd := range pfds {
		if pfd.Revents == 0 {
			continue
		}
		fd := order[idx]
		p.mu.Lock()
		entry, ok := p.fds[fd]
		p.mu.Unlock()
		if !ok || !entry.active || entry.cb == nil {
			continue
		}
		var got Interest
		if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			got |= InterestRead
		}
		if pfd.Revents&(unix.POLLOUT|unix.POLLERR) != 0 {
			got |= InterestWrite
		}
		entry.cb(fd, got)
	}
	return nil
}
