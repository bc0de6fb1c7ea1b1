//go:build darwin

package corosched

import (
	"sync"

	"golang.org/x/sys/unix"
)

// kqueuePoller is the Darwin readiness notifier, grounded on the
// kqueue-based FastPoller from the pack's eventloop package: a dynamic
// fd table guarded by an RWMutex and a preallocated kevent buffer.
type kqueuePoller struct {
	kq       int
	mu       sync.RWMutex
	fds      map[int]pollerEntry
	eventBuf [256]unix.Kevent_t
	closed   bool
}

func newPoller() poller { return &kqueuePoller{fds: make(map[int]pollerEntry)} }

func (p *kqueuePoller) init() error {
	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	p.kq = kq
	return nil
}

func (p *kqueuePoller) close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return unix.Close(p.kq)
}

func (p *kqueuePoller) add(fd int, interest Interest, cb pollCallback) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errPollerClosed
	}
	if _, ok := p.fds[fd]; ok {
		p.mu.Unlock()
		return errFDAlreadyRegistered
	}
	p.fds[fd] = pollerEntry{cb: cb, active: true}
	p.mu.Unlock()

	changes := kqueueChanges(fd, interest, unix.EV_ADD|unix.EV_CLEAR)
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	if err != nil {
		p.mu.Lock()
		delete(p.fds, fd)
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *kqueuePoller) remove(fd int) error {
	p.mu.Lock()
	if _, ok := p.fds[fd]; !ok {
		p.mu.Unlock()
		return errFDNotRegistered
	}
	delete(p.fds, fd)
	p.mu.Unlock()

	changes := kqueueChanges(fd, InterestRead|InterestWrite, unix.EV_DELETE)
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return err
}

func (p *kqueuePoller) poll(timeoutMs int) error {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * 1e6)
		ts = &t
	}

	n, err := unix.Kevent(p.kq, nil, p.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}

	for i := 0; i < n; i++ {
		ev := &p.eventBuf[i]
		fd := int(ev.Ident)
		p.mu.RLock()
		entry, ok := p.fds[fd]
		p.mu.RUnlock()
		if ok && entry.active && entry.cb != nil {
			entry.cb(fd, kqueueToInterest(ev))
		}
	}
	return nil
}

func kqueueChanges(fd int, interest Interest, flags uint16) []unix.Kevent_t {
	var changes []unix.Kevent_t
	if interest&InterestRead != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if interest&InterestWrite != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return changes
}

func kqueueToInterest(ev *unix.Kevent_t) Interest {
	switch ev.Filter {
	case unix.EVFILT_READ:
		return InterestRead
	case unix.EVFILT_WRITE:
		return InterestWrite
	default:
		return 0
	}
}
