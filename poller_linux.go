//go:build linux

package corosched

import (
	"sync"

	"golang.org/x/sys/unix"
)

// maxDirectFDs bounds the direct-indexed fd table before falling back
// to growing it; chosen to match common ulimit -n defaults.
const maxDirectFDs = 4096

// epollPoller is the Linux readiness notifier, grounded on the
// epoll-based FastPoller from the pack's eventloop package: direct fd
// indexing under an RWMutex, a preallocated event buffer, edge-
// triggering left off in favor of level-triggering so a partially
// drained descriptor is reported again without re-arming.
type epollPoller struct {
	epfd     int
	mu       sync.RWMutex
	fds      []pollerEntry
	eventBuf [256]unix.EpollEvent
	closed   bool
}

func newPoller() poller { return &epollPoller{} }

func (p *epollPoller) init() error {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	p.epfd = fd
	p.fds = make([]pollerEntry, maxDirectFDs)
	return nil
}

func (p *epollPoller) close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return unix.Close(p.epfd)
}

func (p *epollPoller) growLocked(fd int) {
	if fd < len(p.fds) {
		return
	}
	n := make([]pollerEntry, fd*2)
	copy(n, p.fds)
	p.fds = n
}

func (p *epollPoller) add(fd int, interest Interest, cb pollCallback) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errPollerClosed
	}
	p.growLocked(fd)
	if p.fds[fd].active {
		p.mu.Unlock()
		return errFDAlreadyRegistered
	}
	p.fds[fd] = pollerEntry{cb: cb, active: true}
	p.mu.Unlock()

	ev := &unix.EpollEvent{Events: interestToEpoll(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		p.mu.Lock()
		p.fds[fd] = pollerEntry{}
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *epollPoller) remove(fd int) error {
	p.mu.Lock()
	if fd >= len(p.fds) || !p.fds[fd].active {
		p.mu.Unlock()
		return errFDNotRegistered
	}
	p.fds[fd] = pollerEntry{}
	p.mu.Unlock()
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) poll(timeoutMs int) error {
	n, err := unix.EpollWait(p.epfd, p.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}

	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Fd)
		p.mu.RLock()
		var entry pollerEntry
		if fd < len(p.fds) {
			entry = p.fds[fd]
		}
		p.mu.RUnlock()

		if entry.active && entry.cb != nil {
			entry.cb(fd, epollToInterest(p.eventBuf[i].Events))
		}
	}
	return nil
}

func interestToEpoll(i Interest) uint32 {
	var e uint32
	if i&InterestRead != 0 {
		e |= unix.EPOLLIN
	}
	if i&InterestWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func epollToInterest(e uint32) Interest {
	var i Interest
	if e&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		i |= InterestRead
	}
	if e&(unix.EPOLLOUT|unix.EPOLLERR) != 0 {
		i |= InterestWrite
	}
	return i
}
