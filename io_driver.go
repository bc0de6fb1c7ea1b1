package corosched

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/xlaez/corosched/internal/timerheap"
)

// ioDriver is the readiness notifier plus timer wheel: it runs on its
// own goroutine, parking and waking tasks by descriptor. Each fd has at
// most one parker at a time, registered for the single interest its
// waitEvent call asked for; a second park on the same fd fails with
// errFDAlreadyRegistered.
type ioDriver struct {
	sched *Scheduler
	p     poller

	mu     sync.Mutex
	parked map[int]*parkedEntry
	timers timerheap.Heap

	nextTimerToken uint64
	nextSleepToken uint64

	pollInterval time.Duration
	logger       zerolog.Logger

	stop chan struct{}
	done chan struct{}
}

type parkedEntry struct {
	handle     *coroutine
	fd         int
	interest   Interest
	hasTimer   bool
	timerToken uint64
}

func newIODriver(sched *Scheduler, pollInterval time.Duration, logger zerolog.Logger) *ioDriver {
	return &ioDriver{
		sched:        sched,
		p:            newPoller(),
		parked:       make(map[int]*parkedEntry),
		pollInterval: pollInterval,
		logger:       logger,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

func (d *ioDriver) start() error {
	if err := d.p.init(); err != nil {
		return err
	}
	go d.run()
	return nil
}

func (d *ioDriver) shutdown() {
	close(d.stop)
	<-d.done
	_ = d.p.close()
}

// register records h as parked on fd for interest, arming a timeout
// timer when timeoutMs >= 0. It returns the fd as the entry's token;
// waitEvent, its caller, discards it.
func (d *ioDriver) register(fd int, interest Interest, h *coroutine, timeoutMs int64) (uint64, error) {
	d.mu.Lock()
	if _, exists := d.parked[fd]; exists {
		d.mu.Unlock()
		return 0, errFDAlreadyRegistered
	}
	entry := &parkedEntry{handle: h, fd: fd, interest: interest}
	if timeoutMs >= 0 {
		d.nextTimerToken++
		entry.hasTimer = true
		entry.timerToken = d.nextTimerToken
		d.timers.Push(entry.timerToken, time.Now().Add(time.Duration(timeoutMs)*time.Millisecond).UnixNano())
	}
	d.parked[fd] = entry
	d.mu.Unlock()

	if err := d.p.add(fd, interest, d.onReady); err != nil {
		d.mu.Lock()
		delete(d.parked, fd)
		if entry.hasTimer {
			d.timers.Remove(entry.timerToken)
		}
		d.mu.Unlock()
		return 0, err
	}
	return uint64(fd), nil
}

// registerSleep arms a pure timer (no descriptor) for Scheduler.sleepMs.
func (d *ioDriver) registerSleep(h *coroutine, ms int64) {
	d.mu.Lock()
	d.nextSleepToken++
	token := d.nextSleepToken
	// Negative fds never collide with a real descriptor, so sleeps
	// share the same parked table and wake path as fd-based parks.
	fakeFD := -int(token)
	d.parked[fakeFD] = &parkedEntry{handle: h, fd: fakeFD, hasTimer: true, timerToken: token}
	d.timers.Push(token, time.Now().Add(time.Duration(ms)*time.Millisecond).UnixNano())
	d.mu.Unlock()
}

// cancel removes a still-armed parked entry for fd, together with its
// timer and, for a real descriptor, its poller registration.
func (d *ioDriver) cancel(fd int) {
	d.mu.Lock()
	entry, ok := d.parked[fd]
	if !ok {
		d.mu.Unlock()
		return
	}
	delete(d.parked, fd)
	if entry.hasTimer {
		d.timers.Remove(entry.timerToken)
	}
	d.mu.Unlock()

	if fd >= 0 {
		_ = d.p.remove(fd)
	}
}

func (d *ioDriver) onReady(fd int, _ Interest) {
	d.mu.Lock()
	entry, ok := d.parked[fd]
	if !ok {
		d.mu.Unlock()
		return
	}
	delete(d.parked, fd)
	if entry.hasTimer {
		d.timers.Remove(entry.timerToken)
	}
	d.mu.Unlock()

	_ = d.p.remove(fd)
	d.logger.Debug().Int("fd", fd).Msg("io: wake on readiness")
	d.wake(entry, nil)
}

func (d *ioDriver) wake(entry *parkedEntry, err error) {
	entry.handle.ioErr = err
	d.sched.readyHandle(entry.handle)
}

func (d *ioDriver) run() {
	defer close(d.done)
	for {
		select {
		case <-d.stop:
			return
		default:
		}

		timeoutMs := int(d.pollInterval.Milliseconds())
		d.mu.Lock()
		if deadline, ok := d.timers.NextDeadline(); ok {
			untilMs := int((deadline - time.Now().UnixNano()) / 1e6)
			if untilMs < 0 {
				untilMs = 0
			}
			if untilMs < timeoutMs {
				timeoutMs = untilMs
			}
		}
		d.mu.Unlock()

		if err := d.p.poll(timeoutMs); err != nil {
			d.logger.Error().Err(err).Msg("io: poll error")
		}

		now := time.Now().UnixNano()
		d.mu.Lock()
		expired := d.timers.ExpireBefore(now)
		var toWake []*parkedEntry
		for _, e := range expired {
			for fd, entry := range d.parked {
				if entry.hasTimer && entry.timerToken == e.Token {
					delete(d.parked, fd)
					toWake = append(toWake, entry)
					break
				}
			}
		}
		d.mu.Unlock()

		for _, entry := range toWake {
			if entry.fd >= 0 {
				_ = d.p.remove(entry.fd)
			}
			d.logger.Debug().Int("fd", entry.fd).Msg("io: wake on timeout")
			d.wake(entry, ErrTimedOut)
		}
	}
}
