package corosched

import (
	"runtime/debug"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// procRef is a weak reference to a Processor: an index into the
// Scheduler's processor arena plus a generation counter, so a stale
// reference to an already-recycled slot is detected instead of
// silently resolving to the wrong Processor.
type procRef struct {
	id  int
	gen uint32
}

// procSlot is one arena entry backing Scheduler.upgrade.
type procSlot struct {
	proc *Processor
	gen  uint32
}

// Scheduler owns the fixed pool of Processor threads, the I/O driver,
// and the bookkeeping needed to run one entry task to completion and
// shut the pool down afterward.
type Scheduler struct {
	cfg config

	arena     []procSlot
	procs     []*Processor
	coroIDCtr atomic.Uint64

	io *ioDriver

	// entryDone fires exactly once, when the entry task's own closure
	// returns or panics. Shutdown is gated on this, not on the whole
	// task graph going idle — a task blocked waiting for its next
	// Accept() would otherwise keep the graph non-idle forever.
	entryDone chan struct{}

	shuttingDown atomic.Bool

	// coroMu guards liveCoros and parked. liveCoros tracks every
	// coroutine from creation to StateFinished; parked is the subset
	// currently blocked on a channel or I/O wait, the set shutdown
	// force-wakes so they observe shuttingDown instead of waiting on an
	// event that may never arrive.
	coroMu    sync.Mutex
	coroCond  sync.Cond
	liveCoros map[uint64]*coroutine
	parked    map[uint64]*coroutine
}

// activeScheduler lets package-level statics (Spawn, Sched, SleepMs)
// reach the Scheduler driving the calling goroutine's coroutine,
// without threading it through every call site.
var activeScheduler atomic.Pointer[Scheduler]

// New constructs a Scheduler but does not start it; call Run to spawn
// the processor pool and execute an entry task.
func New(opts ...Option) *Scheduler {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	s := &Scheduler{cfg: cfg}
	s.arena = make([]procSlot, cfg.workers)
	s.entryDone = make(chan struct{}, 1)
	s.liveCoros = make(map[uint64]*coroutine)
	s.parked = make(map[uint64]*coroutine)
	s.coroCond.L = &s.coroMu
	return s
}

func (s *Scheduler) nextCoroID() uint64 {
	return s.coroIDCtr.Add(1)
}

// register installs p into the arena slot reserved for it and returns
// a procRef for it.
func (s *Scheduler) register(id int, p *Processor) procRef {
	s.arena[id] = procSlot{proc: p, gen: s.arena[id].gen + 1}
	return procRef{id: id, gen: s.arena[id].gen}
}

// upgrade resolves a procRef back to its Processor, reporting false if
// that slot has since been recycled (generation mismatch) or never
// assigned.
func (s *Scheduler) upgrade(ref procRef) (*Processor, bool) {
	if ref.id < 0 || ref.id >= len(s.arena) {
		return nil, false
	}
	slot := s.arena[ref.id]
	if slot.proc == nil || slot.gen != ref.gen {
		return nil, false
	}
	return slot.proc, true
}

// Run spawns the processor pool and the I/O driver and runs entry as
// the first task on processor 0. Shutdown latches as soon as the entry
// task's own closure resolves — not when the whole task graph goes
// idle, which a task parked on its next Accept() would never reach.
// Once latched, every coroutine still parked is force-woken so it
// observes shutdown and unwinds via forceUnwind (coroutines that are
// runnable observe it at their next yield), Run waits for the
// graph to actually drain, then broadcasts shutdown to the processor
// pool, joins their threads, and returns the first panic recovered from
// the entry task, wrapped in *PanicError, or nil.
func (s *Scheduler) Run(entry func()) error {
	if !activeScheduler.CompareAndSwap(nil, s) {
		return ErrShutdown
	}
	defer activeScheduler.Store(nil)

	s.io = newIODriver(s, s.cfg.ioPollInterval, s.cfg.logger)
	if err := s.io.start(); err != nil {
		return err
	}

	s.procs = make([]*Processor, s.cfg.workers)
	for i := 0; i < s.cfg.workers; i++ {
		p := newProcessor(i, s, procRef{})
		ref := s.register(i, p)
		p.weakSelf = ref
		s.procs[i] = p
	}
	for i, p := range s.procs {
		for j, nb := range s.procs {
			if i == j {
				continue
			}
			p.inbox <- procMessage{kind: msgNewNeighbor, neighbor: nb.runQ}
		}
	}

	var wg sync.WaitGroup
	wg.Add(len(s.procs))
	for _, p := range s.procs {
		p := p
		go func() {
			defer wg.Done()
			p.runLoop()
		}()
	}

	var panicVal any
	var panicStack []byte

	main := s.procs[0]
	main.spawnOutsideTask(func() {
		defer func() {
			if r := recover(); r != nil {
				panicVal = r
				panicStack = debug.Stack()
			}
			s.entryDone <- struct{}{}
		}()
		entry()
	}, Options{StackHint: s.cfg.stackHint})

	<-s.entryDone

	s.shuttingDown.Store(true)
	s.forceUnwindParked()
	s.waitAllFinished()

	for _, p := range s.procs {
		p.inbox <- procMessage{kind: msgShutdown}
	}

	var eg errgroup.Group
	eg.Go(func() error {
		wg.Wait()
		return nil
	})
	_ = eg.Wait()

	s.io.shutdown()

	if panicVal != nil {
		return &PanicError{Value: panicVal, Stack: panicStack}
	}
	return nil
}

// spawnOutsideTask enqueues fn as a brand-new coroutine on p without
// assuming a task is currently running on p — the path Run itself uses
// to seed the entry task, as distinct from Processor.spawnOpts's
// in-task LIFO-locality path.
func (p *Processor) spawnOutsideTask(fn func(), opts Options) *coroutine {
	id := p.sched.nextCoroID()
	c := newCoroutine(id, fn, opts)
	c.preferred = p.weakSelf
	p.sched.trackCoroutine(c)
	p.inbox <- procMessage{kind: msgReady, handle: c}
	return c
}

// trackCoroutine records c as live, from the moment it is created until
// it reaches StateFinished.
func (s *Scheduler) trackCoroutine(c *coroutine) {
	s.coroMu.Lock()
	s.liveCoros[c.id] = c
	s.coroMu.Unlock()
}

// untrackCoroutine drops c from the live set and wakes anyone blocked
// in waitAllFinished once the set empties.
func (s *Scheduler) untrackCoroutine(c *coroutine) {
	s.coroMu.Lock()
	delete(s.liveCoros, c.id)
	delete(s.parked, c.id)
	empty := len(s.liveCoros) == 0
	s.coroMu.Unlock()
	if empty {
		s.coroCond.Broadcast()
	}
}

// markParked records c as currently blocked on a channel or I/O wait.
func (s *Scheduler) markParked(c *coroutine) {
	s.coroMu.Lock()
	s.parked[c.id] = c
	s.coroMu.Unlock()
}

// unmarkParked clears c's parked status. Safe to call even if c was
// never marked.
func (s *Scheduler) unmarkParked(c *coroutine) {
	s.coroMu.Lock()
	delete(s.parked, c.id)
	s.coroMu.Unlock()
}

// forceUnwindParked force-wakes every coroutine currently parked on a
// channel or I/O wait, so each observes shuttingDown on resume and
// unwinds via forceUnwind instead of waiting indefinitely for an event
// that shutdown may have made unreachable. New parks registered after
// shuttingDown latches self-deliver the same wake via
// takeCurrentCoroutine, so this sweep only needs to cover whoever was
// already parked at the moment shutdown began.
func (s *Scheduler) forceUnwindParked() {
	s.coroMu.Lock()
	targets := make([]*coroutine, 0, len(s.parked))
	for _, h := range s.parked {
		targets = append(targets, h)
	}
	s.coroMu.Unlock()
	for _, h := range targets {
		s.readyHandle(h)
	}
}

// waitAllFinished blocks until every tracked coroutine, forced or
// still running its own course toward its next yield point, has
// finished.
func (s *Scheduler) waitAllFinished() {
	s.coroMu.Lock()
	for len(s.liveCoros) > 0 {
		s.coroCond.Wait()
	}
	s.coroMu.Unlock()
}

// finished is called by a Processor when one of its coroutines reaches
// StateFinished. It records any panic value for diagnostics and drops
// the coroutine from the live set.
func (s *Scheduler) finished(h *coroutine) {
	if h.panicVal != nil {
		s.cfg.logger.Error().
			Uint64("coroutine", h.id).
			Str("name", h.name).
			Interface("panic", h.panicVal).
			Msg("scheduler: task panicked")
	}
	s.untrackCoroutine(h)
}

// readyHandle reschedules h from any context: the I/O driver's own
// goroutine, a channel's waker running on an arbitrary thread, or a
// cross-processor steal target. It prefers h's last processor via its
// weak reference and falls back to processor 0 if that processor has
// since exited. The woken compare-and-swap guarantees h is enqueued at
// most once per park, even if its real wait condition and a forced
// shutdown wake race to deliver it.
func (s *Scheduler) readyHandle(h *coroutine) {
	if !h.woken.CompareAndSwap(false, true) {
		return
	}
	if p, ok := s.upgrade(h.preferred); ok {
		p.inbox <- procMessage{kind: msgReady, handle: h}
		return
	}
	if len(s.procs) == 0 {
		return
	}
	s.procs[0].inbox <- procMessage{kind: msgReady, handle: h}
}

// Spawn schedules fn as a new coroutine on the active Scheduler. It
// may be called both from within a running task and from an ordinary
// goroutine outside any Scheduler.Run call stack, so long as some
// Scheduler is currently running.
func Spawn(fn func()) error {
	opts := DefaultOptions()
	if s := activeScheduler.Load(); s != nil {
		opts.StackHint = s.cfg.stackHint
	}
	return SpawnOpts(fn, opts)
}

// SpawnOpts is Spawn with explicit Options, e.g. to name the coroutine
// for logging.
func SpawnOpts(fn func(), opts Options) error {
	s := activeScheduler.Load()
	if s == nil || s.shuttingDown.Load() {
		return ErrShutdown
	}
	if p, ok := currentProcessor(); ok {
		p.spawnOpts(fn, opts)
		return nil
	}
	s.procs[0].spawnOutsideTask(fn, opts)
	return nil
}

// Sched voluntarily yields the calling coroutine with StateSuspended.
// The owning Processor pushes it back onto the worker end of its local
// deque and pops that same end next, so the caller resumes at once
// unless another Processor steals it first; other tasks queued on the
// same Processor do not run in between.
func Sched() error {
	p, ok := currentProcessor()
	if !ok {
		return ErrNoProcessor
	}
	p.schedYield()
	return nil
}

// SleepMs parks the calling coroutine for at least ms milliseconds
// without blocking its OS thread, using the I/O driver's timer wheel.
func SleepMs(ms int64) error {
	p, ok := currentProcessor()
	if !ok {
		return ErrNoProcessor
	}
	p.takeCurrentCoroutine(func(h *coroutine) {
		p.sched.io.registerSleep(h, ms)
	})
	return nil
}
