package corosched

import (
	"math/rand"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/xlaez/corosched/internal/deque"
	"github.com/xlaez/corosched/internal/tls"
)

// procMsgKind is the tag of a procMessage.
type procMsgKind int

const (
	msgNewNeighbor procMsgKind = iota
	msgReady
	msgShutdown
)

// procMessage is the inbox payload a Processor's mailbox carries: a
// new sibling stealer, a handle to resume, or the shutdown latch.
type procMessage struct {
	kind     procMsgKind
	neighbor *deque.Deque[*coroutine]
	handle   *coroutine
}

// Processor is the per-OS-thread task runner: a local work-stealing
// run queue, an inbox of control messages from any thread, and the
// scheduling loop that drains both before stealing from siblings and
// finally parking the OS thread.
type Processor struct {
	id       int
	sched    *Scheduler
	weakSelf procRef

	runQ      *deque.Deque[*coroutine]
	neighbors []*deque.Deque[*coroutine]

	inbox  chan procMessage
	backCh chan struct{}

	current    *coroutine
	lastState  State
	takeCoroCb func(*coroutine)
	isExiting  bool

	rng    *rand.Rand
	logger zerolog.Logger
}

func newProcessor(id int, sched *Scheduler, ref procRef) *Processor {
	return &Processor{
		id:       id,
		sched:    sched,
		weakSelf: ref,
		runQ:     deque.New[*coroutine](64),
		inbox:    make(chan procMessage, 1024),
		backCh:   make(chan struct{}),
		rng:      rand.New(rand.NewSource(int64(id)*2654435761 + 1)),
		logger:   sched.cfg.logger.With().Int("processor", id).Logger(),
	}
}

// runLoop pins this processor's scheduling loop to one dedicated OS
// thread and runs schedule() until shutdown.
func (p *Processor) runLoop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	procRegistry.Set(tls.GoID(), p)
	p.schedule()
}

// spawnOpts creates a coroutine and records this processor as its
// preference. Called from within a running task, it parks the caller
// and pushes both handles so the new task runs next; called from
// outside a task, it simply enqueues the new task.
func (p *Processor) spawnOpts(fn func(), opts Options) *coroutine {
	id := p.sched.nextCoroID()
	c := newCoroutine(id, fn, opts)
	c.preferred = p.weakSelf
	p.sched.trackCoroutine(c)

	if p.current != nil {
		runQ := p.runQ
		p.takeCurrentCoroutine(func(self *coroutine) {
			// Insert self first so the new coroutine ends up at the
			// front of the owner's deque (LIFO locality): a freshly
			// spawned task always runs before its spawner resumes.
			runQ.PushBottom(self)
			runQ.PushBottom(c)
		})
	} else {
		p.ready(c)
	}
	return c
}

// ready enqueues a handle at the worker end of the local deque.
// Callable only from this processor's own goroutine.
func (p *Processor) ready(h *coroutine) {
	p.runQ.PushBottom(h)
}

// schedYield yields the current task with StateSuspended, the
// cooperative yield point. resume pushes the task back onto the worker
// end of the local deque, the same end schedule pops from next.
func (p *Processor) schedYield() {
	yieldWith(StateSuspended)
}

// takeCurrentCoroutine is the parking primitive: it stores cb, yields
// with StateBlocked, and trusts the scheduling loop to invoke cb with
// the just-yielded handle exactly once, on the processor's own
// goroutine, once resume() observes StateBlocked.
func (p *Processor) takeCurrentCoroutine(cb func(*coroutine)) {
	h := p.current
	h.woken.Store(false)
	p.sched.markParked(h)
	if p.sched.shuttingDown.Load() {
		// Shutdown latched between this task's last resume and this
		// park: nothing will ever naturally wake it (the event it is
		// about to wait for may never arrive), so give it the same
		// forced wake forceUnwindParked would have given it had it
		// already been parked.
		p.sched.readyHandle(h)
	}
	p.takeCoroCb = cb
	yieldWith(StateBlocked)
}

// schedule is the processor's scheduling loop.
func (p *Processor) schedule() {
outer:
	for {
		for {
			h, ok := p.runQ.PopBottom()
			if !ok {
				break
			}
			p.resume(h)
		}

		if p.isExiting {
			break
		}

		resumedAny := false
	drainInbox:
		for {
			select {
			case msg := <-p.inbox:
				resumedAny = p.handleMessage(msg) || resumedAny
			default:
				break drainInbox
			}
		}
		if resumedAny {
			continue outer
		}

		if total := len(p.neighbors); total > 0 {
			start := p.rng.Intn(total)
			for i := 0; i < total; i++ {
				idx := (start + i) % total
				if h, ok := p.neighbors[idx].StealTop(); ok {
					p.logger.Debug().Int("victim", idx).Msg("processor: stole task")
					p.resume(h)
					continue outer
				}
			}
		}

		msg := <-p.inbox
		p.handleMessage(msg)
	}
}

// handleMessage applies one inbox message and reports whether it
// produced new local work (Ready) or latched shutdown, either of which
// should make the scheduling loop prefer another local-queue pass over
// stealing.
func (p *Processor) handleMessage(msg procMessage) bool {
	switch msg.kind {
	case msgNewNeighbor:
		p.neighbors = append(p.neighbors, msg.neighbor)
		return false
	case msgShutdown:
		p.logger.Info().Msg("processor: shutdown latched")
		p.isExiting = true
		return true
	case msgReady:
		msg.handle.preferred = p.weakSelf
		p.ready(msg.handle)
		return true
	default:
		return false
	}
}

// resume transfers control to h and, once it yields or finishes,
// dispatches on the reason.
func (p *Processor) resume(h *coroutine) {
	p.sched.unmarkParked(h)
	p.current = h
	if !h.started {
		h.start(p)
	} else {
		procRegistry.Set(h.goid, p)
		h.resumeCh <- struct{}{}
	}

	<-p.backCh
	p.current = nil

	switch p.lastState {
	case StateSuspended:
		p.ready(h)
	case StateBlocked:
		cb := p.takeCoroCb
		p.takeCoroCb = nil
		cb(h)
	case StateFinished:
		p.sched.finished(h)
	}
}
