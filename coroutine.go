package corosched

import (
	"runtime/debug"
	"sync/atomic"

	"github.com/xlaez/corosched/internal/tls"
)

// State is a coroutine's yield reason, communicated from its own
// goroutine back to the Processor driving it.
type State int

const (
	// StateSuspended means the task yielded voluntarily (Sched) and
	// should be requeued for another turn.
	StateSuspended State = iota
	// StateBlocked means the task parked itself on a channel or I/O
	// wait list via takeCurrentCoroutine.
	StateBlocked
	// StateFinished means the task's closure returned or panicked.
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateSuspended:
		return "suspended"
	case StateBlocked:
		return "blocked"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// procRegistry maps a goroutine id to the Processor currently driving
// whatever is running on that goroutine, a goroutine-local stand-in
// for a thread-local "current processor" pointer.
var procRegistry = tls.NewRegistry[*Processor]()

func currentProcessor() (*Processor, bool) {
	return procRegistry.Get(tls.GoID())
}

// coroutine is a stackful execution unit backed by a dedicated
// goroutine. Exactly one of {the owning Processor's loop goroutine,
// this coroutine's goroutine} ever runs at a time, handed off through
// the unbuffered resumeCh — the rendezvous switch standing in for
// yield_to's register swap.
type coroutine struct {
	id      uint64
	name    string
	fn      func()
	opts    Options
	started bool
	goid    int64

	resumeCh chan struct{}

	// preferred is the weak reference to this coroutine's preferred
	// processor, set on first schedule and on every I/O/channel wake.
	preferred procRef

	// woken guards a parked coroutine against being delivered a ready
	// message twice — once by whatever it was actually waiting on and
	// once by a concurrent forced wake during shutdown. Reset to false
	// each time the coroutine parks; whichever wake source wins the
	// compare-and-swap is the one that actually runs it.
	woken atomic.Bool

	panicVal any
	stack    []byte

	// ioErr is the side channel wait_event uses to report a timeout
	// or other I/O error to the task that just woke up. Write-once
	// between io driver wake and the task's next instruction, so no
	// lock is needed: the wake-then-resume handoff already orders it.
	ioErr error
}

func newCoroutine(id uint64, fn func(), opts Options) *coroutine {
	return &coroutine{
		id:       id,
		name:     opts.Name,
		fn:       fn,
		opts:     opts,
		resumeCh: make(chan struct{}),
	}
}

// start launches the coroutine's goroutine for the very first time.
// The caller (Processor.resume) must not also send on resumeCh for
// this first activation: the goroutine launch is itself the signal.
func (c *coroutine) start(p *Processor) {
	c.started = true
	go c.run(p)
}

func (c *coroutine) run(p *Processor) {
	c.goid = tls.GoID()
	procRegistry.Set(c.goid, p)

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(forceUnwind); !ok {
				c.panicVal = r
				c.stack = debug.Stack()
			}
		}
		cur, ok := currentProcessor()
		if !ok {
			// Should be unreachable: a coroutine always has a current
			// processor at the moment it finishes, since it can only
			// be running because some Processor.resume handed it
			// control.
			panic("corosched: coroutine finished with no current processor")
		}
		cur.lastState = StateFinished
		procRegistry.Delete(c.goid)
		cur.backCh <- struct{}{}
	}()

	if p.sched.shuttingDown.Load() {
		// Shutdown latched before this coroutine ever got to run: it
		// never established a stack to unwind, so there is nothing to
		// force-panic through. Finish it without running its body.
		return
	}

	c.fn()
}

// yieldWith records the yield reason and hands control back to the
// processor currently driving this coroutine, blocking until it is
// resumed again. On resume it looks up the (possibly different, if
// migrated) current processor and, if that processor's Scheduler has
// latched shutdown, panics with forceUnwind to force a clean unwind of
// the coroutine's stack.
func yieldWith(state State) {
	p, ok := currentProcessor()
	if !ok {
		panic("corosched: yieldWith called with no current processor")
	}
	h := p.current
	p.lastState = state
	p.backCh <- struct{}{}

	<-h.resumeCh

	np, ok := currentProcessor()
	if !ok {
		panic("corosched: coroutine resumed with no current processor")
	}
	if np.sched.shuttingDown.Load() {
		panic(forceUnwind{})
	}
}
