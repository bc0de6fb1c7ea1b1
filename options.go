package corosched

import (
	"runtime"
	"time"

	"github.com/rs/zerolog"
)

// Options configures a single spawned coroutine.
type Options struct {
	// StackHint is a hint at the goroutine's expected stack depth,
	// recorded for diagnostics only: Go grows goroutine stacks on
	// demand, so this never actually reserves memory up front.
	// Default 128 KiB.
	StackHint int

	// Name, if set, is attached to log lines mentioning this
	// coroutine.
	Name string
}

// DefaultOptions returns the Options Spawn starts from; Spawn then
// replaces StackHint with the running Scheduler's WithStackSize value.
func DefaultOptions() Options {
	return Options{StackHint: 128 * 1024}
}

// config holds the Scheduler builder's settings.
type config struct {
	workers        int
	stackHint      int
	logger         zerolog.Logger
	ioPollInterval time.Duration
}

func defaultConfig() config {
	return config{
		workers:        max(1, runtime.NumCPU()),
		stackHint:      128 * 1024,
		logger:         zerolog.Nop(),
		ioPollInterval: 100 * time.Millisecond,
	}
}

// Option configures a Scheduler built with New.
type Option func(*config)

// WithWorkers sets the number of processor threads. Values below 1 are
// clamped to 1.
func WithWorkers(n int) Option {
	return func(c *config) {
		if n < 1 {
			n = 1
		}
		c.workers = n
	}
}

// WithStackSize sets the default per-spawn stack hint in bytes.
func WithStackSize(bytes int) Option {
	return func(c *config) {
		if bytes > 0 {
			c.stackHint = bytes
		}
	}
}

// WithLogger attaches a structured logger; the scheduler, its
// processors, and the I/O driver log lifecycle and scheduling events
// through it. Defaults to a disabled logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithIOPollInterval bounds how long the I/O driver's poll syscall
// blocks when no timer is armed, so it periodically reconsiders
// shutdown even with no pending deadlines.
func WithIOPollInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.ioPollInterval = d
		}
	}
}
