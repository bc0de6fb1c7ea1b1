// Package corosched implements an M:N coroutine runtime: stackful
// tasks multiplexed onto a fixed pool of OS threads by a work-stealing
// scheduler, with non-blocking I/O driven by a readiness-based event
// notifier.
//
// # Model
//
// A [Scheduler] owns N [Processor]s, one per OS thread. Each Processor
// runs a local work-stealing run queue of tasks ("coroutines"); when a
// task performs I/O or blocks on a channel it parks itself with the
// scheduler's I/O driver or the channel's wait list and the Processor
// moves on to other work. Tasks are never preempted — they yield only
// at explicit suspension points (Sched, SleepMs, channel ops, I/O ops).
//
// Every descriptor-bearing I/O type (TCP/UDP/UNIX/pipe) implements the
// same nonblocking-retry-and-park template described by the Evented
// interface.
package corosched
