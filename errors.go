package corosched

import (
	"errors"
	"fmt"
)

// Errors surfaced by Scheduler.Run and the I/O adapter template.
var (
	// ErrShutdown is returned by operations attempted against a
	// Scheduler that has latched Shutdown.
	ErrShutdown = errors.New("corosched: scheduler is shutting down")

	// ErrNoProcessor is returned by statics that require a current
	// processor (none is available from the calling thread).
	ErrNoProcessor = errors.New("corosched: no current processor")

	// ErrTimedOut is the synthetic error delivered to a task parked
	// with a per-operation timeout when that timeout expires before
	// the descriptor becomes ready.
	ErrTimedOut = errors.New("corosched: operation timed out")
)

// Channel errors. Empty/Full/Disconnected are sentinels checked with
// errors.Is; TryRecvError and TrySendError wrap them so the caller can
// still recover T on a failed send.
var (
	ErrEmpty        = errors.New("corosched: channel empty")
	ErrFull         = errors.New("corosched: channel full")
	ErrDisconnected = errors.New("corosched: channel disconnected")
)

// RecvError is returned by Receiver.Recv/SyncReceiver.Recv when the
// channel has no sender left.
type RecvError struct{}

func (RecvError) Error() string { return ErrDisconnected.Error() }
func (RecvError) Unwrap() error { return ErrDisconnected }

// SendError is returned by Sender.Send/SyncSender.Send when the
// channel has no receiver left; it carries the unsent value back so
// the caller isn't forced to drop it.
type SendError[T any] struct {
	Value T
}

func (SendError[T]) Error() string { return ErrDisconnected.Error() }
func (SendError[T]) Unwrap() error { return ErrDisconnected }

// TryRecvError reports why a non-blocking receive failed.
type TryRecvError struct {
	err error
}

func (e TryRecvError) Error() string { return e.err.Error() }
func (e TryRecvError) Unwrap() error { return e.err }

// TrySendError reports why a non-blocking send failed, carrying the
// value back so the caller can retry or drop it.
type TrySendError[T any] struct {
	Value T
	err   error
}

func (e TrySendError[T]) Error() string { return e.err.Error() }
func (e TrySendError[T]) Unwrap() error { return e.err }

// PanicError wraps a panic recovered from the entry task, so it can
// propagate through Scheduler.Run as an error rather than crashing the
// launching goroutine. A panic in a spawned coroutine is logged, not
// wrapped in a PanicError.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("corosched: task panicked: %v", e.Value)
}

// forceUnwind is the sentinel panic value used to unwind a coroutine's
// stack during scheduler shutdown. It is recovered internally and must
// never escape Scheduler.Run.
type forceUnwind struct{}
