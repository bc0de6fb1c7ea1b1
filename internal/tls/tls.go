// Package tls provides a goroutine-local lookup table.
//
// The runtime.Stack goroutine-id trick stands in for the thread-local
// storage the original used to locate "the processor running on this
// thread". A Processor pins one goroutine to one OS thread for its
// whole life via runtime.LockOSThread, and hands execution to a task's
// own goroutine only while it is itself blocked waiting for the task to
// yield back — so at any instant at most one of those two goroutines is
// actually runnable, and re-registering the owning Processor against
// whichever of the two goroutine ids is currently live is race-free.
package tls

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// Registry maps a goroutine id to a value of type T.
type Registry[T any] struct {
	mu sync.RWMutex
	m  map[int64]T
}

// NewRegistry returns an empty Registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{m: make(map[int64]T)}
}

// Set associates v with goid.
func (r *Registry[T]) Set(goid int64, v T) {
	r.mu.Lock()
	r.m[goid] = v
	r.mu.Unlock()
}

// Get returns the value associated with goid, if any.
func (r *Registry[T]) Get(goid int64) (v T, ok bool) {
	r.mu.RLock()
	v, ok = r.m[goid]
	r.mu.RUnlock()
	return v, ok
}

// Delete removes any value associated with goid.
func (r *Registry[T]) Delete(goid int64) {
	r.mu.Lock()
	delete(r.m, goid)
	r.mu.Unlock()
}

// GoID returns the id of the calling goroutine, parsed out of the
// runtime's "goroutine 123 [running]:" stack header. It is only ever
// used as a cheap, process-local key; callers must not assume it is
// stable beyond the goroutine's lifetime.
func GoID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]

	const prefix = "goroutine "
	if !bytes.HasPrefix(b, []byte(prefix)) {
		return -1
	}
	b = b[len(prefix):]

	end := bytes.IndexByte(b, ' ')
	if end < 0 {
		return -1
	}

	id, err := strconv.ParseInt(string(b[:end]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
