package executor

import (
	"sync/atomic"
)

// Waker is a handle that marks a task runnable and notifies its executor.
//
// A Waker is a plain value, safe to copy and to invoke from any goroutine,
// including interrupt handlers. It identifies the task by slot and
// generation, so invoking a Waker after its task has completed (or after the
// slot has been reused) is a no-op. Any number of wakes between two polls
// result in exactly one run queue entry.
//
// The zero Waker is valid and does nothing.
type Waker struct {
	task *taskHeader
	gen  uint32
}

// Wake marks the task runnable. If this call linked the task into its
// executor's run queue, the executor's wake signal is pended.
//
// The only loop inside Wake is the CAS retry of the run queue push.
func (w Waker) Wake() {
	t := w.task
	if t == nil {
		return
	}
	x := t.executor.Load()
	if x == nil {
		return
	}
	switch t.state.tryQueue(w.gen) {
	case wakeEnqueue:
		x.queue.link(t)
		x.pend()
	case wakeDeferred:
		x.metrics.incDeferredWake()
	}
}

// IsZero reports whether w is the zero Waker.
func (w Waker) IsZero() bool {
	return w.task == nil
}

// WillWake reports whether w and other wake the same task.
func (w Waker) WillWake(other Waker) bool {
	return w == other
}

// AtomicWaker holds at most one Waker, registered by a task and taken by an
// event source, e.g. an interrupt handler.
//
// Register and Wake may race freely. A Wake that overlaps a Register never
// loses the newly registered waker: either Wake observes it, or Register
// wakes it itself. Concurrent Register calls are a usage error (a slot has a
// single owner); the losing registration is woken immediately so that it
// re-polls rather than hangs.
//
// The zero value is ready to use. An AtomicWaker must not be copied after
// first use.
type AtomicWaker struct {
	_     [0]func()
	state atomic.Uint32
	waker Waker
}

const (
	atomicWakerWaiting     uint32 = 0
	atomicWakerRegistering uint32 = 1
	atomicWakerWaking      uint32 = 2
)

// Register stores w, replacing any previously registered waker.
func (a *AtomicWaker) Register(w Waker) {
	if !a.state.CompareAndSwap(atomicWakerWaiting, atomicWakerRegistering) {
		// a Wake is in progress, or a concurrent Register
		w.Wake()
		return
	}
	a.waker = w
	if a.state.CompareAndSwap(atomicWakerRegistering, atomicWakerWaiting) {
		return
	}
	// Wake arrived while registering, it left the waker for us to fire
	w = a.waker
	a.waker = Waker{}
	a.state.Store(atomicWakerWaiting)
	w.Wake()
}

// Wake takes the registered waker, if any, and wakes it.
func (a *AtomicWaker) Wake() {
	if w, ok := a.take(); ok {
		w.Wake()
	}
}

func (a *AtomicWaker) take() (Waker, bool) {
	if a.state.Or(atomicWakerWaking) != atomicWakerWaiting {
		// either registering (Register fires it) or another Wake owns it
		return Waker{}, false
	}
	w := a.waker
	a.waker = Waker{}
	a.state.And(^atomicWakerWaking)
	return w, !w.IsZero()
}
