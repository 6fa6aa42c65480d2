package executor

import (
	"sync/atomic"
)

// runQueue is an intrusive, lock-free multi-producer single-consumer stack of
// runnable tasks.
//
// Membership is exactly the set of tasks with StateQueued set that are not
// currently being polled. The Queued flag is acquired by push before linking,
// which collapses any number of wakes between two polls into one entry.
//
// Concurrency Model: MPSC
//   - push: any goroutine, including interrupt handlers; never blocks
//   - drain: ONLY the owning executor's poll loop
//
// Order: drain yields tasks in reverse push order. No FIFO guarantee is made
// across wake batches, only that every task linked before a drain is polled
// by that drain.
type runQueue struct { // betteralign:ignore
	_    [64]byte                   // Cache line padding //nolint:unused
	head atomic.Pointer[taskHeader] // nil means empty
	_    [56]byte                   // Pad to cache line //nolint:unused
}

// push marks the task runnable and links it. It returns true only if this
// call linked the task: false means the generation is stale, the task is
// already queued, or it is running (the poll loop will re-link it).
func (q *runQueue) push(t *taskHeader, gen uint32) bool {
	if t.state.tryQueue(gen) != wakeEnqueue {
		return false
	}
	q.link(t)
	return true
}

// link performs the CAS retry loop. The caller must own the Queued flag.
// It reports whether the queue was empty.
func (q *runQueue) link(t *taskHeader) bool {
	for {
		prev := q.head.Load()
		t.next.Store(prev)
		if q.head.CompareAndSwap(prev, t) {
			return prev == nil
		}
	}
}

// drain atomically takes the whole chain and calls fn for each task. The
// next link is read and cleared before fn runs, so fn may re-link the task.
func (q *runQueue) drain(fn func(t *taskHeader)) int {
	t := q.head.Swap(nil)
	n := 0
	for t != nil {
		next := t.next.Load()
		t.next.Store(nil)
		fn(t)
		n++
		t = next
	}
	return n
}

// empty reports whether the queue appears empty.
// Note: May have false negatives under concurrent modification.
func (q *runQueue) empty() bool {
	return q.head.Load() == nil
}
