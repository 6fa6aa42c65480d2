package executor

import (
	"time"
)

// timerQueue is the executor's integrated timer queue: an intrusive,
// unordered list of tasks with a pending deadline. Every field it touches
// is owned by the executor's poll loop, so it needs no synchronization.
//
// Each task has at most one deadline (the earliest requested during its
// last poll), so the list never holds more entries than there are tasks.
type timerQueue struct {
	head *taskHeader
}

// schedule adds t, whose expiresAt is already set, if not present.
func (q *timerQueue) schedule(t *taskHeader) {
	if t.timerLinked {
		return
	}
	t.timerNext = q.head
	t.timerLinked = true
	q.head = t
}

// remove unlinks t, if present.
func (q *timerQueue) remove(t *taskHeader) {
	if !t.timerLinked {
		return
	}
	for p := &q.head; *p != nil; p = &(*p).timerNext {
		if *p == t {
			*p = t.timerNext
			break
		}
	}
	t.timerNext = nil
	t.timerLinked = false
}

// expire wakes every task whose deadline is not after now, drops tasks that
// no longer wait on a deadline, and returns the earliest remaining deadline,
// or the zero time.
func (q *timerQueue) expire(now time.Time, wake func(t *taskHeader)) (next time.Time) {
	p := &q.head
	for *p != nil {
		t := *p
		if t.expiresAt.IsZero() || !t.expiresAt.After(now) {
			*p = t.timerNext
			t.timerNext = nil
			t.timerLinked = false
			if !t.expiresAt.IsZero() {
				t.expiresAt = time.Time{}
				wake(t)
			}
			continue
		}
		if next.IsZero() || t.expiresAt.Before(next) {
			next = t.expiresAt
		}
		p = &t.timerNext
	}
	return next
}

// empty reports whether no task waits on a deadline.
func (q *timerQueue) empty() bool {
	return q.head == nil
}
