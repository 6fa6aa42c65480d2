package executor

import (
	"strconv"
	"sync/atomic"
	"time"
)

// Future is a resumable state machine, driven by an executor.
//
// Poll advances the state machine and reports whether it has completed. It
// must never block. A future that cannot make progress must arrange for the
// task to be woken (by storing cx.Waker() with some event source, or by
// calling cx.WakeAt) and then return false. Spurious polls are permitted, so
// Poll must tolerate being called when nothing has changed.
//
// The Context is only valid for the duration of the call.
type Future interface {
	Poll(cx *Context) bool
}

// FutureFunc adapts an ordinary function to the Future interface. State must
// be captured by the function itself, which means it is usually allocated
// once, when the closure is created, not per poll.
type FutureFunc func(cx *Context) bool

// Poll implements Future.
func (f FutureFunc) Poll(cx *Context) bool {
	return f(cx)
}

// taskHeader is the task control block embedded in every pool slot.
type taskHeader struct {
	// Intrusive run queue link, only meaningful while linked.
	next atomic.Pointer[taskHeader]

	// Owning executor for the current occupant, set once per spawn.
	executor atomic.Pointer[raw]

	// Type-erased entry points, bound once when the pool is constructed.
	poll  func(cx *Context) bool
	reset func()

	pool  *poolInfo
	index int

	// Fields below are owned by the executor goroutine.
	expiresAt   time.Time
	timerNext   *taskHeader
	timerLinked bool

	state taskState
}

// name identifies the task in logs and errors, e.g. "blink[2]".
func (t *taskHeader) name() string {
	if t == nil {
		return "<nil>"
	}
	if t.pool == nil || t.pool.name == "" {
		return "task[" + strconv.Itoa(t.index) + "]"
	}
	return t.pool.name + "[" + strconv.Itoa(t.index) + "]"
}

// Context is passed to Future.Poll. It is reused by the executor between
// polls, so futures must not retain it.
type Context struct {
	exec  *raw
	task  *taskHeader
	waker Waker
}

// Waker returns the waker for the task being polled.
func (cx *Context) Waker() Waker {
	return cx.waker
}

// Now returns the current time, per the executor's clock.
func (cx *Context) Now() time.Time {
	return cx.exec.now()
}

// WakeAt arranges for the task being polled to be woken at or after the
// deadline, using the executor's integrated timer queue. If called several
// times during one poll, the earliest deadline wins. The request lapses when
// the task is next polled, so pending futures must re-arm on every poll.
func (cx *Context) WakeAt(deadline time.Time) {
	t := cx.task
	if t.expiresAt.IsZero() || deadline.Before(t.expiresAt) {
		t.expiresAt = deadline
	}
}

// Spawner returns a Spawner for the executor running the current task.
func (cx *Context) Spawner() Spawner {
	return Spawner{exec: cx.exec}
}

// ExecutorID returns the identifier of the executor running the current task.
func (cx *Context) ExecutorID() uint64 {
	return cx.exec.id
}

// TaskName returns the name of the task being polled.
func (cx *Context) TaskName() string {
	return cx.task.name()
}
