package executor

import (
	"time"
)

// Timer is a one-shot timer future, completing at or after its deadline.
// It is a plain value, intended to be embedded in the future that awaits it.
type Timer struct {
	deadline time.Time
	delay    time.Duration
	resolved bool
}

var _ Future = (*Timer)(nil)

// Sleep returns a Timer that completes d after it is first polled.
func Sleep(d time.Duration) Timer {
	return Timer{delay: d}
}

// Until returns a Timer that completes at or after deadline.
func Until(deadline time.Time) Timer {
	return Timer{deadline: deadline, resolved: true}
}

// Poll implements Future.
func (t *Timer) Poll(cx *Context) bool {
	now := cx.Now()
	if !t.resolved {
		t.deadline = now.Add(t.delay)
		t.resolved = true
	}
	if !now.Before(t.deadline) {
		return true
	}
	cx.WakeAt(t.deadline)
	return false
}

// Deadline returns the timer's deadline, or the zero time if it is relative
// and has not been polled yet.
func (t *Timer) Deadline() time.Time {
	if !t.resolved {
		return time.Time{}
	}
	return t.deadline
}

// Ticker is a periodic timer. Ticks are scheduled relative to the previous
// tick, not to when it was observed, so a late poll does not accumulate
// drift; if polling falls behind by several periods, each of the missed
// ticks is reported, one per call.
type Ticker struct {
	next   time.Time
	period time.Duration
}

// NewTicker returns a Ticker with the given period, the first tick falling
// one period after the first call to Next. It panics if period is not
// positive.
func NewTicker(period time.Duration) Ticker {
	if period <= 0 {
		panic(`executor: ticker period must be positive`)
	}
	return Ticker{period: period}
}

// Next reports whether a tick is due, consuming it. If not, it arranges for
// the task to be woken at the next tick.
func (t *Ticker) Next(cx *Context) bool {
	now := cx.Now()
	if t.next.IsZero() {
		t.next = now.Add(t.period)
	}
	if !now.Before(t.next) {
		t.next = t.next.Add(t.period)
		return true
	}
	cx.WakeAt(t.next)
	return false
}

// Reset restarts the ticker; the next tick falls one period after the next
// call to Next.
func (t *Ticker) Reset() {
	t.next = time.Time{}
}

// Period returns the tick period.
func (t *Ticker) Period() time.Duration {
	return t.period
}

// Timeout races a future against a timer. It completes when either does;
// TimedOut reports which. Once the timer wins, the inner future is never
// polled again.
type Timeout[F Future] struct {
	future   F
	timer    Timer
	done     bool
	timedOut bool
}

// WithTimeout wraps f so that it completes no later than d after its first
// poll.
func WithTimeout[F Future](f F, d time.Duration) Timeout[F] {
	return Timeout[F]{future: f, timer: Sleep(d)}
}

// Poll implements Future.
func (t *Timeout[F]) Poll(cx *Context) bool {
	if t.done {
		return true
	}
	if t.future.Poll(cx) {
		t.done = true
		return true
	}
	if t.timer.Poll(cx) {
		t.done = true
		t.timedOut = true
		return true
	}
	return false
}

// TimedOut reports whether the timer completed before the inner future.
func (t *Timeout[F]) TimedOut() bool {
	return t.timedOut
}

// Future returns the inner future.
func (t *Timeout[F]) Future() F {
	return t.future
}
