package executor

import (
	"testing"
	"time"
)

// newTestContext returns a Context for polling futures by hand.
func newTestContext() *Context {
	return &Context{exec: new(raw), task: newTestHeader(0)}
}

func TestContext_WakeAtEarliestWins(t *testing.T) {
	cx := newTestContext()
	now := time.Now()

	cx.WakeAt(now.Add(time.Second))
	cx.WakeAt(now.Add(time.Hour))
	if !cx.task.expiresAt.Equal(now.Add(time.Second)) {
		t.Errorf("expiresAt = %v", cx.task.expiresAt)
	}

	cx.WakeAt(now.Add(time.Millisecond))
	if !cx.task.expiresAt.Equal(now.Add(time.Millisecond)) {
		t.Errorf("expiresAt = %v", cx.task.expiresAt)
	}
}

func TestTimer_Until(t *testing.T) {
	cx := newTestContext()

	past := Until(time.Now().Add(-time.Second))
	if !past.Poll(cx) {
		t.Error("past deadline is pending")
	}
	if !cx.task.expiresAt.IsZero() {
		t.Error("due timer armed a wake")
	}

	deadline := time.Now().Add(time.Hour)
	future := Until(deadline)
	if future.Poll(cx) {
		t.Fatal("future deadline completed")
	}
	if !cx.task.expiresAt.Equal(deadline) || !future.Deadline().Equal(deadline) {
		t.Errorf("expiresAt = %v, deadline = %v", cx.task.expiresAt, future.Deadline())
	}
}

func TestTimer_SleepResolvesOnFirstPoll(t *testing.T) {
	cx := newTestContext()

	timer := Sleep(time.Hour)
	if !timer.Deadline().IsZero() {
		t.Fatal("deadline resolved before the first poll")
	}

	before := time.Now()
	if timer.Poll(cx) {
		t.Fatal("completed early")
	}
	deadline := timer.Deadline()
	if deadline.Before(before.Add(time.Hour)) {
		t.Fatalf("deadline %v precedes the first poll", deadline)
	}

	// later polls keep the original deadline
	cx.task.expiresAt = time.Time{}
	if timer.Poll(cx) {
		t.Fatal("completed early")
	}
	if !timer.Deadline().Equal(deadline) || !cx.task.expiresAt.Equal(deadline) {
		t.Errorf("deadline moved to %v", timer.Deadline())
	}

	if !(&Timer{}).Poll(cx) {
		t.Error("zero timer is not due")
	}
}

func TestTicker_DriftFree(t *testing.T) {
	cx := newTestContext()
	const period = time.Hour

	ticker := NewTicker(period)
	if ticker.Period() != period {
		t.Errorf("period = %v", ticker.Period())
	}
	if ticker.Next(cx) {
		t.Fatal("ticked before the first period")
	}
	first := ticker.next
	if !cx.task.expiresAt.Equal(first) {
		t.Fatalf("expiresAt = %v, want %v", cx.task.expiresAt, first)
	}

	// three periods late: each missed tick is reported once, measured from
	// the schedule rather than from the observation
	ticker.next = first.Add(-3 * period)
	for i := range 3 {
		if !ticker.Next(cx) {
			t.Fatalf("tick %d missing", i)
		}
	}
	if !ticker.next.Equal(first) {
		t.Errorf("next = %v, want %v", ticker.next, first)
	}
	cx.task.expiresAt = time.Time{}
	if ticker.Next(cx) {
		t.Error("extra tick")
	}
	if !cx.task.expiresAt.Equal(first) {
		t.Errorf("expiresAt = %v", cx.task.expiresAt)
	}

	ticker.Reset()
	if !ticker.next.IsZero() {
		t.Error("reset kept the schedule")
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Error("NewTicker(0) did not panic")
			}
		}()
		NewTicker(0)
	}()
}

func TestWithTimeout(t *testing.T) {
	t.Run(`inner completes`, func(t *testing.T) {
		cx := newTestContext()
		f := WithTimeout(Ready{}, time.Hour)
		if !f.Poll(cx) || f.TimedOut() {
			t.Fatalf("timed out = %v", f.TimedOut())
		}
		if !f.Poll(cx) {
			t.Error("completed timeout polled pending")
		}
	})

	t.Run(`timer completes`, func(t *testing.T) {
		cx := newTestContext()
		f := WithTimeout(Pending{}, 0)
		if !f.Poll(cx) || !f.TimedOut() {
			t.Fatal("zero timeout did not fire")
		}
	})

	t.Run(`pending`, func(t *testing.T) {
		cx := newTestContext()
		y := Yield()
		f := WithTimeout(&y, time.Hour)
		if f.Poll(cx) {
			t.Fatal("completed early")
		}
		if cx.task.expiresAt.IsZero() {
			t.Fatal("timer not armed")
		}
		if !f.Poll(cx) || f.TimedOut() {
			t.Fatal("inner future did not complete")
		}
		if f.Future() != &y {
			t.Error("Future returned a different value")
		}
	})
}

func TestYield(t *testing.T) {
	cx := newTestContext()
	y := Yield()
	for i, want := range []bool{false, true, true} {
		if got := y.Poll(cx); got != want {
			t.Errorf("poll %d = %v", i, got)
		}
	}
}

func TestReadyPending(t *testing.T) {
	cx := newTestContext()
	if !(Ready{}).Poll(cx) {
		t.Error("Ready is pending")
	}
	if (Pending{}).Poll(cx) {
		t.Error("Pending completed")
	}
	if !FutureFunc(func(*Context) bool { return true }).Poll(cx) {
		t.Error("FutureFunc result ignored")
	}
}

func TestSignal(t *testing.T) {
	cx := newTestContext()
	var s Signal

	if s.Raised() || s.Wait().Poll(cx) {
		t.Fatal("zero signal is raised")
	}

	s.Raise()
	s.Raise()
	if !s.Raised() {
		t.Fatal("not raised")
	}
	if !s.Wait().Poll(cx) {
		t.Fatal("wait missed the raise")
	}
	// raises collapse
	if s.Wait().Poll(cx) {
		t.Fatal("second wait completed")
	}

	s.Raise()
	if !s.TryTake() || s.TryTake() {
		t.Error("TryTake did not consume exactly once")
	}

	s.Raise()
	s.Reset()
	if s.Raised() {
		t.Error("raised after reset")
	}
}

func TestContext_Accessors(t *testing.T) {
	x, err := New()
	if err != nil {
		t.Fatal(err)
	}
	h := newTestHeader(3)
	cx := &Context{exec: &x.raw, task: h, waker: Waker{task: h}}
	if cx.ExecutorID() != x.ID() || cx.Spawner().ExecutorID() != x.ID() {
		t.Errorf("executor = %d", cx.ExecutorID())
	}
	if cx.TaskName() != `task[3]` {
		t.Errorf("task name = %q", cx.TaskName())
	}
	if !cx.Waker().WillWake(Waker{task: h}) {
		t.Error("waker targets another task")
	}
	if d := time.Since(cx.Now()); d < -time.Second || d > time.Second {
		t.Errorf("now is %v off", d)
	}
}
