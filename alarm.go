package executor

import (
	"sync/atomic"
	"time"
)

// Alarm is the timed-wake capability consumed by InterruptExecutor: a
// single-shot wake of a target at or after an absolute deadline.
//
// Arm replaces any previously armed deadline. Cancel is best-effort: an
// alarm that fires concurrently with Cancel (or with a re-Arm) produces a
// spurious extra wake, never a missed one. Both must be safe to call from
// any goroutine.
type Alarm interface {
	Arm(deadline time.Time, target Interrupt)
	Cancel()
}

// SoftAlarm is an Alarm backed by the Go runtime's timers, standing in for
// a hardware compare channel on hosted targets.
type SoftAlarm struct {
	timer atomic.Pointer[time.Timer]
	armed atomic.Int64
}

var _ Alarm = (*SoftAlarm)(nil)

// NewSoftAlarm constructs a SoftAlarm.
func NewSoftAlarm() *SoftAlarm {
	return &SoftAlarm{}
}

// Arm implements Alarm.
func (x *SoftAlarm) Arm(deadline time.Time, target Interrupt) {
	x.armed.Store(deadline.UnixNano())
	t := time.AfterFunc(time.Until(deadline), target.Pend)
	if old := x.timer.Swap(t); old != nil {
		old.Stop()
	}
}

// Cancel implements Alarm.
func (x *SoftAlarm) Cancel() {
	x.armed.Store(0)
	if old := x.timer.Swap(nil); old != nil {
		old.Stop()
	}
}

// Deadline returns the last armed deadline, or the zero time if cancelled
// or never armed.
func (x *SoftAlarm) Deadline() time.Time {
	if v := x.armed.Load(); v != 0 {
		return time.Unix(0, v)
	}
	return time.Time{}
}
