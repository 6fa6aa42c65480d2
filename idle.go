package executor

import (
	"runtime"
	"sync/atomic"
	"time"
)

// Interrupt is the capability to pend (trigger) a specific interrupt, or any
// equivalent wake-signal target. Pend must be idempotent (multiple pends
// before the handler runs collapse into one dispatch), non-blocking, and
// safe to call from any goroutine.
type Interrupt interface {
	Pend()
}

// InterruptFunc adapts an ordinary function to the Interrupt interface.
type InterruptFunc func()

// Pend implements Interrupt.
func (f InterruptFunc) Pend() {
	f()
}

// IdleHook is the platform's low-power wait, used by the thread-mode
// Executor when nothing is runnable.
//
// Pend is the executor's wake signal. Wait blocks until either Pend has been
// called (at any time since the last Wait returned) or the deadline is
// reached, whichever is sooner. A zero deadline means no deadline. Wait is
// only ever called from the executor's goroutine, and is the only operation
// of the executor permitted to block.
//
// A busy-polling implementation is valid, if power-inefficient, see BusyIdle.
type IdleHook interface {
	Interrupt
	Wait(deadline time.Time)
}

// EventIdle is an IdleHook modeled on a wait-for-event instruction: Pend
// latches a single event, Wait consumes it or sleeps until the deadline.
type EventIdle struct {
	event chan struct{}
	timer *time.Timer
}

var _ IdleHook = (*EventIdle)(nil)

// NewEventIdle constructs an EventIdle.
func NewEventIdle() *EventIdle {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return &EventIdle{
		event: make(chan struct{}, 1),
		timer: t,
	}
}

// Pend implements Interrupt. Multiple pends before Wait collapse into one.
func (x *EventIdle) Pend() {
	select {
	case x.event <- struct{}{}:
	default:
	}
}

// Wait implements IdleHook.
func (x *EventIdle) Wait(deadline time.Time) {
	if deadline.IsZero() {
		<-x.event
		return
	}

	d := time.Until(deadline)
	if d <= 0 {
		// still consume a latched event, it is already serviced by returning
		select {
		case <-x.event:
		default:
		}
		return
	}

	x.timer.Reset(d)
	select {
	case <-x.event:
	case <-x.timer.C:
	}
	x.timer.Stop()
}

// BusyIdle is an IdleHook that never sleeps, yielding the processor while
// it spins on a flag. It trades power for wake latency.
type BusyIdle struct {
	pending atomic.Bool
}

var _ IdleHook = (*BusyIdle)(nil)

// Pend implements Interrupt.
func (x *BusyIdle) Pend() {
	x.pending.Store(true)
}

// Wait implements IdleHook.
func (x *BusyIdle) Wait(deadline time.Time) {
	for !x.pending.CompareAndSwap(true, false) {
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return
		}
		runtime.Gosched()
	}
}
