package executor

import (
	"sync/atomic"
)

// InterruptExecutor is an interrupt-mode executor. Its poll loop runs inside
// an interrupt handler: OnInterrupt drains the run queue until it is empty
// and then returns control to the interrupt system. Wakers pend the
// executor's interrupt, so it is dispatched again whenever a task becomes
// runnable.
//
// Running several executors on interrupts of different priorities is how
// priority is achieved; each instance is single-threaded internally.
//
// Usage, with the irq package's software controller:
//
//	x, _ := executor.NewInterruptExecutor()
//	line := ctrl.Line(3)
//	line.SetHandler(x.OnInterrupt)
//	spawner, _ := x.Start(line)
type InterruptExecutor struct {
	_ [0]func()

	alarm   Alarm
	raw     raw
	started atomic.Bool
	// dispatching guards against the handler being entered concurrently
	dispatching atomic.Bool
}

// NewInterruptExecutor creates an interrupt-mode executor. It does nothing
// until Start.
func NewInterruptExecutor(opts ...Option) (*InterruptExecutor, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	alarm := cfg.alarm
	if alarm == nil {
		alarm = NewSoftAlarm()
	}
	x := &InterruptExecutor{alarm: alarm}
	x.raw.init(cfg, nil)
	return x, nil
}

// Start binds the executor to its interrupt, which must dispatch to
// OnInterrupt, and returns a SendSpawner for it. Start may be called once.
func (x *InterruptExecutor) Start(irq Interrupt) (SendSpawner, error) {
	if irq == nil {
		return SendSpawner{}, ErrNilInterrupt
	}
	if !x.started.CompareAndSwap(false, true) {
		return SendSpawner{}, ErrAlreadyStarted
	}
	x.raw.setSignal(irq)
	x.raw.logger.Info().
		Uint64(`executor`, x.raw.id).
		Str(`name`, x.raw.name).
		Log(`interrupt executor started`)
	// tasks may have been spawned ahead of Start
	irq.Pend()
	return SendSpawner{exec: &x.raw}, nil
}

// OnInterrupt is the interrupt handler body. It polls until nothing is
// runnable, then arms the alarm for the next timer deadline, if any.
//
// The platform's interrupt controller must never enter it concurrently with
// itself; that would be a broken contract, and is reported to the fatal
// handler.
func (x *InterruptExecutor) OnInterrupt() {
	irq := x.raw.signalTarget()
	if irq == nil {
		return
	}
	if !x.dispatching.CompareAndSwap(false, true) {
		x.raw.fatal(&InvariantError{Op: `reentrant interrupt dispatch`, Task: `-`})
		return
	}
	defer x.dispatching.Store(false)

	x.raw.enter()
	defer x.raw.exit()

	next, more := x.raw.poll()
	for more {
		next, more = x.raw.poll()
	}

	if next.IsZero() {
		x.alarm.Cancel()
	} else {
		x.alarm.Arm(next, irq)
	}
	x.raw.metrics.incIdle()
}

// SendSpawner returns a SendSpawner, usable from any goroutine. Tasks
// spawned before Start run once the executor is started.
func (x *InterruptExecutor) SendSpawner() SendSpawner {
	return SendSpawner{exec: &x.raw}
}

// ID returns the executor's unique identifier.
func (x *InterruptExecutor) ID() uint64 {
	return x.raw.id
}

// Metrics returns the executor's metrics, or nil unless WithMetrics(true).
func (x *InterruptExecutor) Metrics() *Metrics {
	return x.raw.metrics
}
