package executor

import (
	"context"
	"runtime"
	"sync/atomic"
)

// Executor is a thread-mode executor: its poll loop owns one goroutine
// (locked to its OS thread) and parks in an IdleHook whenever nothing is
// runnable.
//
// The loop has no terminal state of its own; Run returns only when its
// context is cancelled. Tasks still alive at that point stay in their
// slots, and are polled again if Run is called again.
type Executor struct {
	_ [0]func()

	idle    IdleHook
	raw     raw
	running atomic.Bool
}

// New creates a thread-mode executor.
func New(opts ...Option) (*Executor, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	idle := cfg.idle
	if idle == nil {
		idle = NewEventIdle()
	}
	x := &Executor{idle: idle}
	x.raw.init(cfg, idle)
	return x, nil
}

// Run runs the poll loop on the calling goroutine, blocking until ctx is
// cancelled, then returns ctx.Err().
//
// If init is non-nil it is called on the executor's goroutine before the
// first poll, with a Spawner bound to this executor; this is the usual way
// to spawn the initial tasks.
func (x *Executor) Run(ctx context.Context, init func(spawner Spawner)) error {
	if !x.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer x.running.Store(false)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	x.raw.enter()
	defer x.raw.exit()

	// Wake the idle hook on cancellation
	ctxDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			x.idle.Pend()
		case <-ctxDone:
		}
	}()
	defer close(ctxDone)

	x.raw.logger.Info().
		Uint64(`executor`, x.raw.id).
		Str(`name`, x.raw.name).
		Log(`executor started`)

	if init != nil {
		init(Spawner{exec: &x.raw})
	}

	for {
		if err := ctx.Err(); err != nil {
			x.raw.logger.Info().
				Uint64(`executor`, x.raw.id).
				Err(err).
				Log(`executor stopped`)
			return err
		}

		next, more := x.raw.poll()
		if more {
			continue
		}

		x.raw.metrics.incIdle()
		x.raw.logIdle(next)
		x.idle.Wait(next)
	}
}

// Spawner returns a Spawner bound to this executor. It may only be used on
// the executor's goroutine (from init, or from within a task); elsewhere,
// use SendSpawner.
func (x *Executor) Spawner() Spawner {
	return Spawner{exec: &x.raw}
}

// SendSpawner returns a SendSpawner, usable from any goroutine.
func (x *Executor) SendSpawner() SendSpawner {
	return SendSpawner{exec: &x.raw}
}

// ID returns the executor's unique identifier.
func (x *Executor) ID() uint64 {
	return x.raw.id
}

// Running reports whether Run is currently executing.
func (x *Executor) Running() bool {
	return x.running.Load()
}

// Metrics returns the executor's metrics, or nil unless WithMetrics(true).
func (x *Executor) Metrics() *Metrics {
	return x.raw.metrics
}
