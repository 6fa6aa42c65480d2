package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-executor"
	"github.com/joeycumines/go-executor/irq"
	"github.com/joeycumines/stumpy"
	"golang.org/x/sync/errgroup"
)

// interrupt lines of the simulated controller
const (
	lineExecutor = 0
	lineButton   = 1
)

// blink toggles a virtual LED on every tick.
type blink struct {
	ticker  executor.Ticker
	led     int
	on      bool
	toggles *atomic.Uint64
	logger  *executor.Logger
}

func (b *blink) Poll(cx *executor.Context) bool {
	for b.ticker.Next(cx) {
		b.on = !b.on
		b.toggles.Add(1)
		b.logger.Debug().
			Int(`led`, b.led).
			Bool(`on`, b.on).
			Str(`task`, cx.TaskName()).
			Log(`blink`)
	}
	return false
}

// button counts presses, raised by the button interrupt.
type button struct {
	signal  *executor.Signal
	presses *atomic.Uint64
	logger  *executor.Logger
}

func (b *button) Poll(cx *executor.Context) bool {
	for b.signal.Wait().Poll(cx) {
		n := b.presses.Add(1)
		b.logger.Info().
			Uint64(`presses`, n).
			Uint64(`executor`, cx.ExecutorID()).
			Log(`button pressed`)
	}
	return false
}

// heartbeat exercises the interrupt executor's alarm.
type heartbeat struct {
	ticker executor.Ticker
	beats  *atomic.Uint64
}

func (h *heartbeat) Poll(cx *executor.Context) bool {
	for h.ticker.Next(cx) {
		h.beats.Add(1)
	}
	return false
}

type simResult struct {
	Toggles uint64
	Presses uint64
	Beats   uint64
	Thread  executor.MetricsSnapshot
	Irq     executor.MetricsSnapshot
}

func newIdleHook(kind string) (executor.IdleHook, func() error, error) {
	switch kind {
	case idleBusy:
		return &executor.BusyIdle{}, func() error { return nil }, nil
	case idleEventFD:
		h, err := executor.NewEventFDIdle()
		if err != nil {
			return nil, nil, err
		}
		return h, h.Close, nil
	default:
		return executor.NewEventIdle(), func() error { return nil }, nil
	}
}

func runSimulation(ctx context.Context, cfg Config, stdout, stderr io.Writer) (err error) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(&syncWriter{w: stderr})),
		stumpy.L.WithLevel(level),
	).Logger()

	idle, closeIdle, err := newIdleHook(cfg.Thread.Idle)
	if err != nil {
		return fmt.Errorf(`idle hook %q: %w`, cfg.Thread.Idle, err)
	}
	defer func() {
		if e := closeIdle(); e != nil && err == nil {
			err = e
		}
	}()

	thread, err := executor.New(
		executor.WithName(`thread`),
		executor.WithLogger(logger),
		executor.WithIdleHook(idle),
		executor.WithMetrics(cfg.Metrics),
	)
	if err != nil {
		return err
	}

	intr, err := executor.NewInterruptExecutor(
		executor.WithName(`interrupt`),
		executor.WithLogger(logger),
		executor.WithMetrics(cfg.Metrics),
	)
	if err != nil {
		return err
	}

	ctrl := irq.NewController(2, irq.WithLogger(logger))
	execLine := ctrl.Line(lineExecutor)
	execLine.SetPriority(cfg.Interrupt.Priority)
	execLine.SetHandler(intr.OnInterrupt)

	var (
		sig     executor.Signal
		toggles atomic.Uint64
		presses atomic.Uint64
		beats   atomic.Uint64
	)
	buttonLine := ctrl.Line(lineButton)
	buttonLine.SetHandler(sig.Raise)

	blinkPool := executor.NewPool[blink](cfg.Thread.Blinkers,
		executor.WithPoolName(`blink`),
		executor.WithPoolLogger(logger))
	buttonPool := executor.NewPool[button](1, executor.WithPoolName(`button`))
	heartbeatPool := executor.NewPool[heartbeat](1, executor.WithPoolName(`heartbeat`))

	spawner, err := intr.Start(execLine)
	if err != nil {
		return err
	}
	if err := spawnOnto(spawner.Spawn, buttonPool, button{signal: &sig, presses: &presses, logger: logger}); err != nil {
		return err
	}
	if err := spawnOnto(spawner.Spawn, heartbeatPool, heartbeat{ticker: executor.NewTicker(cfg.Interrupt.Heartbeat), beats: &beats}); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ctrl.Run(gctx)
	})

	g.Go(func() error {
		var spawnErr error
		err := thread.Run(gctx, func(s executor.Spawner) {
			for i := range cfg.Thread.Blinkers {
				future := blink{
					ticker:  executor.NewTicker(cfg.Thread.Period),
					led:     i,
					toggles: &toggles,
					logger:  logger,
				}
				if err := spawnOnto(s.Spawn, blinkPool, future); err != nil {
					spawnErr = err
					return
				}
			}
		})
		if spawnErr != nil {
			return spawnErr
		}
		return err
	})

	g.Go(func() error {
		t := time.NewTicker(cfg.Button.Interval)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				buttonLine.Pend()
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}

	res := simResult{
		Toggles: toggles.Load(),
		Presses: presses.Load(),
		Beats:   beats.Load(),
		Thread:  thread.Metrics().Snapshot(),
		Irq:     intr.Metrics().Snapshot(),
	}

	logger.Info().
		Uint64(`toggles`, res.Toggles).
		Uint64(`presses`, res.Presses).
		Uint64(`beats`, res.Beats).
		Uint64(`irq_dispatches`, execLine.Dispatches()).
		Log(`simulation finished`)

	return writeReport(stdout, cfg, res)
}

// syncWriter serializes writes, as every executor logs from its own
// goroutine.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// spawnOnto constructs future in pool, and spawns it, discarding the token
// if the spawn is rejected.
func spawnOnto[T any, PT interface {
	*T
	executor.Future
}](spawn func(executor.SpawnToken) error, pool *executor.Pool[T, PT], future T) error {
	token, err := pool.Spawn(future)
	if err != nil {
		return err
	}
	if err := spawn(token); err != nil {
		token.Discard()
		return err
	}
	return nil
}

func writeReport(w io.Writer, cfg Config, res simResult) error {
	_, err := fmt.Fprintf(w, "toggles=%d presses=%d beats=%d\n", res.Toggles, res.Presses, res.Beats)
	if err != nil || !cfg.Metrics {
		return err
	}
	for _, m := range []struct {
		name string
		s    executor.MetricsSnapshot
	}{
		{`thread`, res.Thread},
		{`interrupt`, res.Irq},
	} {
		_, err = fmt.Fprintf(w,
			"%s: polls=%d completions=%d requeues=%d deferred_wakes=%d drains=%d idles=%d timer_wakes=%d panics=%d poll_p50=%v poll_p99=%v\n",
			m.name, m.s.Polls, m.s.Completions, m.s.Requeues, m.s.DeferredWakes, m.s.Drains,
			m.s.Idles, m.s.TimerWakes, m.s.Panics, m.s.PollLatency.P50, m.s.PollLatency.P99)
		if err != nil {
			return err
		}
	}
	return nil
}
