package executor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NilOptions(t *testing.T) {
	_, err := New(WithIdleHook(nil))
	assert.Error(t, err)
	_, err = New(WithFatalHandler(nil))
	assert.Error(t, err)
	_, err = NewInterruptExecutor(WithAlarm(nil))
	assert.Error(t, err)

	x, err := New(nil, WithName(`ok`))
	require.NoError(t, err)
	assert.NotZero(t, x.ID())
	assert.Nil(t, x.Metrics())
}

func TestExecutor_UniqueIDs(t *testing.T) {
	a, err := New()
	require.NoError(t, err)
	b, err := New()
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestExecutor_SelfWake(t *testing.T) {
	const (
		tasks = 8
		wakes = 100
	)

	x, err := New(WithMetrics(true))
	require.NoError(t, err)
	p := NewPool[selfWake](tasks)

	var (
		polls atomic.Int64
		wg    sync.WaitGroup
	)
	wg.Add(tasks)
	stop := runExecutor(t, x, func(s Spawner) {
		for range tasks {
			token, err := p.Spawn(selfWake{remaining: wakes, polls: &polls, done: &wg})
			if assert.NoError(t, err) {
				assert.NoError(t, s.Spawn(token))
			}
		}
	})
	waitTimeout(t, &wg, 5*time.Second)
	require.Eventually(t, func() bool { return p.Len() == 0 }, time.Second, time.Millisecond)
	stop()

	assert.Equal(t, int64(tasks*(wakes+1)), polls.Load())

	m := x.Metrics().Snapshot()
	assert.Equal(t, uint64(tasks*(wakes+1)), m.Polls)
	assert.Equal(t, uint64(tasks), m.Completions)
	assert.Equal(t, uint64(tasks*wakes), m.DeferredWakes)
	assert.Equal(t, uint64(tasks*wakes), m.Requeues)
	assert.Zero(t, m.Panics)
	assert.Equal(t, tasks*(wakes+1), m.PollLatency.N)
}

func TestExecutor_CrossTaskWake(t *testing.T) {
	x, err := New()
	require.NoError(t, err)
	p := NewPool[funcFuture](2)

	var (
		sig    Signal
		order  []string
		wg     sync.WaitGroup
		waited bool
	)
	wg.Add(2)
	waiter := funcFuture{fn: func(cx *Context) bool {
		if !sig.Wait().Poll(cx) {
			waited = true
			return false
		}
		order = append(order, `waiter`)
		wg.Done()
		return true
	}}
	notifier := funcFuture{fn: func(cx *Context) bool {
		order = append(order, `notifier`)
		sig.Raise()
		wg.Done()
		return true
	}}

	runExecutor(t, x, func(s Spawner) {
		a, err := p.Spawn(waiter)
		if !assert.NoError(t, err) {
			return
		}
		b, err := p.Spawn(notifier)
		if !assert.NoError(t, err) {
			return
		}
		// the queue drains in reverse, so spawn the waiter last to poll it first
		assert.NoError(t, s.Spawn(b))
		assert.NoError(t, s.Spawn(a))
	})
	waitTimeout(t, &wg, 5*time.Second)

	require.Eventually(t, func() bool { return p.Len() == 0 }, time.Second, time.Millisecond)
	assert.True(t, waited)
	assert.Equal(t, []string{`notifier`, `waiter`}, order)
}

func TestExecutor_WakeFromOtherGoroutine(t *testing.T) {
	x, err := New()
	require.NoError(t, err)
	p := NewPool[funcFuture](1)

	var polls atomic.Int64
	wakers := make(chan Waker, 1)
	done := make(chan struct{})
	task := funcFuture{fn: func(cx *Context) bool {
		if polls.Add(1) == 1 {
			wakers <- cx.Waker()
			return false
		}
		close(done)
		return true
	}}
	runExecutor(t, x, func(s Spawner) {
		token, err := p.Spawn(task)
		if assert.NoError(t, err) {
			assert.NoError(t, s.Spawn(token))
		}
	})

	w := <-wakers
	w.Wake()
	w.Wake()
	w.Wake()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("task was not woken")
	}
	require.Eventually(t, func() bool { return p.Len() == 0 }, time.Second, time.Millisecond)

	// the task is gone, the waker is stale
	w.Wake()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int64(2), polls.Load())
}

func TestExecutor_WakeDuringPoll(t *testing.T) {
	x, err := New(WithMetrics(true))
	require.NoError(t, err)
	p := NewPool[funcFuture](1)

	var polls atomic.Int64
	done := make(chan struct{})
	task := funcFuture{fn: func(cx *Context) bool {
		if polls.Add(1) == 1 {
			w := cx.Waker()
			woke := make(chan struct{})
			go func() {
				w.Wake()
				close(woke)
			}()
			<-woke
			return false
		}
		close(done)
		return true
	}}
	stop := runExecutor(t, x, func(s Spawner) {
		token, err := p.Spawn(task)
		if assert.NoError(t, err) {
			assert.NoError(t, s.Spawn(token))
		}
	})
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("deferred wake was lost")
	}
	stop()

	m := x.Metrics().Snapshot()
	assert.Equal(t, uint64(1), m.DeferredWakes)
	assert.Equal(t, uint64(1), m.Requeues)
	assert.Equal(t, int64(2), polls.Load())
}

func TestExecutor_RunStops(t *testing.T) {
	x, err := New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- x.Run(ctx, nil) }()
	require.Eventually(t, x.Running, time.Second, time.Millisecond)

	assert.ErrorIs(t, x.Run(context.Background(), nil), ErrAlreadyRunning)

	cancel()
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.False(t, x.Running())
}

func TestExecutor_RunResumesLiveTasks(t *testing.T) {
	x, err := New()
	require.NoError(t, err)
	p := NewPool[funcFuture](1)

	var aw AtomicWaker
	var polls atomic.Int64
	var finish atomic.Bool
	task := funcFuture{fn: func(cx *Context) bool {
		polls.Add(1)
		aw.Register(cx.Waker())
		return finish.Load()
	}}
	token, err := p.Spawn(task)
	require.NoError(t, err)
	require.NoError(t, x.SendSpawner().Spawn(token))

	stop := runExecutor(t, x, nil)
	require.Eventually(t, func() bool { return polls.Load() == 1 }, time.Second, time.Millisecond)
	stop()
	assert.Equal(t, 1, p.Len())

	finish.Store(true)
	aw.Wake()
	runExecutor(t, x, nil)
	require.Eventually(t, func() bool { return p.Len() == 0 }, time.Second, time.Millisecond)
}

func TestExecutor_PanicReleasesSlot(t *testing.T) {
	x, err := New(WithMetrics(true))
	require.NoError(t, err)
	panics := NewPool[funcFuture](1)
	others := NewPool[selfWake](1)

	var (
		polls atomic.Int64
		wg    sync.WaitGroup
	)
	wg.Add(1)
	stop := runExecutor(t, x, func(s Spawner) {
		token, err := panics.Spawn(funcFuture{fn: func(*Context) bool { panic(`boom`) }})
		if assert.NoError(t, err) {
			assert.NoError(t, s.Spawn(token))
		}
		token, err = others.Spawn(selfWake{remaining: 2, polls: &polls, done: &wg})
		if assert.NoError(t, err) {
			assert.NoError(t, s.Spawn(token))
		}
	})
	waitTimeout(t, &wg, 5*time.Second)
	require.Eventually(t, func() bool { return panics.Len() == 0 }, time.Second, time.Millisecond)
	stop()

	m := x.Metrics().Snapshot()
	assert.Equal(t, uint64(1), m.Panics)
	assert.Equal(t, uint64(2), m.Completions)
}

func TestExecutor_InvariantViolation(t *testing.T) {
	var got []error
	x, err := New(WithFatalHandler(func(err error) { got = append(got, err) }))
	require.NoError(t, err)

	// linked without holding Queued
	h := newTestHeader(7)
	h.executor.Store(&x.raw)
	x.raw.queue.link(h)

	_, more := x.raw.poll()
	assert.False(t, more)

	require.Len(t, got, 1)
	var inv *InvariantError
	require.True(t, errors.As(got[0], &inv))
	assert.Equal(t, `poll`, inv.Op)
	assert.Equal(t, `task[7]`, inv.Task)
	assert.Equal(t, StateSpawned, inv.State)
}

func TestExecutor_DefaultFatalPanics(t *testing.T) {
	x, err := New()
	require.NoError(t, err)
	h := newTestHeader(0)
	x.raw.queue.link(h)
	assert.PanicsWithError(t, (&InvariantError{Op: `poll`, Task: `task[0]`, State: StateSpawned}).Error(), func() {
		x.raw.poll()
	})
}

// recordingIdle is an EventIdle that records the deadlines it waited on.
type recordingIdle struct {
	*EventIdle
	mu        sync.Mutex
	deadlines []time.Time
}

func (r *recordingIdle) Wait(deadline time.Time) {
	r.mu.Lock()
	r.deadlines = append(r.deadlines, deadline)
	r.mu.Unlock()
	r.EventIdle.Wait(deadline)
}

func TestExecutor_SleepUsesIdleDeadline(t *testing.T) {
	idle := &recordingIdle{EventIdle: NewEventIdle()}
	x, err := New(WithIdleHook(idle), WithMetrics(true))
	require.NoError(t, err)

	p := NewPool[funcFuture](1)

	const delay = 20 * time.Millisecond
	var (
		took  atomic.Int64
		start time.Time
	)
	done := make(chan struct{})
	timer := Sleep(delay)
	stop := runExecutor(t, x, func(s Spawner) {
		token, err := p.Spawn(funcFuture{fn: func(cx *Context) bool {
			if start.IsZero() {
				start = cx.Now()
			}
			if !timer.Poll(cx) {
				return false
			}
			took.Store(int64(cx.Now().Sub(start)))
			close(done)
			return true
		}})
		if assert.NoError(t, err) {
			assert.NoError(t, s.Spawn(token))
		}
	})
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sleep never completed")
	}
	stop()

	assert.GreaterOrEqual(t, time.Duration(took.Load()), delay)
	assert.GreaterOrEqual(t, x.Metrics().Snapshot().TimerWakes, uint64(1))

	idle.mu.Lock()
	defer idle.mu.Unlock()
	var timed bool
	for _, d := range idle.deadlines {
		if !d.IsZero() {
			timed = true
		}
	}
	assert.True(t, timed, `idle hook never received a deadline`)
}

func TestExecutor_CompletedTaskLeavesTimerQueue(t *testing.T) {
	x, err := New()
	require.NoError(t, err)
	p := NewPool[funcFuture](1)

	var (
		sig   Signal
		armed atomic.Bool
	)
	done := make(chan struct{})
	timer := Sleep(time.Hour)
	stop := runExecutor(t, x, func(s Spawner) {
		token, err := p.Spawn(funcFuture{fn: func(cx *Context) bool {
			if sig.Wait().Poll(cx) {
				close(done)
				return true
			}
			timer.Poll(cx)
			armed.Store(true)
			return false
		}})
		if assert.NoError(t, err) {
			assert.NoError(t, s.Spawn(token))
		}
	})
	require.Eventually(t, armed.Load, time.Second, time.Millisecond)
	sig.Raise()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("signal never observed")
	}
	require.Eventually(t, func() bool { return p.Len() == 0 }, time.Second, time.Millisecond)
	stop()
	assert.True(t, x.raw.timers.empty())
}
