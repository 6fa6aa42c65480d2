package executor

import (
	"runtime"
	"sync/atomic"
	"time"
)

var executorIDCounter atomic.Uint64

// raw is the executor core shared by the thread-mode and interrupt-mode
// front ends: one run queue, one wake signal, one timer queue, and the poll
// loop that drains them. It is single-threaded: only the owning context
// calls poll, and only from one goroutine at a time.
type raw struct {
	_ [0]func()

	queue runQueue

	// wake-signal target, pended after a push from a waker
	signal atomic.Pointer[signalRef]

	logger  *Logger
	metrics *Metrics
	fatal   func(err error)

	timers timerQueue

	// cx is reused for every poll (zero allocation).
	cx Context

	name        string
	id          uint64
	strictSpawn bool

	// Goroutine currently acting as the executor's context, 0 if none.
	owner atomic.Uint64
}

func (x *raw) init(cfg *executorOptions, signal Interrupt) {
	x.id = executorIDCounter.Add(1)
	x.name = cfg.name
	x.setSignal(signal)
	x.logger = cfg.logger
	x.strictSpawn = cfg.strictSpawn
	x.fatal = cfg.fatal
	if x.fatal == nil {
		x.fatal = defaultFatal
	}
	if cfg.metrics {
		x.metrics = &Metrics{}
	}
}

func defaultFatal(err error) {
	panic(err)
}

func (x *raw) now() time.Time {
	return time.Now()
}

type signalRef struct {
	irq Interrupt
}

func (x *raw) setSignal(irq Interrupt) {
	if irq != nil {
		x.signal.Store(&signalRef{irq: irq})
	}
}

func (x *raw) signalTarget() Interrupt {
	if s := x.signal.Load(); s != nil {
		return s.irq
	}
	return nil
}

func (x *raw) pend() {
	if s := x.signal.Load(); s != nil {
		s.irq.Pend()
	}
}

// violation reports a broken concurrency contract.
func (x *raw) violation(op string, t *taskHeader, state TaskState) {
	err := &InvariantError{Op: op, Task: t.name(), State: state}
	x.logInvariant(err)
	x.fatal(err)
}

// poll performs one pass: drains the run queue once, polling every task in
// the chain, then expires due timers. It returns the next timer deadline
// (zero if none) and whether more work is already runnable.
func (x *raw) poll() (next time.Time, more bool) {
	if n := x.queue.drain(x.pollTask); n != 0 {
		x.metrics.incDrain()
	}
	next = x.timers.expire(x.now(), x.wakeTimer)
	return next, !x.queue.empty()
}

// pollTask runs one task from a drained chain.
func (x *raw) pollTask(t *taskHeader) {
	gen, observed, ok := t.state.beginPoll()
	if !ok {
		x.violation(`poll`, t, observed)
		return
	}

	x.cx = Context{exec: x, task: t, waker: Waker{task: t, gen: gen}}
	t.expiresAt = time.Time{}

	var start time.Time
	if x.metrics != nil {
		start = time.Now()
	}

	done := x.invoke(t)

	x.cx = Context{}
	if x.metrics != nil {
		x.metrics.incPoll()
		x.metrics.recordPoll(time.Since(start))
	}

	if done {
		x.complete(t)
		return
	}

	if !t.expiresAt.IsZero() {
		x.timers.schedule(t)
	}

	// a wake during the poll left Queued set without linking
	if t.state.endPoll() {
		x.queue.link(t)
		x.metrics.incRequeue()
	}
}

// invoke calls the task's poll function, treating a panic as completion.
func (x *raw) invoke(t *taskHeader) (done bool) {
	defer func() {
		if r := recover(); r != nil {
			x.metrics.incPanic()
			x.logCritical(t.name(), r)
			done = true
		}
	}()
	return t.poll(&x.cx)
}

// complete frees the slot of a finished task. Only the poll loop observes
// completion, so nothing else can be referencing the slot's run queue link.
func (x *raw) complete(t *taskHeader) {
	x.timers.remove(t)
	t.expiresAt = time.Time{}
	t.reset()
	t.executor.Store(nil)
	t.state.release()
	x.metrics.incCompletion()
}

// wakeTimer is called by the timer queue, from the poll loop, for a task
// whose deadline has passed. No signal is needed: the loop checks the run
// queue before it idles.
func (x *raw) wakeTimer(t *taskHeader) {
	gen, _ := t.state.load()
	if x.queue.push(t, gen) {
		x.metrics.incTimerWake()
	}
}

// spawn links a freshly constructed task into this executor's run queue for
// its first poll.
func (x *raw) spawn(token SpawnToken) error {
	if err := x.trySpawn(token); err != nil {
		err = &SpawnError{Cause: err, Task: token.task.name(), Executor: x.id}
		x.logSpawnError(err)
		if x.strictSpawn {
			x.fatal(err)
		}
		return err
	}
	return nil
}

func (x *raw) trySpawn(token SpawnToken) error {
	t := token.task
	if t == nil {
		return ErrTokenInvalid
	}
	if gen, flags := t.state.load(); gen != token.gen || flags&StateSpawned == 0 {
		return ErrTokenStale
	}
	if !t.executor.CompareAndSwap(nil, x) {
		if gen, _ := t.state.load(); gen != token.gen {
			return ErrTokenStale
		}
		return ErrTokenSpawned
	}
	if !x.queue.push(t, token.gen) {
		// only reachable if the slot was released concurrently, i.e. the
		// token was used from several goroutines at once
		t.executor.CompareAndSwap(x, nil)
		return ErrTokenStale
	}
	x.pend()
	return nil
}

// enter records the calling goroutine as the executor's context.
func (x *raw) enter() {
	x.owner.Store(getGoroutineID())
}

func (x *raw) exit() {
	x.owner.Store(0)
}

// onContext reports whether the caller is the executor's context.
func (x *raw) onContext() bool {
	id := x.owner.Load()
	if id == 0 {
		return false
	}
	return getGoroutineID() == id
}

// getGoroutineID returns the current goroutine's ID.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
