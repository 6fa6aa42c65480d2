// Package executor implements a cooperative, allocation-free async task
// executor, in the style of embedded executors such as Embassy: tasks are
// [Future] state machines living in fixed-capacity, statically sized
// [Pool] slots, and are polled only when something woke them.
//
// # Architecture
//
// A task is a pool slot holding a header (state word, run queue link, timer
// link) and the future value itself. [Pool.Spawn] claims a slot and returns a
// [SpawnToken]; handing the token to a [Spawner] or [SendSpawner] links the
// task into the executor's run queue for its first poll.
//
// The run queue is an intrusive, lock-free stack. Any goroutine may push; only
// the executor drains it, by atomically taking the whole chain and polling
// every task in it. Tasks woken during a drain are seen by the next pass.
//
// A [Waker] marks its task runnable and pends the executor's wake signal. Each
// task has a Queued flag, so any number of wakes between two polls produce
// exactly one run queue entry. A wake that arrives while the task is being
// polled is remembered and the task is re-linked once the poll returns. Wakers
// carry the generation of the slot occupant they were issued for, so a waker
// that outlives its task is a harmless no-op.
//
// Timers are integrated: a future calls [Context.WakeAt] while pending, and
// the executor keeps the task on an intrusive timer list, waking it through
// the run queue when the deadline passes. [Sleep], [Until], [Ticker] and
// [WithTimeout] build on this.
//
// # Execution Modes
//
// Two front ends share the same core:
//   - [Executor] (thread mode) owns a goroutine, locked to its OS thread, and
//     parks in an [IdleHook] whenever nothing is runnable. [EventIdle],
//     [BusyIdle] and (on Linux) [EventFDIdle] are provided.
//   - [InterruptExecutor] (interrupt mode) runs inside an interrupt handler,
//     draining the run queue until empty and returning. Its wake signal is the
//     interrupt itself, and the next timer deadline is programmed into an
//     [Alarm]. The irq subpackage provides a software interrupt controller.
//
// # Thread Safety
//
//   - [Waker.Wake], [AtomicWaker.Wake], [Signal.Raise] and [SendSpawner.Spawn]
//     are safe from any goroutine, including interrupt handlers.
//   - [Spawner] may only be used on its executor's context, and fails with
//     [ErrWrongContext] elsewhere.
//   - [Pool.Spawn] is safe from any goroutine.
//   - A failed spawn (double spawn, stale token, wrong context) is a
//     programming error, and by default goes to the fatal handler, which
//     panics. With [WithStrictSpawn](false) it is only returned, as a
//     *[SpawnError], and a rejected token must be discarded.
//   - Futures are only ever polled by their executor, one at a time.
//
// # Usage
//
//	type blink struct {
//	    ticker executor.Ticker
//	    led    *atomic.Bool
//	}
//
//	func (b *blink) Poll(cx *executor.Context) bool {
//	    for b.ticker.Next(cx) {
//	        b.led.Store(!b.led.Load())
//	    }
//	    return false
//	}
//
//	var blinkPool = executor.NewPool[blink](1, executor.WithPoolName("blink"))
//
//	x, err := executor.New(executor.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = x.Run(ctx, func(s executor.Spawner) {
//	    token, err := blinkPool.Spawn(blink{ticker: executor.NewTicker(time.Second), led: &led})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    _ = s.Spawn(token) // fatal on failure, see WithStrictSpawn
//	})
package executor
