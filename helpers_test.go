package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// selfWake wakes itself remaining times, then completes.
type selfWake struct {
	remaining int
	polls     *atomic.Int64
	done      *sync.WaitGroup
}

func (f *selfWake) Poll(cx *Context) bool {
	f.polls.Add(1)
	if f.remaining == 0 {
		f.done.Done()
		return true
	}
	f.remaining--
	cx.Waker().Wake()
	return false
}

// funcFuture adapts a closure, for tasks whose state lives in the test.
type funcFuture struct {
	fn FutureFunc
}

func (f *funcFuture) Poll(cx *Context) bool {
	return f.fn(cx)
}

// runExecutor runs x on a new goroutine, returning a function that stops it.
func runExecutor(t *testing.T, x *Executor, init func(Spawner)) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- x.Run(ctx, init)
	}()
	require.Eventually(t, x.Running, time.Second, time.Millisecond)

	var once sync.Once
	stop = func() {
		once.Do(func() {
			cancel()
			select {
			case err := <-done:
				require.ErrorIs(t, err, context.Canceled)
			case <-time.After(5 * time.Second):
				t.Fatal("executor did not stop")
			}
		})
	}
	t.Cleanup(stop)
	return stop
}

// waitTimeout waits for wg, failing the test after d.
func waitTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	ch := make(chan struct{})
	go func() {
		wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
	case <-time.After(d):
		t.Fatal("timed out waiting for tasks")
	}
}
