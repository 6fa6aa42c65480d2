package executor

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrPoolExhausted is returned by Pool.Spawn when every slot is occupied.
	// It is the only error ordinary application code should expect.
	ErrPoolExhausted = errors.New("executor: task pool exhausted")

	// ErrTokenSpawned is returned when a SpawnToken is spawned more than once.
	ErrTokenSpawned = errors.New("executor: spawn token already spawned")

	// ErrTokenStale is returned when a SpawnToken refers to a slot that has
	// since been released (discarded, or completed and reused).
	ErrTokenStale = errors.New("executor: spawn token is stale")

	// ErrTokenInvalid is returned for the zero SpawnToken.
	ErrTokenInvalid = errors.New("executor: invalid spawn token")

	// ErrWrongContext is returned when a Spawner is used outside the context
	// (goroutine) of the executor it is bound to.
	ErrWrongContext = errors.New("executor: spawner used outside its executor context")

	// ErrAlreadyRunning is returned when Executor.Run is called while the
	// executor is already running.
	ErrAlreadyRunning = errors.New("executor: executor is already running")

	// ErrAlreadyStarted is returned when InterruptExecutor.Start is called
	// more than once.
	ErrAlreadyStarted = errors.New("executor: interrupt executor already started")

	// ErrNilInterrupt is returned when InterruptExecutor.Start is given a nil
	// interrupt.
	ErrNilInterrupt = errors.New("executor: nil interrupt")

	// ErrUnsupported is returned by platform specific constructors on
	// platforms where they are not available.
	ErrUnsupported = errors.New("executor: unsupported on this platform")
)

func errNilOption(name string) error {
	return fmt.Errorf("executor: %s: nil argument", name)
}

// SpawnError describes a rejected spawn. Spawn errors indicate a defect in
// executor usage, e.g. spawning the same token twice.
type SpawnError struct {
	Cause    error
	Task     string
	Executor uint64
}

// Error implements the error interface.
func (e *SpawnError) Error() string {
	if e.Task == "" {
		return fmt.Sprintf("executor %d: spawn failed: %v", e.Executor, e.Cause)
	}
	return fmt.Sprintf("executor %d: spawn %s failed: %v", e.Executor, e.Task, e.Cause)
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *SpawnError) Unwrap() error {
	return e.Cause
}

// InvariantError reports an impossible state transition inside the poll loop
// or the waker machinery. It is never returned; it is passed to the fatal
// handler, which by default panics with it.
type InvariantError struct {
	Op    string
	Task  string
	State TaskState
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	return fmt.Sprintf("executor: invariant violation: %s: task %s in state %s", e.Op, e.Task, e.State)
}
