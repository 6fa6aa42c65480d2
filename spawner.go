package executor

// Spawner spawns tasks onto one executor, and may only be used from that
// executor's context: the goroutine running Executor.Run, or the interrupt
// handler dispatching InterruptExecutor.OnInterrupt, including from within
// tasks (see Context.Spawner). Use from any other goroutine fails with
// ErrWrongContext.
//
// The zero Spawner is invalid.
type Spawner struct {
	exec *raw
}

// Spawn links the task identified by token into the executor's run queue
// for its first poll. Errors are *SpawnError values wrapping one of
// ErrTokenInvalid, ErrTokenStale, ErrTokenSpawned or ErrWrongContext.
func (s Spawner) Spawn(token SpawnToken) error {
	if s.exec == nil {
		return &SpawnError{Cause: ErrWrongContext, Task: token.task.name()}
	}
	if !s.exec.onContext() {
		err := &SpawnError{Cause: ErrWrongContext, Task: token.task.name(), Executor: s.exec.id}
		s.exec.logSpawnError(err)
		if s.exec.strictSpawn {
			s.exec.fatal(err)
		}
		return err
	}
	return s.exec.spawn(token)
}

// MakeSend converts the Spawner to a SendSpawner for the same executor.
func (s Spawner) MakeSend() SendSpawner {
	return SendSpawner{exec: s.exec}
}

// ExecutorID returns the identifier of the executor the spawner targets.
func (s Spawner) ExecutorID() uint64 {
	if s.exec == nil {
		return 0
	}
	return s.exec.id
}

// SendSpawner spawns tasks onto one executor from any goroutine, including
// interrupt handlers and other executors. It performs the same run queue
// push and wake signal as Spawner, without the context check.
//
// The zero SendSpawner is invalid.
type SendSpawner struct {
	exec *raw
}

// Spawn links the task identified by token into the executor's run queue,
// and pends the executor's wake signal.
func (s SendSpawner) Spawn(token SpawnToken) error {
	if s.exec == nil {
		return &SpawnError{Cause: ErrTokenInvalid, Task: token.task.name()}
	}
	return s.exec.spawn(token)
}

// ExecutorID returns the identifier of the executor the spawner targets.
func (s SendSpawner) ExecutorID() uint64 {
	if s.exec == nil {
		return 0
	}
	return s.exec.id
}

// IsZero reports whether s is the zero SendSpawner.
func (s SendSpawner) IsZero() bool {
	return s.exec == nil
}
