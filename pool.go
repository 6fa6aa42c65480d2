package executor

// Pool is fixed-capacity storage for tasks of one future type.
//
// All slots are allocated by NewPool; Spawn and task completion never
// allocate. Each slot holds a task header and the inline future value. A
// slot is reused once the poll loop observes its task's completion, never
// earlier, so a slot is never freed while linked into a run queue.
//
// T is the future's value type, and PT its pointer type, which implements
// Future. Type inference fills in PT:
//
//	type blink struct{ ticker executor.Ticker; n int }
//	func (b *blink) Poll(cx *executor.Context) bool { ... }
//
//	var blinkPool = executor.NewPool[blink](4, executor.WithPoolName("blink"))
type Pool[T any, PT interface {
	*T
	Future
}] struct {
	info  *poolInfo
	slots []poolSlot[T]
}

type poolSlot[T any] struct {
	header taskHeader
	future T
}

// poolInfo is the part of a pool shared with its task headers.
type poolInfo struct {
	logger   *Logger
	name     string
	capacity int
}

// NewPool constructs a pool with the given number of slots. It panics if
// size is not positive, as a pool is sized for the worst-case number of
// concurrent tasks at build time.
func NewPool[T any, PT interface {
	*T
	Future
}](size int, opts ...PoolOption) *Pool[T, PT] {
	if size <= 0 {
		panic(`executor: pool size must be positive`)
	}

	cfg := resolvePoolOptions(opts)

	p := &Pool[T, PT]{
		info: &poolInfo{
			logger:   cfg.logger,
			name:     cfg.name,
			capacity: size,
		},
		slots: make([]poolSlot[T], size),
	}

	for i := range p.slots {
		s := &p.slots[i]
		s.header.pool = p.info
		s.header.index = i
		s.header.poll = func(cx *Context) bool {
			return PT(&s.future).Poll(cx)
		}
		s.header.reset = func() {
			var zero T
			s.future = zero
		}
	}

	return p
}

// Spawn claims a free slot, moves future into it, and returns a token to be
// handed to a Spawner. It returns ErrPoolExhausted if every slot is in use;
// the task is then never created, and retrying is the caller's concern.
func (p *Pool[T, PT]) Spawn(future T) (SpawnToken, error) {
	for i := range p.slots {
		s := &p.slots[i]
		gen, ok := s.header.state.tryClaim()
		if !ok {
			continue
		}
		s.future = future
		return SpawnToken{task: &s.header, gen: gen}, nil
	}
	p.info.logExhausted()
	return SpawnToken{}, ErrPoolExhausted
}

// Cap returns the number of slots.
func (p *Pool[T, PT]) Cap() int {
	return len(p.slots)
}

// Len returns the number of occupied slots.
// Note: May be stale under concurrent modification.
func (p *Pool[T, PT]) Len() int {
	var n int
	for i := range p.slots {
		if _, flags := p.slots[i].header.state.load(); flags&StateSpawned != 0 {
			n++
		}
	}
	return n
}

// Name returns the pool name, as configured by WithPoolName.
func (p *Pool[T, PT]) Name() string {
	return p.info.name
}

// SpawnToken identifies a constructed, not yet spawned, task. It is consumed
// by exactly one successful spawn; otherwise it must be discarded, or the
// slot is never released.
type SpawnToken struct {
	task *taskHeader
	gen  uint32
}

// IsZero reports whether t is the zero token.
func (t SpawnToken) IsZero() bool {
	return t.task == nil
}

// Name returns the name of the task the token refers to.
func (t SpawnToken) Name() string {
	return t.task.name()
}

// Discard releases the slot of a token that will not be spawned. It reports
// false if the token was already spawned, discarded, or is otherwise stale.
func (t SpawnToken) Discard() bool {
	h := t.task
	if h == nil {
		return false
	}
	if gen, flags := h.state.load(); gen != t.gen || flags != StateSpawned {
		return false
	}
	if !h.executor.CompareAndSwap(nil, &discarded) {
		return false
	}
	if gen, _ := h.state.load(); gen != t.gen {
		// lost a race with a reclaim of a completed slot
		h.executor.CompareAndSwap(&discarded, nil)
		return false
	}
	h.reset()
	h.executor.Store(nil)
	h.state.release()
	return true
}

// discarded marks a slot as owned by Discard.
var discarded raw
