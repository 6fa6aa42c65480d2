package executor

import (
	"strings"
	"sync/atomic"
)

// TaskState is a snapshot of the scheduling flags of a task.
//
// State Machine:
//
//	0 (free)             → Spawned              [Pool.Spawn claims a slot]
//	Spawned              → Spawned|Queued       [spawn, wake]
//	Spawned|Queued       → Spawned|Running      [poll loop dequeues]
//	Spawned|Running      → Spawned|Running|Queued [wake during poll, deferred]
//	Spawned|Running      → Spawned              [poll returned pending]
//	Spawned|Running|Queued → Spawned|Queued     [poll returned pending, re-linked]
//	Spawned|Running(|Queued) → 0 (free)         [poll returned complete]
//
// Every transition is a CAS on a single word that also carries the slot
// generation, so a waker from a previous occupant can never match.
type TaskState uint8

const (
	// StateSpawned is set while the slot is occupied by a live task.
	StateSpawned TaskState = 1 << iota
	// StateQueued is set while the task is runnable: either linked into its
	// executor's run queue, or woken while running (re-linked after poll).
	StateQueued
	// StateRunning is set while the owning executor is inside the task's poll.
	StateRunning
)

// String returns a human-readable representation of the state.
func (s TaskState) String() string {
	if s == 0 {
		return "Free"
	}
	var b strings.Builder
	for _, f := range [...]struct {
		flag TaskState
		name string
	}{
		{StateSpawned, "Spawned"},
		{StateQueued, "Queued"},
		{StateRunning, "Running"},
	} {
		if s&f.flag == 0 {
			continue
		}
		if b.Len() != 0 {
			b.WriteByte('|')
		}
		b.WriteString(f.name)
	}
	if rest := s &^ (StateSpawned | StateQueued | StateRunning); rest != 0 {
		if b.Len() != 0 {
			b.WriteByte('|')
		}
		b.WriteString("Unknown")
	}
	return b.String()
}

const (
	stateFlagMask = 0xff
	stateGenShift = 32
)

func packState(gen uint32, flags TaskState) uint64 {
	return uint64(gen)<<stateGenShift | uint64(flags)
}

func unpackState(v uint64) (uint32, TaskState) {
	return uint32(v >> stateGenShift), TaskState(v & stateFlagMask)
}

// wakeResult is the outcome of an attempt to mark a task runnable.
type wakeResult uint8

const (
	// wakeIgnored: stale generation, free slot, or already queued.
	wakeIgnored wakeResult = iota
	// wakeDeferred: the task is running; the poll loop re-links it.
	wakeDeferred
	// wakeEnqueue: the caller now owns the obligation to link the task.
	wakeEnqueue
)

// taskState is the atomic state word of a task: flags in the low byte, slot
// generation in the high 32 bits.
//
// PERFORMANCE: Pure CAS, no mutex, safe from any goroutine.
type taskState struct {
	v atomic.Uint64
}

func (s *taskState) load() (uint32, TaskState) {
	return unpackState(s.v.Load())
}

// tryClaim transitions a free slot to Spawned, returning its generation.
func (s *taskState) tryClaim() (uint32, bool) {
	v := s.v.Load()
	gen, flags := unpackState(v)
	if flags != 0 {
		return 0, false
	}
	if !s.v.CompareAndSwap(v, packState(gen, StateSpawned)) {
		return 0, false
	}
	return gen, true
}

// tryQueue sets Queued for the given generation, collapsing duplicate wakes.
func (s *taskState) tryQueue(gen uint32) wakeResult {
	for {
		v := s.v.Load()
		g, flags := unpackState(v)
		if g != gen || flags&StateSpawned == 0 || flags&StateQueued != 0 {
			return wakeIgnored
		}
		if s.v.CompareAndSwap(v, packState(g, flags|StateQueued)) {
			if flags&StateRunning != 0 {
				return wakeDeferred
			}
			return wakeEnqueue
		}
	}
}

// beginPoll transitions Spawned|Queued to Spawned|Running. Any other source
// state is an invariant violation, reported via ok=false with the observed
// flags.
func (s *taskState) beginPoll() (gen uint32, observed TaskState, ok bool) {
	for {
		v := s.v.Load()
		g, flags := unpackState(v)
		if flags != StateSpawned|StateQueued {
			return g, flags, false
		}
		if s.v.CompareAndSwap(v, packState(g, StateSpawned|StateRunning)) {
			return g, flags, true
		}
	}
}

// endPoll clears Running after a pending poll. It reports whether a wake
// arrived during the poll, in which case the caller must re-link the task.
func (s *taskState) endPoll() (requeue bool) {
	for {
		v := s.v.Load()
		g, flags := unpackState(v)
		if s.v.CompareAndSwap(v, packState(g, flags&^StateRunning)) {
			return flags&StateQueued != 0
		}
	}
}

// release frees the slot and advances the generation, invalidating every
// outstanding Waker and SpawnToken for the previous occupant.
func (s *taskState) release() {
	for {
		v := s.v.Load()
		g, _ := unpackState(v)
		if s.v.CompareAndSwap(v, packState(g+1, 0)) {
			return
		}
	}
}
