package executor

import (
	"sync/atomic"
)

// Signal is a latched, single-consumer event flag. Raise may be called from
// any goroutine, typically an interrupt handler; one task awaits it with
// Wait. Raises that happen while nobody waits are latched, and several
// raises before the waiter observes them collapse into one.
//
// The zero value is ready to use. A Signal must not be copied after first
// use.
type Signal struct {
	_      [0]func()
	raised atomic.Bool
	waker  AtomicWaker
}

// Raise sets the flag and wakes the waiting task, if any.
func (s *Signal) Raise() {
	s.raised.Store(true)
	s.waker.Wake()
}

// Raised reports whether the flag is set, without consuming it.
func (s *Signal) Raised() bool {
	return s.raised.Load()
}

// TryTake consumes the flag, reporting whether it was set.
func (s *Signal) TryTake() bool {
	return s.raised.Swap(false)
}

// Reset clears the flag.
func (s *Signal) Reset() {
	s.raised.Store(false)
}

// Wait returns a future that completes once the flag is set, consuming it.
func (s *Signal) Wait() SignalWait {
	return SignalWait{signal: s}
}

// SignalWait is the future returned by Signal.Wait.
type SignalWait struct {
	signal *Signal
}

var _ Future = SignalWait{}

// Poll implements Future.
func (w SignalWait) Poll(cx *Context) bool {
	if w.signal.raised.Swap(false) {
		return true
	}
	w.signal.waker.Register(cx.Waker())
	// a Raise between the check and Register would otherwise be missed
	return w.signal.raised.Swap(false)
}
