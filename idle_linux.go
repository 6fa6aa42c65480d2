//go:build linux

package executor

import (
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// EventFDIdle is an IdleHook that sleeps in the kernel, in poll(2) on an
// eventfd, so an idle executor consumes no CPU. Pend writes to the eventfd;
// concurrent pends are deduplicated so at most one write is outstanding.
type EventFDIdle struct {
	// mu is held for reading while the fd is in use, and for writing by
	// Close, so the fd is never released under a parked Wait.
	mu      sync.RWMutex
	fd      int
	pending atomic.Uint32
	closed  atomic.Bool
	buf     [8]byte
}

var _ IdleHook = (*EventFDIdle)(nil)

// NewEventFDIdle creates the eventfd. The caller must Close it, normally
// once the executor has stopped.
func NewEventFDIdle() (*EventFDIdle, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	return &EventFDIdle{fd: fd}, nil
}

// Pend implements Interrupt. It is a no-op once closed.
func (x *EventFDIdle) Pend() {
	if !x.pending.CompareAndSwap(0, 1) {
		return
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed.Load() {
		return
	}
	if err := x.signal(); err != nil {
		x.pending.Store(0)
	}
}

// Wait implements IdleHook. Once closed, it returns immediately.
func (x *EventFDIdle) Wait(deadline time.Time) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed.Load() {
		return
	}
	fds := [1]unix.PollFd{{Fd: int32(x.fd), Events: unix.POLLIN}}
	for {
		_, err := unix.Poll(fds[:], pollTimeout(deadline))
		if err == unix.EINTR {
			continue
		}
		break
	}
	x.drain()
}

// drain empties the eventfd, then re-arms Pend. A Pend skipped in between
// pushed its work before the caller's next poll, so it is not lost.
func (x *EventFDIdle) drain() {
	for {
		if _, err := unix.Read(x.fd, x.buf[:]); err != nil {
			break
		}
	}
	x.pending.Store(0)
}

func (x *EventFDIdle) signal() error {
	// PERFORMANCE: Native endianness, no binary.LittleEndian overhead
	var one uint64 = 1
	buf := (*[8]byte)(unsafe.Pointer(&one))[:]
	_, err := unix.Write(x.fd, buf)
	return err
}

// Close releases the eventfd. A Wait parked in poll(2) is woken first, and
// the fd is closed only after it has returned. Close may be called while the
// executor is running, though the executor will then spin until stopped.
func (x *EventFDIdle) Close() error {
	if !x.closed.CompareAndSwap(false, true) {
		return nil
	}
	// only Close releases the fd, so it is still valid here
	_ = x.signal()
	x.mu.Lock()
	defer x.mu.Unlock()
	return unix.Close(x.fd)
}

// pollTimeout converts a deadline to a poll(2) timeout in milliseconds.
func pollTimeout(deadline time.Time) int {
	if deadline.IsZero() {
		return -1
	}
	d := time.Until(deadline)
	if d <= 0 {
		return 0
	}
	// Ceiling rounding: if 0 < delta < 1ms, round up to 1ms
	ms := d.Milliseconds()
	if d%time.Millisecond != 0 {
		ms++
	}
	return int(ms)
}
