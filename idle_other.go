//go:build !linux

package executor

import (
	"time"
)

// EventFDIdle is only available on Linux.
type EventFDIdle struct{}

// NewEventFDIdle returns ErrUnsupported on this platform.
func NewEventFDIdle() (*EventFDIdle, error) {
	return nil, ErrUnsupported
}

// Pend implements Interrupt.
func (x *EventFDIdle) Pend() {}

// Wait implements IdleHook.
func (x *EventFDIdle) Wait(time.Time) {}

// Close is a no-op.
func (x *EventFDIdle) Close() error { return nil }
