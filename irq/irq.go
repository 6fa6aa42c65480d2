// Package irq implements a software interrupt controller, for running
// interrupt-mode executors on hosted targets.
//
// A [Controller] owns a fixed set of numbered [Line]s. Pending a line
// schedules one dispatch of its handler; pends that arrive before the
// dispatch starts collapse into it, as with a hardware pending bit. Each line
// is served by its own dispatcher goroutine, so a handler never runs
// concurrently with itself, while handlers of different lines may.
//
// The Go scheduler does not preempt a running handler on behalf of another
// line, so line priority is recorded but only orders startup. Code that
// relies on nested preemption needs real hardware.
package irq

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/joeycumines/go-executor"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrAlreadyRunning is returned by Controller.Run if it is already
	// running.
	ErrAlreadyRunning = errors.New("irq: controller is already running")
)

// HandlerPanicError is returned by Controller.Run when a handler panics.
type HandlerPanicError struct {
	Value any
	Line  int
}

func (e *HandlerPanicError) Error() string {
	return fmt.Sprintf("irq: handler for line %d panicked: %v", e.Line, e.Value)
}

// Controller is a software interrupt controller.
type Controller struct {
	_       [0]func()
	logger  *executor.Logger
	lines   []*Line
	running atomic.Bool
}

// Option configures a Controller.
type Option interface {
	applyController(*Controller)
}

type optionFunc func(*Controller)

func (f optionFunc) applyController(c *Controller) { f(c) }

// WithLogger attaches a structured logger to the controller.
func WithLogger(logger *executor.Logger) Option {
	return optionFunc(func(c *Controller) {
		c.logger = logger
	})
}

// NewController constructs a controller with n lines, numbered from 0. It
// panics if n is not positive.
func NewController(n int, opts ...Option) *Controller {
	if n <= 0 {
		panic(`irq: line count must be positive`)
	}
	c := &Controller{lines: make([]*Line, n)}
	for _, o := range opts {
		if o != nil {
			o.applyController(c)
		}
	}
	for i := range c.lines {
		c.lines[i] = &Line{
			ctrl:    c,
			num:     i,
			pending: make(chan struct{}, 1),
		}
	}
	return c
}

// Line returns line n. It panics if n is out of range.
func (c *Controller) Line(n int) *Line {
	if n < 0 || n >= len(c.lines) {
		panic(fmt.Sprintf(`irq: line %d out of range [0, %d)`, n, len(c.lines)))
	}
	return c.lines[n]
}

// Len returns the number of lines.
func (c *Controller) Len() int {
	return len(c.lines)
}

// Run serves every line until ctx is cancelled, or a handler panics. It
// returns the handler panic as a *HandlerPanicError, else ctx.Err().
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	lines := make([]*Line, len(c.lines))
	copy(lines, c.lines)
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Priority() > lines[j].Priority()
	})

	c.logger.Info().
		Int(`lines`, len(lines)).
		Log(`interrupt controller started`)

	g, gctx := errgroup.WithContext(ctx)
	for _, l := range lines {
		g.Go(func() error {
			return l.serve(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Err().
			Err(err).
			Log(`interrupt controller stopped`)
		return err
	}

	c.logger.Info().
		Log(`interrupt controller stopped`)
	return ctx.Err()
}

// Running reports whether Run is executing.
func (c *Controller) Running() bool {
	return c.running.Load()
}

// Line is one interrupt line. It implements executor.Interrupt.
type Line struct {
	ctrl    *Controller
	handler atomic.Pointer[func()]
	// pending is the pending bit, a buffered channel of capacity one
	pending    chan struct{}
	num        int
	priority   atomic.Int32
	masked     atomic.Bool
	held       atomic.Bool
	pends      atomic.Uint64
	dispatches atomic.Uint64
}

var _ executor.Interrupt = (*Line)(nil)

// Number returns the line number.
func (l *Line) Number() int {
	return l.num
}

// SetHandler sets the function dispatched when the line is pended. A nil
// handler discards dispatches.
func (l *Line) SetHandler(h func()) {
	if h == nil {
		l.handler.Store(nil)
		return
	}
	l.handler.Store(&h)
}

// SetPriority sets the line's priority, higher being more urgent. It must be
// called before Controller.Run.
func (l *Line) SetPriority(p int) {
	l.priority.Store(int32(p))
}

// Priority returns the line's priority.
func (l *Line) Priority() int {
	return int(l.priority.Load())
}

// Pend marks the line pending. It never blocks, and is safe from any
// goroutine, including the line's own handler.
func (l *Line) Pend() {
	l.pends.Add(1)
	select {
	case l.pending <- struct{}{}:
	default:
	}
}

// Disable masks the line. Pends are held, and dispatched once the line is
// enabled again. A dispatch already in progress is unaffected.
func (l *Line) Disable() {
	l.masked.Store(true)
}

// Enable unmasks the line, dispatching any held pend.
func (l *Line) Enable() {
	l.masked.Store(false)
	if l.held.Swap(false) {
		l.Pend()
	}
}

// Enabled reports whether the line is unmasked.
func (l *Line) Enabled() bool {
	return !l.masked.Load()
}

// Pends returns the number of Pend calls.
func (l *Line) Pends() uint64 {
	return l.pends.Load()
}

// Dispatches returns the number of times the handler was run.
func (l *Line) Dispatches() uint64 {
	return l.dispatches.Load()
}

func (l *Line) serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.pending:
		}

		if l.masked.Load() {
			l.held.Store(true)
			if l.masked.Load() {
				continue
			}
			// raced with Enable
			l.held.Store(false)
		}

		if err := l.dispatch(); err != nil {
			return err
		}
	}
}

func (l *Line) dispatch() (err error) {
	h := l.handler.Load()
	if h == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			l.ctrl.logger.Crit().
				Int(`line`, l.num).
				Str(`panic`, fmt.Sprint(r)).
				Log(`interrupt handler panicked`)
			err = &HandlerPanicError{Line: l.num, Value: r}
		}
	}()
	l.dispatches.Add(1)
	(*h)()
	return nil
}
