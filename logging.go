package executor

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// Logger is the structured logger accepted by WithLogger and WithPoolLogger.
// A nil Logger disables logging.
type Logger = logiface.Logger[logiface.Event]

// logCritical reports a recovered task panic. A panicking logger must not
// take the poll loop down with it.
func (x *raw) logCritical(task string, value any) {
	defer func() { _ = recover() }()
	x.logger.Crit().
		Uint64(`executor`, x.id).
		Str(`task`, task).
		Str(`panic`, fmt.Sprint(value)).
		Log(`task panicked, slot released`)
}

func (x *raw) logSpawnError(err error) {
	defer func() { _ = recover() }()
	x.logger.Err().
		Uint64(`executor`, x.id).
		Err(err).
		Log(`spawn rejected`)
}

func (x *raw) logInvariant(err *InvariantError) {
	defer func() { _ = recover() }()
	x.logger.Emerg().
		Uint64(`executor`, x.id).
		Str(`op`, err.Op).
		Str(`task`, err.Task).
		Stringer(`state`, err.State).
		Log(`invariant violation`)
}

func (x *raw) logIdle(deadline time.Time) {
	b := x.logger.Trace()
	if b == nil {
		return
	}
	b = b.Uint64(`executor`, x.id)
	if !deadline.IsZero() {
		b = b.Time(`deadline`, deadline)
	}
	b.Log(`idle`)
}

// exhaustionLimiter bounds pool exhaustion warnings, per pool, since a
// caller retrying in a loop would otherwise flood the log.
var exhaustionLimiter = catrate.NewLimiter(map[time.Duration]int{
	time.Second: 1,
	time.Minute: 10,
})

func (p *poolInfo) logExhausted() {
	if p.logger == nil {
		return
	}
	if _, ok := exhaustionLimiter.Allow(p); !ok {
		return
	}
	defer func() { _ = recover() }()
	p.logger.Warning().
		Str(`pool`, p.name).
		Int(`capacity`, p.capacity).
		Log(`task pool exhausted`)
}
