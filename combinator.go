package executor

// YieldNow is the future returned by Yield.
type YieldNow struct {
	yielded bool
}

var _ Future = (*YieldNow)(nil)

// Yield returns a future that is pending exactly once, waking itself, so
// that the rest of the run queue is polled before the task resumes.
func Yield() YieldNow {
	return YieldNow{}
}

// Poll implements Future.
func (y *YieldNow) Poll(cx *Context) bool {
	if y.yielded {
		return true
	}
	y.yielded = true
	cx.Waker().Wake()
	return false
}

// Ready is a future that is always complete.
type Ready struct{}

var _ Future = Ready{}

// Poll implements Future.
func (Ready) Poll(*Context) bool {
	return true
}

// Pending is a future that never completes, and never wakes. A task awaiting
// it holds its slot until the program exits.
type Pending struct{}

var _ Future = Pending{}

// Poll implements Future.
func (Pending) Poll(*Context) bool {
	return false
}
