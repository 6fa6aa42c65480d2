package executor

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks runtime statistics for an executor.
// Metrics are designed to be low-overhead and thread-safe.
// Collection is optional, see WithMetrics.
//
// Thread Safety:
//   - Counters are atomics, updated by the poll loop and by wakers.
//   - LatencyMetrics uses sync.Mutex (single-writer, multi-reader).
//   - Snapshot returns a copy, safe for concurrent reads.
//
// Example:
//
//	x, _ := New(WithMetrics(true))
//	_ = x.Run(ctx, init)
//	stats := x.Metrics().Snapshot()
//	fmt.Printf("polls: %d, P99 poll: %v\n", stats.Polls, stats.PollLatency.P99)
type Metrics struct {
	// PollLatency samples the duration of individual task polls.
	PollLatency LatencyMetrics

	polls         atomic.Uint64
	completions   atomic.Uint64
	requeues      atomic.Uint64
	deferredWakes atomic.Uint64
	drains        atomic.Uint64
	idles         atomic.Uint64
	timerWakes    atomic.Uint64
	panics        atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	PollLatency LatencyPercentiles

	// Polls is the number of Future.Poll invocations.
	Polls uint64
	// Completions is the number of tasks that completed (slots freed).
	Completions uint64
	// Requeues counts tasks re-linked by the poll loop after being woken
	// during their own poll.
	Requeues uint64
	// DeferredWakes counts wakes that arrived while the task was running.
	DeferredWakes uint64
	// Drains is the number of non-empty run queue drains.
	Drains uint64
	// Idles is the number of times the idle hook was entered (or, for an
	// interrupt executor, the number of times the handler returned).
	Idles uint64
	// TimerWakes is the number of tasks woken by the integrated timer queue.
	TimerWakes uint64
	// Panics is the number of recovered panics escaping Future.Poll.
	Panics uint64
}

// Snapshot returns a copy of the current counters and computes latency
// percentiles.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.PollLatency.Sample()
	return MetricsSnapshot{
		PollLatency:   m.PollLatency.Percentiles(),
		Polls:         m.polls.Load(),
		Completions:   m.completions.Load(),
		Requeues:      m.requeues.Load(),
		DeferredWakes: m.deferredWakes.Load(),
		Drains:        m.drains.Load(),
		Idles:         m.idles.Load(),
		TimerWakes:    m.timerWakes.Load(),
		Panics:        m.panics.Load(),
	}
}

// nil-safe increments, metrics are disabled when the pointer is nil

func (m *Metrics) incPoll() {
	if m != nil {
		m.polls.Add(1)
	}
}

func (m *Metrics) incCompletion() {
	if m != nil {
		m.completions.Add(1)
	}
}

func (m *Metrics) incRequeue() {
	if m != nil {
		m.requeues.Add(1)
	}
}

func (m *Metrics) incDeferredWake() {
	if m != nil {
		m.deferredWakes.Add(1)
	}
}

func (m *Metrics) incDrain() {
	if m != nil {
		m.drains.Add(1)
	}
}

func (m *Metrics) incIdle() {
	if m != nil {
		m.idles.Add(1)
	}
}

func (m *Metrics) incTimerWake() {
	if m != nil {
		m.timerWakes.Add(1)
	}
}

func (m *Metrics) incPanic() {
	if m != nil {
		m.panics.Add(1)
	}
}

func (m *Metrics) recordPoll(d time.Duration) {
	if m != nil {
		m.PollLatency.Record(d)
	}
}

// sampleSize is the maximum number of latency samples to retain.
// We keep a rolling buffer of 1000 samples to compute percentiles.
const sampleSize = 1000

// LatencyMetrics tracks latency distribution with percentiles.
type LatencyMetrics struct {
	mu          sync.Mutex
	samples     [sampleSize]time.Duration
	sampleIdx   int
	sampleCount int
	sum         time.Duration
	cached      LatencyPercentiles
}

// LatencyPercentiles holds computed percentile values.
type LatencyPercentiles struct {
	P50  time.Duration
	P90  time.Duration
	P99  time.Duration
	Max  time.Duration
	Mean time.Duration
	N    int
}

// Record records a latency sample.
func (l *LatencyMetrics) Record(duration time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// If buffer is full, subtract the old sample that we're replacing
	if l.sampleCount >= sampleSize {
		l.sum -= l.samples[l.sampleIdx]
	}

	l.samples[l.sampleIdx] = duration
	l.sum += duration
	l.sampleIdx++
	if l.sampleIdx >= sampleSize {
		l.sampleIdx = 0
	}
	if l.sampleCount < sampleSize {
		l.sampleCount++
	}
}

// Sample computes percentiles from collected samples, caching the result.
// Returns the number of samples used for computation.
func (l *LatencyMetrics) Sample() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := l.sampleCount
	if count == 0 {
		l.cached = LatencyPercentiles{}
		return 0
	}

	sorted := make([]time.Duration, count)
	copy(sorted, l.samples[:count])
	slices.Sort(sorted)

	l.cached = LatencyPercentiles{
		P50:  sorted[percentileIndex(count, 50)],
		P90:  sorted[percentileIndex(count, 90)],
		P99:  sorted[percentileIndex(count, 99)],
		Max:  sorted[count-1],
		Mean: l.sum / time.Duration(count),
		N:    count,
	}
	return count
}

// Percentiles returns the values computed by the last Sample call.
func (l *LatencyMetrics) Percentiles() LatencyPercentiles {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cached
}

// percentileIndex computes the index for a given percentile (0-100).
func percentileIndex(n, p int) int {
	index := (p * n) / 100
	if index >= n {
		return n - 1
	}
	return index
}
