package core

import (
	"sync"
	"sync/atomic"
)

const cacheLineSize = 64

// PhaseCounter is a single worker's completed-iteration count. The owner
// advances it with Arrive; neighbours wait on it with AwaitAtLeast.
type PhaseCounter struct {
	// phase is read lock-free on the fast path.
	phase atomic.Int64

	mu     sync.Mutex
	cond   *sync.Cond
	broken error

	// Padding keeps adjacent counters in a slice on separate cache lines.
	_ [cacheLineSize]byte
}

// NewPhaseCounters allocates n counters, all at phase 0.
func NewPhaseCounters(n int) []PhaseCounter {
	counters := make([]PhaseCounter, n)
	for i := range counters {
		counters[i].cond = sync.NewCond(&counters[i].mu)
	}
	return counters
}

// Arrive: owner-only; publishes one more completed iteration and wakes
// waiters. Returns the new phase.
func (p *PhaseCounter) Arrive() int {
	p.mu.Lock()
	phase := p.phase.Add(1)
	p.mu.Unlock()
	p.cond.Broadcast()
	return int(phase)
}

// AwaitAtLeast blocks until the counter reaches target or the counter is
// aborted. It never requires the owner to wait for the caller.
func (p *PhaseCounter) AwaitAtLeast(target int) (int, error) {
	if phase := p.phase.Load(); phase >= int64(target) {
		return int(phase), nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for p.phase.Load() < int64(target) && p.broken == nil {
		p.cond.Wait()
	}
	phase := p.phase.Load()
	if phase >= int64(target) {
		return int(phase), nil
	}
	return int(phase), interrupted(p.broken)
}

// Abort releases every waiter on this counter with an error wrapping
// ErrInterrupted and cause.
func (p *PhaseCounter) Abort(cause error) {
	if cause == nil {
		cause = ErrInterrupted
	}
	p.mu.Lock()
	if p.broken == nil {
		p.broken = cause
	}
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Phase returns the counter's current value.
func (p *PhaseCounter) Phase() int { return int(p.phase.Load()) }
