// In this file, we implement a reusable phase barrier using sync.Cond.
package core

import (
	"fmt"
	"sync"
)

// Barrier uses a condition variable (sync.Cond) to synchronize a fixed set of
// goroutines across any number of phases.
type Barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	parties int
	arrived int
	phase   int
	started bool
	broken  error
}

func NewBarrier() *Barrier {
	b := &Barrier{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Register fixes the party count. It must be called before the first arrival.
func (b *Barrier) Register(parties int) error {
	if parties <= 0 {
		return invalidf("barrier parties must be > 0, got %d", parties)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return fmt.Errorf("register after first arrival: %w", ErrInvalidConfiguration)
	}
	b.parties = parties
	return nil
}

// ArriveAndAwaitAdvance blocks until every registered party has arrived for
// the current phase, then returns the new phase number. It returns an error
// wrapping ErrInterrupted once the barrier has been aborted.
func (b *Barrier) ArriveAndAwaitAdvance() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.broken != nil {
		return b.phase, interrupted(b.broken)
	}
	if b.parties == 0 {
		return b.phase, fmt.Errorf("arrive before register: %w", ErrInvalidConfiguration)
	}
	b.started = true

	phase := b.phase
	b.arrived++
	if b.arrived == b.parties {
		// Last goroutine to arrive: reset and wake everyone.
		b.arrived = 0
		b.phase++
		b.cond.Broadcast()
		return b.phase, nil
	}

	for b.phase == phase && b.broken == nil {
		b.cond.Wait()
	}
	if b.phase == phase {
		return phase, interrupted(b.broken)
	}
	return b.phase, nil
}

// Abort poisons the barrier. Current and future waiters return an error
// wrapping ErrInterrupted and cause. Only the first cause is kept.
func (b *Barrier) Abort(cause error) {
	if cause == nil {
		cause = ErrInterrupted
	}
	b.mu.Lock()
	if b.broken == nil {
		b.broken = cause
	}
	b.mu.Unlock()
	b.cond.Broadcast()
}

// Phase returns the number of completed phases.
func (b *Barrier) Phase() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase
}
