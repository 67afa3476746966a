package core

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseCounterArrive(t *testing.T) {
	counters := NewPhaseCounters(2)
	assert.Equal(t, 0, counters[0].Phase())
	assert.Equal(t, 1, counters[0].Arrive())
	assert.Equal(t, 2, counters[0].Arrive())
	assert.Equal(t, 0, counters[1].Phase())

	phase, err := counters[0].AwaitAtLeast(1)
	require.NoError(t, err)
	assert.Equal(t, 2, phase)
}

func TestPhaseCounterAwaitBlocksUntilArrive(t *testing.T) {
	counters := NewPhaseCounters(1)
	p := &counters[0]

	done := make(chan error, 1)
	go func() {
		_, err := p.AwaitAtLeast(2)
		done <- err
	}()

	p.Arrive()
	select {
	case <-done:
		t.Fatal("released before target phase")
	case <-time.After(20 * time.Millisecond):
	}

	p.Arrive()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("not released at target phase")
	}
}

func TestPhaseCounterAbort(t *testing.T) {
	counters := NewPhaseCounters(1)
	p := &counters[0]
	cause := errors.New("neighbour failed")

	done := make(chan error, 1)
	go func() {
		_, err := p.AwaitAtLeast(1)
		done <- err
	}()
	p.Abort(cause)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrInterrupted)
		assert.ErrorIs(t, err, cause)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter not released by Abort")
	}

	// A phase already reached is still reported after abort.
	p.Arrive()
	_, err := p.AwaitAtLeast(1)
	assert.NoError(t, err)
}

// Neighbour waits keep any two adjacent workers within one iteration.
func TestFuzzyDriftIsBounded(t *testing.T) {
	const tasks, iterations = 6, 300
	counters := NewPhaseCounters(tasks)

	var violations atomic.Int64
	errs := make(chan error, tasks)
	for id := 0; id < tasks; id++ {
		go func() {
			for iter := 0; iter < iterations; iter++ {
				current := counters[id].Arrive()
				for _, nb := range []int{id - 1, id + 1} {
					if nb < 0 || nb >= tasks {
						continue
					}
					if d := counters[nb].Phase() - current; d > 1 || d < -1 {
						violations.Add(1)
					}
					if _, err := counters[nb].AwaitAtLeast(current); err != nil {
						errs <- err
						return
					}
				}
			}
			errs <- nil
		}()
	}
	for i := 0; i < tasks; i++ {
		require.NoError(t, <-errs)
	}
	assert.Zero(t, violations.Load())
	for i := range counters {
		assert.Equal(t, iterations, counters[i].Phase())
	}
}
