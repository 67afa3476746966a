package core

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarrierNoPartyPassesEarly(t *testing.T) {
	const parties, phases = 8, 200

	b := NewBarrier()
	require.NoError(t, b.Register(parties))

	var arrivals atomic.Int64
	var early atomic.Int64
	var wg sync.WaitGroup
	for p := 0; p < parties; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 1; k <= phases; k++ {
				arrivals.Add(1)
				phase, err := b.ArriveAndAwaitAdvance()
				if err != nil || phase != k {
					early.Add(1)
					return
				}
				// Every party must have arrived for phase k.
				if arrivals.Load() < int64(parties*k) {
					early.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, early.Load())
	assert.Equal(t, phases, b.Phase())
}

func TestBarrierSinglePartyNeverBlocks(t *testing.T) {
	b := NewBarrier()
	require.NoError(t, b.Register(1))
	for k := 1; k <= 5; k++ {
		phase, err := b.ArriveAndAwaitAdvance()
		require.NoError(t, err)
		assert.Equal(t, k, phase)
	}
}

func TestBarrierRegister(t *testing.T) {
	b := NewBarrier()
	assert.ErrorIs(t, b.Register(0), ErrInvalidConfiguration)

	_, err := b.ArriveAndAwaitAdvance()
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	require.NoError(t, b.Register(1))
	_, err = b.ArriveAndAwaitAdvance()
	require.NoError(t, err)
	assert.ErrorIs(t, b.Register(2), ErrInvalidConfiguration)
}

func TestBarrierAbortReleasesWaiters(t *testing.T) {
	b := NewBarrier()
	require.NoError(t, b.Register(3))

	cause := errors.New("boom")
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := b.ArriveAndAwaitAdvance()
			errs <- err
		}()
	}

	// Give both waiters a chance to block; Abort must release them either way.
	time.Sleep(10 * time.Millisecond)
	b.Abort(cause)

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			assert.ErrorIs(t, err, ErrInterrupted)
			assert.ErrorIs(t, err, cause)
		case <-time.After(5 * time.Second):
			t.Fatal("waiter not released by Abort")
		}
	}

	_, err := b.ArriveAndAwaitAdvance()
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.Equal(t, 0, b.Phase())
}
