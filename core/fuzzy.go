package core

import (
	"context"
	"time"
)

// FuzzyBarrierEngine partitions work like GlobalBarrierEngine, but each
// worker publishes its own phase and waits only for its left and right
// neighbours. Workers can drift apart by at most one iteration, which the
// neighbour-only stencil tolerates: a chunk's boundary reads touch exactly
// the neighbours it waits on.
type FuzzyBarrierEngine struct {
	tasks int
	opts  Options
}

func NewFuzzyBarrierEngine(tasks int, opts Options) (*FuzzyBarrierEngine, error) {
	if err := validateTasks(tasks); err != nil {
		return nil, err
	}
	return &FuzzyBarrierEngine{tasks: tasks, opts: opts}, nil
}

func (e *FuzzyBarrierEngine) Name() string { return EngineFuzzyBarrier }

func (e *FuzzyBarrierEngine) Tasks() int { return e.tasks }

func (e *FuzzyBarrierEngine) Run(ctx context.Context, w *Workspace, iterations int) error {
	if err := validateRun(w, iterations); err != nil {
		return err
	}
	return instrument(ctx, e.opts, e.Name(), e.tasks, w, iterations, func(ctx context.Context) error {
		phases := NewPhaseCounters(e.tasks)
		abort := func(cause error) {
			for i := range phases {
				phases[i].Abort(cause)
			}
		}
		wait := e.opts.Metrics.waitObserver(e.Name())
		n := w.N()

		return runPool(ctx, e.tasks, abort, func(ctx context.Context, id int) error {
			myVal, myNew := w.Current(), w.Next()
			left, right := ComputeChunk(n, e.tasks, id)

			for iter := 0; iter < iterations; iter++ {
				if err := checkRun(ctx, id, iter); err != nil {
					return err
				}
				if err := e.opts.step(id, iter, myNew, myVal, left, right); err != nil {
					abort(err)
					return err
				}

				current := phases[id].Arrive()
				start := time.Now()
				if id > 0 {
					if _, err := phases[id-1].AwaitAtLeast(current); err != nil {
						return &WorkerError{Worker: id, Iteration: iter, Err: err}
					}
				}
				if id+1 < e.tasks {
					if _, err := phases[id+1].AwaitAtLeast(current); err != nil {
						return &WorkerError{Worker: id, Iteration: iter, Err: err}
					}
				}
				if wait != nil {
					wait.Observe(time.Since(start).Seconds())
				}

				myVal, myNew = myNew, myVal
			}
			return nil
		})
	})
}

// RunParallelFuzzyBarrier advances in with tasks workers synchronised only
// with their neighbours and returns the buffer holding the result.
func RunParallelFuzzyBarrier(ctx context.Context, iterations int, out, in []float64, n, tasks int) ([]float64, error) {
	e, err := NewFuzzyBarrierEngine(tasks, Options{})
	if err != nil {
		return nil, err
	}
	w, err := WorkspaceFromBuffers(out, in, n)
	if err != nil {
		return nil, err
	}
	if err := e.Run(ctx, w, iterations); err != nil {
		return nil, err
	}
	return w.Current(), nil
}
