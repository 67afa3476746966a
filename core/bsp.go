package core

import (
	"context"
	"time"
)

// GlobalBarrierEngine (bulk synchronous parallel):
// Splits the interior into contiguous chunks, one per worker.
// Worker 0 takes the first ceil(N/T) points, worker 1 the next, etc.
// Every iteration ends at one shared barrier that releases only when all
// workers have arrived.
type GlobalBarrierEngine struct {
	tasks int
	opts  Options
}

func NewGlobalBarrierEngine(tasks int, opts Options) (*GlobalBarrierEngine, error) {
	if err := validateTasks(tasks); err != nil {
		return nil, err
	}
	return &GlobalBarrierEngine{tasks: tasks, opts: opts}, nil
}

func (e *GlobalBarrierEngine) Name() string { return EngineGlobalBarrier }

func (e *GlobalBarrierEngine) Tasks() int { return e.tasks }

func (e *GlobalBarrierEngine) Run(ctx context.Context, w *Workspace, iterations int) error {
	if err := validateRun(w, iterations); err != nil {
		return err
	}
	return instrument(ctx, e.opts, e.Name(), e.tasks, w, iterations, func(ctx context.Context) error {
		barrier := NewBarrier()
		if err := barrier.Register(e.tasks); err != nil {
			return err
		}
		wait := e.opts.Metrics.waitObserver(e.Name())
		n := w.N()

		return runPool(ctx, e.tasks, barrier.Abort, func(ctx context.Context, id int) error {
			myVal, myNew := w.Current(), w.Next()
			left, right := ComputeChunk(n, e.tasks, id)

			for iter := 0; iter < iterations; iter++ {
				if err := checkRun(ctx, id, iter); err != nil {
					return err
				}
				if err := e.opts.step(id, iter, myNew, myVal, left, right); err != nil {
					barrier.Abort(err)
					return err
				}

				start := time.Now()
				if _, err := barrier.ArriveAndAwaitAdvance(); err != nil {
					return &WorkerError{Worker: id, Iteration: iter, Err: err}
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

// RunParallelGlobalBarrier advances in with tasks workers synchronised by a
// global barrier and returns the buffer holding the result.
func RunParallelGlobalBarrier(ctx context.Context, iterations int, out, in []float64, n, tasks int) ([]float64, error) {
	e, err := NewGlobalBarrierEngine(tasks, Options{})
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
