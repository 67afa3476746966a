// core/sequential.go
package core

import (
	"context"
	"runtime"
)

// DefaultTasks is the worker count used when a caller does not pick one.
var DefaultTasks = runtime.NumCPU()

func SetDefaultTasks(n int) {
	if n < 1 {
		n = 1
	}
	if n > 1024 {
		n = 1024
	}
	DefaultTasks = n
}

// averageRange writes the neighbour average of src into dst for j in
// [left, right]. An empty range is a no-op.
func averageRange(dst, src []float64, left, right int) {
	for j := left; j <= right; j++ {
		dst[j] = (src[j-1] + src[j+1]) / 2.0
	}
}

// SequentialEngine is the single-threaded reference implementation.
type SequentialEngine struct {
	opts Options
}

func NewSequentialEngine(opts Options) *SequentialEngine {
	return &SequentialEngine{opts: opts}
}

func (e *SequentialEngine) Name() string { return EngineSequential }

// Run:
//   - per iteration: next[j] = (curr[j-1] + curr[j+1]) / 2 for j in 1..n
//   - swaps curr/next by reference, never by copy
//   - checks ctx between iterations
func (e *SequentialEngine) Run(ctx context.Context, w *Workspace, iterations int) error {
	if err := validateRun(w, iterations); err != nil {
		return err
	}
	return instrument(ctx, e.opts, e.Name(), 1, w, iterations, func(ctx context.Context) error {
		curr, next := w.Current(), w.Next()
		for iter := 0; iter < iterations; iter++ {
			if err := checkRun(ctx, 0, iter); err != nil {
				return err
			}
			if err := e.opts.step(0, iter, next, curr, 1, w.N()); err != nil {
				return err
			}
			curr, next = next, curr
		}
		return nil
	})
}

// RunSequential advances in (the initial values) using out as scratch and
// returns whichever of the two buffers holds the result.
func RunSequential(iterations int, out, in []float64, n int) ([]float64, error) {
	w, err := WorkspaceFromBuffers(out, in, n)
	if err != nil {
		return nil, err
	}
	if err := NewSequentialEngine(Options{}).Run(context.Background(), w, iterations); err != nil {
		return nil, err
	}
	return w.Current(), nil
}
