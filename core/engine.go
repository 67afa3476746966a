package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Engine names accepted by NewEngine.
const (
	EngineSequential    = "seq"
	EngineGlobalBarrier = "barrier"
	EngineFuzzyBarrier  = "fuzzy"
)

// Engine advances a Workspace by a number of stencil iterations. On success
// the result is in w.Current(); on error the workspace's current buffer is
// left where it was and its contents are undefined.
type Engine interface {
	Name() string
	Run(ctx context.Context, w *Workspace, iterations int) error
}

// Options carries the ambient dependencies shared by every engine.
type Options struct {
	Logger  *slog.Logger
	Metrics *Metrics

	// beforeStep runs at the start of each worker compute step.
	beforeStep func(worker, iteration int)
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// NewEngine builds the engine registered under name.
func NewEngine(name string, tasks int, opts Options) (Engine, error) {
	switch name {
	case EngineSequential:
		return NewSequentialEngine(opts), nil
	case EngineGlobalBarrier:
		return NewGlobalBarrierEngine(tasks, opts)
	case EngineFuzzyBarrier:
		return NewFuzzyBarrierEngine(tasks, opts)
	default:
		return nil, invalidf("unknown engine %q", name)
	}
}

// EngineNames lists every engine in a stable order.
func EngineNames() []string {
	return []string{EngineSequential, EngineGlobalBarrier, EngineFuzzyBarrier}
}

func validateRun(w *Workspace, iterations int) error {
	if w == nil {
		return invalidf("nil workspace")
	}
	if iterations < 0 {
		return invalidf("iterations must be >= 0, got %d", iterations)
	}
	return nil
}

func validateTasks(tasks int) error {
	if tasks <= 0 {
		return invalidf("tasks must be > 0, got %d", tasks)
	}
	return nil
}

// instrument wraps one engine run with logging, metrics and the final
// buffer hand-off. run must leave the workspace untouched on error.
func instrument(ctx context.Context, opts Options, engine string, tasks int, w *Workspace, iterations int, run func(context.Context) error) error {
	log := opts.logger().With(
		"run_id", uuid.NewString(),
		"engine", engine,
		"iterations", iterations,
		"tasks", tasks,
		"n", w.N(),
	)
	log.Debug("stencil run starting")

	start := time.Now()
	err := run(ctx)
	elapsed := time.Since(start)
	opts.Metrics.observeRun(engine, iterations, elapsed, err)

	if err != nil {
		log.Error("stencil run failed", "duration", elapsed, "error", err)
		return fmt.Errorf("%s engine: %w", engine, err)
	}
	w.advance(iterations)
	log.Debug("stencil run finished", "duration", elapsed)
	return nil
}

// runPool spawns exactly tasks workers inside one errgroup scope and joins
// them. The first failure (or cancellation of ctx) triggers abort so that no
// worker stays blocked. Every worker error is returned.
func runPool(ctx context.Context, tasks int, abort func(cause error), work func(ctx context.Context, worker int) error) error {
	if err := ctx.Err(); err != nil {
		return interrupted(err)
	}

	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, func() { abort(context.Cause(gctx)) })
	defer stop()

	errs := make([]error, tasks)
	for id := 0; id < tasks; id++ {
		g.Go(func() error {
			errs[id] = work(gctx, id)
			return errs[id]
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// checkRun reports whether the pool has been cancelled, by the caller or by
// another worker's failure.
func checkRun(ctx context.Context, worker, iteration int) error {
	if ctx.Err() == nil {
		return nil
	}
	return &WorkerError{Worker: worker, Iteration: iteration, Err: interrupted(context.Cause(ctx))}
}

// step computes one iteration of a worker's chunk, turning a panic into a
// WorkerError.
func (o Options) step(worker, iteration int, dst, src []float64, left, right int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &WorkerError{
				Worker:    worker,
				Iteration: iteration,
				Err:       fmt.Errorf("%w: %v", ErrWorkerFailure, r),
			}
		}
	}()
	if o.beforeStep != nil {
		o.beforeStep(worker, iteration)
	}
	averageRange(dst, src, left, right)
	return nil
}
