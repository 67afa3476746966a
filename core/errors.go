package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration is returned before any worker is spawned.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrWorkerFailure marks a fault raised inside a worker's compute step.
	ErrWorkerFailure = errors.New("worker failure")

	// ErrInterrupted marks a worker that was released from a barrier or
	// phase wait without the phase advancing.
	ErrInterrupted = errors.New("interrupted wait")
)

// WorkerError ties a failure to the worker and iteration it happened in.
type WorkerError struct {
	Worker    int
	Iteration int
	Err       error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker %d, iteration %d: %v", e.Worker, e.Iteration, e.Err)
}

func (e *WorkerError) Unwrap() error { return e.Err }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}

func interrupted(cause error) error {
	if cause == nil {
		return ErrInterrupted
	}
	return fmt.Errorf("%w: %w", ErrInterrupted, cause)
}
