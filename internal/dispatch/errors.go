package dispatch

import "errors"

// Domain-specific errors for the dispatch queue.
var (
	// ErrDisposed is returned when scheduling into a disposed queue.
	ErrDisposed = errors.New("dispatch: queue disposed")

	// ErrExecutorPanic wraps a recovered panic from an Executor.
	ErrExecutorPanic = errors.New("dispatch: executor panicked")
)
