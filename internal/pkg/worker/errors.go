package worker

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNilHandler is returned by Submit when no handler is given
	ErrNilHandler = errors.New("task handler cannot be nil")
	// ErrTaskNotFound is returned when the id is not (or no longer) in the registry
	ErrTaskNotFound = errors.New("task not found")
	// ErrUnknownTask is returned by SubmitNamed for names without a registered handler
	ErrUnknownTask = errors.New("no handler registered for task")
	// ErrManagerStart wraps any failure to bring up the worker and loop set
	ErrManagerStart = errors.New("task manager start failed")

	// ErrTimeout marks an attempt whose deadline elapsed before the handler returned
	ErrTimeout = errors.New("task timeout")
	// ErrStuck marks a task failed by maintenance after running past the stuck threshold
	ErrStuck = errors.New("task stuck")
	// ErrHandlerPanic marks an attempt whose handler panicked
	ErrHandlerPanic = errors.New("task handler panicked")

	// errInterrupted is internal: the attempt was cut short by Stop
	errInterrupted = errors.New("task interrupted by shutdown")
)

func timeoutError(timeout time.Duration) error {
	return fmt.Errorf("%w: exceeded %s", ErrTimeout, timeout)
}

func stuckError(running, threshold time.Duration) error {
	return fmt.Errorf("%w: running for %s, threshold %s", ErrStuck, running.Round(time.Second), threshold)
}
