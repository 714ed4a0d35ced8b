package scheduler

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownTask is returned when a requested or required task name
	// is not registered.
	ErrUnknownTask = errors.New("unknown task")

	// ErrCycle is returned when the prerequisite graph contains a cycle.
	ErrCycle = errors.New("prerequisite cycle")
)

// StepError identifies the step that aborted a chain and carries the
// subprocess exit status for propagation to the invoking operator.
type StepError struct {
	Task     string
	ExitCode int
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed with exit code %d: %v", e.Task, e.ExitCode, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
