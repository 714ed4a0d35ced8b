package scheduler

import "context"

// Action is the executable body of a task. It is expected to shell out to an
// external tool or call a native component; a nil error means exit code zero.
type Action func(ctx context.Context) error

// Task is a named, orderable unit of automation with declared prerequisites.
type Task struct {
	Name        string   // Unique identifier, e.g. "install-test"
	Description string   // Human-readable, shown in CLI listings
	Requires    []string // Task names that must complete successfully first
	Action      Action   // nil actions are valid (pure grouping targets)
}

// StepStatus is the outcome of one step within a resolved chain.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepCompleted
	StepFailed
	StepSkipped // not reached because an earlier step failed
)

func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepRunning:
		return "running"
	case StepCompleted:
		return "completed"
	case StepFailed:
		return "failed"
	case StepSkipped:
		return "skipped"
	}
	return "unknown"
}
