package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	Step() string
}

// Topic constants
const (
	TopicStep  = "step"
	TopicChain = "chain"
)

// Event type constants
const (
	EventTypeStepStarted   = "step.started"
	EventTypeStepOutput    = "step.output"
	EventTypeStepCompleted = "step.completed"
	EventTypeStepFailed    = "step.failed"
	EventTypeChainProgress = "chain.progress"
	EventTypeChainFinished = "chain.finished"
)

// StepStartedEvent is published when a chain step begins execution.
type StepStartedEvent struct {
	Task        string
	Description string
	Position    int // 1-based index within the resolved chain
	ChainLen    int
	Timestamp   time.Time
}

func (e StepStartedEvent) EventType() string { return EventTypeStepStarted }
func (e StepStartedEvent) Step() string      { return e.Task }

// StepOutputEvent is published for each line a step's subprocess writes.
type StepOutputEvent struct {
	Task      string
	Stream    string // "stdout" or "stderr"
	Line      string
	Timestamp time.Time
}

func (e StepOutputEvent) EventType() string { return EventTypeStepOutput }
func (e StepOutputEvent) Step() string      { return e.Task }

// StepCompletedEvent is published when a step exits zero.
type StepCompletedEvent struct {
	Task      string
	Duration  time.Duration
	Timestamp time.Time
}

func (e StepCompletedEvent) EventType() string { return EventTypeStepCompleted }
func (e StepCompletedEvent) Step() string      { return e.Task }

// StepFailedEvent is published when a step fails, aborting the chain.
type StepFailedEvent struct {
	Task      string
	Err       error
	ExitCode  int
	Duration  time.Duration
	Timestamp time.Time
}

func (e StepFailedEvent) EventType() string { return EventTypeStepFailed }
func (e StepFailedEvent) Step() string      { return e.Task }

// ChainProgressEvent is published after every step state change.
type ChainProgressEvent struct {
	Target    string
	Total     int
	Done      int
	Timestamp time.Time
}

func (e ChainProgressEvent) EventType() string { return EventTypeChainProgress }
func (e ChainProgressEvent) Step() string      { return "" }

// ChainFinishedEvent is published once per Run, success or not.
type ChainFinishedEvent struct {
	Target    string
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

func (e ChainFinishedEvent) EventType() string { return EventTypeChainFinished }
func (e ChainFinishedEvent) Step() string      { return "" }
