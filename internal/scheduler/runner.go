package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/projops/projops/internal/events"
	"github.com/projops/projops/internal/toolchain"
)

// Recorder persists chain and step outcomes. Implemented by the history
// store; a nil Recorder disables persistence.
type Recorder interface {
	BeginRun(ctx context.Context, target string) (runID string, err error)
	RecordStep(ctx context.Context, runID, task string, status StepStatus, exitCode int, duration time.Duration, stepErr error) error
	FinishRun(ctx context.Context, runID string, success bool) error
}

// ChainRunner executes resolved chains strictly sequentially: one step runs
// to completion before the next begins, the first non-zero exit aborts the
// chain, and nothing is retried.
type ChainRunner struct {
	dag      *DAG
	bus      *events.Bus
	recorder Recorder

	// BeforeStep, when set, is called synchronously before each step's
	// action. Output hooks use it to attribute subprocess lines to the
	// step that produced them.
	BeforeStep func(task string)
}

// NewChainRunner creates a runner over the given task registry.
// bus and recorder may be nil.
func NewChainRunner(dag *DAG, bus *events.Bus, recorder Recorder) *ChainRunner {
	return &ChainRunner{dag: dag, bus: bus, recorder: recorder}
}

// Run resolves target's prerequisite chain and executes it.
// The returned error, if any, is the first failing step's *StepError.
func (r *ChainRunner) Run(ctx context.Context, target string) error {
	chain, err := r.dag.ResolveChain(target)
	if err != nil {
		return err
	}

	runID := ""
	if r.recorder != nil {
		if id, err := r.recorder.BeginRun(ctx, target); err != nil {
			slog.Warn("run history unavailable", "error", err)
		} else {
			runID = id
		}
	}

	chainStart := time.Now()
	var chainErr error

	for i, task := range chain {
		if chainErr != nil {
			r.recordStep(ctx, runID, task.Name, StepSkipped, 0, 0, nil)
			continue
		}
		if err := ctx.Err(); err != nil {
			chainErr = &StepError{Task: task.Name, ExitCode: 1, Err: err}
			r.recordStep(ctx, runID, task.Name, StepSkipped, 0, 0, nil)
			continue
		}

		r.publish(events.TopicStep, events.StepStartedEvent{
			Task:        task.Name,
			Description: task.Description,
			Position:    i + 1,
			ChainLen:    len(chain),
			Timestamp:   time.Now(),
		})
		slog.Info("step started", "task", task.Name, "position", i+1, "of", len(chain))

		if r.BeforeStep != nil {
			r.BeforeStep(task.Name)
		}

		start := time.Now()
		var err error
		if task.Action != nil {
			err = task.Action(ctx)
		}
		elapsed := time.Since(start)

		if err != nil {
			exitCode := toolchain.ExitCode(err)
			chainErr = &StepError{Task: task.Name, ExitCode: exitCode, Err: err}
			r.recordStep(ctx, runID, task.Name, StepFailed, exitCode, elapsed, err)
			r.publish(events.TopicStep, events.StepFailedEvent{
				Task:      task.Name,
				Err:       err,
				ExitCode:  exitCode,
				Duration:  elapsed,
				Timestamp: time.Now(),
			})
			slog.Error("step failed", "task", task.Name, "exit_code", exitCode, "error", err)
			continue
		}

		r.recordStep(ctx, runID, task.Name, StepCompleted, 0, elapsed, nil)
		r.publish(events.TopicStep, events.StepCompletedEvent{
			Task:      task.Name,
			Duration:  elapsed,
			Timestamp: time.Now(),
		})
		r.publish(events.TopicChain, events.ChainProgressEvent{
			Target:    target,
			Total:     len(chain),
			Done:      i + 1,
			Timestamp: time.Now(),
		})
		slog.Info("step completed", "task", task.Name, "duration", elapsed)
	}

	if r.recorder != nil && runID != "" {
		if err := r.recorder.FinishRun(ctx, runID, chainErr == nil); err != nil {
			slog.Warn("failed to finalize run history", "error", err)
		}
	}
	r.publish(events.TopicChain, events.ChainFinishedEvent{
		Target:    target,
		Err:       chainErr,
		Duration:  time.Since(chainStart),
		Timestamp: time.Now(),
	})
	return chainErr
}

func (r *ChainRunner) publish(topic string, ev events.Event) {
	if r.bus != nil {
		r.bus.Publish(topic, ev)
	}
}

func (r *ChainRunner) recordStep(ctx context.Context, runID, task string, status StepStatus, exitCode int, d time.Duration, stepErr error) {
	if r.recorder == nil || runID == "" {
		return
	}
	if err := r.recorder.RecordStep(ctx, runID, task, status, exitCode, d, stepErr); err != nil {
		slog.Warn("failed to record step", "task", task, "error", err)
	}
}
