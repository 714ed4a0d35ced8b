package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/projops/projops/internal/events"
	"github.com/projops/projops/internal/toolchain"
)

type recordedStep struct {
	task     string
	status   StepStatus
	exitCode int
}

type memRecorder struct {
	mu       sync.Mutex
	steps    []recordedStep
	finished bool
	success  bool
}

func (m *memRecorder) BeginRun(ctx context.Context, target string) (string, error) {
	return "run-1", nil
}

func (m *memRecorder) RecordStep(ctx context.Context, runID, task string, status StepStatus, exitCode int, d time.Duration, stepErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, recordedStep{task: task, status: status, exitCode: exitCode})
	return nil
}

func (m *memRecorder) FinishRun(ctx context.Context, runID string, success bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = true
	m.success = success
	return nil
}

func chainDAG(t *testing.T, executed *[]string, failing map[string]error) *DAG {
	t.Helper()
	dag := NewDAG()
	add := func(name string, requires ...string) {
		task := &Task{
			Name:     name,
			Requires: requires,
			Action: func(ctx context.Context) error {
				*executed = append(*executed, name)
				return failing[name]
			},
		}
		if err := dag.Add(task); err != nil {
			t.Fatalf("Add(%s): %v", name, err)
		}
	}
	add("venv-create")
	add("install", "venv-create")
	add("install-test", "install")
	add("test", "install", "install-test")
	add("cov", "install", "install-test")
	return dag
}

// TestChainRunner_SequentialSuccess verifies a full chain runs in order.
func TestChainRunner_SequentialSuccess(t *testing.T) {
	var executed []string
	dag := chainDAG(t, &executed, nil)
	runner := NewChainRunner(dag, nil, nil)

	if err := runner.Run(context.Background(), "test"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want := []string{"venv-create", "install", "install-test", "test"}
	if len(executed) != len(want) {
		t.Fatalf("Executed %v, want %v", executed, want)
	}
	for i := range want {
		if executed[i] != want[i] {
			t.Errorf("Step %d = %q, want %q", i, executed[i], want[i])
		}
	}
}

// TestChainRunner_ShortCircuit verifies no dependent action runs after a
// failing prerequisite, and the failing step's exit code propagates.
func TestChainRunner_ShortCircuit(t *testing.T) {
	var executed []string
	failure := &toolchain.CommandError{Name: "pytest", ExitCode: 2}
	dag := chainDAG(t, &executed, map[string]error{"install-test": failure})
	rec := &memRecorder{}
	runner := NewChainRunner(dag, nil, rec)

	err := runner.Run(context.Background(), "test")
	if err == nil {
		t.Fatal("Expected error from failing chain")
	}
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("Expected *StepError, got %T", err)
	}
	if stepErr.Task != "install-test" {
		t.Errorf("Failing task = %q, want install-test", stepErr.Task)
	}
	if stepErr.ExitCode != 2 {
		t.Errorf("ExitCode = %d, want 2", stepErr.ExitCode)
	}
	for _, name := range executed {
		if name == "test" {
			t.Error("Dependent task executed after prerequisite failure")
		}
	}

	// The recorder must mark unreached steps as skipped.
	var skipped []string
	for _, s := range rec.steps {
		if s.status == StepSkipped {
			skipped = append(skipped, s.task)
		}
	}
	if len(skipped) != 1 || skipped[0] != "test" {
		t.Errorf("Skipped steps = %v, want [test]", skipped)
	}
	if !rec.finished || rec.success {
		t.Errorf("Run finalized incorrectly: finished=%v success=%v", rec.finished, rec.success)
	}
}

// TestChainRunner_Events verifies step lifecycle events are published.
func TestChainRunner_Events(t *testing.T) {
	var executed []string
	dag := chainDAG(t, &executed, nil)
	bus := events.NewBus()
	defer bus.Close()
	sub := bus.SubscribeAll(64)

	runner := NewChainRunner(dag, bus, nil)
	if err := runner.Run(context.Background(), "cov"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	counts := map[string]int{}
	timeout := time.After(time.Second)
	// 4 started + 4 completed + 4 progress + 1 finished
	for received := 0; received < 13; received++ {
		select {
		case ev := <-sub:
			counts[ev.EventType()]++
		case <-timeout:
			t.Fatalf("Timed out after %d events; counts=%v", received, counts)
		}
	}
	if counts[events.EventTypeStepStarted] != 4 {
		t.Errorf("started events = %d, want 4", counts[events.EventTypeStepStarted])
	}
	if counts[events.EventTypeStepCompleted] != 4 {
		t.Errorf("completed events = %d, want 4", counts[events.EventTypeStepCompleted])
	}
	if counts[events.EventTypeChainFinished] != 1 {
		t.Errorf("finished events = %d, want 1", counts[events.EventTypeChainFinished])
	}
}

// TestChainRunner_ContextCancelled verifies a cancelled context aborts
// before any further step runs.
func TestChainRunner_ContextCancelled(t *testing.T) {
	var executed []string
	dag := chainDAG(t, &executed, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewChainRunner(dag, nil, nil)
	err := runner.Run(ctx, "test")
	if err == nil {
		t.Fatal("Expected error with cancelled context")
	}
	if len(executed) != 0 {
		t.Errorf("Expected no steps to execute, got %v", executed)
	}
}
