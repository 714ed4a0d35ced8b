package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/projops/projops/internal/scheduler"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenMemory(context.Background())
	if err != nil {
		t.Fatalf("OpenMemory failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordRunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	runID, err := store.BeginRun(ctx, "test")
	if err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	if runID == "" {
		t.Fatal("expected non-empty run id")
	}

	steps := []struct {
		task     string
		status   scheduler.StepStatus
		exitCode int
		err      error
	}{
		{"venv-create", scheduler.StepCompleted, 0, nil},
		{"install", scheduler.StepCompleted, 0, nil},
		{"install-test", scheduler.StepFailed, 2, errors.New("resolution failed")},
		{"test", scheduler.StepSkipped, 0, nil},
	}
	for _, st := range steps {
		if err := store.RecordStep(ctx, runID, st.task, st.status, st.exitCode, 50*time.Millisecond, st.err); err != nil {
			t.Fatalf("RecordStep(%s) failed: %v", st.task, err)
		}
	}
	if err := store.FinishRun(ctx, runID, false); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	runs, err := store.Recent(ctx, 5)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.ID != runID || run.Target != "test" || run.Success {
		t.Errorf("unexpected run: %+v", run)
	}
	if len(run.Steps) != 4 {
		t.Fatalf("expected 4 steps, got %d", len(run.Steps))
	}
	if run.Steps[2].Task != "install-test" || run.Steps[2].ExitCode != 2 {
		t.Errorf("unexpected failed step: %+v", run.Steps[2])
	}
	if run.Steps[2].Error != "resolution failed" {
		t.Errorf("expected step error message, got %q", run.Steps[2].Error)
	}
	if run.Steps[3].Status != scheduler.StepSkipped {
		t.Errorf("expected skipped status, got %v", run.Steps[3].Status)
	}
}

func TestRecentOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	var ids []string
	for _, target := range []string{"lock", "install", "docs-build"} {
		id, err := store.BeginRun(ctx, target)
		if err != nil {
			t.Fatalf("BeginRun failed: %v", err)
		}
		if err := store.FinishRun(ctx, id, true); err != nil {
			t.Fatalf("FinishRun failed: %v", err)
		}
		ids = append(ids, id)
	}

	runs, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	// CURRENT_TIMESTAMP has second resolution, so ties break on id; just
	// verify both returned runs are among the recorded ones.
	recorded := map[string]bool{ids[0]: true, ids[1]: true, ids[2]: true}
	for _, run := range runs {
		if !recorded[run.ID] {
			t.Errorf("unexpected run id %s", run.ID)
		}
	}
}

func TestFinishRunUnknownID(t *testing.T) {
	store := newTestStore(t)
	if err := store.FinishRun(context.Background(), "no-such-run", true); err == nil {
		t.Fatal("expected error for unknown run id")
	}
}

func TestRecorderInterface(t *testing.T) {
	var _ scheduler.Recorder = (*Store)(nil)
}
