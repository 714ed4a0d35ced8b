package workflow

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/projops/projops/internal/config"
	"github.com/projops/projops/internal/scheduler"
	"github.com/projops/projops/internal/toolchain"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Root = t.TempDir()
	cfg.Project.PackageName = "demo"
	cfg.Project.Version = "0.1.0"
	return cfg
}

func dryRunner(echoes *[]string) *toolchain.Runner {
	run := toolchain.NewRunner(toolchain.NewProcessManager())
	run.DryRun = true
	run.Echo = func(s string) { *echoes = append(*echoes, s) }
	return run
}

func TestBuildRegistersAllTargets(t *testing.T) {
	var echoes []string
	dag, err := Build(testConfig(t), dryRunner(&echoes), Options{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	want := []string{
		"venv-create", "venv-remove", "lock", "export",
		"install-root", "install", "install-dev", "install-test",
		"install-doc", "install-auto", "install-all",
		"test", "cov", "cov-view", "int", "load",
		"docs-build", "docs-view", "docs-deploy-versioned", "docs-deploy-latest",
		"package-build", "publish", "remove-version",
	}
	got := dag.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %d targets, got %d: %v", len(want), len(got), got)
	}
	for i, name := range want {
		if got[i] != name {
			t.Errorf("target %d: expected %q, got %q", i, name, got[i])
		}
	}
}

func TestChainOrder(t *testing.T) {
	var echoes []string
	dag, err := Build(testConfig(t), dryRunner(&echoes), Options{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	tests := []struct {
		target string
		want   []string
	}{
		{"test", []string{"venv-create", "install", "install-test", "test"}},
		{"docs-deploy-latest", []string{"venv-create", "install", "install-doc", "docs-build", "docs-deploy-latest"}},
		{"publish", []string{"venv-create", "install", "package-build", "publish"}},
		{"remove-version", []string{"remove-version"}},
		{"export", []string{"lock", "export"}},
	}
	for _, tt := range tests {
		chain, err := dag.ResolveChain(tt.target)
		if err != nil {
			t.Fatalf("ResolveChain(%s) failed: %v", tt.target, err)
		}
		if len(chain) != len(tt.want) {
			t.Fatalf("%s: expected chain %v, got %d tasks", tt.target, tt.want, len(chain))
		}
		for i, task := range chain {
			if task.Name != tt.want[i] {
				t.Errorf("%s: step %d expected %q, got %q", tt.target, i, tt.want[i], task.Name)
			}
		}
	}
}

func TestDryRunInstallChain(t *testing.T) {
	var echoes []string
	cfg := testConfig(t)
	dag, err := Build(cfg, dryRunner(&echoes), Options{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	runner := scheduler.NewChainRunner(dag, nil, nil)
	if err := runner.Run(context.Background(), "install-all"); err != nil {
		t.Fatalf("dry-run chain failed: %v", err)
	}

	joined := strings.Join(echoes, "\n")
	for _, cmd := range []string{
		"poetry config virtualenvs.in-project true",
		"poetry env use python3.11",
		"poetry install --all-groups",
	} {
		if !strings.Contains(joined, cmd) {
			t.Errorf("expected dry-run to echo %q, got:\n%s", cmd, joined)
		}
	}
}

func TestRemoveVersionRequiresVersion(t *testing.T) {
	var echoes []string
	dag, err := Build(testConfig(t), dryRunner(&echoes), Options{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	task, ok := dag.Get("remove-version")
	if !ok {
		t.Fatal("remove-version not registered")
	}
	if err := task.Action(context.Background()); err == nil {
		t.Fatal("expected error when no version given")
	}
}

// TestDryRunLeavesTreeUntouched verifies native targets do not write to the
// project tree during a dry run.
func TestDryRunLeavesTreeUntouched(t *testing.T) {
	var echoes []string
	cfg := testConfig(t)
	dag, err := Build(cfg, dryRunner(&echoes), Options{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	runner := scheduler.NewChainRunner(dag, nil, nil)
	for _, target := range []string{"docs-build", "publish"} {
		if err := runner.Run(context.Background(), target); err != nil {
			t.Fatalf("dry-run %s failed: %v", target, err)
		}
	}

	if _, err := os.Stat(filepath.Join(cfg.Root, "dist")); !os.IsNotExist(err) {
		t.Errorf("dry-run wrote dist/ (stat err: %v)", err)
	}
	if _, err := os.Stat(cfg.DocsOutputPath()); !os.IsNotExist(err) {
		t.Errorf("dry-run wrote the rendered docs dir (stat err: %v)", err)
	}
}

func TestCovViewRequiresReport(t *testing.T) {
	cfg := testConfig(t)
	dag, err := Build(cfg, toolchain.NewRunner(toolchain.NewProcessManager()), Options{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	task, ok := dag.Get("cov-view")
	if !ok {
		t.Fatal("cov-view not registered")
	}
	if err := task.Action(context.Background()); err == nil {
		t.Fatal("expected error when the coverage report is missing")
	}
}
