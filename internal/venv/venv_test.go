package venv

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/projops/projops/internal/config"
	"github.com/projops/projops/internal/toolchain"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Root = t.TempDir()
	cfg.Project.PackageName = "demo"
	return cfg
}

// dryRunner records echoed command lines without executing anything.
func dryRunner(echoed *[]string) *toolchain.Runner {
	return &toolchain.Runner{
		DryRun: true,
		Echo:   func(cmdline string) { *echoed = append(*echoed, cmdline) },
	}
}

// TestCreate_InvokesPackageManager verifies the create command sequence.
func TestCreate_InvokesPackageManager(t *testing.T) {
	cfg := testConfig(t)
	var echoed []string
	m := NewManager(cfg, dryRunner(&echoed))

	created, err := m.Create(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !created {
		t.Error("Expected created=true for fresh environment")
	}
	if len(echoed) != 2 {
		t.Fatalf("Expected 2 commands, got %v", echoed)
	}
	if !strings.HasPrefix(echoed[0], "poetry config virtualenvs.in-project") {
		t.Errorf("Unexpected first command: %s", echoed[0])
	}
	if echoed[1] != "poetry env use python3.11" {
		t.Errorf("Unexpected second command: %s", echoed[1])
	}
}

// TestCreate_Idempotent verifies redundant create is a no-op.
func TestCreate_Idempotent(t *testing.T) {
	cfg := testConfig(t)
	if err := os.MkdirAll(cfg.VenvPath(), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	var echoed []string
	m := NewManager(cfg, dryRunner(&echoed))

	created, err := m.Create(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if created {
		t.Error("Expected created=false when environment already exists")
	}
	if len(echoed) != 0 {
		t.Errorf("Expected no commands, got %v", echoed)
	}
}

// TestRemove verifies removal deletes the directory and is idempotent.
func TestRemove(t *testing.T) {
	cfg := testConfig(t)
	if err := os.MkdirAll(filepath.Join(cfg.VenvPath(), "bin"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	m := NewManager(cfg, toolchain.NewRunner(nil))

	removed, err := m.Remove(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !removed {
		t.Error("Expected removed=true")
	}
	if m.Exists() {
		t.Error("Environment still exists after Remove")
	}

	removed, err = m.Remove(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error on redundant remove: %v", err)
	}
	if removed {
		t.Error("Expected removed=false on redundant remove")
	}
}
