// Package venv manages the project's isolated execution environment.
//
// Create and Remove are idempotent: redundant calls log and do nothing,
// so chains can always declare venv-create as a prerequisite without
// tracking whether the environment already exists.
package venv

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/projops/projops/internal/config"
	"github.com/projops/projops/internal/toolchain"
)

// Manager creates and destroys the environment at the fixed, well-known
// path configured for the project.
type Manager struct {
	cfg    *config.Config
	runner *toolchain.Runner
}

// NewManager creates a Manager.
func NewManager(cfg *config.Config, runner *toolchain.Runner) *Manager {
	return &Manager{cfg: cfg, runner: runner}
}

// Exists reports whether the environment directory is present.
func (m *Manager) Exists() bool {
	info, err := os.Stat(m.cfg.VenvPath())
	return err == nil && info.IsDir()
}

// Create provisions the environment via the package manager.
// Returns true if an environment was created, false if one already existed.
func (m *Manager) Create(ctx context.Context) (bool, error) {
	path := m.cfg.VenvPath()
	if m.Exists() {
		slog.Info("environment already exists, nothing to do", "path", path)
		return false, nil
	}

	pm := m.cfg.Project.PackageManager
	if _, err := m.runner.Run(ctx, m.cfg.Root, pm, "config", "virtualenvs.in-project", "true"); err != nil {
		return false, fmt.Errorf("configuring in-project environments: %w", err)
	}
	interpreter := "python" + m.cfg.Project.PythonVersion
	if _, err := m.runner.Run(ctx, m.cfg.Root, pm, "env", "use", interpreter); err != nil {
		return false, fmt.Errorf("creating environment with %s: %w", interpreter, err)
	}
	slog.Info("environment created", "path", path, "interpreter", interpreter)
	return true, nil
}

// Remove deletes the environment directory.
// Returns true if an environment was removed, false if none existed.
func (m *Manager) Remove(ctx context.Context) (bool, error) {
	path := m.cfg.VenvPath()
	if !m.Exists() {
		slog.Info("environment does not exist, nothing to do", "path", path)
		return false, nil
	}
	if m.runner.DryRun {
		if m.runner.Echo != nil {
			m.runner.Echo("rm -r " + path)
		}
		return true, nil
	}
	if err := os.RemoveAll(path); err != nil {
		return false, fmt.Errorf("removing environment %s: %w", path, err)
	}
	slog.Info("environment removed", "path", path)
	return true, nil
}
