// Package deps resolves and installs dependency sets through the project's
// package manager. The lock file itself is owned by the package manager and
// treated as opaque here; only its hash is tracked for the export cache.
package deps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/projops/projops/internal/config"
	"github.com/projops/projops/internal/toolchain"
)

var (
	// ErrResolution indicates a missing or inconsistent dependency manifest.
	ErrResolution = errors.New("dependency resolution failed")

	// ErrNetwork indicates the package registry was unreachable.
	ErrNetwork = errors.New("package registry unreachable")
)

// Category names a dependency set. Installs are cumulative: each category
// adds to the environment, never replacing previously installed ones.
type Category string

const (
	CategoryRoot Category = "root" // package source only, no dependencies
	CategoryMain Category = "main" // main dependencies plus the package
	CategoryDev  Category = "dev"
	CategoryTest Category = "test"
	CategoryDoc  Category = "doc"
	CategoryAuto Category = "auto" // automation tooling
	CategoryAll  Category = "all"
)

// Categories lists all valid categories in a stable order.
func Categories() []Category {
	return []Category{CategoryRoot, CategoryMain, CategoryDev, CategoryTest, CategoryDoc, CategoryAuto, CategoryAll}
}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown dependency category %q", s)
}

// Installer wraps the package manager's lock/install commands.
type Installer struct {
	cfg    *config.Config
	runner *toolchain.Runner
}

// NewInstaller creates an Installer.
func NewInstaller(cfg *config.Config, runner *toolchain.Runner) *Installer {
	return &Installer{cfg: cfg, runner: runner}
}

// LockFilePath returns the pinned manifest location.
func (i *Installer) LockFilePath() string {
	return filepath.Join(i.cfg.Root, "poetry.lock")
}

// Lock resolves abstract constraints into the pinned manifest. Deterministic
// given the same constraints and registry state at lock time.
func (i *Installer) Lock(ctx context.Context) error {
	if err := i.run(ctx, "lock"); err != nil {
		return classify(err)
	}
	return nil
}

// Install installs the requested category's closure into the environment.
// Requires the pinned manifest to exist (Lock must have run at least once),
// except for the root category which installs no dependencies at all.
func (i *Installer) Install(ctx context.Context, category Category) error {
	if category != CategoryRoot && !i.runner.DryRun {
		if _, err := os.Stat(i.LockFilePath()); err != nil {
			return fmt.Errorf("%w: pinned manifest %s missing, run lock first", ErrResolution, i.LockFilePath())
		}
	}

	var args []string
	switch category {
	case CategoryRoot:
		args = []string{"install", "--only-root"}
	case CategoryMain:
		args = []string{"install"}
	case CategoryDev, CategoryTest, CategoryDoc, CategoryAuto:
		args = []string{"install", "--with", string(category)}
	case CategoryAll:
		args = []string{"install", "--all-groups"}
	default:
		return fmt.Errorf("unknown dependency category %q", category)
	}

	slog.Info("installing dependencies", "category", category)
	if err := i.run(ctx, args...); err != nil {
		return classify(err)
	}
	return nil
}

func (i *Installer) run(ctx context.Context, args ...string) error {
	_, err := i.runner.Run(ctx, i.cfg.Root, i.cfg.Project.PackageManager, args...)
	return err
}

// classify maps package-manager failures onto the error taxonomy so callers
// can distinguish resolution problems from connectivity problems.
func classify(err error) error {
	var cmdErr *toolchain.CommandError
	if !errors.As(err, &cmdErr) {
		return err
	}
	stderr := strings.ToLower(cmdErr.Stderr)
	switch {
	case strings.Contains(stderr, "connection"),
		strings.Contains(stderr, "timed out"),
		strings.Contains(stderr, "temporary failure in name resolution"),
		strings.Contains(stderr, "network is unreachable"):
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	case strings.Contains(stderr, "lock file"),
		strings.Contains(stderr, "solverproblemerror"),
		strings.Contains(stderr, "version solving failed"):
		return fmt.Errorf("%w: %w", ErrResolution, err)
	default:
		return err
	}
}
