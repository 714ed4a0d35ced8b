// Package testrun executes the project's test suites inside the managed
// environment. All entry points fail fast: any test failure surfaces as a
// non-zero result with no partial-success interpretation.
package testrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/projops/projops/internal/config"
	"github.com/projops/projops/internal/toolchain"
)

// ErrCoverageBelowThreshold is returned when the aggregate coverage falls
// below the configured minimum.
var ErrCoverageBelowThreshold = errors.New("coverage below threshold")

// Runner executes test suites via the environment's test binary.
type Runner struct {
	cfg  *config.Config
	exec *toolchain.Runner
}

// NewRunner creates a Runner.
func NewRunner(cfg *config.Config, exec *toolchain.Runner) *Runner {
	return &Runner{cfg: cfg, exec: exec}
}

// pytestPath returns the test binary inside the managed environment.
// Running the environment's own binary guarantees tests see exactly the
// installed dependency closure.
func (r *Runner) pytestPath() string {
	return filepath.Join(r.cfg.VenvPath(), "bin", "pytest")
}

// Unit executes the unit test suite.
func (r *Runner) Unit(ctx context.Context) error {
	dir := filepath.Join(r.cfg.Root, r.cfg.Tests.UnitDir)
	_, err := r.exec.Run(ctx, r.cfg.Root, r.pytestPath(), dir, "-s", "--tb=native")
	return err
}

// Integration executes tests that require live external dependencies.
func (r *Runner) Integration(ctx context.Context) error {
	dir := filepath.Join(r.cfg.Root, r.cfg.Tests.IntDir)
	_, err := r.exec.Run(ctx, r.cfg.Root, r.pytestPath(), dir, "-s", "--tb=native")
	return err
}

// Load executes the load test suite.
func (r *Runner) Load(ctx context.Context) error {
	dir := filepath.Join(r.cfg.Root, r.cfg.Tests.LoadDir)
	_, err := r.exec.Run(ctx, r.cfg.Root, r.pytestPath(), dir, "-s", "--tb=native")
	return err
}

// Coverage runs the unit suite with code-path instrumentation and returns
// the parsed report. A test failure aborts before the report is read; a
// successful run below the configured minimum returns the report together
// with ErrCoverageBelowThreshold.
func (r *Runner) Coverage(ctx context.Context) (*Report, error) {
	jsonPath := filepath.Join(r.cfg.Root, "coverage.json")
	htmlDir := filepath.Join(r.cfg.Root, r.cfg.Tests.CovHTMLDir)
	unitDir := filepath.Join(r.cfg.Root, r.cfg.Tests.UnitDir)

	args := []string{
		unitDir, "-s", "--tb=native",
		"--cov=" + r.cfg.Project.PackageName,
		"--cov-report", "term-missing",
		"--cov-report", "html:" + htmlDir,
		"--cov-report", "json:" + jsonPath,
	}
	if _, err := r.exec.Run(ctx, r.cfg.Root, r.pytestPath(), args...); err != nil {
		return nil, err
	}
	if r.exec.DryRun {
		return &Report{}, nil
	}

	report, err := ParseReportFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("reading coverage report: %w", err)
	}
	slog.Info("coverage collected", "percent", fmt.Sprintf("%.2f", report.Percent), "html", htmlDir)

	if min := r.cfg.Tests.MinCoverage; min > 0 && report.Percent < min {
		return report, fmt.Errorf("%w: %.2f%% < %.2f%%", ErrCoverageBelowThreshold, report.Percent, min)
	}
	return report, nil
}
