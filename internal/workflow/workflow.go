// Package workflow assembles the target graph: every runnable target, its
// prerequisite edges, and the action wiring each target to the component
// that does the work.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/projops/projops/internal/awsx"
	"github.com/projops/projops/internal/config"
	"github.com/projops/projops/internal/deps"
	"github.com/projops/projops/internal/docs"
	"github.com/projops/projops/internal/publish"
	"github.com/projops/projops/internal/scheduler"
	"github.com/projops/projops/internal/testrun"
	"github.com/projops/projops/internal/toolchain"
	"github.com/projops/projops/internal/vcs"
	"github.com/projops/projops/internal/venv"
)

// Options parameterize targets that need per-invocation input.
type Options struct {
	// Version overrides the project version for docs-deploy-versioned and
	// names the version to delete for remove-version.
	Version string

	// OpenBrowser makes docs-view open the served site in a browser.
	OpenBrowser bool
}

type workflow struct {
	cfg  *config.Config
	run  *toolchain.Runner
	opts Options

	venv *venv.Manager
	deps *deps.Installer
	test *testrun.Runner

	// artifact built by package-build, consumed by publish within one chain.
	artifact *publish.Artifact
}

// Build registers every target and validates the resulting graph.
func Build(cfg *config.Config, run *toolchain.Runner, opts Options) (*scheduler.DAG, error) {
	w := &workflow{
		cfg:  cfg,
		run:  run,
		opts: opts,
		venv: venv.NewManager(cfg, run),
		deps: deps.NewInstaller(cfg, run),
		test: testrun.NewRunner(cfg, run),
	}

	dag := scheduler.NewDAG()
	for _, task := range w.tasks() {
		if err := dag.Add(task); err != nil {
			return nil, err
		}
	}
	if _, err := dag.Validate(); err != nil {
		return nil, err
	}
	return dag, nil
}

// tasks declares the full target graph in its canonical order.
func (w *workflow) tasks() []*scheduler.Task {
	return []*scheduler.Task{
		{
			Name:        "venv-create",
			Description: "create the virtual environment if absent",
			Action: func(ctx context.Context) error {
				_, err := w.venv.Create(ctx)
				return err
			},
		},
		{
			Name:        "venv-remove",
			Description: "delete the virtual environment if present",
			Action: func(ctx context.Context) error {
				_, err := w.venv.Remove(ctx)
				return err
			},
		},
		{
			Name:        "lock",
			Description: "resolve dependencies into the pinned manifest",
			Action:      w.deps.Lock,
		},
		{
			Name:        "export",
			Description: "export pinned requirements files (cached by lock hash)",
			Requires:    []string{"lock"},
			Action: func(ctx context.Context) error {
				_, err := w.deps.Export(ctx)
				return err
			},
		},
		{
			Name:        "install-root",
			Description: "install the package itself without dependencies",
			Requires:    []string{"venv-create"},
			Action:      w.install(deps.CategoryRoot),
		},
		{
			Name:        "install",
			Description: "install main dependencies",
			Requires:    []string{"venv-create"},
			Action:      w.install(deps.CategoryMain),
		},
		{
			Name:        "install-dev",
			Description: "install dev dependencies on top of main",
			Requires:    []string{"install"},
			Action:      w.install(deps.CategoryDev),
		},
		{
			Name:        "install-test",
			Description: "install test dependencies on top of main",
			Requires:    []string{"install"},
			Action:      w.install(deps.CategoryTest),
		},
		{
			Name:        "install-doc",
			Description: "install documentation dependencies on top of main",
			Requires:    []string{"install"},
			Action:      w.install(deps.CategoryDoc),
		},
		{
			Name:        "install-auto",
			Description: "install automation dependencies on top of main",
			Requires:    []string{"install"},
			Action:      w.install(deps.CategoryAuto),
		},
		{
			Name:        "install-all",
			Description: "install every dependency group",
			Requires:    []string{"venv-create"},
			Action:      w.install(deps.CategoryAll),
		},
		{
			Name:        "test",
			Description: "run the unit test suite",
			Requires:    []string{"install", "install-test"},
			Action:      w.test.Unit,
		},
		{
			Name:        "cov",
			Description: "run unit tests with coverage reports",
			Requires:    []string{"install", "install-test"},
			Action: func(ctx context.Context) error {
				_, err := w.test.Coverage(ctx)
				return err
			},
		},
		{
			Name:        "cov-view",
			Description: "open the coverage HTML report in a browser",
			Requires:    []string{"cov"},
			Action: func(ctx context.Context) error {
				index := filepath.Join(w.cfg.Root, w.cfg.Tests.CovHTMLDir, "index.html")
				if w.run.DryRun {
					slog.Info("dry-run: would open coverage report", "path", index)
					return nil
				}
				if _, err := os.Stat(index); err != nil {
					return fmt.Errorf("coverage report not found at %s, run cov first", index)
				}
				docs.LaunchBrowser("file://" + index)
				return nil
			},
		},
		{
			Name:        "int",
			Description: "run the integration test suite",
			Requires:    []string{"install", "install-test"},
			Action:      w.test.Integration,
		},
		{
			Name:        "load",
			Description: "run the load test suite",
			Requires:    []string{"install", "install-test"},
			Action:      w.test.Load,
		},
		{
			Name:        "docs-build",
			Description: "render the documentation site",
			Requires:    []string{"install", "install-doc"},
			Action: func(ctx context.Context) error {
				if w.run.DryRun {
					slog.Info("dry-run: would render documentation",
						"source", w.cfg.DocsSourcePath(), "output", w.cfg.DocsOutputPath())
					return nil
				}
				_, err := docs.NewBuilder(w.cfg).Build()
				return err
			},
		},
		{
			Name:        "docs-view",
			Description: "serve the documentation locally with live rebuild",
			Requires:    []string{"docs-build"},
			Action: func(ctx context.Context) error {
				if w.run.DryRun {
					slog.Info("dry-run: would serve documentation", "port", w.cfg.Docs.Port)
					return nil
				}
				preview := docs.NewPreview(docs.NewBuilder(w.cfg), w.cfg.Docs.Port)
				return preview.Serve(ctx, w.opts.OpenBrowser)
			},
		},
		{
			Name:        "docs-deploy-versioned",
			Description: "publish the site under a version-scoped path",
			Requires:    []string{"docs-build"},
			Action: func(ctx context.Context) error {
				version := w.opts.Version
				if version == "" {
					version = w.cfg.Project.Version
				}
				deployer, err := w.deployer(ctx)
				if err != nil {
					return err
				}
				return deployer.DeployVersioned(ctx, w.cfg.DocsOutputPath(), version)
			},
		},
		{
			Name:        "docs-deploy-latest",
			Description: "publish the site as the current default",
			Requires:    []string{"docs-build"},
			Action: func(ctx context.Context) error {
				deployer, err := w.deployer(ctx)
				if err != nil {
					return err
				}
				return deployer.DeployLatest(ctx, w.cfg.DocsOutputPath())
			},
		},
		{
			Name:        "package-build",
			Description: "build the distributable package archive",
			Requires:    []string{"install"},
			Action: func(ctx context.Context) error {
				if w.run.DryRun {
					pub := publish.NewPublisher(w.cfg, nil)
					pub.DryRun = true
					art, err := pub.BuildPackage()
					if err != nil {
						return err
					}
					w.artifact = art
					return nil
				}
				art, err := publish.BuildArchive(w.cfg, vcs.Revision(w.cfg.Root))
				if err != nil {
					return err
				}
				w.artifact = art
				return nil
			},
		},
		{
			Name:        "publish",
			Description: "publish the package to the artifact registry",
			Requires:    []string{"package-build"},
			Action: func(ctx context.Context) error {
				pub, err := w.publisher()
				if err != nil {
					return err
				}
				art := w.artifact
				if art == nil {
					if art, err = pub.BuildPackage(); err != nil {
						return err
					}
				}
				return pub.Publish(ctx, art)
			},
		},
		{
			Name:        "remove-version",
			Description: "delete a published package version from the registry",
			Action: func(ctx context.Context) error {
				if w.opts.Version == "" {
					return fmt.Errorf("remove-version requires --version")
				}
				pub, err := w.publisher()
				if err != nil {
					return err
				}
				return pub.RemoveVersion(ctx, w.opts.Version)
			},
		},
	}
}

func (w *workflow) install(category deps.Category) func(context.Context) error {
	return func(ctx context.Context) error {
		return w.deps.Install(ctx, category)
	}
}

// deployer builds the S3-backed doc host client. In dry-run mode the store
// is replaced with one that only logs.
func (w *workflow) deployer(ctx context.Context) (*docs.Deployer, error) {
	if w.cfg.Docs.S3Bucket == "" {
		return nil, fmt.Errorf("docs.s3_bucket is not configured")
	}
	if w.run.DryRun {
		return docs.NewDeployer(w.cfg, logOnlyStore{}), nil
	}
	client, err := awsx.NewS3Client(w.cfg.Docs.AWSRegion)
	if err != nil {
		return nil, err
	}
	return docs.NewDeployer(w.cfg, docs.NewS3Store(client, w.cfg.Docs.S3Bucket)), nil
}

func (w *workflow) publisher() (*publish.Publisher, error) {
	if w.run.DryRun {
		pub := publish.NewPublisher(w.cfg, nil)
		pub.DryRun = true
		return pub, nil
	}
	if w.cfg.Registry.Domain == "" || w.cfg.Registry.Repository == "" {
		return nil, fmt.Errorf("registry.domain and registry.repository must be configured")
	}
	client, err := awsx.NewCodeArtifactClient(w.cfg.Registry.AWSRegion)
	if err != nil {
		return nil, err
	}
	reg := publish.NewCodeArtifactRegistry(client, w.cfg.Registry, w.cfg.Project.PackageName)
	return publish.NewPublisher(w.cfg, reg), nil
}

// logOnlyStore satisfies docs.ObjectStore for dry runs.
type logOnlyStore struct{}

func (logOnlyStore) Put(_ context.Context, key, contentType string, body []byte) error {
	slog.Info("dry-run: would upload", "key", key, "type", contentType, "bytes", len(body))
	return nil
}

func (logOnlyStore) List(context.Context, string) ([]string, error) { return nil, nil }
func (logOnlyStore) Delete(_ context.Context, keys []string) error  { return nil }
