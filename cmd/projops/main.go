package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/projops/projops/internal/config"
	"github.com/projops/projops/internal/history"
	"github.com/projops/projops/internal/scheduler"
	"github.com/projops/projops/internal/toolchain"
	"github.com/projops/projops/internal/workflow"
)

// CLI is the root command definition.
type CLI struct {
	DryRun  bool   `help:"Print commands without executing them."`
	Verbose bool   `short:"v" help:"Enable verbose logging."`
	Config  string `short:"c" help:"Global config file path (default ~/.projops/config.json)." type:"path"`

	VenvCreate          VenvCreateCmd          `cmd:"" name:"venv-create" help:"Create the project's virtual environment."`
	VenvRemove          VenvRemoveCmd          `cmd:"" name:"venv-remove" help:"Delete the project's virtual environment."`
	Lock                LockCmd                `cmd:"" help:"Resolve dependencies into the pinned manifest."`
	Export              ExportCmd              `cmd:"" help:"Export pinned requirements files."`
	InstallRoot         InstallRootCmd         `cmd:"" name:"install-root" help:"Install the package itself without dependencies."`
	Install             InstallCmd             `cmd:"" help:"Install main dependencies."`
	InstallDev          InstallDevCmd          `cmd:"" name:"install-dev" help:"Install dev dependencies."`
	InstallTest         InstallTestCmd         `cmd:"" name:"install-test" help:"Install test dependencies."`
	InstallDoc          InstallDocCmd          `cmd:"" name:"install-doc" help:"Install documentation dependencies."`
	InstallAuto         InstallAutoCmd         `cmd:"" name:"install-auto" help:"Install automation dependencies."`
	InstallAll          InstallAllCmd          `cmd:"" name:"install-all" help:"Install every dependency group."`
	Test                TestCmd                `cmd:"" help:"Run the unit test suite."`
	Cov                 CovCmd                 `cmd:"" help:"Run unit tests with coverage reports."`
	CovView             CovViewCmd             `cmd:"" name:"cov-view" help:"Open the coverage HTML report in a browser."`
	Int                 IntCmd                 `cmd:"" help:"Run the integration test suite."`
	Load                LoadCmd                `cmd:"" help:"Run the load test suite."`
	DocsBuild           DocsBuildCmd           `cmd:"" name:"docs-build" help:"Render the documentation site."`
	DocsView            DocsViewCmd            `cmd:"" name:"docs-view" help:"Serve the documentation locally with live rebuild."`
	DocsDeployVersioned DocsDeployVersionedCmd `cmd:"" name:"docs-deploy-versioned" help:"Publish the site under a version-scoped path."`
	DocsDeployLatest    DocsDeployLatestCmd    `cmd:"" name:"docs-deploy-latest" help:"Publish the site as the current default."`
	PackageBuild        PackageBuildCmd        `cmd:"" name:"package-build" help:"Build the distributable package archive."`
	Publish             PublishCmd             `cmd:"" help:"Publish the package to the artifact registry."`
	RemoveVersion       RemoveVersionCmd       `cmd:"" name:"remove-version" help:"Delete a published package version."`
	Run                 RunCmd                 `cmd:"" help:"Run an arbitrary target with its prerequisite chain."`
	Graph               GraphCmd               `cmd:"" help:"Print the target graph."`
	History             HistoryCmd             `cmd:"" help:"Show recent runs."`
	UI                  UICmd                  `cmd:"" help:"Run a target in the interactive UI."`
}

// AfterApply runs after flag parsing; set up logging once.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// Global carries the shared wiring built lazily by the first command that
// needs it.
type Global struct {
	ctx    context.Context
	root   *CLI
	cfg    *config.Config
	pm     *toolchain.ProcessManager
	runner *toolchain.Runner
	store  *history.Store
}

// Setup loads configuration and builds the subprocess runner.
func (g *Global) Setup() error {
	if g.cfg != nil {
		return nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining working directory: %w", err)
	}
	globalPath := g.root.Config
	if globalPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			globalPath = filepath.Join(home, ".projops", "config.json")
		}
	}
	cfg, err := config.Load(cwd, globalPath)
	if err != nil {
		return err
	}
	g.cfg = cfg

	g.pm = toolchain.NewProcessManager()
	g.runner = toolchain.NewRunner(g.pm)
	g.runner.DryRun = g.root.DryRun
	if g.runner.DryRun {
		g.runner.Echo = func(cmdline string) { fmt.Println("+ " + cmdline) }
	}

	// A shutdown signal kills every tracked subprocess group; the chain
	// runner then stops at the next step boundary.
	go func() {
		<-g.ctx.Done()
		if err := g.pm.KillAll(); err != nil {
			slog.Warn("failed to kill subprocesses", "error", err)
		}
	}()
	return nil
}

// RunTarget executes one target's chain, streaming subprocess output to the
// terminal and recording the run in the history store.
func (g *Global) RunTarget(target string, opts workflow.Options) error {
	if err := g.Setup(); err != nil {
		return err
	}
	dag, err := workflow.Build(g.cfg, g.runner, opts)
	if err != nil {
		return err
	}

	g.runner.Output = func(stream, line string) {
		if stream == "stderr" {
			fmt.Fprintln(os.Stderr, line)
		} else {
			fmt.Println(line)
		}
	}

	runner := scheduler.NewChainRunner(dag, nil, g.recorder())
	return runner.Run(g.ctx, target)
}

// recorder opens the per-project history store. History failures never block
// a run.
func (g *Global) recorder() scheduler.Recorder {
	store, err := history.Open(g.ctx, historyPath(g))
	if err != nil {
		slog.Warn("run history disabled", "error", err)
		return nil
	}
	g.store = store
	return store
}

// Close releases resources held by the global wiring.
func (g *Global) Close() {
	if g.store != nil {
		g.store.Close()
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("projops"),
		kong.Description("Project operations: environments, dependencies, tests, docs and publishing."),
		kong.UsageOnError(),
	)

	g := &Global{ctx: ctx, root: &cli}
	err := kctx.Run(g)
	g.Close()
	if err == nil {
		return
	}

	slog.Error("command failed", "error", err)

	// The process exit code is the first failing step's exit code, so
	// scripts wrapping this tool see the underlying tool's status.
	var stepErr *scheduler.StepError
	if errors.As(err, &stepErr) {
		os.Exit(stepErr.ExitCode)
	}
	os.Exit(1)
}
