package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/projops/projops/internal/events"
	"github.com/projops/projops/internal/history"
	"github.com/projops/projops/internal/scheduler"
	"github.com/projops/projops/internal/tui"
	"github.com/projops/projops/internal/workflow"
)

type VenvCreateCmd struct{}

func (VenvCreateCmd) Run(g *Global) error { return g.RunTarget("venv-create", workflow.Options{}) }

type VenvRemoveCmd struct{}

func (VenvRemoveCmd) Run(g *Global) error { return g.RunTarget("venv-remove", workflow.Options{}) }

type LockCmd struct{}

func (LockCmd) Run(g *Global) error { return g.RunTarget("lock", workflow.Options{}) }

type ExportCmd struct{}

func (ExportCmd) Run(g *Global) error { return g.RunTarget("export", workflow.Options{}) }

type InstallRootCmd struct{}

func (InstallRootCmd) Run(g *Global) error { return g.RunTarget("install-root", workflow.Options{}) }

type InstallCmd struct{}

func (InstallCmd) Run(g *Global) error { return g.RunTarget("install", workflow.Options{}) }

type InstallDevCmd struct{}

func (InstallDevCmd) Run(g *Global) error { return g.RunTarget("install-dev", workflow.Options{}) }

type InstallTestCmd struct{}

func (InstallTestCmd) Run(g *Global) error { return g.RunTarget("install-test", workflow.Options{}) }

type InstallDocCmd struct{}

func (InstallDocCmd) Run(g *Global) error { return g.RunTarget("install-doc", workflow.Options{}) }

type InstallAutoCmd struct{}

func (InstallAutoCmd) Run(g *Global) error { return g.RunTarget("install-auto", workflow.Options{}) }

type InstallAllCmd struct{}

func (InstallAllCmd) Run(g *Global) error { return g.RunTarget("install-all", workflow.Options{}) }

type TestCmd struct{}

func (TestCmd) Run(g *Global) error { return g.RunTarget("test", workflow.Options{}) }

type CovCmd struct{}

func (CovCmd) Run(g *Global) error { return g.RunTarget("cov", workflow.Options{}) }

type CovViewCmd struct{}

func (CovViewCmd) Run(g *Global) error { return g.RunTarget("cov-view", workflow.Options{}) }

type IntCmd struct{}

func (IntCmd) Run(g *Global) error { return g.RunTarget("int", workflow.Options{}) }

type LoadCmd struct{}

func (LoadCmd) Run(g *Global) error { return g.RunTarget("load", workflow.Options{}) }

type DocsBuildCmd struct{}

func (DocsBuildCmd) Run(g *Global) error { return g.RunTarget("docs-build", workflow.Options{}) }

type DocsViewCmd struct {
	NoBrowser bool `help:"Do not open the site in a browser."`
}

func (c DocsViewCmd) Run(g *Global) error {
	return g.RunTarget("docs-view", workflow.Options{OpenBrowser: !c.NoBrowser})
}

type DocsDeployVersionedCmd struct {
	Version string `help:"Version path segment (defaults to the project version)."`
}

func (c DocsDeployVersionedCmd) Run(g *Global) error {
	return g.RunTarget("docs-deploy-versioned", workflow.Options{Version: c.Version})
}

type DocsDeployLatestCmd struct{}

func (DocsDeployLatestCmd) Run(g *Global) error {
	return g.RunTarget("docs-deploy-latest", workflow.Options{})
}

type PackageBuildCmd struct{}

func (PackageBuildCmd) Run(g *Global) error { return g.RunTarget("package-build", workflow.Options{}) }

type PublishCmd struct{}

func (PublishCmd) Run(g *Global) error { return g.RunTarget("publish", workflow.Options{}) }

type RemoveVersionCmd struct {
	Version string `arg:"" help:"Published version to delete."`
}

func (c RemoveVersionCmd) Run(g *Global) error {
	return g.RunTarget("remove-version", workflow.Options{Version: c.Version})
}

// RunCmd executes any registered target by name.
type RunCmd struct {
	Target  string `arg:"" help:"Target to run."`
	Version string `help:"Version for targets that take one."`
}

func (c RunCmd) Run(g *Global) error {
	return g.RunTarget(c.Target, workflow.Options{Version: c.Version, OpenBrowser: true})
}

// GraphCmd prints every target with its prerequisites.
type GraphCmd struct{}

func (GraphCmd) Run(g *Global) error {
	if err := g.Setup(); err != nil {
		return err
	}
	dag, err := workflow.Build(g.cfg, g.runner, workflow.Options{})
	if err != nil {
		return err
	}
	for _, name := range dag.Names() {
		task, _ := dag.Get(name)
		if len(task.Requires) > 0 {
			fmt.Printf("%-24s <- %s\n", name, strings.Join(task.Requires, ", "))
		} else {
			fmt.Printf("%-24s\n", name)
		}
		fmt.Printf("%-24s   %s\n", "", task.Description)
	}
	return nil
}

// HistoryCmd lists recent runs from the project's history store.
type HistoryCmd struct {
	Limit int `help:"Number of runs to show." default:"10"`
}

func (c HistoryCmd) Run(g *Global) error {
	if err := g.Setup(); err != nil {
		return err
	}
	store, err := history.Open(g.ctx, historyPath(g))
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Recent(g.ctx, c.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}
	for _, run := range runs {
		outcome := "ok"
		if !run.Success {
			outcome = "FAILED"
		}
		fmt.Printf("%s  %s  %s  (%s)\n", run.StartedAt.Format(time.DateTime), run.Target, outcome, run.ID[:8])
		for _, step := range run.Steps {
			marker := " "
			switch step.Status {
			case scheduler.StepCompleted:
				marker = "+"
			case scheduler.StepFailed:
				marker = "!"
			case scheduler.StepSkipped:
				marker = "-"
			}
			line := fmt.Sprintf("  %s %-24s %-10s %v", marker, step.Task, step.Status, step.Duration)
			if step.ExitCode != 0 {
				line += fmt.Sprintf(" exit=%d", step.ExitCode)
			}
			fmt.Println(line)
		}
	}
	return nil
}

// UICmd runs a target inside the interactive terminal UI.
type UICmd struct {
	Target  string `arg:"" help:"Target to run."`
	Version string `help:"Version for targets that take one."`
}

func (c UICmd) Run(g *Global) error {
	if err := g.Setup(); err != nil {
		return err
	}
	dag, err := workflow.Build(g.cfg, g.runner, workflow.Options{Version: c.Version})
	if err != nil {
		return err
	}

	// The alternate screen owns the terminal; route logs away from it.
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	bus := events.NewBus()
	defer bus.Close()

	runner := scheduler.NewChainRunner(dag, bus, g.recorder())

	var current atomic.Value
	current.Store("")
	runner.BeforeStep = func(task string) { current.Store(task) }
	g.runner.Output = func(stream, line string) {
		bus.Publish(events.TopicStep, events.StepOutputEvent{
			Task:      current.Load().(string),
			Stream:    stream,
			Line:      line,
			Timestamp: time.Now(),
		})
	}

	model := tui.New(g.ctx, bus, c.Target, func(ctx context.Context) error {
		return runner.Run(ctx, c.Target)
	})
	p := tea.NewProgram(model, tea.WithAltScreen())

	final, err := p.Run()
	// Quitting mid-run leaves the chain goroutine mid-step with its
	// subprocess group still alive; reap it before returning.
	if killErr := g.pm.KillAll(); killErr != nil {
		fmt.Fprintln(os.Stderr, "failed to kill subprocesses:", killErr)
	}
	if err != nil {
		return err
	}
	if m, ok := final.(tui.Model); ok {
		return m.RunError()
	}
	return nil
}

func historyPath(g *Global) string {
	if g.cfg.HistoryPath != "" {
		return g.cfg.HistoryPath
	}
	return filepath.Join(g.cfg.Root, ".projops", "history.db")
}
