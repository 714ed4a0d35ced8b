// Package tui renders a chain run interactively: a step list with live
// subprocess output on the left, overall chain progress on the right.
package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/projops/projops/internal/events"
)

// ErrAborted reports that the operator quit the UI before the chain finished.
var ErrAborted = errors.New("run aborted")

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneSteps PaneID = iota
	PaneProgress
)

// RunFunc executes the chain whose events the UI displays.
type RunFunc func(ctx context.Context) error

// runDoneMsg is delivered when the chain finishes.
type runDoneMsg struct {
	err error
}

// Model is the root Bubble Tea model.
type Model struct {
	stepPane     StepPaneModel
	progressPane ProgressPaneModel
	focusedPane  PaneID
	eventSub     <-chan events.Event
	target       string
	runFn        RunFunc
	runCtx       context.Context
	cancelRun    context.CancelFunc
	width        int
	height       int
	quitting     bool
	done         bool
	runErr       error
}

// New creates the UI for one target run. The chain runs under a context
// derived from ctx and is cancelled when the operator quits mid-run.
// It subscribes to all events from the event bus using SubscribeAll.
func New(ctx context.Context, bus *events.Bus, target string, run RunFunc) Model {
	runCtx, cancel := context.WithCancel(ctx)
	return Model{
		stepPane:     NewStepPaneModel(),
		progressPane: NewProgressPaneModel(target),
		focusedPane:  PaneSteps,
		eventSub:     bus.SubscribeAll(256),
		target:       target,
		runFn:        run,
		runCtx:       runCtx,
		cancelRun:    cancel,
	}
}

// RunError returns the chain's final error, once the run has finished.
func (m Model) RunError() error {
	return m.runErr
}

// Init starts the chain and begins consuming events.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.eventSub), m.startRun())
}

// startRun executes the chain in a command goroutine; events stream in
// through the bus subscription while it runs.
func (m Model) startRun() tea.Cmd {
	return func() tea.Msg {
		return runDoneMsg{err: m.runFn(m.runCtx)}
	}
}

// waitForEvent returns a command that waits for the next bus event.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			m.cancelRun()
			if !m.done {
				m.runErr = ErrAborted
			}
			return m, tea.Quit

		case KeyTab, KeyShiftTab:
			m.focusedPane = (m.focusedPane + 1) % 2
			m.updateFocusStates()

		case KeyPane1:
			m.focusedPane = PaneSteps
			m.updateFocusStates()

		case KeyPane2:
			m.focusedPane = PaneProgress
			m.updateFocusStates()

		default:
			if m.focusedPane == PaneSteps {
				var cmd tea.Cmd
				m.stepPane, cmd = m.stepPane.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()

	case events.StepStartedEvent, events.StepOutputEvent, events.StepCompletedEvent, events.StepFailedEvent:
		var cmd tea.Cmd
		m.stepPane, cmd = m.stepPane.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case events.ChainProgressEvent, events.ChainFinishedEvent:
		var cmd tea.Cmd
		m.progressPane, cmd = m.progressPane.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case runDoneMsg:
		m.done = true
		m.runErr = msg.err
		m.cancelRun()

	case tickMsg:
		var cmd tea.Cmd
		m.stepPane, cmd = m.stepPane.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	leftPane := m.stepPane.View()
	rightPane := m.progressPane.View()
	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)

	helpBar := HelpView(m.done)
	return lipgloss.JoinVertical(lipgloss.Left, mainContent, helpBar)
}

// computeLayout calculates pane dimensions and updates the child models.
func (m *Model) computeLayout() {
	leftWidth := (m.width * 65) / 100
	rightWidth := m.width - leftWidth
	availableHeight := m.height - 1 // reserve 1 line for the help bar

	m.stepPane.SetSize(leftWidth, availableHeight)
	m.progressPane.SetSize(rightWidth, availableHeight)
	m.updateFocusStates()
}

// updateFocusStates updates the focus state of both panes.
func (m *Model) updateFocusStates() {
	m.stepPane.SetFocused(m.focusedPane == PaneSteps)
	m.progressPane.SetFocused(m.focusedPane == PaneProgress)
}
