package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/projops/projops/internal/events"
)

// StepState tracks one chain step's display state.
type StepState struct {
	Task        string
	Description string
	Status      string // "running", "completed", "failed"
	Output      []string
	StartTime   time.Time
	Duration    time.Duration
}

// StepPaneModel is the step list plus the output viewport for the selected
// step.
type StepPaneModel struct {
	steps       map[string]*StepState // task name -> state
	stepOrder   []string              // chain order for display
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
	updateTag   int // for debouncing viewport refreshes
}

// NewStepPaneModel creates an empty step pane.
func NewStepPaneModel() StepPaneModel {
	return StepPaneModel{
		steps:    make(map[string]*StepState),
		viewport: viewport.New(0, 0),
	}
}

// tickMsg debounces viewport updates while output streams in.
type tickMsg struct {
	tag int
}

// Update handles messages for the step pane.
func (m StepPaneModel) Update(msg tea.Msg) (StepPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.stepOrder)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.StepStartedEvent:
		if _, exists := m.steps[msg.Task]; !exists {
			m.steps[msg.Task] = &StepState{
				Task:        msg.Task,
				Description: msg.Description,
				Status:      "running",
				Output:      make([]string, 0),
				StartTime:   msg.Timestamp,
			}
			m.stepOrder = append(m.stepOrder, msg.Task)
			// Follow the running step unless the user has navigated away.
			if m.selectedIdx == len(m.stepOrder)-2 || len(m.stepOrder) == 1 {
				m.selectedIdx = len(m.stepOrder) - 1
				m.updateViewportContent()
			}
		}

	case events.StepOutputEvent:
		if step, exists := m.steps[msg.Task]; exists {
			step.Output = append(step.Output, msg.Line)
			if m.selectedTask() == msg.Task {
				m.updateTag++
				tag := m.updateTag
				return m, tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
					return tickMsg{tag: tag}
				})
			}
		}

	case events.StepCompletedEvent:
		if step, exists := m.steps[msg.Task]; exists {
			step.Status = "completed"
			step.Duration = msg.Duration
			step.Output = append(step.Output, fmt.Sprintf("\n[Completed in %v]", msg.Duration))
			if m.selectedTask() == msg.Task {
				m.updateViewportContent()
			}
		}

	case events.StepFailedEvent:
		if step, exists := m.steps[msg.Task]; exists {
			step.Status = "failed"
			step.Duration = msg.Duration
			step.Output = append(step.Output, fmt.Sprintf("\n[Failed (exit %d): %v]", msg.ExitCode, msg.Err))
			if m.selectedTask() == msg.Task {
				m.updateViewportContent()
			}
		}

	case tickMsg:
		if msg.tag == m.updateTag {
			m.updateViewportContent()
		}
	}

	return m, cmd
}

// View renders the step pane.
func (m StepPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	listWidth := 25
	viewportWidth := m.width - listWidth - 4

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderStepList(listWidth),
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

// renderStepList renders the step list column.
func (m StepPaneModel) renderStepList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("Steps")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.stepOrder) == 0 {
		b.WriteString(StyleStatusPending.Render("Waiting..."))
	} else {
		for i, task := range m.stepOrder {
			step := m.steps[task]
			name := step.Task
			if len(name) > width-6 {
				name = name[:width-9] + "..."
			}
			line := fmt.Sprintf("%s %s", statusIcon(step.Status), name)
			if i == m.selectedIdx {
				line = lipgloss.NewStyle().
					Background(lipgloss.Color("62")).
					Foreground(lipgloss.Color("0")).
					Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

// statusIcon returns a styled status indicator.
func statusIcon(status string) string {
	switch status {
	case "running":
		return StyleStatusRunning.Render("●")
	case "completed":
		return StyleStatusComplete.Render("✓")
	case "failed":
		return StyleStatusFailed.Render("✗")
	default:
		return StyleStatusPending.Render("○")
	}
}

// selectedTask returns the task name of the currently selected step.
func (m StepPaneModel) selectedTask() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.stepOrder) {
		return m.stepOrder[m.selectedIdx]
	}
	return ""
}

// updateViewportContent fills the viewport with the selected step's output.
func (m *StepPaneModel) updateViewportContent() {
	task := m.selectedTask()
	step, exists := m.steps[task]
	if task == "" || !exists {
		m.viewport.SetContent("Waiting for steps...")
		return
	}

	header := step.Task
	if step.Description != "" {
		header += " - " + step.Description
	}
	m.viewport.SetContent(header + "\n\n" + strings.Join(step.Output, "\n"))
	m.viewport.GotoBottom()
}

// resizeViewport resizes the viewport based on pane dimensions.
func (m *StepPaneModel) resizeViewport() {
	listWidth := 25
	viewportWidth := m.width - listWidth - 4
	viewportHeight := m.height - 4

	if viewportWidth < 10 {
		viewportWidth = 10
	}
	if viewportHeight < 5 {
		viewportHeight = 5
	}
	m.viewport.Width = viewportWidth
	m.viewport.Height = viewportHeight
}

// SetSize updates the pane dimensions.
func (m *StepPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *StepPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
