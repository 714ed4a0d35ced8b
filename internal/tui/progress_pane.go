package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/projops/projops/internal/events"
)

// ProgressPaneModel shows how far through the resolved chain the run is.
type ProgressPaneModel struct {
	target   string
	total    int
	done     int
	finished bool
	failed   bool
	errText  string
	width    int
	height   int
	focused  bool
}

// NewProgressPaneModel creates a progress pane for one target.
func NewProgressPaneModel(target string) ProgressPaneModel {
	return ProgressPaneModel{target: target}
}

// Update handles messages for the progress pane.
func (m ProgressPaneModel) Update(msg tea.Msg) (ProgressPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case events.ChainProgressEvent:
		m.total = msg.Total
		m.done = msg.Done

	case events.ChainFinishedEvent:
		m.finished = true
		if msg.Err != nil {
			m.failed = true
			m.errText = msg.Err.Error()
		}
	}
	return m, nil
}

// View renders the progress pane.
func (m ProgressPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Chain: " + m.target)
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(m.width-4, lipgloss.Width(title))))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("Steps: %d/%d\n\n", m.done, m.total))

	if m.total > 0 {
		barWidth := min(m.width-8, 40)
		doneWidth := (m.done * barWidth) / m.total
		pendingWidth := barWidth - doneWidth

		bar := StyleStatusComplete.Render(strings.Repeat("=", max(0, doneWidth)))
		bar += StyleStatusPending.Render(strings.Repeat(".", max(0, pendingWidth)))
		b.WriteString(fmt.Sprintf("[%s]\n\n", bar))
	}

	switch {
	case m.failed:
		b.WriteString(StyleStatusFailed.Render("FAILED"))
		b.WriteString("\n")
		b.WriteString(wrap(m.errText, m.width-6))
	case m.finished:
		b.WriteString(StyleStatusComplete.Render("SUCCESS"))
	default:
		b.WriteString(StyleStatusRunning.Render("running..."))
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// wrap breaks text into lines no longer than width.
func wrap(s string, width int) string {
	if width < 8 {
		width = 8
	}
	words := strings.Fields(s)
	var lines []string
	line := ""
	for _, w := range words {
		if line != "" && len(line)+1+len(w) > width {
			lines = append(lines, line)
			line = w
			continue
		}
		if line == "" {
			line = w
		} else {
			line += " " + w
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// SetSize updates the pane dimensions.
func (m *ProgressPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *ProgressPaneModel) SetFocused(focused bool) {
	m.focused = focused
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
