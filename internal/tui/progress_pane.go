package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/planner/internal/events"
	"github.com/aristath/planner/internal/plan"
)

// ProgressPaneModel shows plan status, task counts and a progress bar.
type ProgressPaneModel struct {
	title    string
	status   plan.PlanStatus
	progress events.PlanProgressEvent
	width    int
	height   int
	focused  bool
}

// NewProgressPaneModel creates a progress pane seeded from p.
func NewProgressPaneModel(p *plan.Plan) ProgressPaneModel {
	m := ProgressPaneModel{}
	if p != nil {
		m.title = p.Title
		m.status = p.Status
		m.progress = events.NewPlanProgress(p)
	}
	return m
}

// Update handles messages for the progress pane.
func (m ProgressPaneModel) Update(msg tea.Msg) (ProgressPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case events.PlanProgressEvent:
		m.progress = msg

	case events.PlanStatusChangedEvent:
		m.status = msg.To
	}

	return m, nil
}

// Status returns the last plan status seen.
func (m ProgressPaneModel) Status() plan.PlanStatus {
	return m.status
}

// View renders the progress pane.
func (m ProgressPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Progress")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	p := m.progress
	if m.title != "" {
		fmt.Fprintf(&b, "Plan:      %s\n", m.title)
	}
	fmt.Fprintf(&b, "Status:    %s\n", m.status)
	fmt.Fprintf(&b, "Total:     %d\n", p.Total)
	fmt.Fprintf(&b, "Completed: %s\n", StyleStatusComplete.Render(fmt.Sprint(p.Completed)))
	fmt.Fprintf(&b, "Accepted:  %s\n", StyleStatusAccepted.Render(fmt.Sprint(p.Accepted)))
	fmt.Fprintf(&b, "Running:   %s\n", StyleStatusRunning.Render(fmt.Sprint(p.Running)))
	fmt.Fprintf(&b, "Failed:    %s\n", StyleStatusFailed.Render(fmt.Sprint(p.Failed)))
	fmt.Fprintf(&b, "Pending:   %s\n", StyleStatusPending.Render(fmt.Sprint(p.Pending)))
	b.WriteString("\n")

	if p.Total > 0 {
		fmt.Fprintf(&b, "[%s]  %d/%d\n", progressBar(p, min(m.width-4, 40)), p.Done(), p.Total)
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

// progressBar renders done, failed, running and pending segments.
func progressBar(p events.PlanProgressEvent, width int) string {
	if p.Total == 0 || width <= 0 {
		return ""
	}
	doneWidth := (p.Done() * width) / p.Total
	failedWidth := (p.Failed * width) / p.Total
	runningWidth := (p.Running * width) / p.Total
	pendingWidth := width - doneWidth - failedWidth - runningWidth

	bar := StyleStatusComplete.Render(strings.Repeat("=", max(0, doneWidth)))
	bar += StyleStatusFailed.Render(strings.Repeat("!", max(0, failedWidth)))
	bar += StyleStatusRunning.Render(strings.Repeat("-", max(0, runningWidth)))
	bar += StyleStatusPending.Render(strings.Repeat(".", max(0, pendingWidth)))
	return bar
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
