package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/planner/internal/plan"
	"github.com/aristath/planner/internal/scheduler"
)

var (
	styleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	styleDim = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	styleTaskBox = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("240")).
			PaddingLeft(1)
)

// RenderPlan returns a styled summary of p: header, numbered tasks in
// insertion order and any dependency graph warnings. The numbers are the
// 1-based positions the editor uses.
func RenderPlan(p *plan.Plan) string {
	var b strings.Builder

	b.WriteString(styleHeader.Render(p.Title))
	b.WriteString("\n")
	b.WriteString(styleDim.Render(fmt.Sprintf("%s | %s | %d tasks | updated %s",
		p.ID, p.Status, len(p.Tasks), p.Updated.Local().Format("2006-01-02 15:04"))))
	b.WriteString("\n")
	if desc := strings.TrimSpace(p.Description); desc != "" {
		b.WriteString("\n")
		b.WriteString(desc)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	for i, t := range p.Tasks {
		b.WriteString(styleTaskBox.Render(renderTask(i+1, t)))
		b.WriteString("\n")
	}

	if warnings := scheduler.Analyze(p.Tasks).Warnings(); len(warnings) > 0 {
		b.WriteString("\n")
		b.WriteString(StyleWarning.Render("Warnings:"))
		b.WriteString("\n")
		for _, w := range warnings {
			b.WriteString(StyleWarning.Render("  ! " + w))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func renderTask(n int, t *plan.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d. %s  %s\n", StatusIcon(t.Status), n, lipgloss.NewStyle().Bold(true).Render(t.Title), styleDim.Render(t.ID))
	fmt.Fprintf(&b, "%s | %s", priorityStyle(t.Priority).Render(string(t.Priority)), t.EstimatedTime)
	if t.Status != plan.TaskPending {
		fmt.Fprintf(&b, " | %s", t.Status)
	}
	if desc := strings.TrimSpace(t.Description); desc != "" {
		fmt.Fprintf(&b, "\n%s", desc)
	}
	if len(t.Files) > 0 {
		fmt.Fprintf(&b, "\n%s %s", styleDim.Render("files:"), strings.Join(t.Files, ", "))
	}
	if len(t.Dependencies) > 0 {
		fmt.Fprintf(&b, "\n%s %s", styleDim.Render("after:"), strings.Join(t.Dependencies, ", "))
	}
	return b.String()
}
