package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/planner/internal/plan"
)

// Border styles
var (
	StyleFocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62"))

	StyleUnfocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))
)

// Status styles
var (
	StyleStatusRunning = lipgloss.NewStyle().
				Foreground(lipgloss.Color("yellow")).
				Bold(true)

	StyleStatusComplete = lipgloss.NewStyle().
				Foreground(lipgloss.Color("green")).
				Bold(true)

	StyleStatusAccepted = lipgloss.NewStyle().
				Foreground(lipgloss.Color("cyan")).
				Bold(true)

	StyleStatusFailed = lipgloss.NewStyle().
				Foreground(lipgloss.Color("red")).
				Bold(true)

	StyleStatusPending = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))
)

// Priority styles
var (
	StylePriorityHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("red"))
	StylePriorityMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("yellow"))
	StylePriorityLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// UI element styles
var (
	StyleTitle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	StyleHelp = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	StyleWarning = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208"))
)

// StatusIcon returns a styled status indicator for a task.
func StatusIcon(status plan.TaskStatus) string {
	switch status {
	case plan.TaskInProgress:
		return StyleStatusRunning.Render("●")
	case plan.TaskCompleted:
		return StyleStatusComplete.Render("✓")
	case plan.TaskAccepted:
		return StyleStatusAccepted.Render("~")
	case plan.TaskFailed:
		return StyleStatusFailed.Render("✗")
	default:
		return StyleStatusPending.Render("○")
	}
}

func priorityStyle(p plan.Priority) lipgloss.Style {
	switch p {
	case plan.PriorityHigh:
		return StylePriorityHigh
	case plan.PriorityLow:
		return StylePriorityLow
	default:
		return StylePriorityMedium
	}
}
