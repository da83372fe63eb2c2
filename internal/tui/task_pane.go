package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/planner/internal/events"
	"github.com/aristath/planner/internal/plan"
)

const taskListWidth = 28

// TaskState is the live view of one task.
type TaskState struct {
	ID       string
	Title    string
	Status   plan.TaskStatus
	Attempt  int
	Output   []string
	Started  time.Time
	Duration time.Duration
}

// TaskPaneModel lists the plan's tasks next to a viewport with the selected
// task's generated output.
type TaskPaneModel struct {
	tasks       map[string]*TaskState
	order       []string // plan order for display
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
	updateTag   int // for debouncing
}

// NewTaskPaneModel creates a task pane preloaded with p's tasks.
func NewTaskPaneModel(p *plan.Plan) TaskPaneModel {
	m := TaskPaneModel{
		tasks:    make(map[string]*TaskState),
		viewport: viewport.New(0, 0),
	}
	if p != nil {
		for _, t := range p.Tasks {
			m.add(t.ID, t.Title, t.Status)
		}
	}
	m.updateViewportContent()
	return m
}

func (m *TaskPaneModel) add(id, title string, status plan.TaskStatus) *TaskState {
	if st, ok := m.tasks[id]; ok {
		return st
	}
	st := &TaskState{ID: id, Title: title, Status: status}
	m.tasks[id] = st
	m.order = append(m.order, id)
	return st
}

// tickMsg is used for debouncing viewport updates.
type tickMsg struct {
	tag int
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)

	case tea.KeyMsg:
		if !m.focused {
			break
		}

		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.order)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			// Delegate other keys to viewport for scrolling
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.TaskStartedEvent:
		st := m.add(msg.ID, msg.Title, plan.TaskInProgress)
		st.Status = plan.TaskInProgress
		st.Attempt = msg.Attempt
		if st.Started.IsZero() {
			st.Started = msg.Timestamp
		}
		if msg.Attempt > 1 {
			st.Output = append(st.Output, fmt.Sprintf("\n[Attempt %d]", msg.Attempt))
		}
		// Follow the running task
		m.selectedIdx = m.indexOf(msg.ID)
		m.updateViewportContent()

	case events.TaskOutputEvent:
		if st, ok := m.tasks[msg.ID]; ok {
			st.Output = append(st.Output, msg.Line)
			if m.selectedTaskID() == msg.ID {
				m.updateTag++
				tag := m.updateTag
				return m, tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
					return tickMsg{tag: tag}
				})
			}
		}

	case events.TaskReviewedEvent:
		if st, ok := m.tasks[msg.ID]; ok {
			verdict := "rejected"
			if msg.Approved {
				verdict = "approved"
			}
			st.Output = append(st.Output, fmt.Sprintf("\n[Review %s, score %d]", verdict, msg.Score))
			for _, issue := range msg.Issues {
				st.Output = append(st.Output, "  - "+issue)
			}
			m.refreshIfSelected(msg.ID)
		}

	case events.TaskCompletedEvent:
		if st, ok := m.tasks[msg.ID]; ok {
			st.Status = msg.Status
			st.Duration = msg.Duration
			st.Output = append(st.Output, fmt.Sprintf("\n[%s in %v after %d attempt(s)]", msg.Status, msg.Duration.Round(time.Millisecond), msg.Attempts))
			m.refreshIfSelected(msg.ID)
		}

	case events.TaskFailedEvent:
		if st, ok := m.tasks[msg.ID]; ok {
			st.Status = plan.TaskFailed
			st.Duration = msg.Duration
			st.Output = append(st.Output, fmt.Sprintf("\n[Failed: %v]", msg.Err))
			m.refreshIfSelected(msg.ID)
		}

	case tickMsg:
		// Only update if this tick matches the current tag (debouncing)
		if msg.tag == m.updateTag {
			m.updateViewportContent()
		}
	}

	return m, cmd
}

// View renders the task pane.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	viewportWidth := m.width - taskListWidth - 4 // borders and padding

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderTaskList(taskListWidth),
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

func (m TaskPaneModel) renderTaskList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.order) == 0 {
		b.WriteString(StyleStatusPending.Render("Waiting..."))
	}
	for i, id := range m.order {
		st := m.tasks[id]
		name := truncate(st.Title, width-4)
		line := fmt.Sprintf("%s %s", StatusIcon(st.Status), name)
		if i == m.selectedIdx {
			line = lipgloss.NewStyle().
				Background(lipgloss.Color("62")).
				Foreground(lipgloss.Color("0")).
				Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

func truncate(s string, n int) string {
	if n <= 3 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// Task returns the state of the task with the given id.
func (m TaskPaneModel) Task(id string) (TaskState, bool) {
	st, ok := m.tasks[id]
	if !ok {
		return TaskState{}, false
	}
	return *st, true
}

func (m TaskPaneModel) indexOf(id string) int {
	for i, tid := range m.order {
		if tid == id {
			return i
		}
	}
	return 0
}

func (m TaskPaneModel) selectedTaskID() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.order) {
		return m.order[m.selectedIdx]
	}
	return ""
}

func (m *TaskPaneModel) refreshIfSelected(id string) {
	if m.selectedTaskID() == id {
		m.updateViewportContent()
	}
}

func (m *TaskPaneModel) updateViewportContent() {
	st, ok := m.tasks[m.selectedTaskID()]
	if !ok {
		m.viewport.SetContent("Waiting for tasks...")
		return
	}
	if len(st.Output) == 0 {
		m.viewport.SetContent(fmt.Sprintf("%s\n\n(%s)", st.Title, st.Status))
		return
	}
	m.viewport.SetContent(strings.Join(st.Output, "\n"))
	// Auto-scroll to bottom
	m.viewport.GotoBottom()
}

func (m *TaskPaneModel) resizeViewport() {
	m.viewport.Width = max(m.width-taskListWidth-4, 10)
	m.viewport.Height = max(m.height-4, 5)
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
