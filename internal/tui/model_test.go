package tui

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aristath/planner/internal/config"
	"github.com/aristath/planner/internal/events"
	"github.com/aristath/planner/internal/plan"
)

func runPlan() *plan.Plan {
	p := plan.New("Auth", "")
	p.Tasks = []*plan.Task{
		{ID: "a", Title: "API", Status: plan.TaskPending},
		{ID: "b", Title: "Form", Dependencies: []string{"a"}, Status: plan.TaskPending},
	}
	return p
}

func newTestModel(t *testing.T, p *plan.Plan) Model {
	t.Helper()
	bus := events.NewEventBus()
	t.Cleanup(bus.Close)
	dir := t.TempDir()
	return New(bus, p, config.DefaultConfig(), filepath.Join(dir, "global.json"), filepath.Join(dir, "project.json"))
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestModelRoutesTaskEvents(t *testing.T) {
	m := newTestModel(t, runPlan())
	now := time.Now()

	m = update(m, events.TaskStartedEvent{ID: "a", Title: "API", Attempt: 1, Timestamp: now})
	m = update(m, events.TaskOutputEvent{ID: "a", Line: "func Login() {}"})
	m = update(m, events.TaskReviewedEvent{ID: "a", Attempt: 1, Score: 30, Issues: []string{"no tests"}})
	m = update(m, events.TaskStartedEvent{ID: "a", Title: "API", Attempt: 2, Timestamp: now.Add(time.Second)})
	m = update(m, events.TaskCompletedEvent{ID: "a", Status: plan.TaskCompleted, Attempts: 2, Duration: 2 * time.Second})
	m = update(m, events.TaskFailedEvent{ID: "b", Err: errors.New("boom"), Attempts: 3})

	a, ok := m.taskPane.Task("a")
	if !ok {
		t.Fatal("task a missing from pane")
	}
	if a.Status != plan.TaskCompleted || a.Attempt != 2 {
		t.Errorf("task a state = %s attempt %d", a.Status, a.Attempt)
	}
	if !a.Started.Equal(now) {
		t.Errorf("Started should keep the first attempt's time, got %v", a.Started)
	}
	out := strings.Join(a.Output, "\n")
	for _, want := range []string{"func Login() {}", "rejected, score 30", "- no tests", "[Attempt 2]", "completed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	b, _ := m.taskPane.Task("b")
	if b.Status != plan.TaskFailed {
		t.Errorf("task b status = %s, want failed", b.Status)
	}
}

func TestModelIgnoresUnknownTaskOutput(t *testing.T) {
	m := newTestModel(t, runPlan())
	m = update(m, events.TaskOutputEvent{ID: "ghost", Line: "x"})

	if _, ok := m.taskPane.Task("ghost"); ok {
		t.Error("output for an unknown task should not create it")
	}
}

func TestModelTracksPlanStatus(t *testing.T) {
	p := runPlan()
	m := newTestModel(t, p)
	if m.Finished() {
		t.Fatal("draft plan reported as finished")
	}

	p.Tasks[0].Status = plan.TaskCompleted
	m = update(m, events.NewPlanProgress(p))
	m = update(m, events.PlanStatusChangedEvent{PlanID: p.ID, From: plan.PlanApproved, To: plan.PlanExecuting})
	if m.Finished() {
		t.Error("executing plan reported as finished")
	}
	if m.progressPane.progress.Done() != 1 {
		t.Errorf("progress done = %d, want 1", m.progressPane.progress.Done())
	}

	m = update(m, events.PlanStatusChangedEvent{PlanID: p.ID, From: plan.PlanExecuting, To: plan.PlanFailed})
	if !m.Finished() {
		t.Error("failed plan should be finished")
	}

	m = update(m, tea.WindowSizeMsg{Width: 120, Height: 40})
	if !strings.Contains(m.View(), "Plan failed.") {
		t.Error("status line should announce the final status")
	}
}

func TestModelFocusAndQuit(t *testing.T) {
	m := newTestModel(t, runPlan())
	m = update(m, tea.WindowSizeMsg{Width: 120, Height: 40})

	m = update(m, tea.KeyMsg{Type: tea.KeyTab})
	if m.focusedPane != PaneProgress {
		t.Errorf("focus after tab = %d", m.focusedPane)
	}
	m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("1")})
	if m.focusedPane != PaneTasks {
		t.Errorf("focus after 1 = %d", m.focusedPane)
	}

	m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	if !m.showSettings {
		t.Fatal("s should open settings")
	}
	m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if m.quitting {
		t.Error("q must not quit while settings are open")
	}
	m = update(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.showSettings {
		t.Error("esc should close settings")
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !next.(Model).quitting || cmd == nil {
		t.Error("q should quit")
	}
}

func TestModelBusClosed(t *testing.T) {
	bus := events.NewEventBus()
	m := New(bus, runPlan(), config.DefaultConfig(), "", "")
	bus.Close()

	msg := m.Init()()
	if _, ok := msg.(busClosedMsg); !ok {
		t.Fatalf("expected busClosedMsg, got %T", msg)
	}
	if m = update(m, msg); !m.busClosed {
		t.Error("busClosed not recorded")
	}
}

func TestProgressBar(t *testing.T) {
	if got := progressBar(events.PlanProgressEvent{}, 10); got != "" {
		t.Errorf("empty plan bar = %q", got)
	}
	bar := progressBar(events.PlanProgressEvent{Total: 4, Completed: 1, Accepted: 1, Failed: 1, Pending: 1}, 8)
	for _, want := range []string{"====", "!!", ".."} {
		if !strings.Contains(bar, want) {
			t.Errorf("bar %q missing %q", bar, want)
		}
	}
}

func TestSettingsSave(t *testing.T) {
	dir := t.TempDir()
	global := filepath.Join(dir, "global", "config.json")
	project := filepath.Join(dir, "project", "config.json")
	cfg := config.DefaultConfig()

	m := NewSettingsPaneModel(cfg, global, project)
	m.SetVisible(true)
	*m.fields.agentModels[config.AgentCoder] = "sonnet"
	m.fields.maxAttempts = "5"
	m.fields.acceptOnFailure = true
	m.save()

	if m.Err() != nil {
		t.Fatalf("save failed: %v", m.Err())
	}
	if cfg.Agents[config.AgentCoder].Model != "sonnet" || cfg.Execution.MaxAttempts != 5 || !cfg.Execution.AcceptOnReviewFailure {
		t.Errorf("config not updated: %+v", cfg.Execution)
	}
	if _, err := os.Stat(project); err != nil {
		t.Errorf("project config not written: %v", err)
	}
	if _, err := os.Stat(global); err == nil {
		t.Error("global config should be untouched")
	}

	loaded, err := config.Load(global, project)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Execution.MaxAttempts != 5 {
		t.Errorf("saved max attempts = %d", loaded.Execution.MaxAttempts)
	}
}

func TestSettingsSaveRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()

	m := NewSettingsPaneModel(cfg, filepath.Join(dir, "g.json"), filepath.Join(dir, "p.json"))
	m.SetVisible(true)
	*m.fields.agentProviders[config.AgentReviewer] = "gemini"
	m.save()

	if m.Err() == nil {
		t.Fatal("expected validation error for unknown provider")
	}
	if cfg.Agents[config.AgentReviewer].Provider != "claude" {
		t.Error("config changed despite failed validation")
	}
}
