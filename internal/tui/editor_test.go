package tui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/huh"

	"github.com/aristath/planner/internal/plan"
	"github.com/aristath/planner/internal/planner"
)

// scriptedPrompter answers editor prompts from fixed queues.
type scriptedPrompter struct {
	actions  []Action
	tasks    []int
	patches  []planner.TaskPatch
	confirms []bool
	abortAt  int // Action call number (1-based) that returns ErrUserAborted
	calls    int
}

func (s *scriptedPrompter) Action(p *plan.Plan) (Action, error) {
	s.calls++
	if s.calls == s.abortAt {
		return "", huh.ErrUserAborted
	}
	if len(s.actions) == 0 {
		return "", errors.New("no scripted action left")
	}
	a := s.actions[0]
	s.actions = s.actions[1:]
	return a, nil
}

func (s *scriptedPrompter) SelectTask(p *plan.Plan, title string) (int, error) {
	i := s.tasks[0]
	s.tasks = s.tasks[1:]
	return i, nil
}

func (s *scriptedPrompter) TaskForm(p *plan.Plan, existing *plan.Task) (planner.TaskPatch, error) {
	if len(s.patches) == 0 {
		return planner.TaskPatch{}, huh.ErrUserAborted
	}
	patch := s.patches[0]
	s.patches = s.patches[1:]
	return patch, nil
}

func (s *scriptedPrompter) Confirm(title string) (bool, error) {
	ok := s.confirms[0]
	s.confirms = s.confirms[1:]
	return ok, nil
}

func strPtr(s string) *string { return &s }

func editorPlan() *plan.Plan {
	p := plan.New("Auth", "Add login")
	p.Tasks = []*plan.Task{
		{ID: "a", Title: "API", Description: "endpoint", Files: []string{}, Dependencies: []string{}, Status: plan.TaskPending, EstimatedTime: "1 hour", Priority: plan.PriorityHigh},
		{ID: "b", Title: "Form", Description: "form", Files: []string{}, Dependencies: []string{"a"}, Status: plan.TaskPending, EstimatedTime: "30 minutes", Priority: plan.PriorityMedium},
	}
	return p
}

func TestEditorModifyAddRemoveApprove(t *testing.T) {
	p := editorPlan()
	var out bytes.Buffer
	prompter := &scriptedPrompter{
		actions: []Action{ActionModify, ActionAdd, ActionRemove, ActionApprove},
		tasks:   []int{1, 0},
		patches: []planner.TaskPatch{
			{Title: strPtr("Login form")},
			{Title: strPtr("Docs"), Description: strPtr("write docs"), Dependencies: []string{"b"}},
		},
		confirms: []bool{true},
	}

	approved, err := NewEditor(planner.NewMutator(nil), prompter, &out, nil).Edit(p)
	if err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if !approved {
		t.Fatal("expected approval")
	}
	if p.Status != plan.PlanApproved {
		t.Errorf("plan status = %s, want approved", p.Status)
	}

	if len(p.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(p.Tasks))
	}
	if p.Tasks[0].ID != "b" || p.Tasks[0].Title != "Login form" {
		t.Errorf("modified task mismatch: %+v", p.Tasks[0])
	}
	if len(p.Tasks[0].Dependencies) != 0 {
		t.Errorf("removed task should be scrubbed from dependencies: %v", p.Tasks[0].Dependencies)
	}
	if p.Tasks[1].Title != "Docs" || p.Tasks[1].Status != plan.TaskPending {
		t.Errorf("added task mismatch: %+v", p.Tasks[1])
	}

	if got := strings.Count(out.String(), "Auth"); got != 4 {
		t.Errorf("plan should be rendered before every choice, rendered %d times", got)
	}
}

func TestEditorCancel(t *testing.T) {
	p := editorPlan()
	prompter := &scriptedPrompter{actions: []Action{ActionCancel}}

	approved, err := NewEditor(planner.NewMutator(nil), prompter, &bytes.Buffer{}, nil).Edit(p)
	if err != nil || approved {
		t.Fatalf("Edit() = %v, %v; want false, nil", approved, err)
	}
	if p.Status != plan.PlanDraft {
		t.Errorf("plan status = %s, want draft", p.Status)
	}
}

func TestEditorAbortIsCancel(t *testing.T) {
	prompter := &scriptedPrompter{abortAt: 1}

	approved, err := NewEditor(planner.NewMutator(nil), prompter, &bytes.Buffer{}, nil).Edit(editorPlan())
	if err != nil || approved {
		t.Fatalf("Edit() = %v, %v; want false, nil", approved, err)
	}
}

func TestEditorAbortedFormReturnsToMenu(t *testing.T) {
	p := editorPlan()
	prompter := &scriptedPrompter{actions: []Action{ActionAdd, ActionApprove}}

	approved, err := NewEditor(planner.NewMutator(nil), prompter, &bytes.Buffer{}, nil).Edit(p)
	if err != nil || !approved {
		t.Fatalf("Edit() = %v, %v; want true, nil", approved, err)
	}
	if len(p.Tasks) != 2 {
		t.Errorf("aborted add must not change the plan, got %d tasks", len(p.Tasks))
	}
}

func TestEditorRemoveDeclined(t *testing.T) {
	p := editorPlan()
	prompter := &scriptedPrompter{
		actions:  []Action{ActionRemove, ActionCancel},
		tasks:    []int{0},
		confirms: []bool{false},
	}

	if _, err := NewEditor(planner.NewMutator(nil), prompter, &bytes.Buffer{}, nil).Edit(p); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if len(p.Tasks) != 2 {
		t.Errorf("declined removal changed the plan: %d tasks", len(p.Tasks))
	}
}

func TestEditorEditingApprovedPlanReopens(t *testing.T) {
	p := editorPlan()
	if err := p.Approve(); err != nil {
		t.Fatal(err)
	}
	prompter := &scriptedPrompter{
		actions: []Action{ActionModify, ActionCancel},
		tasks:   []int{0},
		patches: []planner.TaskPatch{{Title: strPtr("Endpoint")}},
	}

	if _, err := NewEditor(planner.NewMutator(nil), prompter, &bytes.Buffer{}, nil).Edit(p); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if p.Status != plan.PlanDraft {
		t.Errorf("edited plan status = %s, want draft", p.Status)
	}
}

func TestEditorRejectsLockedPlan(t *testing.T) {
	p := editorPlan()
	p.Status = plan.PlanExecuting

	_, err := NewEditor(planner.NewMutator(nil), &scriptedPrompter{}, &bytes.Buffer{}, nil).Edit(p)
	if !errors.Is(err, planner.ErrPlanLocked) {
		t.Fatalf("expected ErrPlanLocked, got %v", err)
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{" a.go ,b.go,, ", []string{"a.go", "b.go"}},
		{"single", []string{"single"}},
	}
	for _, tt := range tests {
		got := SplitList(tt.in)
		if got == nil || strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("SplitList(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestRenderPlan(t *testing.T) {
	p := editorPlan()
	p.Tasks[1].Dependencies = []string{"a", "ghost"}
	p.Tasks[0].Status = plan.TaskCompleted

	out := RenderPlan(p)

	for _, want := range []string{"Auth", "1. ", "API", "2. ", "Form", "after:", "ghost", "Warnings:", "completed"} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderPlan output missing %q:\n%s", want, out)
		}
	}
}
