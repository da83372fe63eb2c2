package planner

import (
	"errors"
	"fmt"

	"github.com/aristath/planner/internal/logging"
	"github.com/aristath/planner/internal/plan"
	"github.com/aristath/planner/internal/scheduler"
)

var (
	// ErrTaskIndexOutOfRange is returned when a mutation names a position
	// outside the plan's task list. The plan is left unchanged.
	ErrTaskIndexOutOfRange = errors.New("task index out of range")
	// ErrPlanLocked is returned for structural edits once execution has started.
	ErrPlanLocked = errors.New("plan can no longer be modified")
)

// TaskPatch carries replacement fields for a task. Nil fields are left as they
// are; a non-nil empty slice clears the list.
type TaskPatch struct {
	Title         *string
	Description   *string
	Files         []string
	Dependencies  []string
	EstimatedTime *string
	Priority      *plan.Priority
}

func (f TaskPatch) apply(t *plan.Task) {
	if f.Title != nil {
		t.Title = *f.Title
	}
	if f.Description != nil {
		t.Description = *f.Description
	}
	if f.Files != nil {
		t.Files = append([]string{}, f.Files...)
	}
	if f.Dependencies != nil {
		t.Dependencies = append([]string{}, f.Dependencies...)
	}
	if f.EstimatedTime != nil {
		t.EstimatedTime = *f.EstimatedTime
	}
	if f.Priority != nil {
		t.Priority = *f.Priority
	}
}

// Mutator applies interactive edits to a plan. Each call is one discrete
// user choice; the plan is mutated in place and returned.
type Mutator struct {
	logger *logging.Logger
}

// NewMutator creates a Mutator that reports graph warnings through logger.
func NewMutator(logger *logging.Logger) *Mutator {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Mutator{logger: logger.With("component", "mutator")}
}

// ModifyTask merges patch onto the task at index. The task id never changes.
func (m *Mutator) ModifyTask(p *plan.Plan, index int, patch TaskPatch) (*plan.Plan, error) {
	if err := m.check(p, index); err != nil {
		return p, err
	}

	t := p.Tasks[index]
	patch.apply(t)
	for _, note := range applyDefaults(t) {
		m.logger.Warn("task value replaced", "plan_id", p.ID, "task_id", t.ID, "note", note)
	}
	t.Dependencies = withoutID(t.Dependencies, t.ID)

	p.Touch()
	m.logger.Info("task modified", "plan_id", p.ID, "task_id", t.ID)
	m.warn(p)
	return p, nil
}

// AddTask appends a new pending task with a fresh id.
func (m *Mutator) AddTask(p *plan.Plan, patch TaskPatch) (*plan.Plan, error) {
	if !p.Mutable() {
		return p, fmt.Errorf("%w: plan %s is %s", ErrPlanLocked, p.ID, p.Status)
	}

	t, notes := newTask(plan.GenerateID(taskIDPrefix), patch)
	for _, note := range notes {
		m.logger.Warn("task value replaced", "plan_id", p.ID, "task_id", t.ID, "note", note)
	}
	for _, problem := range ValidateTask(t) {
		m.logger.Warn("task validation failed", "plan_id", p.ID, "task_id", t.ID, "problem", problem)
	}
	p.Tasks = append(p.Tasks, t)

	p.Touch()
	m.logger.Info("task added", "plan_id", p.ID, "task_id", t.ID)
	m.warn(p)
	return p, nil
}

// RemoveTask deletes the task at index and strips its id from every
// remaining dependency list.
func (m *Mutator) RemoveTask(p *plan.Plan, index int) (*plan.Plan, error) {
	if err := m.check(p, index); err != nil {
		return p, err
	}

	removed := p.Tasks[index]
	p.Tasks = append(p.Tasks[:index:index], p.Tasks[index+1:]...)
	for _, t := range p.Tasks {
		t.Dependencies = withoutID(t.Dependencies, removed.ID)
	}

	p.Touch()
	m.logger.Info("task removed", "plan_id", p.ID, "task_id", removed.ID)
	m.warn(p)
	return p, nil
}

func (m *Mutator) check(p *plan.Plan, index int) error {
	if !p.Mutable() {
		return fmt.Errorf("%w: plan %s is %s", ErrPlanLocked, p.ID, p.Status)
	}
	if index < 0 || index >= len(p.Tasks) {
		return fmt.Errorf("%w: %d (plan has %d tasks)", ErrTaskIndexOutOfRange, index, len(p.Tasks))
	}
	return nil
}

func (m *Mutator) warn(p *plan.Plan) {
	for _, w := range scheduler.Analyze(p.Tasks).Warnings() {
		m.logger.Warn("dependency graph defect", "plan_id", p.ID, "defect", w)
	}
}

// withoutID returns deps with every occurrence of id removed.
func withoutID(deps []string, id string) []string {
	out := deps[:0:0]
	for _, d := range deps {
		if d != id {
			out = append(out, d)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}
