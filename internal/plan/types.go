package plan

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"     // Waiting for dependencies or execution
	TaskInProgress TaskStatus = "in-progress" // Currently being generated/reviewed
	TaskCompleted  TaskStatus = "completed"   // Generated and passed review
	TaskFailed     TaskStatus = "failed"      // Gave up on this task
	TaskAccepted   TaskStatus = "accepted"    // Kept despite failing review
)

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted, TaskFailed, TaskAccepted:
		return true
	}
	return false
}

// Done reports whether the status satisfies dependents.
func (s TaskStatus) Done() bool {
	return s == TaskCompleted || s == TaskAccepted
}

// PlanStatus represents the current state of a plan.
type PlanStatus string

const (
	PlanDraft     PlanStatus = "draft"
	PlanApproved  PlanStatus = "approved"
	PlanExecuting PlanStatus = "executing"
	PlanCompleted PlanStatus = "completed"
	PlanFailed    PlanStatus = "failed"
)

// Valid reports whether s is a known plan status.
func (s PlanStatus) Valid() bool {
	switch s {
	case PlanDraft, PlanApproved, PlanExecuting, PlanCompleted, PlanFailed:
		return true
	}
	return false
}

// Priority is the relative importance of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of low, medium or high.
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// ParsePriority maps free text onto a Priority. The second return value is
// false when s was not recognised and the medium default was used.
func ParsePriority(s string) (Priority, bool) {
	p := Priority(s)
	if p.Valid() {
		return p, true
	}
	return PriorityMedium, false
}

// Task represents a unit of implementation work in a plan.
type Task struct {
	ID            string     `json:"id" yaml:"id"`
	Title         string     `json:"title" yaml:"title"`
	Description   string     `json:"description" yaml:"description"`
	Files         []string   `json:"files" yaml:"files"`
	Dependencies  []string   `json:"dependencies" yaml:"dependencies"`
	Status        TaskStatus `json:"status" yaml:"status"`
	EstimatedTime string     `json:"estimatedTime" yaml:"estimatedTime"`
	Priority      Priority   `json:"priority" yaml:"priority"`
	Code          string     `json:"code,omitempty" yaml:"code,omitempty"`
}

// DependsOn reports whether the task lists id as a dependency.
func (t *Task) DependsOn(id string) bool {
	for _, dep := range t.Dependencies {
		if dep == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Files = copyStrings(t.Files)
	cp.Dependencies = copyStrings(t.Dependencies)
	return &cp
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

// Plan is the top-level unit of work: an ordered task collection and its status.
// Insertion order of Tasks is display order only; execution order comes from
// the dependency graph.
type Plan struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Tasks       []*Task    `json:"tasks" yaml:"tasks"`
	Created     time.Time  `json:"created" yaml:"created"`
	Updated     time.Time  `json:"updated" yaml:"updated"`
	Status      PlanStatus `json:"status" yaml:"status"`
}

// New creates an empty draft plan with a fresh id.
func New(title, description string) *Plan {
	now := Now()
	return &Plan{
		ID:          GenerateID("plan"),
		Title:       title,
		Description: description,
		Tasks:       []*Task{},
		Created:     now,
		Updated:     now,
		Status:      PlanDraft,
	}
}

// Touch refreshes the Updated timestamp.
func (p *Plan) Touch() {
	p.Updated = Now()
}

// TaskByID returns the task with the given id.
func (p *Plan) TaskByID(id string) (*Task, bool) {
	if i := p.IndexOf(id); i >= 0 {
		return p.Tasks[i], true
	}
	return nil, false
}

// IndexOf returns the position of the task with the given id, or -1.
func (p *Plan) IndexOf(id string) int {
	for i, t := range p.Tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// TaskIDs returns the ids of all tasks in insertion order.
func (p *Plan) TaskIDs() []string {
	ids := make([]string, 0, len(p.Tasks))
	for _, t := range p.Tasks {
		ids = append(ids, t.ID)
	}
	return ids
}

// Clone returns a deep copy of the plan.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Tasks = make([]*Task, 0, len(p.Tasks))
	for _, t := range p.Tasks {
		cp.Tasks = append(cp.Tasks, t.Clone())
	}
	return &cp
}

// Counts tallies tasks by status.
func (p *Plan) Counts() map[TaskStatus]int {
	counts := make(map[TaskStatus]int)
	for _, t := range p.Tasks {
		counts[t.Status]++
	}
	return counts
}

// Mutable reports whether structural edits are still allowed. Once execution
// has started the task graph is frozen.
func (p *Plan) Mutable() bool {
	return p.Status == PlanDraft || p.Status == PlanApproved
}
