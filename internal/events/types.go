package events

import (
	"time"

	"github.com/aristath/planner/internal/plan"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TaskID() string
}

// Topic constants
const (
	TopicTask = "task"
	TopicPlan = "plan"
)

// Event type constants
const (
	EventTypeTaskStarted       = "task.started"
	EventTypeTaskOutput        = "task.output"
	EventTypeTaskReviewed      = "task.reviewed"
	EventTypeTaskCompleted     = "task.completed"
	EventTypeTaskFailed        = "task.failed"
	EventTypePlanProgress      = "plan.progress"
	EventTypePlanStatusChanged = "plan.status"
)

// TaskStartedEvent is published when an attempt at a task begins.
type TaskStartedEvent struct {
	PlanID    string
	ID        string
	Title     string
	Attempt   int
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskID() string    { return e.ID }

// TaskOutputEvent carries one line of generated output.
type TaskOutputEvent struct {
	ID        string
	Line      string
	Timestamp time.Time
}

func (e TaskOutputEvent) EventType() string { return EventTypeTaskOutput }
func (e TaskOutputEvent) TaskID() string    { return e.ID }

// TaskReviewedEvent is published after the reviewer judged an attempt.
type TaskReviewedEvent struct {
	ID        string
	Attempt   int
	Approved  bool
	Score     int
	Issues    []string
	Timestamp time.Time
}

func (e TaskReviewedEvent) EventType() string { return EventTypeTaskReviewed }
func (e TaskReviewedEvent) TaskID() string    { return e.ID }

// TaskCompletedEvent is published when a task ends as completed or accepted.
type TaskCompletedEvent struct {
	ID        string
	Status    plan.TaskStatus
	Attempts  int
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) TaskID() string    { return e.ID }

// TaskFailedEvent is published when a task is given up on.
type TaskFailedEvent struct {
	ID        string
	Err       error
	Attempts  int
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) TaskID() string    { return e.ID }

// PlanProgressEvent is a snapshot of task counts.
type PlanProgressEvent struct {
	PlanID    string
	Total     int
	Completed int
	Accepted  int
	Running   int
	Failed    int
	Pending   int
	Timestamp time.Time
}

func (e PlanProgressEvent) EventType() string { return EventTypePlanProgress }
func (e PlanProgressEvent) TaskID() string    { return "" }

// Done returns the number of tasks that satisfy their dependents.
func (e PlanProgressEvent) Done() int { return e.Completed + e.Accepted }

// NewPlanProgress takes a snapshot of p's task counts.
func NewPlanProgress(p *plan.Plan) PlanProgressEvent {
	counts := p.Counts()
	return PlanProgressEvent{
		PlanID:    p.ID,
		Total:     len(p.Tasks),
		Completed: counts[plan.TaskCompleted],
		Accepted:  counts[plan.TaskAccepted],
		Running:   counts[plan.TaskInProgress],
		Failed:    counts[plan.TaskFailed],
		Pending:   counts[plan.TaskPending],
		Timestamp: time.Now(),
	}
}

// PlanStatusChangedEvent is published on every plan lifecycle transition.
type PlanStatusChangedEvent struct {
	PlanID    string
	From      plan.PlanStatus
	To        plan.PlanStatus
	Timestamp time.Time
}

func (e PlanStatusChangedEvent) EventType() string { return EventTypePlanStatusChanged }
func (e PlanStatusChangedEvent) TaskID() string    { return "" }
