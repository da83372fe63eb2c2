package plan

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskNotFound is returned when a transition names an unknown task id.
	ErrTaskNotFound = errors.New("task not found")
	// ErrInvalidTransition is returned for a status change the state machine does not define.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// taskTransitions lists the allowed target states per source state.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskPending:    {TaskInProgress},
	TaskInProgress: {TaskCompleted, TaskFailed, TaskAccepted},
	TaskFailed:     {TaskPending},
}

var planTransitions = map[PlanStatus][]PlanStatus{
	PlanDraft:     {PlanApproved},
	PlanApproved:  {PlanExecuting, PlanDraft},
	PlanExecuting: {PlanCompleted, PlanFailed},
}

// CanTransitionTask reports whether from -> to is a defined task transition.
func CanTransitionTask(from, to TaskStatus) bool {
	for _, s := range taskTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanTransitionPlan reports whether from -> to is a defined plan transition.
func CanTransitionPlan(from, to PlanStatus) bool {
	for _, s := range planTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// SetTaskStatus moves the task with the given id to status to.
// The plan is left untouched when the id is unknown or the transition is not defined.
func (p *Plan) SetTaskStatus(taskID string, to TaskStatus) error {
	task, ok := p.TaskByID(taskID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if !CanTransitionTask(task.Status, to) {
		return fmt.Errorf("%w: task %s %s -> %s", ErrInvalidTransition, taskID, task.Status, to)
	}
	task.Status = to
	p.Touch()
	return nil
}

// StartTask marks a pending task in-progress.
func (p *Plan) StartTask(taskID string) error {
	return p.SetTaskStatus(taskID, TaskInProgress)
}

// CompleteTask marks an in-progress task completed and attaches its code.
func (p *Plan) CompleteTask(taskID, code string) error {
	if err := p.SetTaskStatus(taskID, TaskCompleted); err != nil {
		return err
	}
	task, _ := p.TaskByID(taskID)
	task.Code = code
	return nil
}

// AcceptTask keeps an in-progress task's code even though it did not pass review.
func (p *Plan) AcceptTask(taskID, code string) error {
	if err := p.SetTaskStatus(taskID, TaskAccepted); err != nil {
		return err
	}
	task, _ := p.TaskByID(taskID)
	task.Code = code
	return nil
}

// FailTask marks an in-progress task failed.
func (p *Plan) FailTask(taskID string) error {
	return p.SetTaskStatus(taskID, TaskFailed)
}

// ResetTask moves a failed task back to pending so it can be retried.
func (p *Plan) ResetTask(taskID string) error {
	return p.SetTaskStatus(taskID, TaskPending)
}

func (p *Plan) setStatus(to PlanStatus) error {
	if !CanTransitionPlan(p.Status, to) {
		return fmt.Errorf("%w: plan %s %s -> %s", ErrInvalidTransition, p.ID, p.Status, to)
	}
	p.Status = to
	p.Touch()
	return nil
}

// Approve moves a draft plan to approved.
func (p *Plan) Approve() error {
	return p.setStatus(PlanApproved)
}

// Reopen moves an approved plan back to draft for further editing.
func (p *Plan) Reopen() error {
	return p.setStatus(PlanDraft)
}

// BeginExecution moves an approved plan to executing.
func (p *Plan) BeginExecution() error {
	return p.setStatus(PlanExecuting)
}

// AllDone reports whether every task is completed or accepted.
func (p *Plan) AllDone() bool {
	for _, t := range p.Tasks {
		if !t.Status.Done() {
			return false
		}
	}
	return true
}

// Complete marks an executing plan completed. Every task must be done.
func (p *Plan) Complete() error {
	if !p.AllDone() {
		return fmt.Errorf("%w: plan %s has unfinished tasks", ErrInvalidTransition, p.ID)
	}
	return p.setStatus(PlanCompleted)
}

// Fail marks an executing plan failed.
func (p *Plan) Fail() error {
	return p.setStatus(PlanFailed)
}
