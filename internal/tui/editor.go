package tui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/aristath/planner/internal/logging"
	"github.com/aristath/planner/internal/plan"
	"github.com/aristath/planner/internal/planner"
)

// Action is one choice of the editor menu.
type Action string

const (
	ActionApprove Action = "approve"
	ActionModify  Action = "modify"
	ActionAdd     Action = "add"
	ActionRemove  Action = "remove"
	ActionCancel  Action = "cancel"
)

// Prompter asks the user for editor input. HuhPrompter is the terminal
// implementation.
type Prompter interface {
	Action(p *plan.Plan) (Action, error)
	SelectTask(p *plan.Plan, title string) (int, error)
	TaskForm(p *plan.Plan, existing *plan.Task) (planner.TaskPatch, error)
	Confirm(title string) (bool, error)
}

// Editor runs the review loop over a draft plan: show it, take one choice,
// apply it through the mutator, repeat until approve or cancel.
type Editor struct {
	mutator  *planner.Mutator
	prompter Prompter
	out      io.Writer
	logger   *logging.Logger
}

// NewEditor creates an editor that prints the plan to out.
func NewEditor(mutator *planner.Mutator, prompter Prompter, out io.Writer, logger *logging.Logger) *Editor {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Editor{mutator: mutator, prompter: prompter, out: out, logger: logger.With("component", "editor")}
}

// Edit runs the loop on p in place. It returns true when the user approved
// the plan and false when they cancelled. An approved plan that is edited
// again goes back to draft until approved anew.
func (e *Editor) Edit(p *plan.Plan) (bool, error) {
	if !p.Mutable() {
		return false, fmt.Errorf("%w: plan %s is %s", planner.ErrPlanLocked, p.ID, p.Status)
	}

	for {
		fmt.Fprintln(e.out, RenderPlan(p))

		action, err := e.prompter.Action(p)
		if errors.Is(err, huh.ErrUserAborted) {
			action = ActionCancel
		} else if err != nil {
			return false, err
		}

		switch action {
		case ActionApprove:
			if p.Status == plan.PlanDraft {
				if err := p.Approve(); err != nil {
					return false, err
				}
			}
			e.logger.Info("plan approved", "plan_id", p.ID, "tasks", len(p.Tasks))
			return true, nil

		case ActionCancel:
			return false, nil

		case ActionModify:
			err = e.modify(p)
		case ActionAdd:
			err = e.add(p)
		case ActionRemove:
			err = e.remove(p)
		default:
			err = fmt.Errorf("unknown action %q", action)
		}

		switch {
		case err == nil:
		case errors.Is(err, huh.ErrUserAborted):
			// Back to the menu
		case errors.Is(err, planner.ErrPlanLocked):
			return false, err
		default:
			fmt.Fprintf(e.out, "%s\n\n", StyleStatusFailed.Render("Error: "+err.Error()))
		}
	}
}

func (e *Editor) modify(p *plan.Plan) error {
	if len(p.Tasks) == 0 {
		fmt.Fprintln(e.out, "No tasks to modify.")
		return nil
	}
	idx, err := e.prompter.SelectTask(p, "Which task do you want to modify?")
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(p.Tasks) {
		return fmt.Errorf("%w: %d", planner.ErrTaskIndexOutOfRange, idx+1)
	}
	patch, err := e.prompter.TaskForm(p, p.Tasks[idx])
	if err != nil {
		return err
	}
	if _, err := e.mutator.ModifyTask(p, idx, patch); err != nil {
		return err
	}
	return e.reopen(p)
}

func (e *Editor) add(p *plan.Plan) error {
	patch, err := e.prompter.TaskForm(p, nil)
	if err != nil {
		return err
	}
	if _, err := e.mutator.AddTask(p, patch); err != nil {
		return err
	}
	return e.reopen(p)
}

func (e *Editor) remove(p *plan.Plan) error {
	if len(p.Tasks) == 0 {
		fmt.Fprintln(e.out, "No tasks to remove.")
		return nil
	}
	idx, err := e.prompter.SelectTask(p, "Which task do you want to remove?")
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(p.Tasks) {
		return fmt.Errorf("%w: %d", planner.ErrTaskIndexOutOfRange, idx+1)
	}
	ok, err := e.prompter.Confirm(fmt.Sprintf("Remove %q?", p.Tasks[idx].Title))
	if err != nil || !ok {
		return err
	}
	if _, err := e.mutator.RemoveTask(p, idx); err != nil {
		return err
	}
	return e.reopen(p)
}

func (e *Editor) reopen(p *plan.Plan) error {
	if p.Status == plan.PlanApproved {
		return p.Reopen()
	}
	return nil
}

// HuhPrompter asks through huh forms on the terminal.
type HuhPrompter struct {
	Accessible bool // Plain prompts for screen readers and dumb terminals
}

func (h HuhPrompter) run(fields ...huh.Field) error {
	return huh.NewForm(huh.NewGroup(fields...)).WithAccessible(h.Accessible).Run()
}

// Action shows the editor menu.
func (h HuhPrompter) Action(p *plan.Plan) (Action, error) {
	options := []huh.Option[Action]{huh.NewOption("Approve plan", ActionApprove)}
	if len(p.Tasks) > 0 {
		options = append(options, huh.NewOption("Modify a task", ActionModify))
	}
	options = append(options, huh.NewOption("Add a task", ActionAdd))
	if len(p.Tasks) > 0 {
		options = append(options, huh.NewOption("Remove a task", ActionRemove))
	}
	options = append(options, huh.NewOption("Cancel", ActionCancel))

	action := ActionApprove
	err := h.run(huh.NewSelect[Action]().
		Title("What would you like to do?").
		Options(options...).
		Value(&action))
	return action, err
}

// SelectTask asks for one task and returns its index.
func (h HuhPrompter) SelectTask(p *plan.Plan, title string) (int, error) {
	options := make([]huh.Option[int], len(p.Tasks))
	for i, t := range p.Tasks {
		options[i] = huh.NewOption(fmt.Sprintf("%d. %s", i+1, t.Title), i)
	}

	var idx int
	err := h.run(huh.NewSelect[int]().
		Title(title).
		Options(options...).
		Value(&idx))
	return idx, err
}

// TaskForm asks for every task field, prefilled from existing when set.
func (h HuhPrompter) TaskForm(p *plan.Plan, existing *plan.Task) (planner.TaskPatch, error) {
	var (
		title       string
		description string
		files       string
		estimate    = planner.DefaultEstimatedTime
		priority    = plan.PriorityMedium
		deps        []string
		selfID      string
	)
	if existing != nil {
		title = existing.Title
		description = existing.Description
		files = strings.Join(existing.Files, ", ")
		estimate = existing.EstimatedTime
		priority = existing.Priority
		deps = append(deps, existing.Dependencies...)
		selfID = existing.ID
	}

	fields := []huh.Field{
		huh.NewInput().
			Title("Title").
			Value(&title).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("title is required")
				}
				return nil
			}),
		huh.NewText().
			Title("Description").
			Value(&description),
		huh.NewInput().
			Title("Files").
			Description("Comma separated").
			Value(&files),
		huh.NewInput().
			Title("Estimated time").
			Value(&estimate),
		huh.NewSelect[plan.Priority]().
			Title("Priority").
			Options(
				huh.NewOption("High", plan.PriorityHigh),
				huh.NewOption("Medium", plan.PriorityMedium),
				huh.NewOption("Low", plan.PriorityLow),
			).
			Value(&priority),
	}

	var depOptions []huh.Option[string]
	for _, t := range p.Tasks {
		if t.ID == selfID {
			continue
		}
		depOptions = append(depOptions, huh.NewOption(fmt.Sprintf("%s (%s)", t.Title, t.ID), t.ID))
	}
	if len(depOptions) > 0 {
		fields = append(fields, huh.NewMultiSelect[string]().
			Title("Depends on").
			Options(depOptions...).
			Value(&deps))
	}

	if err := h.run(fields...); err != nil {
		return planner.TaskPatch{}, err
	}

	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	estimate = strings.TrimSpace(estimate)
	if deps == nil {
		deps = []string{}
	}
	return planner.TaskPatch{
		Title:         &title,
		Description:   &description,
		Files:         SplitList(files),
		Dependencies:  deps,
		EstimatedTime: &estimate,
		Priority:      &priority,
	}, nil
}

// Confirm asks a yes/no question.
func (h HuhPrompter) Confirm(title string) (bool, error) {
	var ok bool
	err := h.run(huh.NewConfirm().Title(title).Value(&ok))
	return ok, err
}

// SplitList parses a comma separated list, dropping blanks. The result is
// never nil.
func SplitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
