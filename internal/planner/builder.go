package planner

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/aristath/planner/internal/logging"
	"github.com/aristath/planner/internal/plan"
	"github.com/aristath/planner/internal/scheduler"
)

// Defaults applied to generated tasks and plans.
const (
	DefaultPlanTitle        = "Implementation Plan"
	DefaultEstimatedTime    = "30 minutes"
	FallbackTaskTitle       = "Implement requirements"
	FallbackEstimatedTime   = "60 minutes"
	fallbackTaskDescription = "Implement the requested changes."
	taskIDPrefix            = "task"
	planIDPrefix            = "plan"
)

// BuildReport describes what the builder had to repair or could not repair.
type BuildReport struct {
	Fallback       bool     // true when the single-task fallback plan was used
	FallbackReason error    // why the payload was unusable
	Warnings       []string // per-task validation and graph warnings
	Graph          scheduler.Report
}

// Builder turns generated payloads and stored documents into well-formed plans.
type Builder struct {
	logger *logging.Logger
}

// NewBuilder creates a Builder that reports warnings through logger.
func NewBuilder(logger *logging.Logger) *Builder {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Builder{logger: logger.With("component", "builder")}
}

// Build interprets generated text as a plan payload. It never fails: when the
// text cannot be interpreted, or yields no usable task, the fallback plan is
// returned instead.
func (b *Builder) Build(text, requirement string) (*plan.Plan, BuildReport) {
	payload, err := ParsePayload(text)
	if err != nil {
		return b.Fallback(requirement, "", err)
	}
	return b.BuildPayload(payload, requirement)
}

// BuildPayload builds a plan from an already coerced payload.
func (b *Builder) BuildPayload(payload RawPayload, requirement string) (*plan.Plan, BuildReport) {
	title := payload.Title
	if title == "" {
		title = DefaultPlanTitle
	}
	description := payload.Description
	if description == "" {
		description = requirement
	}

	p := plan.New(title, description)
	used := make(map[string]bool)
	var defaulted []string

	for i, raw := range payload.Tasks {
		if raw.Kind == RawOther {
			b.logger.Warn("skipping task entry that is neither an object nor a string", "index", i)
			continue
		}

		id := raw.ID
		if !plausibleID(id) || used[id] {
			id = plan.GenerateID(taskIDPrefix)
		}
		used[id] = true

		t, notes := newTask(id, TaskPatch{
			Title:         optional(raw.Title),
			Description:   optional(raw.Description),
			Files:         raw.Files,
			Dependencies:  raw.Dependencies,
			EstimatedTime: optional(raw.EstimatedTime),
			Priority:      optionalPriority(raw.Priority),
		})
		p.Tasks = append(p.Tasks, t)
		defaulted = append(defaulted, taskNotes(t, notes)...)
	}

	if len(p.Tasks) == 0 {
		return b.Fallback(requirement, payload.Title, fmt.Errorf("%w: payload contains no tasks", ErrMalformedPayload))
	}

	report := BuildReport{}
	b.note(p, &report, defaulted)
	b.validate(p, &report)
	b.logger.Info("plan built", "plan_id", p.ID, "tasks", len(p.Tasks), "warnings", len(report.Warnings))
	return p, report
}

// Fallback builds the single-task plan used when a payload is unusable.
// title may be empty, in which case the default title is used.
func (b *Builder) Fallback(requirement, title string, reason error) (*plan.Plan, BuildReport) {
	if title == "" {
		title = DefaultPlanTitle
	}
	description := strings.TrimSpace(requirement)
	if description == "" {
		description = fallbackTaskDescription
	}

	p := plan.New(title, requirement)
	p.Tasks = append(p.Tasks, &plan.Task{
		ID:            plan.GenerateID(taskIDPrefix),
		Title:         FallbackTaskTitle,
		Description:   description,
		Files:         []string{},
		Dependencies:  []string{},
		Status:        plan.TaskPending,
		EstimatedTime: FallbackEstimatedTime,
		Priority:      plan.PriorityHigh,
	})

	b.logger.Warn("using fallback plan", "plan_id", p.ID, "reason", errString(reason))
	return p, BuildReport{
		Fallback:       true,
		FallbackReason: reason,
		Warnings:       []string{"generated plan was unusable: " + errString(reason)},
	}
}

// Import restores a plan from its canonical JSON document. Unlike Build it
// fails hard on unreadable input, since there is nothing sensible to fall
// back to. Ids, statuses and dependency edges are preserved; missing values
// are defaulted as in Build and Updated is refreshed.
func (b *Builder) Import(data []byte) (*plan.Plan, BuildReport, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, BuildReport{}, fmt.Errorf("%w: expected a JSON object", plan.ErrInvalidDocument)
	}

	p, err := plan.Unmarshal(trimmed)
	if err != nil {
		return nil, BuildReport{}, err
	}

	if p.ID == "" {
		p.ID = plan.GenerateID(planIDPrefix)
	}
	if p.Title == "" {
		p.Title = DefaultPlanTitle
	}
	if !p.Status.Valid() {
		b.logger.Warn("unknown plan status, resetting to draft", "plan_id", p.ID, "status", p.Status)
		p.Status = plan.PlanDraft
	}
	if p.Created.IsZero() {
		p.Created = plan.Now()
	}

	tasks := make([]*plan.Task, 0, len(p.Tasks))
	used := make(map[string]bool)
	var defaulted []string
	for _, t := range p.Tasks {
		if t == nil {
			continue
		}
		if !plausibleID(t.ID) || used[t.ID] {
			t.ID = plan.GenerateID(taskIDPrefix)
		}
		used[t.ID] = true

		if !t.Status.Valid() {
			t.Status = plan.TaskPending
		}
		defaulted = append(defaulted, taskNotes(t, applyDefaults(t))...)
		tasks = append(tasks, t)
	}
	p.Tasks = tasks
	p.Touch()

	report := BuildReport{}
	b.note(p, &report, defaulted)
	b.validate(p, &report)
	return p, report, nil
}

// note adds warnings about values that defaulting had to replace.
func (b *Builder) note(p *plan.Plan, report *BuildReport, warnings []string) {
	for _, w := range warnings {
		report.Warnings = append(report.Warnings, w)
		b.logger.Warn("task value replaced", "plan_id", p.ID, "note", w)
	}
}

func taskNotes(t *plan.Task, notes []string) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = fmt.Sprintf("task %s: %s", t.ID, n)
	}
	return out
}

// validate runs per-task checks and the graph validator, logging every
// finding as a warning. Nothing here rejects the plan.
func (b *Builder) validate(p *plan.Plan, report *BuildReport) {
	for _, t := range p.Tasks {
		for _, problem := range ValidateTask(t) {
			msg := fmt.Sprintf("task %s: %s", t.ID, problem)
			report.Warnings = append(report.Warnings, msg)
			b.logger.Warn("task validation failed", "plan_id", p.ID, "task_id", t.ID, "problem", problem)
		}
	}

	report.Graph = scheduler.Analyze(p.Tasks)
	for _, w := range report.Graph.Warnings() {
		report.Warnings = append(report.Warnings, w)
		b.logger.Warn("dependency graph defect", "plan_id", p.ID, "defect", w)
	}
}

// ValidateTask returns the structural problems of a single task.
func ValidateTask(t *plan.Task) []string {
	var problems []string
	if strings.TrimSpace(t.Title) == "" {
		problems = append(problems, "title is required")
	}
	if strings.TrimSpace(t.Description) == "" {
		problems = append(problems, "description is required")
	}
	if !t.Priority.Valid() {
		problems = append(problems, fmt.Sprintf("priority %q is not one of low, medium, high", t.Priority))
	}
	if strings.TrimSpace(t.EstimatedTime) == "" {
		problems = append(problems, "estimated time is required")
	}
	if t.DependsOn(t.ID) {
		problems = append(problems, "task depends on itself")
	}
	return problems
}

// newTask builds a pending task from patch fields, applying defaults. The
// notes describe values that had to be replaced.
func newTask(id string, fields TaskPatch) (*plan.Task, []string) {
	t := &plan.Task{ID: id, Status: plan.TaskPending}
	fields.apply(t)
	return t, applyDefaults(t)
}

// applyDefaults fills missing optional fields and clamps priority. A missing
// priority silently becomes medium; an unrecognised one is reported.
func applyDefaults(t *plan.Task) []string {
	var notes []string
	if t.Files == nil {
		t.Files = []string{}
	}
	if t.Dependencies == nil {
		t.Dependencies = []string{}
	}
	if strings.TrimSpace(t.EstimatedTime) == "" {
		t.EstimatedTime = DefaultEstimatedTime
	}
	priority, ok := plan.ParsePriority(string(t.Priority))
	if !ok && t.Priority != "" {
		notes = append(notes, fmt.Sprintf("priority %q clamped to %s", t.Priority, priority))
	}
	t.Priority = priority
	return notes
}

// plausibleID accepts a provided id if it is non-empty and has no whitespace.
func plausibleID(id string) bool {
	return id != "" && !strings.ContainsAny(id, " \t\r\n")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalPriority(s string) *plan.Priority {
	if s == "" {
		return nil
	}
	p := plan.Priority(s)
	return &p
}

func errString(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}
