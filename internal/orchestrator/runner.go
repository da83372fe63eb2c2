package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aristath/planner/internal/events"
	"github.com/aristath/planner/internal/logging"
	"github.com/aristath/planner/internal/persistence"
	"github.com/aristath/planner/internal/plan"
	"github.com/aristath/planner/internal/planner"
	"github.com/aristath/planner/internal/scheduler"
)

// ErrTaskFailed is returned by Run when a task exhausted its attempts and
// execution halted.
var ErrTaskFailed = errors.New("task failed")

// ErrBlocked is returned by Run when pending tasks remain that can never
// become executable.
var ErrBlocked = errors.New("tasks blocked by unmet dependencies")

// TaskResult represents the outcome of a task execution.
type TaskResult struct {
	TaskID   string
	Status   plan.TaskStatus
	Attempts int
	Code     string
	Error    error
}

// RunnerConfig configures the runner.
type RunnerConfig struct {
	Coder                 planner.Generator // Produces code for a task
	Reviewer              planner.Generator // Judges the coder's output
	Store                 persistence.Store // Optional; nil disables persistence
	Bus                   *events.EventBus  // Optional; nil disables events
	Logger                *logging.Logger
	MaxAttempts           int  // Generate/review rounds per task (default 3)
	AcceptOnReviewFailure bool // Keep the last attempt instead of failing the plan
	ReviewThreshold       int  // Minimum score for an approval to count
	OutputDir             string
}

// Runner executes an approved plan one task at a time, in dependency order.
type Runner struct {
	config RunnerConfig
	logger *logging.Logger
}

// NewRunner creates a new runner.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	return &Runner{config: cfg, logger: cfg.Logger.With("component", "runner")}
}

// Run drives p from approved to completed or failed. The plan is mutated in
// place and saved after every task. Graph defects are logged, not fatal: a
// task with a dangling dependency simply never becomes executable.
func (r *Runner) Run(ctx context.Context, p *plan.Plan) ([]TaskResult, error) {
	if _, err := scheduler.Verify(p.Tasks); err != nil {
		r.logger.Warn("plan graph is not a clean DAG", "plan", p.ID, "error", err)
	}

	if err := r.transition(ctx, p, p.BeginExecution); err != nil {
		return nil, err
	}
	r.logger.Info("executing plan", "plan", p.ID, "tasks", len(p.Tasks))

	var results []TaskResult
	for {
		if err := ctx.Err(); err != nil {
			r.halt(ctx, p)
			return results, err
		}

		next := r.next(p)
		if next == nil {
			break
		}

		result := r.executeTask(ctx, p, next)
		results = append(results, result)
		r.save(ctx, p)
		r.publish(events.TopicPlan, events.NewPlanProgress(p))

		if result.Status == plan.TaskFailed {
			r.halt(ctx, p)
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			return results, fmt.Errorf("%w: %s: %w", ErrTaskFailed, next.ID, result.Error)
		}
	}

	if !p.AllDone() {
		r.halt(ctx, p)
		return results, fmt.Errorf("%w: %d of %d tasks finished", ErrBlocked, events.NewPlanProgress(p).Done(), len(p.Tasks))
	}

	if err := r.transition(ctx, p, p.Complete); err != nil {
		return results, err
	}
	r.logger.Info("plan completed", "plan", p.ID)
	return results, nil
}

// next picks the first executable task in topological order.
func (r *Runner) next(p *plan.Plan) *plan.Task {
	ready := make(map[string]bool)
	for _, t := range scheduler.ExecutableTasks(p) {
		ready[t.ID] = true
	}
	if len(ready) == 0 {
		return nil
	}
	for _, t := range scheduler.TopologicalOrder(p.Tasks) {
		if ready[t.ID] {
			return t
		}
	}
	return nil
}

// executeTask runs generate/review rounds until the reviewer approves or the
// attempt budget is spent.
func (r *Runner) executeTask(ctx context.Context, p *plan.Plan, t *plan.Task) TaskResult {
	start := time.Now()
	result := TaskResult{TaskID: t.ID}

	if err := p.StartTask(t.ID); err != nil {
		result.Status = t.Status
		result.Error = err
		return result
	}
	r.updateStatus(ctx, p, t)

	var feedback []string
	var lastCode string
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		result.Attempts = attempt
		r.publish(events.TopicTask, events.TaskStartedEvent{PlanID: p.ID, ID: t.ID, Title: t.Title, Attempt: attempt, Timestamp: time.Now()})
		r.logger.Info("generating task", "task", t.ID, "attempt", attempt)

		record := persistence.Attempt{PlanID: p.ID, TaskID: t.ID, Number: attempt}

		code, err := r.config.Coder.Generate(ctx, CodingPrompt(p, t, lastCode, feedback))
		if err != nil {
			lastErr = fmt.Errorf("generating code: %w", err)
			record.Error = lastErr.Error()
			r.saveAttempt(ctx, record)
			r.logger.Warn("code generation failed", "task", t.ID, "attempt", attempt, "error", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		lastCode = code
		record.Code = code
		r.publishOutput(t.ID, code)

		review, err := r.review(ctx, t, code)
		if err != nil {
			lastErr = fmt.Errorf("reviewing code: %w", err)
			record.Error = lastErr.Error()
			r.saveAttempt(ctx, record)
			r.logger.Warn("review failed", "task", t.ID, "attempt", attempt, "error", err)
			if ctx.Err() != nil {
				break
			}
			feedback = nil
			continue
		}

		approved := review.Approved && review.Score >= r.config.ReviewThreshold
		record.Approved = approved
		record.Score = review.Score
		record.Issues = review.Issues
		r.saveAttempt(ctx, record)
		r.publish(events.TopicTask, events.TaskReviewedEvent{ID: t.ID, Attempt: attempt, Approved: approved, Score: review.Score, Issues: review.Issues, Timestamp: time.Now()})

		if approved {
			_ = p.CompleteTask(t.ID, code)
			return r.finish(ctx, p, t, result, start)
		}

		lastErr = fmt.Errorf("review rejected attempt %d (score %d)", attempt, review.Score)
		feedback = review.Issues
		if len(feedback) == 0 {
			feedback = []string{fmt.Sprintf("score %d is below the required %d", review.Score, r.config.ReviewThreshold)}
		}
		r.logger.Info("review rejected task", "task", t.ID, "attempt", attempt, "score", review.Score, "issues", len(review.Issues))
	}

	if r.config.AcceptOnReviewFailure && lastCode != "" && ctx.Err() == nil {
		r.logger.Warn("accepting task despite failed review", "task", t.ID, "attempts", result.Attempts)
		_ = p.AcceptTask(t.ID, lastCode)
		return r.finish(ctx, p, t, result, start)
	}

	_ = p.FailTask(t.ID)
	r.updateStatus(ctx, p, t)
	result.Status = plan.TaskFailed
	result.Error = lastErr
	if ctx.Err() != nil {
		result.Error = ctx.Err()
	}
	r.logger.Error("task failed", "task", t.ID, "attempts", result.Attempts, "error", result.Error)
	r.publish(events.TopicTask, events.TaskFailedEvent{ID: t.ID, Err: result.Error, Attempts: result.Attempts, Duration: time.Since(start), Timestamp: time.Now()})
	return result
}

// finish records a completed or accepted task.
func (r *Runner) finish(ctx context.Context, p *plan.Plan, t *plan.Task, result TaskResult, start time.Time) TaskResult {
	result.Status = t.Status
	result.Code = t.Code
	r.updateStatus(ctx, p, t)

	if r.config.OutputDir != "" {
		if err := writeTaskOutput(r.config.OutputDir, t); err != nil {
			r.logger.Warn("failed to write task output", "task", t.ID, "error", err)
		}
	}

	r.logger.Info("task finished", "task", t.ID, "status", string(t.Status), "attempts", result.Attempts)
	r.publish(events.TopicTask, events.TaskCompletedEvent{ID: t.ID, Status: t.Status, Attempts: result.Attempts, Duration: time.Since(start), Timestamp: time.Now()})
	return result
}

// Review is the reviewer's verdict on one attempt.
type Review struct {
	Approved bool
	Score    int
	Issues   []string
}

func (r *Runner) review(ctx context.Context, t *plan.Task, code string) (Review, error) {
	text, err := r.config.Reviewer.Generate(ctx, ReviewPrompt(t, code))
	if err != nil {
		return Review{}, err
	}
	return ParseReview(text), nil
}

// ParseReview reads a {"approved", "score", "issues"} verdict from free text.
// Unparseable text counts as a rejection. A missing score follows the
// approval: 100 when approved, 0 otherwise.
func ParseReview(text string) Review {
	raw, err := planner.ExtractJSONObject(text)
	if err != nil {
		return Review{Issues: []string{"reviewer did not return a JSON verdict"}}
	}

	var verdict struct {
		Approved bool     `json:"approved"`
		Score    *int     `json:"score"`
		Issues   []string `json:"issues"`
	}
	if err := json.Unmarshal(raw, &verdict); err != nil {
		return Review{Issues: []string{"reviewer returned a malformed verdict: " + err.Error()}}
	}

	review := Review{Approved: verdict.Approved, Issues: verdict.Issues}
	switch {
	case verdict.Score != nil:
		review.Score = min(max(*verdict.Score, 0), 100)
	case verdict.Approved:
		review.Score = 100
	}
	return review
}

// CodingPrompt asks the coder for one task. A previous attempt and the
// reviewer's issues are included on retries.
func CodingPrompt(p *plan.Plan, t *plan.Task, previous string, issues []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are implementing one task of the plan %q.\n\n", p.Title)
	fmt.Fprintf(&b, "Task: %s\n%s\n", t.Title, t.Description)
	if len(t.Files) > 0 {
		fmt.Fprintf(&b, "\nFiles: %s\n", strings.Join(t.Files, ", "))
	}

	var deps []string
	for _, id := range t.Dependencies {
		if dep, ok := p.TaskByID(id); ok && dep.Status.Done() {
			deps = append(deps, dep.Title)
		}
	}
	if len(deps) > 0 {
		fmt.Fprintf(&b, "\nAlready implemented: %s\n", strings.Join(deps, "; "))
	}

	if previous != "" && len(issues) > 0 {
		fmt.Fprintf(&b, "\nYour previous attempt:\n%s\n\nThe reviewer found these issues:\n", previous)
		for _, issue := range issues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
		b.WriteString("\nAddress every issue.\n")
	}

	b.WriteString("\nReply with the code only.")
	return b.String()
}

// ReviewPrompt asks the reviewer for a JSON verdict on code.
func ReviewPrompt(t *plan.Task, code string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Review this implementation of the task %q.\n%s\n\n", t.Title, t.Description)
	fmt.Fprintf(&b, "Code:\n%s\n\n", code)
	b.WriteString(`Respond with a JSON object only: {"approved": true|false, "score": 0-100, "issues": ["..."]}`)
	return b.String()
}

func writeTaskOutput(dir string, t *plan.Task) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	content := fmt.Sprintf("# %s\n\nStatus: %s\n\n%s\n", t.Title, t.Status, strings.TrimRight(t.Code, "\n"))
	return os.WriteFile(filepath.Join(dir, t.ID+".md"), []byte(content), 0644)
}

// transition applies a plan lifecycle change, persists it and announces it.
func (r *Runner) transition(ctx context.Context, p *plan.Plan, fn func() error) error {
	from := p.Status
	if err := fn(); err != nil {
		return err
	}
	r.save(ctx, p)
	r.publish(events.TopicPlan, events.PlanStatusChangedEvent{PlanID: p.ID, From: from, To: p.Status, Timestamp: time.Now()})
	return nil
}

// halt fails the plan. Persistence outlives a cancelled run context.
func (r *Runner) halt(ctx context.Context, p *plan.Plan) {
	ctx = context.WithoutCancel(ctx)
	for _, t := range p.Tasks {
		if t.Status == plan.TaskInProgress {
			_ = p.FailTask(t.ID)
		}
	}
	if err := r.transition(ctx, p, p.Fail); err != nil {
		r.logger.Error("failed to mark plan failed", "plan", p.ID, "error", err)
		return
	}
	r.logger.Warn("plan failed", "plan", p.ID)
}

func (r *Runner) publish(topic string, e events.Event) {
	if r.config.Bus != nil {
		r.config.Bus.Publish(topic, e)
	}
}

func (r *Runner) publishOutput(taskID, code string) {
	if r.config.Bus == nil {
		return
	}
	for _, line := range strings.Split(strings.TrimRight(code, "\n"), "\n") {
		r.config.Bus.Publish(events.TopicTask, events.TaskOutputEvent{ID: taskID, Line: line, Timestamp: time.Now()})
	}
}

func (r *Runner) save(ctx context.Context, p *plan.Plan) {
	if r.config.Store == nil {
		return
	}
	if err := r.config.Store.SavePlan(context.WithoutCancel(ctx), p); err != nil {
		r.logger.Error("failed to save plan", "plan", p.ID, "error", err)
	}
}

func (r *Runner) updateStatus(ctx context.Context, p *plan.Plan, t *plan.Task) {
	if r.config.Store == nil {
		return
	}
	if err := r.config.Store.UpdateTaskStatus(context.WithoutCancel(ctx), p.ID, t.ID, t.Status, t.Code); err != nil {
		r.logger.Error("failed to record task status", "task", t.ID, "error", err)
	}
}

func (r *Runner) saveAttempt(ctx context.Context, a persistence.Attempt) {
	if r.config.Store == nil {
		return
	}
	if err := r.config.Store.SaveAttempt(context.WithoutCancel(ctx), a); err != nil {
		r.logger.Error("failed to record attempt", "task", a.TaskID, "attempt", a.Number, "error", err)
	}
}
