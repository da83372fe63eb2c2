package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/aristath/planner/internal/backend"
	"github.com/aristath/planner/internal/config"
	"github.com/aristath/planner/internal/logging"
	"github.com/aristath/planner/internal/persistence"
	"github.com/aristath/planner/internal/plan"
	"github.com/aristath/planner/internal/planner"
	"github.com/aristath/planner/internal/tui"
)

// TestProcessManagerKillAllOnShutdown verifies that ProcessManager.KillAll()
// correctly terminates tracked processes during simulated shutdown.
func TestProcessManagerKillAllOnShutdown(t *testing.T) {
	pm := backend.NewProcessManager()

	cmd := exec.CommandContext(context.Background(), "sleep", "60")
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true, // Process group isolation
	}
	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start subprocess: %v", err)
	}
	pm.Track(cmd)

	if count := pm.Count(); count != 1 {
		t.Errorf("Expected 1 tracked process, got %d", count)
	}

	if err := pm.KillAll(); err != nil {
		t.Errorf("KillAll() failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected process to be killed (non-zero exit), got nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Process did not terminate after KillAll()")
	}

	pm.Untrack(cmd)
	if count := pm.Count(); count != 0 {
		t.Errorf("Expected 0 tracked processes after Untrack, got %d", count)
	}
}

// TestSignalContextCancellation verifies that signal.NotifyContext produces
// a context that cancels correctly when a signal is received.
func TestSignalContextCancellation(t *testing.T) {
	// Use SIGUSR1 as a safe test signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGUSR1)
	defer stop()

	if err := syscall.Kill(os.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatalf("Failed to send SIGUSR1: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(1 * time.Second):
		t.Fatal("Context did not cancel after SIGUSR1")
	}

	if err := ctx.Err(); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

// scriptedPrompter answers editor prompts from fixed queues.
type scriptedPrompter struct {
	actions []tui.Action
	confirm bool
}

func (s *scriptedPrompter) Action(p *plan.Plan) (tui.Action, error) {
	if len(s.actions) == 0 {
		return tui.ActionCancel, nil
	}
	a := s.actions[0]
	s.actions = s.actions[1:]
	return a, nil
}

func (s *scriptedPrompter) SelectTask(p *plan.Plan, title string) (int, error) {
	return 0, nil
}

func (s *scriptedPrompter) TaskForm(p *plan.Plan, existing *plan.Task) (planner.TaskPatch, error) {
	return planner.TaskPatch{}, errors.New("not scripted")
}

func (s *scriptedPrompter) Confirm(title string) (bool, error) {
	return s.confirm, nil
}

// recordingGenerator replies with a fixed text and keeps the prompts it saw.
type recordingGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (g *recordingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	return g.reply, g.err
}

const generatedPlan = `Here is the plan:
{"title": "Login", "description": "Add login", "tasks": [
  {"id": "form", "title": "Login form", "description": "HTML form", "dependencies": ["api"], "priority": "medium"},
  {"id": "api", "title": "Login API", "description": "POST /login", "files": ["api/login.go"], "priority": "high"}
]}`

func newTestApp(t *testing.T) *app {
	t.Helper()
	store, err := persistence.NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	a := newApp(backend.NewProcessManager(), &bytes.Buffer{})
	a.cfg = config.DefaultConfig()
	a.logger = logging.Nop()
	a.store = store
	a.prompter = &scriptedPrompter{}
	a.generators = map[string]planner.Generator{}
	return a
}

// runCLI executes one command line and returns what it printed.
func runCLI(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a.out = &out
	err := a.execute(context.Background(), args)
	return out.String(), err
}

func storedPlans(t *testing.T, a *app) []persistence.PlanSummary {
	t.Helper()
	plans, err := a.store.ListPlans(context.Background())
	if err != nil {
		t.Fatalf("ListPlans failed: %v", err)
	}
	return plans
}

func TestNewApprovesGeneratedPlan(t *testing.T) {
	a := newTestApp(t)
	a.generators[config.AgentPlanner] = &recordingGenerator{reply: generatedPlan}

	out, err := runCLI(t, a, "new", "--no-context", "--yes", "Add", "login")
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	if !strings.Contains(out, "approved with 2 tasks") {
		t.Errorf("unexpected output:\n%s", out)
	}

	plans := storedPlans(t, a)
	if len(plans) != 1 || plans[0].Status != plan.PlanApproved || plans[0].Title != "Login" {
		t.Fatalf("stored plans = %+v", plans)
	}
}

func TestNewSendsCodebaseSummaryAndReviews(t *testing.T) {
	a := newTestApp(t)
	gen := &recordingGenerator{reply: generatedPlan}
	a.generators[config.AgentPlanner] = gen
	a.prompter = &scriptedPrompter{actions: []tui.Action{tui.ActionApprove}}

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, a, "new", "--root", root, "Add login")
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	if len(gen.prompts) != 1 {
		t.Fatalf("expected one planning call, got %d", len(gen.prompts))
	}
	if !strings.Contains(gen.prompts[0], "### main.go") || !strings.Contains(gen.prompts[0], "Add login") {
		t.Errorf("prompt missing requirement or codebase summary:\n%s", gen.prompts[0])
	}
	if !strings.Contains(out, "Run it with: planner run") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if plans := storedPlans(t, a); plans[0].Status != plan.PlanApproved {
		t.Errorf("plan status = %s, want approved", plans[0].Status)
	}
}

func TestNewFallsBackWhenGenerationFails(t *testing.T) {
	a := newTestApp(t)
	a.generators[config.AgentPlanner] = &recordingGenerator{err: errors.New("provider down")}

	out, err := runCLI(t, a, "new", "--no-context", "Add login")
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	if !strings.Contains(out, "single task") || !strings.Contains(out, "saved as draft") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "Warnings (") || !strings.Contains(out, "plan generation failed") || !strings.Contains(out, "provider down") {
		t.Errorf("log summary missing from output:\n%s", out)
	}

	plans := storedPlans(t, a)
	if len(plans) != 1 || plans[0].Tasks != 1 || plans[0].Status != plan.PlanDraft {
		t.Fatalf("stored plans = %+v", plans)
	}
}

func writePlanFile(t *testing.T, status plan.PlanStatus) string {
	t.Helper()
	p := plan.New("Login", "Add login")
	p.ID = "plan-login"
	p.Status = status
	p.Tasks = []*plan.Task{
		{ID: "form", Title: "Login form", Description: "HTML form", Dependencies: []string{"api"}, Status: plan.TaskPending, Priority: plan.PriorityMedium, EstimatedTime: "30 minutes"},
		{ID: "api", Title: "Login API", Description: "POST /login", Files: []string{"api/login.go"}, Status: plan.TaskPending, Priority: plan.PriorityHigh, EstimatedTime: "1 hour"},
	}
	data, err := plan.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "plan.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestImportExportAndViews(t *testing.T) {
	a := newTestApp(t)

	out, err := runCLI(t, a, "import", writePlanFile(t, plan.PlanDraft))
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if !strings.Contains(out, "Imported plan plan-login (draft, 2 tasks)") {
		t.Errorf("unexpected import output:\n%s", out)
	}

	exported := filepath.Join(t.TempDir(), "out.json")
	if _, err := runCLI(t, a, "export", "plan-login", "-o", exported); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	data, err := os.ReadFile(exported)
	if err != nil {
		t.Fatal(err)
	}
	back, err := plan.Unmarshal(data)
	if err != nil {
		t.Fatalf("exported document is not a plan: %v", err)
	}
	if back.ID != "plan-login" || len(back.Tasks) != 2 || back.Tasks[0].Dependencies[0] != "api" {
		t.Errorf("exported plan mismatch: %+v", back)
	}

	checks := []struct {
		args []string
		want []string
	}{
		{[]string{"export", "plan-login", "--format", "yaml"}, []string{"title: Login", "estimatedTime: 1 hour"}},
		{[]string{"list"}, []string{"plan-login", "Login", "draft", "0/2"}},
		{[]string{"show", "plan-login"}, []string{"Login form", "after:", "api"}},
		{[]string{"handoff", "plan-login"}, []string{"# Login", "Login API", "Login form"}},
	}
	for _, c := range checks {
		out, err := runCLI(t, a, c.args...)
		if err != nil {
			t.Errorf("%v failed: %v", c.args, err)
			continue
		}
		for _, want := range c.want {
			if !strings.Contains(out, want) {
				t.Errorf("%v output missing %q:\n%s", c.args, want, out)
			}
		}
	}

	if _, err := runCLI(t, a, "export", "plan-login", "--format", "toml"); err == nil {
		t.Error("expected error for unknown export format")
	}
}

func TestImportRejectsInvalidDocument(t *testing.T) {
	a := newTestApp(t)
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`["not", "a", "plan"]`), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := runCLI(t, a, "import", path)
	if !errors.Is(err, plan.ErrInvalidDocument) {
		t.Errorf("expected ErrInvalidDocument, got %v", err)
	}
	if len(storedPlans(t, a)) != 0 {
		t.Error("invalid document must not be stored")
	}
}

func TestRunExecutesApprovedPlan(t *testing.T) {
	a := newTestApp(t)
	a.cfg.Execution.OutputDir = t.TempDir()
	a.generators[config.AgentCoder] = &recordingGenerator{reply: "func Login() {}"}
	a.generators[config.AgentReviewer] = &recordingGenerator{reply: `{"approved": true, "score": 95, "issues": []}`}

	if _, err := runCLI(t, a, "import", writePlanFile(t, plan.PlanApproved)); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	out, err := runCLI(t, a, "run", "--no-tui", "plan-login")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Plan plan-login completed.") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if strings.Index(out, "Login API (attempt 1)") > strings.Index(out, "Login form (attempt 1)") {
		t.Errorf("dependency ran after its dependent:\n%s", out)
	}

	if _, err := os.Stat(filepath.Join(a.cfg.Execution.OutputDir, "api.md")); err != nil {
		t.Errorf("task output not written: %v", err)
	}

	out, err = runCLI(t, a, "history", "plan-login", "api")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, "approved") || !strings.Contains(out, "95") {
		t.Errorf("unexpected history:\n%s", out)
	}
}

func TestRunReportsAcceptedReviewFailure(t *testing.T) {
	a := newTestApp(t)
	a.cfg.Execution.OutputDir = t.TempDir()
	a.cfg.Execution.MaxAttempts = 1
	a.cfg.Execution.AcceptOnReviewFailure = true
	a.generators[config.AgentCoder] = &recordingGenerator{reply: "func Login() {}"}
	a.generators[config.AgentReviewer] = &recordingGenerator{reply: `{"approved": false, "score": 30, "issues": ["no tests"]}`}

	if _, err := runCLI(t, a, "import", writePlanFile(t, plan.PlanApproved)); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	out, err := runCLI(t, a, "run", "--no-tui", "plan-login")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Warnings (2):") {
		t.Errorf("expected one warning per accepted task:\n%s", out)
	}
	for _, id := range []string{"task=api", "task=form"} {
		found := false
		for _, line := range strings.Split(out, "\n") {
			if strings.Contains(line, "accepting task despite failed review") && strings.Contains(line, id) {
				found = true
			}
		}
		if !found {
			t.Errorf("warning for %s missing:\n%s", id, out)
		}
	}
}

func TestRunCleanHasNoWarnings(t *testing.T) {
	a := newTestApp(t)
	a.cfg.Execution.OutputDir = t.TempDir()
	a.generators[config.AgentCoder] = &recordingGenerator{reply: "func Login() {}"}
	a.generators[config.AgentReviewer] = &recordingGenerator{reply: `{"approved": true, "score": 95, "issues": []}`}

	if _, err := runCLI(t, a, "import", writePlanFile(t, plan.PlanApproved)); err != nil {
		t.Fatalf("import failed: %v", err)
	}
	out, err := runCLI(t, a, "run", "--no-tui", "plan-login")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	if strings.Contains(out, "Warnings (") {
		t.Errorf("clean run printed warnings:\n%s", out)
	}
}

func TestRunRequiresApproval(t *testing.T) {
	a := newTestApp(t)
	if _, err := runCLI(t, a, "import", writePlanFile(t, plan.PlanDraft)); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	_, err := runCLI(t, a, "run", "--no-tui", "plan-login")
	if err == nil || !strings.Contains(err.Error(), "approve it") {
		t.Errorf("expected approval error, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	a := newTestApp(t)
	if _, err := runCLI(t, a, "import", writePlanFile(t, plan.PlanDraft)); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	// Declined confirmation keeps the plan
	if _, err := runCLI(t, a, "delete", "plan-login"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if len(storedPlans(t, a)) != 1 {
		t.Fatal("plan deleted without confirmation")
	}

	if _, err := runCLI(t, a, "delete", "--yes", "plan-login"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if len(storedPlans(t, a)) != 0 {
		t.Error("plan still stored after delete")
	}

	_, err := runCLI(t, a, "delete", "--yes", "plan-login")
	if err == nil || !strings.Contains(err.Error(), "no plan with id") {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestGeneratorFromConfig(t *testing.T) {
	a := newTestApp(t)
	a.breakers = nil
	if _, err := runCLI(t, a, "list"); err != nil {
		t.Fatalf("list failed: %v", err)
	}

	gen, err := a.generator(config.AgentCoder)
	if err != nil {
		t.Fatalf("generator failed: %v", err)
	}
	if gen == nil {
		t.Fatal("nil generator")
	}
	if len(a.closers) != 1 {
		t.Errorf("client not registered for cleanup")
	}
	if err := a.teardown(); err != nil {
		t.Errorf("teardown failed: %v", err)
	}

	a.cfg.Agents[config.AgentCoder] = config.AgentConfig{Provider: "gemini"}
	if _, err := a.generator(config.AgentCoder); err == nil {
		t.Error("expected error for unknown provider")
	}
}
