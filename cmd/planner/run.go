package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/aristath/planner/internal/config"
	"github.com/aristath/planner/internal/events"
	"github.com/aristath/planner/internal/orchestrator"
	"github.com/aristath/planner/internal/plan"
	"github.com/aristath/planner/internal/tui"
)

func (a *app) runCmd() *cobra.Command {
	var noTUI bool

	cmd := &cobra.Command{
		Use:   "run <plan-id>",
		Short: "Execute an approved plan with the coder and reviewer agents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			p, err := a.store.GetPlan(ctx, args[0])
			if err != nil {
				return err
			}
			if p.Status != plan.PlanApproved {
				return fmt.Errorf("plan %s is %s; approve it with: planner edit %s", p.ID, p.Status, p.ID)
			}

			coder, err := a.generator(config.AgentCoder)
			if err != nil {
				return err
			}
			reviewer, err := a.generator(config.AgentReviewer)
			if err != nil {
				return err
			}

			bus := events.NewEventBus()
			defer bus.Close()

			runner := orchestrator.NewRunner(orchestrator.RunnerConfig{
				Coder:                 coder,
				Reviewer:              reviewer,
				Store:                 a.store,
				Bus:                   bus,
				Logger:                a.logger,
				MaxAttempts:           a.cfg.Execution.MaxAttempts,
				AcceptOnReviewFailure: a.cfg.Execution.AcceptOnReviewFailure,
				ReviewThreshold:       a.cfg.Execution.ReviewThreshold,
				OutputDir:             a.cfg.Execution.OutputDir,
			})

			mark := a.logger.Collector().Len()
			var results []orchestrator.TaskResult
			if noTUI {
				results, err = a.runPlain(ctx, runner, bus, p)
			} else {
				results, err = a.runWithTUI(ctx, runner, bus, p)
			}

			printResults(a.out, p, results)
			a.printLogSummary(mark)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Plan %s %s.\n", p.ID, p.Status)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "print progress lines instead of the interactive view")
	return cmd
}

// runPlain prints task events as they happen.
func (a *app) runPlain(ctx context.Context, runner *orchestrator.Runner, bus *events.EventBus, p *plan.Plan) ([]orchestrator.TaskResult, error) {
	sub := bus.Subscribe(events.TopicTask, 256)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		printEvents(a.out, sub)
	}()

	results, err := runner.Run(ctx, p)
	bus.Close()
	wg.Wait()
	return results, err
}

func printEvents(out io.Writer, sub <-chan events.Event) {
	for e := range sub {
		switch e := e.(type) {
		case events.TaskStartedEvent:
			fmt.Fprintf(out, "%s %s (attempt %d)\n", tui.StatusIcon(plan.TaskInProgress), e.Title, e.Attempt)
		case events.TaskReviewedEvent:
			verdict := "rejected"
			if e.Approved {
				verdict = "approved"
			}
			fmt.Fprintf(out, "  review %s, score %d\n", verdict, e.Score)
			for _, issue := range e.Issues {
				fmt.Fprintf(out, "    - %s\n", issue)
			}
		case events.TaskFailedEvent:
			fmt.Fprintf(out, "  failed: %v\n", e.Err)
		}
	}
}

// runWithTUI runs the plan behind the Bubble Tea view. Quitting the view
// stops the run.
func (a *app) runWithTUI(ctx context.Context, runner *orchestrator.Runner, bus *events.EventBus, p *plan.Plan) ([]orchestrator.TaskResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The model subscribes on creation, before the runner publishes
	model := tui.New(bus, p.Clone(), a.cfg, a.globalPath, a.projectPath)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	type outcome struct {
		results []orchestrator.TaskResult
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		results, err := runner.Run(ctx, p)
		done <- outcome{results, err}
	}()

	_, uiErr := program.Run()
	cancel()
	res := <-done

	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return res.results, errors.Join(res.err, uiErr)
	}
	return res.results, res.err
}

func printResults(out io.Writer, p *plan.Plan, results []orchestrator.TaskResult) {
	for _, r := range results {
		title := r.TaskID
		if t, ok := p.TaskByID(r.TaskID); ok {
			title = t.Title
		}
		fmt.Fprintf(out, "%s %s: %s after %d attempt(s)\n", tui.StatusIcon(r.Status), title, r.Status, r.Attempts)
	}
}
