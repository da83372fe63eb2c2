package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aristath/planner/internal/codebase"
	"github.com/aristath/planner/internal/config"
	"github.com/aristath/planner/internal/planner"
)

func (a *app) newCmd() *cobra.Command {
	var (
		root      string
		noContext bool
		approve   bool
	)

	cmd := &cobra.Command{
		Use:   "new <requirement...>",
		Short: "Generate a plan for a requirement and review it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requirement := strings.TrimSpace(strings.Join(args, " "))
			if requirement == "" {
				return fmt.Errorf("requirement is empty")
			}
			ctx := cmd.Context()
			mark := a.logger.Collector().Len()

			var summary string
			if !noContext {
				s, err := codebase.NewSummarizer(codebase.Options{
					MaxFiles:     a.cfg.Codebase.MaxFiles,
					MaxFileBytes: a.cfg.Codebase.MaxFileBytes,
					Include:      a.cfg.Codebase.Include,
					Exclude:      a.cfg.Codebase.Exclude,
				}, a.logger)
				if err != nil {
					return fmt.Errorf("codebase patterns: %w", err)
				}
				if summary, err = s.Summarize(ctx, root); err != nil {
					return fmt.Errorf("summarizing %s: %w", root, err)
				}
			}

			gen, err := a.generator(config.AgentPlanner)
			if err != nil {
				return err
			}

			fmt.Fprintln(a.out, "Generating plan...")
			p, report := planner.NewService(gen, planner.NewBuilder(a.logger), a.logger).Generate(ctx, requirement, summary)
			if report.Fallback {
				fmt.Fprintf(a.out, "Could not use the generated plan (%v); starting from a single task.\n", report.FallbackReason)
			}
			a.printLogSummary(mark)

			if err := a.store.SavePlan(ctx, p); err != nil {
				return fmt.Errorf("failed to save plan: %w", err)
			}

			if approve {
				if err := p.Approve(); err != nil {
					return err
				}
				if err := a.store.SavePlan(ctx, p); err != nil {
					return fmt.Errorf("failed to save plan: %w", err)
				}
				fmt.Fprintf(a.out, "Plan %s approved with %d tasks.\n", p.ID, len(p.Tasks))
				return nil
			}
			return a.review(cmd, p)
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "source tree summarized for the planner")
	cmd.Flags().BoolVar(&noContext, "no-context", false, "do not send a codebase summary")
	cmd.Flags().BoolVarP(&approve, "yes", "y", false, "approve the generated plan without review")
	return cmd
}
