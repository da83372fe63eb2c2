package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/planner/internal/handoff"
	"github.com/aristath/planner/internal/persistence"
	"github.com/aristath/planner/internal/plan"
	"github.com/aristath/planner/internal/planner"
	"github.com/aristath/planner/internal/tui"
)

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plans, err := a.store.ListPlans(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list plans: %w", err)
			}

			if len(plans) == 0 {
				fmt.Fprintln(a.out, "No plans yet. Create one with: planner new <requirement>")
				return nil
			}

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tDONE\tUPDATED")
			for _, p := range plans {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\n",
					p.ID,
					p.Title,
					p.Status,
					p.Done, p.Tasks,
					formatAge(p.Updated),
				)
			}
			return w.Flush()
		},
	}
}

// formatAge returns a human-readable relative time string.
func formatAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours())/24)
	}
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <plan-id>",
		Short: "Print a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.store.GetPlan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, tui.RenderPlan(p))
			return nil
		},
	}
}

func (a *app) editCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <plan-id>",
		Short: "Review and edit a plan before execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.store.GetPlan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.review(cmd, p)
		},
	}
}

// review runs the editor on p and saves the outcome either way: a cancelled
// review keeps the edits made so far as a draft.
func (a *app) review(cmd *cobra.Command, p *plan.Plan) error {
	editor := tui.NewEditor(planner.NewMutator(a.logger), a.prompter, a.out, a.logger)
	approved, err := editor.Edit(p)
	if err != nil {
		return err
	}
	if err := a.store.SavePlan(cmd.Context(), p); err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}

	if approved {
		fmt.Fprintf(a.out, "Plan %s approved. Run it with: planner run %s\n", p.ID, p.ID)
	} else {
		fmt.Fprintf(a.out, "Plan %s saved as %s.\n", p.ID, p.Status)
	}
	return nil
}

func (a *app) exportCmd() *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "export <plan-id>",
		Short: "Write a plan as JSON or YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.store.GetPlan(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			var data []byte
			switch strings.ToLower(format) {
			case "json":
				data, err = plan.Marshal(p)
			case "yaml", "yml":
				data, err = plan.MarshalYAML(p)
			default:
				return fmt.Errorf("unknown format %q (use json or yaml)", format)
			}
			if err != nil {
				return err
			}

			return writeOutput(a.out, output, data)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Store a plan from an exported JSON document",
		Long:  "Store a plan from an exported JSON document. Use - to read standard input.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read plan: %w", err)
			}

			mark := a.logger.Collector().Len()
			p, _, err := planner.NewBuilder(a.logger).Import(data)
			if err != nil {
				return err
			}
			if err := a.store.SavePlan(cmd.Context(), p); err != nil {
				return fmt.Errorf("failed to save plan: %w", err)
			}

			fmt.Fprintf(a.out, "Imported plan %s (%s, %d tasks).\n", p.ID, p.Status, len(p.Tasks))
			a.printLogSummary(mark)
			return nil
		},
	}
}

func (a *app) handoffCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "handoff <plan-id>",
		Short: "Render a plan as a Markdown prompt for an external coding agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.store.GetPlan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output == "" {
				fmt.Fprint(a.out, handoff.Render(p))
				return nil
			}
			if err := handoff.WriteFile(p, output); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func (a *app) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <plan-id> <task-id>",
		Short: "Show the generate and review attempts of a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			attempts, err := a.store.ListAttempts(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if len(attempts) == 0 {
				fmt.Fprintln(a.out, "No attempts recorded.")
				return nil
			}

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tVERDICT\tSCORE\tWHEN\tNOTES")
			for _, at := range attempts {
				verdict := "rejected"
				switch {
				case at.Error != "":
					verdict = "error"
				case at.Approved:
					verdict = "approved"
				}
				notes := strings.Join(at.Issues, "; ")
				if at.Error != "" {
					notes = at.Error
				}
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", at.Number, verdict, at.Score, formatAge(at.CreatedAt), notes)
			}
			return w.Flush()
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <plan-id>",
		Short: "Delete a plan and its execution history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				ok, err := a.prompter.Confirm(fmt.Sprintf("Delete plan %s?", args[0]))
				if err != nil || !ok {
					return err
				}
			}
			if err := a.store.DeletePlan(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, persistence.ErrNotFound) {
					return fmt.Errorf("no plan with id %s", args[0])
				}
				return err
			}
			fmt.Fprintf(a.out, "Deleted plan %s.\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func writeOutput(out io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := out.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(out, "Wrote %s\n", path)
	return nil
}

// printLogSummary prints the warnings and errors logged since the
// collector held mark entries.
func (a *app) printLogSummary(mark int) {
	entries := a.logger.Collector().Since(mark)
	if len(entries) == 0 {
		return
	}
	fmt.Fprintln(a.out, tui.StyleWarning.Render(fmt.Sprintf("Warnings (%d):", len(entries))))
	for _, e := range entries {
		fmt.Fprintf(a.out, "  ! %s\n", e)
	}
}
