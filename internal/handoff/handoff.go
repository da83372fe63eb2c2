// Package handoff renders an approved plan as a Markdown brief for an
// external coding agent.
package handoff

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aristath/planner/internal/plan"
	"github.com/aristath/planner/internal/scheduler"
)

// Render returns the Markdown brief for p. Tasks are listed in dependency
// order; graph defects are listed under a Warnings heading.
func Render(p *plan.Plan) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", p.Title)
	if desc := strings.TrimSpace(p.Description); desc != "" {
		fmt.Fprintf(&b, "%s\n\n", desc)
	}
	fmt.Fprintf(&b, "Plan `%s` (%s), %d tasks.\n\n", p.ID, p.Status, len(p.Tasks))

	b.WriteString("Work through the tasks below in order. Do not start a task before\n")
	b.WriteString("every task it depends on is finished.\n\n")

	for i, t := range scheduler.TopologicalOrder(p.Tasks) {
		fmt.Fprintf(&b, "## %d. %s\n\n", i+1, t.Title)
		fmt.Fprintf(&b, "- ID: `%s`\n", t.ID)
		fmt.Fprintf(&b, "- Priority: %s\n", t.Priority)
		fmt.Fprintf(&b, "- Estimate: %s\n", t.EstimatedTime)
		if t.Status != plan.TaskPending {
			fmt.Fprintf(&b, "- Status: %s\n", t.Status)
		}
		if len(t.Dependencies) > 0 {
			fmt.Fprintf(&b, "- Depends on: %s\n", codeList(t.Dependencies))
		}
		if len(t.Files) > 0 {
			fmt.Fprintf(&b, "- Files: %s\n", codeList(t.Files))
		}
		if desc := strings.TrimSpace(t.Description); desc != "" {
			fmt.Fprintf(&b, "\n%s\n", desc)
		}
		b.WriteString("\n")
	}

	if warnings := scheduler.Analyze(p.Tasks).Warnings(); len(warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// WriteFile renders p to path, creating parent directories.
func WriteFile(p *plan.Plan, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(Render(p)), 0644); err != nil {
		return fmt.Errorf("writing hand-off to %s: %w", path, err)
	}
	return nil
}

func codeList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "`" + s + "`"
	}
	return strings.Join(quoted, ", ")
}
