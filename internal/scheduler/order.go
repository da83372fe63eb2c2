package scheduler

import (
	"fmt"
	"strings"

	"github.com/gammazero/toposort"

	"github.com/aristath/planner/internal/plan"
)

// TopologicalOrder returns every task exactly once, each after all of its
// dependencies. Cycle edges are skipped rather than followed, so the order is
// still produced for cyclic graphs; the cycle itself is reported by
// DetectCircularDependencies. Roots are taken in insertion order, which makes
// the result deterministic.
func TopologicalOrder(tasks []*plan.Task) []*plan.Task {
	order := make([]*plan.Task, 0, len(tasks))
	walk(tasks, nil, func(t *plan.Task) {
		order = append(order, t)
	})
	return order
}

// ExecutableTasks returns the pending tasks whose dependencies are all done.
// A dependency that does not resolve to a task in the plan is never done.
// The result is computed fresh from current statuses on every call.
func ExecutableTasks(p *plan.Plan) []*plan.Task {
	byID := make(map[string]*plan.Task, len(p.Tasks))
	for _, t := range p.Tasks {
		if _, seen := byID[t.ID]; !seen {
			byID[t.ID] = t
		}
	}

	executable := []*plan.Task{}
	for _, t := range p.Tasks {
		if t.Status != plan.TaskPending {
			continue
		}

		ready := true
		for _, depID := range t.Dependencies {
			dep, ok := byID[depID]
			if !ok || !dep.Status.Done() {
				ready = false
				break
			}
		}

		if ready {
			executable = append(executable, t)
		}
	}
	return executable
}

// Verify runs a strict topological sort using gammazero/toposort and returns
// the ordered task ids. Unlike TopologicalOrder it fails on cycles and on
// dependencies that reference non-existent tasks.
func Verify(tasks []*plan.Task) ([]string, error) {
	ids := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		ids[t.ID] = true
	}

	// Verify all dependencies exist
	for _, t := range tasks {
		for _, depID := range t.Dependencies {
			if !ids[depID] {
				return nil, fmt.Errorf("task %q depends on non-existent task %q", t.ID, depID)
			}
		}
	}

	var edges []toposort.Edge
	for _, t := range tasks {
		if len(t.Dependencies) == 0 {
			// Edge from nil keeps isolated tasks in the result
			edges = append(edges, toposort.Edge{nil, t.ID})
			continue
		}
		for _, depID := range t.Dependencies {
			// (dep, task): dep must come before task
			edges = append(edges, toposort.Edge{depID, t.ID})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("task graph contains cycle: %w", err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}

	if len(order) != len(ids) {
		found := make(map[string]bool, len(order))
		for _, id := range order {
			found[id] = true
		}
		var missing []string
		for id := range ids {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, fmt.Errorf("topological sort lost %d tasks: %s", len(missing), strings.Join(missing, ", "))
	}

	return order, nil
}
