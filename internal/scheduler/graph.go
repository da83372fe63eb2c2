package scheduler

import (
	"fmt"

	"github.com/aristath/planner/internal/plan"
)

// CycleEdge is a dependency edge that closes a cycle: From depends on To and
// To is already an ancestor of From in the traversal.
type CycleEdge struct {
	From string
	To   string
}

func (e CycleEdge) String() string {
	return fmt.Sprintf("%s -> %s", e.From, e.To)
}

// InvalidDependency is a dependency reference to a task id that is not in the plan.
type InvalidDependency struct {
	TaskID    string
	MissingID string
}

func (d InvalidDependency) String() string {
	return fmt.Sprintf("task %q depends on non-existent task %q", d.TaskID, d.MissingID)
}

// Report collects graph defects found in a task list. Defects are findings,
// not errors: a plan with a non-empty report is still usable.
type Report struct {
	Cycles  []CycleEdge
	Invalid []InvalidDependency
}

// Clean reports whether no defect was found.
func (r Report) Clean() bool {
	return len(r.Cycles) == 0 && len(r.Invalid) == 0
}

// Warnings renders every defect as a human-readable line.
func (r Report) Warnings() []string {
	var out []string
	for _, c := range r.Cycles {
		out = append(out, "circular dependency: "+c.String())
	}
	for _, d := range r.Invalid {
		out = append(out, d.String())
	}
	return out
}

// Analyze runs both graph checks.
func Analyze(tasks []*plan.Task) Report {
	return Report{
		Cycles:  DetectCircularDependencies(tasks),
		Invalid: FindInvalidDependencies(tasks),
	}
}

// index maps each id to the position of its first occurrence.
func index(tasks []*plan.Task) map[string]int {
	idx := make(map[string]int, len(tasks))
	for i, t := range tasks {
		if _, seen := idx[t.ID]; !seen {
			idx[t.ID] = i
		}
	}
	return idx
}

// frame is one level of the explicit depth-first stack.
type frame struct {
	pos  int // position in the task list
	next int // next dependency to examine
}

// walk performs a depth-first traversal over dependency edges using an
// explicit stack. Each task is a traversal root at most once and is never
// re-entered after it leaves the stack. onCycle is called for every edge that
// reaches a task currently on the stack; that edge is not followed. onExit is
// called when a task is popped, i.e. after all of its dependencies.
func walk(tasks []*plan.Task, onCycle func(from, to string), onExit func(*plan.Task)) {
	idx := index(tasks)
	visited := make([]bool, len(tasks))
	onStack := make([]bool, len(tasks))

	for root := range tasks {
		if visited[root] {
			continue
		}
		visited[root] = true
		onStack[root] = true
		stack := []frame{{pos: root}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			task := tasks[top.pos]

			if top.next < len(task.Dependencies) {
				depID := task.Dependencies[top.next]
				top.next++

				dep, ok := idx[depID]
				if !ok {
					continue // dangling, reported by FindInvalidDependencies
				}
				if onStack[dep] {
					if onCycle != nil {
						onCycle(task.ID, depID)
					}
					continue
				}
				if visited[dep] {
					continue
				}
				visited[dep] = true
				onStack[dep] = true
				stack = append(stack, frame{pos: dep})
				continue
			}

			onStack[top.pos] = false
			stack = stack[:len(stack)-1]
			if onExit != nil {
				onExit(task)
			}
		}
	}
}

// DetectCircularDependencies returns every edge that closes a cycle.
// Runs in O(V+E) and terminates on any input.
func DetectCircularDependencies(tasks []*plan.Task) []CycleEdge {
	var cycles []CycleEdge
	walk(tasks, func(from, to string) {
		cycles = append(cycles, CycleEdge{From: from, To: to})
	}, nil)
	return cycles
}

// FindInvalidDependencies returns every (task, missing dependency) pair.
func FindInvalidDependencies(tasks []*plan.Task) []InvalidDependency {
	valid := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		valid[t.ID] = true
	}

	var invalid []InvalidDependency
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if !valid[dep] {
				invalid = append(invalid, InvalidDependency{TaskID: t.ID, MissingID: dep})
			}
		}
	}
	return invalid
}
