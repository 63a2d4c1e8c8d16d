// Package validate implements the plan validator (C3): a one-shot,
// pre-execution gate that checks a task.Plan for structural soundness —
// duplicate ids, missing dependencies, dependency cycles, and file
// conflicts between tasks that could run in parallel.
package validate

import (
	"fmt"

	"github.com/arittr/chopstack/internal/task"
)

// minDescriptionLength is the structural-sanity floor for task
// descriptions; violations are informational only.
const minDescriptionLength = 10

// Result is the plan validator's report shape.
type Result struct {
	Valid                bool     `json:"valid"`
	Errors               []string `json:"errors"`
	Conflicts            []string `json:"conflicts"`
	CircularDependencies []string `json:"circularDependencies"`
	MissingDependencies  []string `json:"missingDependencies,omitempty"`
	Warnings             []string `json:"warnings,omitempty"`
}

// ValidatePlan runs every C3 check against p and composes the result.
// Checks are independent: every check runs regardless of whether an
// earlier one already failed, so a single pass surfaces every problem.
func ValidatePlan(p task.Plan) Result {
	var r Result

	r.Errors = append(r.Errors, checkUniqueIDs(p)...)

	missing := checkMissingDependencies(p)
	r.MissingDependencies = missing
	r.Errors = append(r.Errors, missing...)

	if cycle := DetectCycle(p); len(cycle) > 0 {
		r.CircularDependencies = cycle
		r.Errors = append(r.Errors, fmt.Sprintf("dependency cycle: %s", joinArrow(cycle)))
	}

	conflicts := checkFileConflicts(p)
	r.Conflicts = conflicts
	r.Errors = append(r.Errors, conflicts...)

	r.Warnings = append(r.Warnings, checkStructuralSanity(p)...)

	r.Valid = len(r.Errors) == 0
	return r
}

func checkUniqueIDs(p task.Plan) []string {
	var errs []string
	seen := make(map[string]bool, len(p.Tasks))
	for _, t := range p.Tasks {
		if seen[t.ID] {
			errs = append(errs, fmt.Sprintf("duplicate task id: %s", t.ID))
			continue
		}
		seen[t.ID] = true
	}
	return errs
}

func checkMissingDependencies(p task.Plan) []string {
	var missing []string
	ids := make(map[string]bool, len(p.Tasks))
	for _, t := range p.Tasks {
		ids[t.ID] = true
	}
	for _, t := range p.Tasks {
		for _, dep := range t.DependsOn {
			if !ids[dep] {
				missing = append(missing, fmt.Sprintf("%s depends on unknown task %s", t.ID, dep))
			}
		}
	}
	return missing
}

// DetectCycle runs a depth-first traversal over the requires-graph and
// returns the first cycle found as a path of task ids, or nil if the
// graph is acyclic.
func DetectCycle(p task.Plan) []string {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	parent := make(map[string]string)

	var dfs func(id string) []string
	dfs = func(id string) []string {
		visited[id] = true
		onStack[id] = true

		t, ok := p.GetTask(id)
		if !ok {
			onStack[id] = false
			return nil
		}

		for _, dep := range t.DependsOn {
			if !visited[dep] {
				parent[dep] = id
				if cycle := dfs(dep); cycle != nil {
					return cycle
				}
			} else if onStack[dep] {
				cycle := []string{dep}
				current := id
				for current != dep {
					cycle = append([]string{current}, cycle...)
					current = parent[current]
				}
				return append([]string{dep}, cycle...)
			}
		}

		onStack[id] = false
		return nil
	}

	for _, t := range p.Tasks {
		if !visited[t.ID] {
			if cycle := dfs(t.ID); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// checkFileConflicts reports a conflict for every file shared between two
// tasks that have no transitive dependency relationship between them.
// Tasks in a requires-chain may legitimately share files (refinement).
func checkFileConflicts(p task.Plan) []string {
	var conflicts []string

	fileToTasks := make(map[string][]string)
	for _, t := range p.Tasks {
		for _, f := range t.Files {
			fileToTasks[f] = append(fileToTasks[f], t.ID)
		}
	}

	seen := make(map[string]bool)
	for file, ids := range fileToTasks {
		if len(ids) < 2 {
			continue
		}
		for i, a := range ids {
			for _, b := range ids[i+1:] {
				if InDependencyChain(p, a, b) {
					continue
				}
				key := fmt.Sprintf("%s:%s:%s", file, a, b)
				if seen[key] {
					continue
				}
				seen[key] = true
				conflicts = append(conflicts, fmt.Sprintf("file %s is modified by both %s and %s with no dependency relationship", file, a, b))
			}
		}
	}
	return conflicts
}

func checkStructuralSanity(p task.Plan) []string {
	var warnings []string

	if len(p.Tasks) == 0 {
		warnings = append(warnings, "plan has no tasks")
	}

	for _, t := range p.Tasks {
		if len(t.Description) < minDescriptionLength {
			warnings = append(warnings, fmt.Sprintf("%s: description is too short", t.ID))
		}
		if t.Complexity != "" && !t.Complexity.Valid() {
			warnings = append(warnings, fmt.Sprintf("%s: complexity %q is not a recognized value", t.ID, t.Complexity))
		}
	}

	return warnings
}

// InDependencyChain reports whether a and b have a transitive
// requires-relationship in either direction.
func InDependencyChain(p task.Plan, a, b string) bool {
	depsA := AllDependencies(p, a)
	depsB := AllDependencies(p, b)
	return depsA[b] || depsB[a]
}

// AllDependencies returns every direct and transitive dependency of the
// task with the given id.
func AllDependencies(p task.Plan, id string) map[string]bool {
	deps := make(map[string]bool)
	visited := make(map[string]bool)

	var collect func(id string)
	collect = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true

		t, ok := p.GetTask(id)
		if !ok {
			return
		}
		for _, dep := range t.DependsOn {
			deps[dep] = true
			collect(dep)
		}
	}

	collect(id)
	return deps
}

func joinArrow(ids []string) string {
	out := ids[0]
	for _, id := range ids[1:] {
		out += " -> " + id
	}
	return out
}
