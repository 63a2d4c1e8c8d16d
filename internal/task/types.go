// Package task defines the engine's immutable input data model (Task, Plan)
// and the mutable per-run companions (ExecutionTask, WorktreeContext,
// CommitResult, StackState) that the rest of the engine operates over.
package task

// Complexity is an informational, closed-set complexity label attached to
// a task. It never drives scheduling decisions directly; the stacked
// strategy uses it only to break ties within a topological layer.
type Complexity string

const (
	ComplexityXS Complexity = "XS"
	ComplexityS  Complexity = "S"
	ComplexityM  Complexity = "M"
	ComplexityL  Complexity = "L"
	ComplexityXL Complexity = "XL"
)

// Rank orders complexities from simplest to most complex, used by the
// stacked strategy to break ties within a topological layer so simpler
// tasks land lower in the stack.
func (c Complexity) Rank() int {
	switch c {
	case ComplexityXS:
		return 0
	case ComplexityS:
		return 1
	case ComplexityM:
		return 2
	case ComplexityL:
		return 3
	case ComplexityXL:
		return 4
	default:
		return 2
	}
}

// Valid reports whether c is one of the closed set of complexity labels.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexityXS, ComplexityS, ComplexityM, ComplexityL, ComplexityXL:
		return true
	default:
		return false
	}
}

// Strategy is the plan-level execution strategy label.
type Strategy string

const (
	StrategySequential     Strategy = "sequential"
	StrategyParallel       Strategy = "parallel"
	StrategyPhasedParallel Strategy = "phased-parallel"
)

// Task is the immutable unit of work. Tasks are never mutated after a plan
// is loaded; per-run mutable state lives in ExecutionTask.
type Task struct {
	ID                 string
	Name               string
	Description        string
	Complexity         Complexity
	Files              []string
	DependsOn          []string
	Phase              string
	AcceptanceCriteria []string
}

// HasDependencies reports whether the task requires any other task.
func (t Task) HasDependencies() bool {
	return len(t.DependsOn) > 0
}

// HasFiles reports whether the task declares any file scope.
func (t Task) HasFiles() bool {
	return len(t.Files) > 0
}

// Phase groups tasks under a named sub-strategy, mirroring the plan
// format's optional phases array.
type Phase struct {
	ID       string
	Name     string
	Strategy Strategy
	Tasks    []string
	Requires []string
}

// Plan is the immutable collection of tasks plus execution strategy
// metadata consumed by the engine.
type Plan struct {
	Name           string
	Description    string
	Strategy       Strategy
	Phases         []Phase
	Tasks          []Task
	SuccessMetrics []string
}

// TaskCount returns the number of tasks in the plan.
func (p Plan) TaskCount() int {
	return len(p.Tasks)
}

// GetTask returns the task with the given id, if present.
func (p Plan) GetTask(id string) (Task, bool) {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// IDs returns every task id in the plan, in declared order.
func (p Plan) IDs() []string {
	ids := make([]string, len(p.Tasks))
	for i, t := range p.Tasks {
		ids[i] = t.ID
	}
	return ids
}
