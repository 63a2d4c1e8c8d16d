package strategy

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/arittr/chopstack/internal/cherr"
	"github.com/arittr/chopstack/internal/scope"
	"github.com/arittr/chopstack/internal/stack"
	"github.com/arittr/chopstack/internal/task"
	"github.com/arittr/chopstack/internal/vcs"
	"github.com/arittr/chopstack/internal/watch"
)

// Stacked builds one branch per task on top of its dependencies' branches,
// via the incremental stack builder (C6). PrepareTask defers a task whose
// dependency hasn't been incorporated into the stack yet; the caller is
// expected to retry it once that dependency resolves.
type Stacked struct {
	backend      *vcs.Backend
	builder      *stack.Builder
	repoDir      string
	shadowDir    string
	branchPrefix string
	scope        *scope.Validator
	watcher      *watch.Watcher

	mu       sync.Mutex
	order    []string
	contexts map[string]Context
}

var _ Strategy = (*Stacked)(nil)

// NewStacked builds a Stacked strategy. conflictResolution is forwarded to
// the underlying stack.Builder (auto/manual/fail).
func NewStacked(backend *vcs.Backend, repoDir, shadowDir, branchPrefix, conflictResolution string, v *scope.Validator) *Stacked {
	return &Stacked{
		backend:      backend,
		builder:      stack.NewBuilder(backend, repoDir, branchPrefix, conflictResolution),
		repoDir:      repoDir,
		shadowDir:    shadowDir,
		branchPrefix: branchPrefix,
		scope:        v,
	}
}

// SetWatcher attaches an optional live file-conflict watcher; see
// Worktree.SetWatcher for the same rationale. Stacked worktrees are
// scratch workspaces only, but a race there still signals a problem the
// agent should be told about before HandleCompletion commits it.
func (s *Stacked) SetWatcher(watcher *watch.Watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watcher = watcher
}

func (s *Stacked) Name() string           { return "stacked" }
func (s *Stacked) SupportsParallel() bool { return true }
func (s *Stacked) SupportsStacking() bool { return true }

func (s *Stacked) Initialize(baseRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.builder.Initialize(baseRef)
	s.order = nil
	s.contexts = make(map[string]Context)
	return nil
}

// PrepareContexts precomputes the task order: a topological sort of the
// requires-graph, ties broken by ascending complexity so simpler tasks
// land lower in the stack. It creates no workspaces; Stacked materializes
// them lazily in PrepareTask, once a task's dependencies are stacked.
func (s *Stacked) PrepareContexts(tasks []task.Task) error {
	order, err := topologicalOrder(tasks)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.order = order
	s.mu.Unlock()
	return nil
}

// PrepareTask creates a scratch worktree forked from the current stack
// tip. The branch it lands on (ctx.Branch) is a working branch; the
// official stacked branch is materialized in HandleCompletion via the
// stack builder, once the task's commit exists.
func (s *Stacked) PrepareTask(t task.Task) (Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, dep := range t.DependsOn {
		if !s.builder.IsStacked(dep) {
			return Context{}, ErrDeferred
		}
	}

	tip := s.builder.Tip()
	scratch := fmt.Sprintf("%s/%s--work", s.branchPrefix, t.ID)
	path := filepath.Join(s.shadowDir, t.ID)

	if err := s.backend.CreateWorktree(path, tip, scratch); err != nil {
		return Context{}, cherr.NewWorktreeCreateError(t.ID, path, err)
	}

	ctx := Context{TaskID: t.ID, Path: path, Branch: scratch}
	s.contexts[t.ID] = ctx
	if s.watcher != nil {
		_ = s.watcher.AddTask(t.ID, path)
	}
	return ctx, nil
}

// HandleCompletion commits inside the task's scratch worktree, then asks
// the stack builder to materialize the task's official branch on top of
// the current tip from that commit.
func (s *Stacked) HandleCompletion(t task.Task, ctx Context) (CompletionResult, error) {
	result, err := commitTask(s.backend, s.scope, t, ctx.Path, ctx.Branch)
	if err != nil {
		return CompletionResult{}, err
	}
	if result.NoChanges {
		return result, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	branch, err := s.builder.AddTask(t, result.CommitHash, ctx.Path)
	if err != nil {
		return CompletionResult{}, cherr.NewStackBuildFailedError(t.ID, err)
	}
	result.Branch = branch
	return result, nil
}

// Finalize restacks to repair any out-of-order relationships and returns
// the stacked tasks' branches in precomputed order, and the branch tips
// as commits in the order the backend's GetStackInfo reports them.
func (s *Stacked) Finalize() (Result, error) {
	s.mu.Lock()
	order := append([]string(nil), s.order...)
	s.mu.Unlock()

	if _, err := s.backend.Restack(s.repoDir); err != nil {
		return Result{}, cherr.Wrap(err, "failed to restack")
	}

	var branches, commits []string
	for _, id := range order {
		if !s.builder.IsStacked(id) {
			continue
		}
		branches = append(branches, fmt.Sprintf("%s/%s", s.branchPrefix, id))
	}
	infos, err := s.backend.GetStackInfo(s.repoDir)
	if err != nil {
		return Result{}, cherr.Wrap(err, "failed to read stack info")
	}
	for _, info := range infos {
		commits = append(commits, info.Tip)
	}
	return Result{Branches: branches, Commits: commits}, nil
}

// Cleanup removes every scratch worktree. A worktree belonging to a task
// in failed is preserved when cleanupOnFailure is false.
func (s *Stacked) Cleanup(cleanupOnFailure bool, failed map[string]bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	for taskID, ctx := range s.contexts {
		if failed[taskID] && !cleanupOnFailure {
			continue
		}
		if s.watcher != nil {
			s.watcher.RemoveTask(taskID)
		}
		if err := s.backend.RemoveWorktree(ctx.Path, true); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// topologicalOrder sorts tasks by the requires-graph, breaking ties by
// ascending complexity rank then task id, so the result is deterministic.
func topologicalOrder(tasks []task.Task) ([]string, error) {
	byID := make(map[string]task.Task, len(tasks))
	indegree := make(map[string]int, len(tasks))
	dependents := make(map[string][]string)

	for _, t := range tasks {
		byID[t.ID] = t
		if _, ok := indegree[t.ID]; !ok {
			indegree[t.ID] = 0
		}
	}
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			indegree[t.ID]++
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	var ready []string
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}

	var order []string
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool {
			a, b := byID[ready[i]], byID[ready[j]]
			if a.Complexity.Rank() != b.Complexity.Rank() {
				return a.Complexity.Rank() < b.Complexity.Rank()
			}
			return a.ID < b.ID
		})

		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		for _, dependent := range dependents[next] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(order) != len(tasks) {
		return nil, fmt.Errorf("strategy: cannot order tasks, a dependency cycle exists")
	}
	return order, nil
}
