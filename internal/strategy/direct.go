package strategy

import (
	"sync"

	"github.com/arittr/chopstack/internal/scope"
	"github.com/arittr/chopstack/internal/task"
	"github.com/arittr/chopstack/internal/vcs"
)

// Direct runs every task in the main checkout with no worktrees. The
// execute handler must enforce serial execution for this strategy;
// running tasks in parallel against a single index would corrupt it.
type Direct struct {
	backend *vcs.Backend
	repoDir string
	scope   *scope.Validator

	mu      sync.Mutex
	commits []string
}

var _ Strategy = (*Direct)(nil)

// NewDirect builds a Direct strategy rooted at repoDir.
func NewDirect(backend *vcs.Backend, repoDir string, v *scope.Validator) *Direct {
	return &Direct{backend: backend, repoDir: repoDir, scope: v}
}

func (d *Direct) Name() string           { return "direct" }
func (d *Direct) SupportsParallel() bool { return false }
func (d *Direct) SupportsStacking() bool { return false }

func (d *Direct) Initialize(baseRef string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commits = nil
	return nil
}

// PrepareContexts is a no-op: direct strategy has no workspace to stage.
func (d *Direct) PrepareContexts(tasks []task.Task) error { return nil }

func (d *Direct) PrepareTask(t task.Task) (Context, error) {
	return Context{TaskID: t.ID, Path: d.repoDir}, nil
}

func (d *Direct) HandleCompletion(t task.Task, ctx Context) (CompletionResult, error) {
	result, err := commitTask(d.backend, d.scope, t, ctx.Path, "")
	if err != nil {
		return CompletionResult{}, err
	}
	if result.CommitHash != "" {
		d.mu.Lock()
		d.commits = append(d.commits, result.CommitHash)
		d.mu.Unlock()
	}
	return result, nil
}

// Finalize returns every commit produced; direct strategy never builds a
// branch graph.
func (d *Direct) Finalize() (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Result{Commits: append([]string(nil), d.commits...)}, nil
}

// Cleanup is a no-op: there are no workspaces to tear down.
func (d *Direct) Cleanup(cleanupOnFailure bool, failed map[string]bool) error { return nil }
