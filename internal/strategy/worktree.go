package strategy

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/arittr/chopstack/internal/cherr"
	"github.com/arittr/chopstack/internal/scope"
	"github.com/arittr/chopstack/internal/task"
	"github.com/arittr/chopstack/internal/vcs"
	"github.com/arittr/chopstack/internal/watch"
)

// Worktree creates one worktree per task, all forked eagerly from the
// same base reference, and commits inside each independently. It never
// builds a stack; the resulting branches are siblings.
type Worktree struct {
	backend      *vcs.Backend
	shadowDir    string
	branchPrefix string
	scope        *scope.Validator
	watcher      *watch.Watcher

	mu       sync.Mutex
	baseRef  string
	contexts map[string]Context
	commits  []string
	branches []string
}

var _ Strategy = (*Worktree)(nil)

// NewWorktree builds a Worktree strategy. shadowDir is where per-task
// worktrees are created (typically a hidden directory under the repo).
func NewWorktree(backend *vcs.Backend, shadowDir, branchPrefix string, v *scope.Validator) *Worktree {
	return &Worktree{backend: backend, shadowDir: shadowDir, branchPrefix: branchPrefix, scope: v}
}

// SetWatcher attaches an optional live file-conflict watcher. When set,
// every worktree this strategy creates is registered with it, so two
// tasks racing on the same relative path surface a warning before either
// commits rather than only at commit-time scope validation.
func (w *Worktree) SetWatcher(watcher *watch.Watcher) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watcher = watcher
}

func (w *Worktree) Name() string           { return "worktree" }
func (w *Worktree) SupportsParallel() bool { return true }
func (w *Worktree) SupportsStacking() bool { return false }

func (w *Worktree) Initialize(baseRef string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.baseRef = baseRef
	w.contexts = make(map[string]Context)
	w.commits = nil
	w.branches = nil
	return nil
}

// PrepareContexts eagerly creates one worktree per task, each on its own
// branch forked from the base reference recorded at Initialize.
func (w *Worktree) PrepareContexts(tasks []task.Task) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, t := range tasks {
		branch := fmt.Sprintf("%s/%s", w.branchPrefix, t.ID)
		path := filepath.Join(w.shadowDir, t.ID)

		if err := w.backend.CreateWorktree(path, w.baseRef, branch); err != nil {
			return cherr.NewWorktreeCreateError(t.ID, path, err)
		}
		w.contexts[t.ID] = Context{TaskID: t.ID, Path: path, Branch: branch}

		if w.watcher != nil {
			_ = w.watcher.AddTask(t.ID, path)
		}
	}
	return nil
}

func (w *Worktree) PrepareTask(t task.Task) (Context, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ctx, ok := w.contexts[t.ID]
	if !ok {
		return Context{}, fmt.Errorf("strategy: no worktree prepared for task %s", t.ID)
	}
	return ctx, nil
}

func (w *Worktree) HandleCompletion(t task.Task, ctx Context) (CompletionResult, error) {
	result, err := commitTask(w.backend, w.scope, t, ctx.Path, ctx.Branch)
	if err != nil {
		return CompletionResult{}, err
	}
	if result.CommitHash != "" {
		w.mu.Lock()
		w.commits = append(w.commits, result.CommitHash)
		w.branches = append(w.branches, ctx.Branch)
		w.mu.Unlock()
	}
	return result, nil
}

// Finalize returns only the branches that actually received a commit; a
// task that failed or was skipped still has a worktree+branch from
// PrepareContexts, but that branch sits at baseRef with nothing on it and
// must not be reported as part of the run's output.
func (w *Worktree) Finalize() (Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return Result{Branches: append([]string(nil), w.branches...), Commits: append([]string(nil), w.commits...)}, nil
}

// Cleanup removes every worktree this run created. A worktree belonging
// to a task in failed is preserved when cleanupOnFailure is false, so it
// can be inspected post-mortem.
func (w *Worktree) Cleanup(cleanupOnFailure bool, failed map[string]bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var lastErr error
	for taskID, ctx := range w.contexts {
		if failed[taskID] && !cleanupOnFailure {
			continue
		}
		if w.watcher != nil {
			w.watcher.RemoveTask(taskID)
		}
		if err := w.backend.RemoveWorktree(ctx.Path, true); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
