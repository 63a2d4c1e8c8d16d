// Package strategy implements the VCS strategies (C5): direct, worktree,
// and stacked. A strategy translates the per-task lifecycle the execute
// handler drives (prepare, complete, finalize, cleanup) into backend
// operations, producing the branches and commits the run leaves behind.
package strategy

import (
	"errors"

	"github.com/arittr/chopstack/internal/task"
)

// ErrDeferred is returned by PrepareTask when a task cannot yet be
// prepared because a dependency hasn't been incorporated into the stack.
// The caller should retry the task later rather than treat this as fatal.
var ErrDeferred = errors.New("strategy: task deferred, dependency not yet stacked")

// Context is the physical workspace a strategy hands back for a task:
// where it runs and, for worktree-backed strategies, which branch it's on.
type Context struct {
	TaskID string
	Path   string
	Branch string
}

// CompletionResult is produced by HandleCompletion.
type CompletionResult struct {
	CommitHash   string
	Branch       string
	ChangedFiles []string
	NoChanges    bool
}

// Result is the run-level outcome Finalize returns.
type Result struct {
	Branches []string
	Commits  []string
}

// Strategy is the capability set the execute handler (C7) drives every
// task through. Implementations: Direct, Worktree, Stacked.
type Strategy interface {
	Name() string
	SupportsParallel() bool
	SupportsStacking() bool

	// Initialize resets the strategy's state for a run rooted at baseRef.
	Initialize(baseRef string) error

	// PrepareContexts is called once, before any task starts, with the
	// full set of tasks the run will touch. Worktree creates its
	// workspaces here, Stacked computes its task order, Direct does nothing.
	PrepareContexts(tasks []task.Task) error

	// PrepareTask returns the workspace a single task should run in.
	// May return ErrDeferred (stacked strategy only).
	PrepareTask(t task.Task) (Context, error)

	// HandleCompletion stages and commits a task's modifications in ctx,
	// validating scope and generating the commit message.
	HandleCompletion(t task.Task, ctx Context) (CompletionResult, error)

	// Finalize runs once, after every task has resolved, and returns the
	// run's branch/commit summary.
	Finalize() (Result, error)

	// Cleanup tears down any workspaces the strategy created. failed
	// carries the ids of tasks whose final status is failure (skipped
	// tasks are not in it), so a strategy can honor cleanupOnFailure.
	Cleanup(cleanupOnFailure bool, failed map[string]bool) error
}
