// Package stack implements the incremental stack builder (C6): a small
// state machine used by the stacked VCS strategy to materialize one
// branch per task on top of its dependencies' branches, tolerating
// out-of-order addTask calls by queuing a task until its dependencies
// have themselves been stacked.
package stack

import (
	"fmt"
	"strings"
	"time"

	"github.com/arittr/chopstack/internal/cherr"
	"github.com/arittr/chopstack/internal/task"
	"github.com/arittr/chopstack/internal/vcs"
)

// maxBranchCreateAttempts bounds the exponential backoff retry loop for
// transient branch-creation failures before falling back to manual
// cherry-pick.
const maxBranchCreateAttempts = 3

// FailedTask records a task the builder could not stack.
type FailedTask struct {
	TaskID string
	Reason string
}

// Builder drives the incremental stack.
type Builder struct {
	backend            *vcs.Backend
	repoDir            string
	branchPrefix       string
	conflictResolution string
	sleep              func(time.Duration)

	state   *task.StackState
	pending []pendingEntry
	failed  []FailedTask
}

type pendingEntry struct {
	t            task.Task
	commit       string
	worktreePath string
}

// NewBuilder constructs a Builder. conflictResolution is one of
// auto/manual/fail (internal/config.VCSConfig.ConflictResolution).
func NewBuilder(backend *vcs.Backend, repoDir, branchPrefix, conflictResolution string) *Builder {
	return &Builder{
		backend:            backend,
		repoDir:            repoDir,
		branchPrefix:       branchPrefix,
		conflictResolution: conflictResolution,
		sleep:              time.Sleep,
	}
}

// Initialize resets the builder to an empty stack rooted at baseRef.
func (b *Builder) Initialize(baseRef string) {
	b.state = task.NewStackState(baseRef)
	b.pending = nil
	b.failed = nil
}

// Tip returns the current stack tip (a branch name, or the base ref if
// nothing has been stacked yet).
func (b *Builder) Tip() string {
	return b.state.Tip
}

// IsStacked reports whether a task has already been incorporated.
func (b *Builder) IsStacked(taskID string) bool {
	return b.state.Incorporated[taskID]
}

// Failed returns the tasks the builder could not stack, in the order
// they failed.
func (b *Builder) Failed() []FailedTask {
	return b.failed
}

// AddTask incorporates t's commit into the stack. If t has unstacked
// dependencies it is queued and ("", nil) is returned; it will be
// materialized automatically by a later AddTask call once unblocked.
// A task with no commit (nothing to stack) is silently skipped.
func (b *Builder) AddTask(t task.Task, commit, worktreePath string) (string, error) {
	if commit == "" {
		return "", nil
	}

	if !b.depsSatisfied(t) {
		b.pending = append(b.pending, pendingEntry{t: t, commit: commit, worktreePath: worktreePath})
		return "", nil
	}

	branch, err := b.materialize(t, commit, worktreePath)
	if err != nil {
		return "", err
	}
	b.processPending()
	return branch, nil
}

func (b *Builder) depsSatisfied(t task.Task) bool {
	for _, dep := range t.DependsOn {
		if !b.state.Incorporated[dep] {
			return false
		}
	}
	return true
}

// processPending repeatedly scans the pending queue for tasks that have
// become unblocked, materializing each and looping until a full pass
// makes no further progress.
func (b *Builder) processPending() {
	for {
		progressed := false
		var stillPending []pendingEntry
		for _, e := range b.pending {
			if !b.depsSatisfied(e.t) {
				stillPending = append(stillPending, e)
				continue
			}
			// materialize records its own failures in b.failed.
			_, _ = b.materialize(e.t, e.commit, e.worktreePath)
			progressed = true
		}
		b.pending = stillPending
		if !progressed || len(b.pending) == 0 {
			return
		}
	}
}

// materialize runs the branch-creation protocol from spec.md §4.5: a
// stack-aware create-branch-from-commit attempt with retry on transient
// errors, falling back to a manual checkout/cherry-pick/resolve path.
func (b *Builder) materialize(t task.Task, commit, worktreePath string) (string, error) {
	branch := fmt.Sprintf("%s/%s", b.branchPrefix, t.ID)
	parent := b.state.Tip

	if err := b.createBranchWithRetry(branch, commit, parent); err != nil {
		if fbErr := b.manualCherryPick(branch, parent, commit); fbErr != nil {
			b.failed = append(b.failed, FailedTask{TaskID: t.ID, Reason: fbErr.Error()})
			return "", fbErr
		}
	}

	b.state.Incorporated[t.ID] = true
	b.state.BranchOf[t.ID] = branch
	b.state.Tip = branch
	return branch, nil
}

func (b *Builder) createBranchWithRetry(branch, commit, parent string) error {
	var lastErr error
	backoff := 100 * time.Millisecond
	for attempt := 0; attempt < maxBranchCreateAttempts; attempt++ {
		err := b.backend.CreateBranchFromCommit(branch, commit, parent, b.repoDir)
		if err == nil {
			return nil
		}
		lastErr = err
		if !cherr.IsRetryable(err) {
			return err
		}
		b.sleep(backoff)
		backoff *= 2
	}
	return lastErr
}

// manualCherryPick checks out parent onto a fresh branch and cherry-picks
// commit, delegating to the conflict resolver on failure.
func (b *Builder) manualCherryPick(branch, parent, commit string) error {
	if err := b.backend.CreateBranchFromCommit(branch, parent, parent, b.repoDir); err != nil {
		return cherr.Wrapf(err, "failed to create fallback branch %s", branch)
	}

	if err := b.backend.CherryPick(b.repoDir, commit); err == nil {
		return nil
	}

	files, _ := b.backend.ConflictingFiles(b.repoDir)
	if len(files) > 0 && b.backend.ResolveConflicts(b.repoDir, files, b.conflictResolution) {
		return nil
	}

	_ = b.backend.AbortCherryPick(b.repoDir)
	_ = b.backend.DeleteBranch(branch, b.repoDir)
	return fmt.Errorf("cherry-pick of %s onto %s conflicted on: %s", commit, branch, strings.Join(files, ", "))
}
