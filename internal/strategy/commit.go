package strategy

import (
	"github.com/arittr/chopstack/internal/cherr"
	"github.com/arittr/chopstack/internal/plan"
	"github.com/arittr/chopstack/internal/scope"
	"github.com/arittr/chopstack/internal/task"
	"github.com/arittr/chopstack/internal/vcs"
)

// commitTask stages everything in path, validates the result against v
// (if non-nil), and commits using a template-driven message. Shared by
// Direct, Worktree and Stacked, whose HandleCompletion only differ in
// where path points and what branch a successful commit lands on.
func commitTask(backend *vcs.Backend, v *scope.Validator, t task.Task, path, branch string) (CompletionResult, error) {
	if err := backend.Add(path, nil); err != nil {
		return CompletionResult{}, cherr.Wrapf(err, "failed to stage changes for task %s", t.ID)
	}

	changed, err := backend.Status(path)
	if err != nil {
		return CompletionResult{}, cherr.Wrapf(err, "failed to read status for task %s", t.ID)
	}

	if v != nil {
		result := v.Validate(t.ID, changed)
		if !result.Valid {
			violation := result.Violations[0]
			return CompletionResult{}, cherr.NewValidationViolationError(t.ID, string(violation.Reason), violation.File)
		}
	}

	if len(changed) == 0 {
		return CompletionResult{NoChanges: true}, nil
	}

	message := plan.CommitMessage(t, changed)
	hash, err := backend.Commit(path, message)
	if err != nil {
		return CompletionResult{}, cherr.NewCommitFailedError(t.ID, "backend commit failed", err)
	}
	if hash == "" {
		return CompletionResult{NoChanges: true}, nil
	}

	return CompletionResult{CommitHash: hash, Branch: branch, ChangedFiles: changed}, nil
}
