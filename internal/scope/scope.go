// Package scope implements the file-modification validator (C2): given a
// task and the files actually staged in its workspace, decides whether
// those modifications stay within the task's allowed scope.
package scope

import (
	"fmt"

	"github.com/arittr/chopstack/internal/task"
	"github.com/arittr/chopstack/internal/validate"
)

// Mode selects how a violation affects the caller.
type Mode string

const (
	// ModeStrict aborts the task's commit on any violation.
	ModeStrict Mode = "strict"
	// ModePermissive reports violations as warnings and lets the commit proceed.
	ModePermissive Mode = "permissive"
)

// Reason identifies why a file is out of scope.
type Reason string

const (
	ReasonBelongsToOtherTask Reason = "belongs_to_other_task"
	ReasonNotInSpec          Reason = "not_in_spec"
	ReasonNoChanges          Reason = "no_changes"
)

// Violation describes one file outside a task's allowed scope.
type Violation struct {
	File          string
	Reason        Reason
	ConflictingID string // set for ReasonBelongsToOtherTask
}

// Result is the outcome of validating a task's staged files.
type Result struct {
	Valid      bool
	Violations []Violation
}

// Validator computes allowed/forbidden file sets per task, once per run.
type Validator struct {
	plan          task.Plan
	mode          Mode
	allowNewFiles bool
}

// NewValidator builds a Validator for p. allowNewFiles controls whether a
// staged file nobody declared is tolerated (true) or flagged not_in_spec.
func NewValidator(p task.Plan, mode Mode, allowNewFiles bool) *Validator {
	return &Validator{plan: p, mode: mode, allowNewFiles: allowNewFiles}
}

// Allowed returns the set of files taskID may modify: its own declared
// files plus the declared files of every transitive requires-ancestor.
func (v *Validator) Allowed(taskID string) map[string]bool {
	allowed := make(map[string]bool)

	t, ok := v.plan.GetTask(taskID)
	if !ok {
		return allowed
	}
	for _, f := range t.Files {
		allowed[f] = true
	}

	for ancestor := range validate.AllDependencies(v.plan, taskID) {
		at, ok := v.plan.GetTask(ancestor)
		if !ok {
			continue
		}
		for _, f := range at.Files {
			allowed[f] = true
		}
	}
	return allowed
}

// Forbidden returns every file declared by a task outside taskID's
// allowed set: files belonging to descendants of taskID and to unrelated
// tasks alike, unless taskID or one of its ancestors also declares them.
func (v *Validator) Forbidden(taskID string) []string {
	allowed := v.Allowed(taskID)
	seen := make(map[string]bool)
	var forbidden []string

	for _, t := range v.plan.Tasks {
		if t.ID == taskID {
			continue
		}
		for _, f := range t.Files {
			if allowed[f] || seen[f] {
				continue
			}
			seen[f] = true
			forbidden = append(forbidden, f)
		}
	}
	return forbidden
}

// ownerOf returns the id of a task (other than taskID) that declares
// file f, if any.
func (v *Validator) ownerOf(taskID, f string) (string, bool) {
	for _, t := range v.plan.Tasks {
		if t.ID == taskID {
			continue
		}
		for _, tf := range t.Files {
			if tf == f {
				return t.ID, true
			}
		}
	}
	return "", false
}

// Validate checks the files actually staged (changedFiles) against
// taskID's allowed scope and returns a Result. In ModeStrict a non-empty
// Violations list means Valid is false; in ModePermissive Valid is always
// true and Violations carry warnings only.
func (v *Validator) Validate(taskID string, changedFiles []string) Result {
	allowed := v.Allowed(taskID)

	var violations []Violation

	if len(changedFiles) == 0 {
		violations = append(violations, Violation{Reason: ReasonNoChanges})
	}

	for _, f := range changedFiles {
		if allowed[f] {
			continue
		}
		if owner, ok := v.ownerOf(taskID, f); ok {
			violations = append(violations, Violation{File: f, Reason: ReasonBelongsToOtherTask, ConflictingID: owner})
			continue
		}
		if !v.allowNewFiles {
			violations = append(violations, Violation{File: f, Reason: ReasonNotInSpec})
		}
	}

	r := Result{Violations: violations}
	switch v.mode {
	case ModeStrict:
		r.Valid = len(violations) == 0
	default:
		r.Valid = true
	}
	return r
}

func (r Result) String() string {
	if r.Valid {
		return "valid"
	}
	return fmt.Sprintf("invalid: %d violation(s)", len(r.Violations))
}
