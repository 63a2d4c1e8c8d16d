// Package cherr provides the engine's error taxonomy: sentinel errors for
// every kind in spec.md's error-kinds table, domain error types carrying
// structured context, and classification helpers used by the scheduler's
// propagation policy.
package cherr

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions so callers need only import this
// package for error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity classifies how serious an error is.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Sentinel errors, one family per spec.md §6 error kind.
var (
	ErrPlanInvalid          = New("plan is invalid")
	ErrToolUnavailable      = New("vcs tool unavailable")
	ErrConfigFile           = New("config file error")
	ErrWorktreeCreateFailed = New("worktree creation failed")
	ErrCommitFailed         = New("commit failed")
	ErrValidationViolation  = New("file-modification validation violation")
	ErrStackBuildFailed     = New("stack build failed")

	ErrTaskNotFound     = New("task not found")
	ErrDependencyCycle  = New("dependency cycle detected")
	ErrNotGitRepository = New("not a git repository")
	ErrBranchNotFound   = New("branch not found")
	ErrBranchExists     = New("branch already exists")
	ErrMergeConflict    = New("merge conflict")
	ErrTimeout          = New("operation timed out")
	ErrCanceled         = New("operation canceled")
	ErrInvalidInput     = New("invalid input")
)

// ChopstackError is the interface every domain error type in this package
// implements, on top of the standard error interface.
type ChopstackError interface {
	error
	Unwrap() error
	Is(target error) bool
	Severity() Severity
	IsRetryable() bool
	IsUserFacing() bool
}

type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error { return e.cause }

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

func (e *baseError) Severity() Severity    { return e.severity }
func (e *baseError) IsRetryable() bool     { return e.retryable }
func (e *baseError) IsUserFacing() bool    { return e.userFacing }

// PlanInvalidError wraps a plan-validation failure (C3).
type PlanInvalidError struct {
	baseError
	Errors []string
}

func NewPlanInvalidError(message string, validationErrors []string) *PlanInvalidError {
	return &PlanInvalidError{
		baseError: baseError{
			message:    message,
			cause:      ErrPlanInvalid,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		Errors: validationErrors,
	}
}

func (e *PlanInvalidError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("plan invalid: %s", e.message)
	}
	return fmt.Sprintf("plan invalid: %s (%s)", e.message, strings.Join(e.Errors, "; "))
}

func (e *PlanInvalidError) Is(target error) bool {
	if _, ok := target.(*PlanInvalidError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ToolUnavailableError indicates the selected VCS backend is not installed
// or not usable in the current environment.
type ToolUnavailableError struct {
	baseError
	Mode         string
	InstallHints string
}

func NewToolUnavailableError(mode, installHints string) *ToolUnavailableError {
	return &ToolUnavailableError{
		baseError: baseError{
			message:    fmt.Sprintf("vcs tool for mode %q is unavailable", mode),
			cause:      ErrToolUnavailable,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		Mode:         mode,
		InstallHints: installHints,
	}
}

func (e *ToolUnavailableError) Error() string {
	if e.InstallHints != "" {
		return fmt.Sprintf("%s: %s", e.message, e.InstallHints)
	}
	return e.message
}

func (e *ToolUnavailableError) Is(target error) bool {
	if _, ok := target.(*ToolUnavailableError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ConfigFileError wraps a configuration load failure.
type ConfigFileError struct {
	baseError
	Path string
}

func NewConfigFileError(path string, cause error) *ConfigFileError {
	return &ConfigFileError{
		baseError: baseError{
			message:    fmt.Sprintf("config file error: %s", path),
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		Path: path,
	}
}

func (e *ConfigFileError) Is(target error) bool {
	if _, ok := target.(*ConfigFileError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// WorktreeCreateError wraps a worktree-creation failure (C1/C5).
type WorktreeCreateError struct {
	baseError
	TaskID string
	Path   string
}

func NewWorktreeCreateError(taskID, path string, cause error) *WorktreeCreateError {
	return &WorktreeCreateError{
		baseError: baseError{
			message:    fmt.Sprintf("failed to create worktree for task %s at %s", taskID, path),
			cause:      cause,
			severity:   SeverityError,
			retryable:  true,
			userFacing: false,
		},
		TaskID: taskID,
		Path:   path,
	}
}

func (e *WorktreeCreateError) Is(target error) bool {
	if _, ok := target.(*WorktreeCreateError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// CommitFailedError wraps a commit failure, including the "no changes"
// case which is always treated as a violation.
type CommitFailedError struct {
	baseError
	TaskID string
}

func NewCommitFailedError(taskID, reason string, cause error) *CommitFailedError {
	return &CommitFailedError{
		baseError: baseError{
			message:    fmt.Sprintf("commit failed for task %s: %s", taskID, reason),
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		TaskID: taskID,
	}
}

func (e *CommitFailedError) Is(target error) bool {
	if _, ok := target.(*CommitFailedError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationViolationError wraps a file-modification scope violation (C2).
type ValidationViolationError struct {
	baseError
	TaskID string
	Reason string // belongs_to_other_task | not_in_spec | no_changes
	File   string
}

func NewValidationViolationError(taskID, reason, file string) *ValidationViolationError {
	return &ValidationViolationError{
		baseError: baseError{
			message:    fmt.Sprintf("task %s violated file scope (%s): %s", taskID, reason, file),
			cause:      ErrValidationViolation,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		TaskID: taskID,
		Reason: reason,
		File:   file,
	}
}

func (e *ValidationViolationError) Is(target error) bool {
	if _, ok := target.(*ValidationViolationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// StackBuildFailedError wraps an incremental stack builder failure (C6).
type StackBuildFailedError struct {
	baseError
	TaskID string
}

func NewStackBuildFailedError(taskID string, cause error) *StackBuildFailedError {
	return &StackBuildFailedError{
		baseError: baseError{
			message:    fmt.Sprintf("failed to stack branch for task %s", taskID),
			cause:      cause,
			severity:   SeverityError,
			retryable:  true,
			userFacing: false,
		},
		TaskID: taskID,
	}
}

func (e *StackBuildFailedError) Is(target error) bool {
	if _, ok := target.(*StackBuildFailedError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// IsRetryable returns true if err (or a wrapped cause) is a ChopstackError
// marked retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ce ChopstackError
	if As(err, &ce) {
		return ce.IsRetryable()
	}
	return isTransientMessage(err.Error())
}

// isTransientMessage applies the substring heuristic spec.md §4.5 describes
// for classifying backend subprocess errors as retryable.
func isTransientMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, substr := range []string{"timeout", "resource temporarily unavailable", "connection reset", "temporary failure"} {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

// IsUserFacing returns true if err is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var ce ChopstackError
	if As(err, &ce) {
		return ce.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity of err, defaulting to SeverityError for
// errors that don't implement ChopstackError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var ce ChopstackError
	if As(err, &ce) {
		return ce.Severity()
	}
	return SeverityError
}

// Wrap wraps err with a context message, preserving error chains.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps err with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
