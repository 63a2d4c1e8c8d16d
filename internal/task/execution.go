package task

import "time"

// ExecutionTask is the mutable companion to a Task created by the engine
// for the lifetime of a single run.
type ExecutionTask struct {
	Task        Task
	State       State
	RetryCount  int
	MaxRetries  int
	WorktreeID  string // never assigned during a run; stays empty
	CommitID    string // never assigned during a run; stays empty
	BranchName  string // never assigned during a run; stays empty
	History     []Transition
}

// CanRetry reports whether another failed->queued transition is permitted.
func (e ExecutionTask) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// Record appends a transition to the task's history.
func (e *ExecutionTask) Record(from, to State, reason string) {
	e.History = append(e.History, Transition{
		From:      from,
		To:        to,
		Timestamp: time.Now(),
		Reason:    reason,
	})
	if from == StateFailed && to == StateQueued {
		e.RetryCount++
	}
}

// WorktreeContext is the physical realization of a task's workspace.
type WorktreeContext struct {
	TaskID       string
	Branch       string
	BaseRef      string
	AbsolutePath string
	RelativePath string
	CreatedAt    time.Time
}

// CommitResult is produced by a task completion.
type CommitResult struct {
	TaskID     string
	CommitID   string // empty on failure
	BranchName string
	Err        string // empty on success
}

// Success reports whether the commit was produced.
func (c CommitResult) Success() bool {
	return c.CommitID != "" && c.Err == ""
}

// StackState is the state held by the incremental stack builder (C6).
type StackState struct {
	Tip          string            // current tip branch
	Incorporated map[string]bool   // task ids already incorporated
	BranchOf     map[string]string // task id -> branch that carries it
	Pending      []string          // not populated; stack.Builder keeps its pending queue internally
}

// NewStackState returns a StackState initialized at baseRef.
func NewStackState(baseRef string) *StackState {
	return &StackState{
		Tip:          baseRef,
		Incorporated: make(map[string]bool),
		BranchOf:     make(map[string]string),
	}
}
