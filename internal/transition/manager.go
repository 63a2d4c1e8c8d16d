// Package transition implements the task transition manager (C4): the
// single authoritative store of per-task state and transition history.
// Every state mutation in the engine goes through a Manager method, each
// of which takes the manager's mutex; the execute handler's per-task
// workers call them concurrently within a layer (see SPEC_FULL.md §13(b)).
package transition

import (
	"fmt"
	"sync"

	"github.com/arittr/chopstack/internal/task"
)

// TransitionFunc is called after every successful state change. It is
// invoked synchronously while the manager's lock is held, so a callback
// must not call back into the Manager (that would deadlock).
type TransitionFunc func(taskID string, tr task.Transition)

// Manager holds per-task execution state and history for a single run.
type Manager struct {
	mu    sync.Mutex
	tasks map[string]*task.ExecutionTask
	order []string

	onTransition TransitionFunc
}

// NewManager constructs a Manager for p. defaultMaxRetries is applied to
// every task.
func NewManager(p task.Plan, defaultMaxRetries int) *Manager {
	m := &Manager{tasks: make(map[string]*task.ExecutionTask, len(p.Tasks))}
	for _, t := range p.Tasks {
		m.tasks[t.ID] = &task.ExecutionTask{
			Task:       t,
			State:      task.StatePending,
			MaxRetries: defaultMaxRetries,
		}
		m.order = append(m.order, t.ID)
	}
	return m
}

// OnTransition registers a callback invoked after every successful
// transition. Only one callback is held; registering again replaces it.
func (m *Manager) OnTransition(fn TransitionFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTransition = fn
}

// Initialize sets every task to pending, then promotes to ready every
// task with no dependencies.
func (m *Manager) Initialize() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.order {
		et := m.tasks[id]
		et.State = task.StatePending
		et.History = nil
		et.RetryCount = 0
		if !et.Task.HasDependencies() {
			m.setState(id, task.StateReady, "no dependencies")
		}
	}
}

// ExecutableTasks returns every task currently in the ready state.
func (m *Manager) ExecutableTasks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for _, id := range m.order {
		if m.tasks[id].State == task.StateReady {
			ids = append(ids, id)
		}
	}
	return ids
}

// Transition performs an explicit, validated state change. Illegal
// transitions are rejected with an error and never applied.
func (m *Manager) Transition(id string, to task.State, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(id, to, reason)
}

func (m *Manager) transitionLocked(id string, to task.State, reason string) error {
	et, ok := m.tasks[id]
	if !ok {
		return fmt.Errorf("transition: unknown task %s", id)
	}
	if !task.CanTransition(et.State, to) {
		return fmt.Errorf("transition: illegal transition %s -> %s for task %s", et.State, to, id)
	}
	m.setState(id, to, reason)
	return nil
}

// setState applies a transition unconditionally and must be called with
// m.mu held; callers are responsible for having already validated it.
func (m *Manager) setState(id string, to task.State, reason string) {
	et := m.tasks[id]
	from := et.State
	et.State = to
	et.Record(from, to, reason)
	if m.onTransition != nil {
		m.onTransition(id, task.Transition{From: from, To: to, Reason: reason})
	}
}

// StartTask dispatches a ready task through queued into running.
func (m *Manager) StartTask(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.transitionLocked(id, task.StateQueued, "dispatched"); err != nil {
		return err
	}
	return m.transitionLocked(id, task.StateRunning, "started")
}

// ResumeTask moves an already-queued task (one RetryTask just returned to
// queued) straight to running, without passing back through ready.
func (m *Manager) ResumeTask(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(id, task.StateRunning, "retry dispatched")
}

// CompleteTask marks a task completed and promotes every dependent task
// whose dependencies are now all completed from pending to ready.
func (m *Manager) CompleteTask(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.transitionLocked(id, task.StateCompleted, "completed"); err != nil {
		return err
	}
	m.promoteUnblocked(id)
	return nil
}

// FailTask marks a task failed. If retries remain the caller should
// follow with RetryTask; if none remain, every transitive dependent still
// in a non-terminal state is moved to blocked.
func (m *Manager) FailTask(id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.transitionLocked(id, task.StateFailed, reason); err != nil {
		return err
	}
	et := m.tasks[id]
	if !et.CanRetry() {
		m.cascadeBlocked(id)
	}
	return nil
}

// RetryTask returns a failed task (with retries remaining) to queued.
func (m *Manager) RetryTask(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	et, ok := m.tasks[id]
	if !ok {
		return fmt.Errorf("retry: unknown task %s", id)
	}
	if !et.CanRetry() {
		return fmt.Errorf("retry: task %s has exhausted its %d retries", id, et.MaxRetries)
	}
	return m.transitionLocked(id, task.StateQueued, "retry")
}

// SkipTask moves a task to skipped from any non-terminal state and
// cascades blocked to its transitive dependents.
func (m *Manager) SkipTask(id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.transitionLocked(id, task.StateSkipped, reason); err != nil {
		return err
	}
	m.cascadeBlocked(id)
	return nil
}

// promoteUnblocked scans pending tasks that directly depend on
// completedID and promotes the ones whose dependencies are all now
// completed.
func (m *Manager) promoteUnblocked(completedID string) {
	for _, id := range m.order {
		et := m.tasks[id]
		if et.State != task.StatePending {
			continue
		}
		if !dependsOn(et.Task, completedID) {
			continue
		}
		if m.allDepsCompleted(et.Task) {
			m.setState(id, task.StateReady, fmt.Sprintf("unblocked by %s", completedID))
		}
	}
}

// cascadeBlocked moves every non-terminal task that transitively depends
// on failedID to blocked, then skipped is not applied automatically — the
// scheduler decides whether a blocked task is later explicitly skipped.
func (m *Manager) cascadeBlocked(failedID string) {
	for _, id := range m.order {
		et := m.tasks[id]
		if et.State.IsTerminal() {
			continue
		}
		if !m.transitivelyDependsOn(id, failedID) {
			continue
		}
		if task.CanTransition(et.State, task.StateBlocked) {
			m.setState(id, task.StateBlocked, fmt.Sprintf("upstream task %s did not complete", failedID))
		}
	}
}

func (m *Manager) allDepsCompleted(t task.Task) bool {
	for _, dep := range t.DependsOn {
		depTask, ok := m.tasks[dep]
		if !ok || depTask.State != task.StateCompleted {
			return false
		}
	}
	return true
}

func (m *Manager) transitivelyDependsOn(id, target string) bool {
	visited := make(map[string]bool)
	var visit func(string) bool
	visit = func(current string) bool {
		if visited[current] {
			return false
		}
		visited[current] = true
		et, ok := m.tasks[current]
		if !ok {
			return false
		}
		for _, dep := range et.Task.DependsOn {
			if dep == target || visit(dep) {
				return true
			}
		}
		return false
	}
	return visit(id)
}

func dependsOn(t task.Task, id string) bool {
	for _, dep := range t.DependsOn {
		if dep == id {
			return true
		}
	}
	return false
}

// State returns the current state of a task.
func (m *Manager) State(id string) (task.State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	et, ok := m.tasks[id]
	if !ok {
		return "", false
	}
	return et.State, true
}

// History returns the transition history of a task, oldest first.
func (m *Manager) History(id string) []task.Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	et, ok := m.tasks[id]
	if !ok {
		return nil
	}
	out := make([]task.Transition, len(et.History))
	copy(out, et.History)
	return out
}

// ExecutionTask returns a copy of a task's current execution state.
func (m *Manager) ExecutionTask(id string) (task.ExecutionTask, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	et, ok := m.tasks[id]
	if !ok {
		return task.ExecutionTask{}, false
	}
	return *et, true
}

// Statistics is a snapshot of state counts across every task in the run.
type Statistics struct {
	Total     int
	Pending   int
	Ready     int
	Queued    int
	Running   int
	Completed int
	Failed    int
	Skipped   int
	Blocked   int
}

// Statistics returns the current count of tasks in each state.
func (m *Manager) Statistics() Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()

	var s Statistics
	s.Total = len(m.tasks)
	for _, et := range m.tasks {
		switch et.State {
		case task.StatePending:
			s.Pending++
		case task.StateReady:
			s.Ready++
		case task.StateQueued:
			s.Queued++
		case task.StateRunning:
			s.Running++
		case task.StateCompleted:
			s.Completed++
		case task.StateFailed:
			s.Failed++
		case task.StateSkipped:
			s.Skipped++
		case task.StateBlocked:
			s.Blocked++
		}
	}
	return s
}

// AllTerminal reports whether every task has reached a terminal state.
func (m *Manager) AllTerminal() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.tasks) == 0 {
		return true
	}
	for _, et := range m.tasks {
		if !et.State.IsTerminal() {
			return false
		}
	}
	return true
}
