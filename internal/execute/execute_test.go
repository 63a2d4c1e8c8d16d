package execute

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arittr/chopstack/internal/agent"
	"github.com/arittr/chopstack/internal/clog"
	"github.com/arittr/chopstack/internal/scope"
	"github.com/arittr/chopstack/internal/strategy"
	"github.com/arittr/chopstack/internal/task"
	"github.com/arittr/chopstack/internal/transition"
)

// fakeStrategy is a strategy.Strategy test double: every task gets a
// synthetic workspace, HandleCompletion succeeds unless the task id is
// listed in failCompletion, Cleanup records the failed set it was given,
// and Finalize returns a fixed result that repeats a branch and a commit
// and includes an empty commit, so the handler's deduplication is
// exercised.
type fakeStrategy struct {
	mu             sync.Mutex
	failCompletion map[string]bool
	cleanupFailed  map[string]bool
	cleanupCalled  bool
}

func (f *fakeStrategy) Name() string           { return "fake" }
func (f *fakeStrategy) SupportsParallel() bool { return true }
func (f *fakeStrategy) SupportsStacking() bool { return false }
func (f *fakeStrategy) Initialize(baseRef string) error { return nil }
func (f *fakeStrategy) PrepareContexts(tasks []task.Task) error { return nil }

func (f *fakeStrategy) PrepareTask(t task.Task) (strategy.Context, error) {
	return strategy.Context{TaskID: t.ID, Path: "/work/" + t.ID}, nil
}

func (f *fakeStrategy) HandleCompletion(t task.Task, ctx strategy.Context) (strategy.CompletionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCompletion[t.ID] {
		return strategy.CompletionResult{}, errors.New("commit rejected")
	}
	return strategy.CompletionResult{CommitHash: "commit-" + t.ID, Branch: "branch-" + t.ID, ChangedFiles: t.Files}, nil
}

func (f *fakeStrategy) Finalize() (strategy.Result, error) {
	return strategy.Result{Branches: []string{"branch-a", "branch-a"}, Commits: []string{"commit-a", "", "commit-a"}}, nil
}

func (f *fakeStrategy) Cleanup(cleanupOnFailure bool, failed map[string]bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanupCalled = true
	f.cleanupFailed = failed
	return nil
}

type fakeInvoker struct {
	failFor map[string]bool
}

func (f *fakeInvoker) Execute(ctx context.Context, req agent.Request) (agent.Result, error) {
	if f.failFor[req.TaskID] {
		return agent.Result{}, errors.New("agent failed")
	}
	return agent.Result{Output: "done: " + req.TaskID}, nil
}

func diamondPlan() task.Plan {
	return task.Plan{
		Tasks: []task.Task{
			{ID: "a", Files: []string{"a.go"}},
			{ID: "b", Files: []string{"b.go"}, DependsOn: []string{"a"}},
			{ID: "c", Files: []string{"c.go"}, DependsOn: []string{"a"}},
			{ID: "d", Files: []string{"d.go"}, DependsOn: []string{"b", "c"}},
		},
	}
}

func newHandler(p task.Plan, fs *fakeStrategy, fi *fakeInvoker, cfg Config) *Handler {
	mgr := transition.NewManager(p, cfg.MaxRetries)
	v := scope.NewValidator(p, cfg.ValidationMode, false)
	h := NewHandler(fs, mgr, fi, v, cfg, clog.NopLogger())
	h.sleep = func(time.Duration) {}
	return h
}

func TestRunCompletesAllTasksInDependencyOrder(t *testing.T) {
	p := diamondPlan()
	fs := &fakeStrategy{}
	fi := &fakeInvoker{}
	h := newHandler(p, fs, fi, Config{MaxRetries: 1, ValidationMode: scope.ModeStrict})

	result, err := h.Run(context.Background(), p)
	require.NoError(t, err)
	assert.Len(t, result.Tasks, 4)
	for _, r := range result.Tasks {
		assert.Equal(t, "success", r.Status)
	}
	assert.True(t, fs.cleanupCalled)
}

func TestRunHaltsRemainingTasksOnUnretryableFailureWhenContinueOnErrorFalse(t *testing.T) {
	p := diamondPlan()
	fs := &fakeStrategy{}
	fi := &fakeInvoker{failFor: map[string]bool{"a": true}}
	h := newHandler(p, fs, fi, Config{MaxRetries: 0, ValidationMode: scope.ModeStrict, ContinueOnError: false})

	result, err := h.Run(context.Background(), p)
	require.NoError(t, err)

	byID := map[string]TaskResult{}
	for _, r := range result.Tasks {
		byID[r.TaskID] = r
	}
	assert.Equal(t, "failure", byID["a"].Status)
	assert.Equal(t, "skipped", byID["b"].Status)
	assert.Equal(t, "skipped", byID["c"].Status)
	assert.Equal(t, "skipped", byID["d"].Status)
}

func TestRunContinuesPastFailureWhenContinueOnErrorTrue(t *testing.T) {
	p := diamondPlan()
	fs := &fakeStrategy{}
	fi := &fakeInvoker{failFor: map[string]bool{"b": true}}
	h := newHandler(p, fs, fi, Config{MaxRetries: 0, ValidationMode: scope.ModeStrict, ContinueOnError: true})

	result, err := h.Run(context.Background(), p)
	require.NoError(t, err)

	byID := map[string]TaskResult{}
	for _, r := range result.Tasks {
		byID[r.TaskID] = r
	}
	assert.Equal(t, "success", byID["a"].Status)
	assert.Equal(t, "failure", byID["b"].Status)
	assert.Equal(t, "success", byID["c"].Status)
	assert.Equal(t, "skipped", byID["d"].Status)
}

func TestRunRetriesFailedTaskBeforeGivingUp(t *testing.T) {
	p := task.Plan{Tasks: []task.Task{{ID: "a", Files: []string{"a.go"}}}}
	fs := &fakeStrategy{}

	var attempts int
	var mu sync.Mutex
	fi := &fakeInvoker{}
	_ = fi
	countingInvoker := &countingFailOnceInvoker{attempts: &attempts, mu: &mu}
	h := newHandler(p, fs, &fakeInvoker{}, Config{MaxRetries: 1, ValidationMode: scope.ModeStrict})
	h.invoker = countingInvoker

	result, err := h.Run(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, result.Tasks, 1)
	assert.Equal(t, "success", result.Tasks[0].Status)
	assert.Equal(t, 2, attempts)
}

type countingFailOnceInvoker struct {
	attempts *int
	mu       *sync.Mutex
}

func (c *countingFailOnceInvoker) Execute(ctx context.Context, req agent.Request) (agent.Result, error) {
	c.mu.Lock()
	*c.attempts++
	n := *c.attempts
	c.mu.Unlock()
	if n == 1 {
		return agent.Result{}, errors.New("transient failure")
	}
	return agent.Result{Output: "ok"}, nil
}

func TestRunAggregatesDeduplicatedBranchesAndCommits(t *testing.T) {
	p := task.Plan{Tasks: []task.Task{{ID: "a", Files: []string{"a.go"}}}}
	fs := &fakeStrategy{}
	h := newHandler(p, fs, &fakeInvoker{}, Config{MaxRetries: 0, ValidationMode: scope.ModeStrict})

	result, err := h.Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []string{"branch-a"}, result.Branches)
	assert.Equal(t, []string{"commit-a"}, result.Commits)
}

// serialFakeStrategy is fakeStrategy with SupportsParallel false and a
// counter tracking how many tasks were inside HandleCompletion at once,
// mirroring strategy.Direct's single-checkout constraint.
type serialFakeStrategy struct {
	fakeStrategy
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
}

func (s *serialFakeStrategy) SupportsParallel() bool { return false }

func (s *serialFakeStrategy) HandleCompletion(t task.Task, ctx strategy.Context) (strategy.CompletionResult, error) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.mu.Unlock()

	time.Sleep(time.Millisecond)

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()

	return s.fakeStrategy.HandleCompletion(t, ctx)
}

func TestRunDoesNotParallelizeATaskLayerWhenStrategyForbidsIt(t *testing.T) {
	p := task.Plan{
		Tasks: []task.Task{
			{ID: "a", Files: []string{"a.go"}},
			{ID: "b", Files: []string{"b.go"}},
			{ID: "c", Files: []string{"c.go"}},
		},
	}
	fs := &serialFakeStrategy{}
	cfg := Config{MaxRetries: 0, ValidationMode: scope.ModeStrict}
	mgr := transition.NewManager(p, cfg.MaxRetries)
	v := scope.NewValidator(p, cfg.ValidationMode, false)
	h := NewHandler(fs, mgr, &fakeInvoker{}, v, cfg, clog.NopLogger())
	h.sleep = func(time.Duration) {}

	result, err := h.Run(context.Background(), p)
	require.NoError(t, err)
	assert.Len(t, result.Tasks, 3)
	assert.Equal(t, 1, fs.maxInFlight, "a strategy that forbids parallelism must never have two tasks in flight at once")
}
