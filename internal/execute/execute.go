// Package execute implements the execute handler / scheduler (C7): the
// outer loop that drives the transition manager (C4) and a VCS strategy
// (C5) layer by layer, dispatching each task's agent invocation and
// commit in parallel within a layer and serially between layers.
package execute

import (
	"context"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/arittr/chopstack/internal/agent"
	"github.com/arittr/chopstack/internal/clog"
	"github.com/arittr/chopstack/internal/scope"
	"github.com/arittr/chopstack/internal/strategy"
	"github.com/arittr/chopstack/internal/task"
	"github.com/arittr/chopstack/internal/transition"
)

// Config is the per-run execution context, spec.md §4.3's
// ExecutionContext.
type Config struct {
	Cwd              string
	ContinueOnError  bool
	MaxRetries       int
	ValidationMode   scope.Mode
	ParentRef        string
	CleanupOnFailure bool
}

// TaskResult is one task's entry in the final report.
type TaskResult struct {
	TaskID   string
	Status   string // success | failure | skipped
	Duration time.Duration
	Output   string
	Error    string
}

// Result is the aggregate outcome of a run, spec.md §4.3's
// ExecutionResult.
type Result struct {
	Tasks         []TaskResult
	TotalDuration time.Duration
	Branches      []string
	Commits       []string
}

// deferredRetryLimit bounds how many times a worker re-polls PrepareTask
// after strategy.ErrDeferred before giving up. In normal operation a
// dependency is stacked synchronously at the end of its own layer, so
// this should never be exhausted; it exists as a backstop against a
// strategy bug rather than an expected code path.
const deferredRetryLimit = 20

// Handler drives one run to completion.
type Handler struct {
	strategy strategy.Strategy
	manager  *transition.Manager
	invoker  agent.Invoker
	scope    *scope.Validator
	cfg      Config
	logger   *clog.Logger
	sleep    func(time.Duration)
}

// NewHandler wires together a strategy, transition manager, agent invoker
// and scope validator for a single run.
func NewHandler(s strategy.Strategy, mgr *transition.Manager, invoker agent.Invoker, v *scope.Validator, cfg Config, logger *clog.Logger) *Handler {
	if logger == nil {
		logger = clog.NopLogger()
	}
	return &Handler{
		strategy: s,
		manager:  mgr,
		invoker:  invoker,
		scope:    v,
		cfg:      cfg,
		logger:   logger,
		sleep:    time.Sleep,
	}
}

// Run drives plan's tasks to completion: initialize, loop layer by layer,
// finalize, cleanup.
func (h *Handler) Run(ctx context.Context, p task.Plan) (Result, error) {
	start := time.Now()

	if err := h.strategy.Initialize(h.cfg.ParentRef); err != nil {
		return Result{}, err
	}
	if err := h.strategy.PrepareContexts(p.Tasks); err != nil {
		return Result{}, err
	}
	h.manager.Initialize()

	byID := make(map[string]TaskResult, len(p.Tasks))
	halted := false

	for !h.manager.AllTerminal() {
		batch := h.manager.ExecutableTasks()
		if len(batch) == 0 {
			break
		}

		outcomes := h.runLayer(ctx, p, batch)

		// Retries already happened in-place inside runTask: a failed outcome
		// has exhausted its retries and the manager already has it recorded
		// as failed (with cascadeBlocked applied); a successful outcome is
		// marked completed here.
		layerFailed := false
		for _, o := range outcomes {
			byID[o.result.TaskID] = o.result
			switch o.kind {
			case outcomeCompleted:
				_ = h.manager.CompleteTask(o.result.TaskID)
			case outcomeFailed:
				layerFailed = true
			}
		}

		if layerFailed && !h.cfg.ContinueOnError {
			h.haltRemaining(p, byID)
			halted = true
			break
		}

		if ctx.Err() != nil {
			h.haltRemaining(p, byID)
			halted = true
			break
		}
	}

	if !halted {
		h.drainBlocked(p, byID)
	}

	finalize, finalizeErr := h.strategy.Finalize()

	failed := make(map[string]bool)
	for _, r := range byID {
		if r.Status == "failure" {
			failed[r.TaskID] = true
		}
	}
	_ = h.strategy.Cleanup(h.cfg.CleanupOnFailure, failed)

	result := Result{
		TotalDuration: time.Since(start),
		Branches:      dedupe(finalize.Branches),
		Commits:       dedupe(finalize.Commits),
	}
	for _, id := range p.IDs() {
		if r, ok := byID[id]; ok {
			result.Tasks = append(result.Tasks, r)
		}
	}
	return result, finalizeErr
}

// haltRemaining skips every task that hasn't resolved terminally, per
// spec.md §4.3 step 5e: "halted due to prior failure".
func (h *Handler) haltRemaining(p task.Plan, byID map[string]TaskResult) {
	for _, id := range p.IDs() {
		if _, done := byID[id]; done {
			continue
		}
		st, ok := h.manager.State(id)
		if !ok || st.IsTerminal() {
			continue
		}
		_ = h.manager.SkipTask(id, "halted due to prior failure")
		byID[id] = TaskResult{TaskID: id, Status: "skipped", Error: "halted due to prior failure"}
	}
}

// drainBlocked explicitly skips every task left in the non-terminal
// blocked state once no further progress is possible, so AllTerminal can
// resolve and the run can report a final status for it.
func (h *Handler) drainBlocked(p task.Plan, byID map[string]TaskResult) {
	for _, id := range p.IDs() {
		st, ok := h.manager.State(id)
		if !ok || st != task.StateBlocked {
			continue
		}
		_ = h.manager.SkipTask(id, "dependency did not complete")
		byID[id] = TaskResult{TaskID: id, Status: "skipped", Error: "dependency did not complete"}
	}
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, item := range items {
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}

type outcomeKind int

const (
	outcomeCompleted outcomeKind = iota
	outcomeFailed
)

type outcome struct {
	kind   outcomeKind
	result TaskResult
}

// runLayer drives every task in batch to resolution before the scheduler
// computes the next layer. A strategy that supports parallel execution
// (worktree, stacked) gets one worker per task, via a panic-safe
// structured-concurrency group. Direct does not: it runs every task in
// the same checkout, so running its tasks concurrently would corrupt a
// single shared index (see strategy.Direct's doc comment); those tasks
// run one at a time instead.
func (h *Handler) runLayer(ctx context.Context, p task.Plan, batch []string) []outcome {
	outcomes := make([]outcome, len(batch))

	if !h.strategy.SupportsParallel() {
		for i, id := range batch {
			outcomes[i] = h.runTask(ctx, p, id)
		}
		return outcomes
	}

	var wg conc.WaitGroup
	for i, id := range batch {
		i, id := i, id
		wg.Go(func() {
			outcomes[i] = h.runTask(ctx, p, id)
		})
	}
	wg.Wait()

	return outcomes
}

// runTask drives a single task through prepare -> agent -> complete,
// retrying in place (spec.md §4.3: "a failed task is retried in-place
// before the layer returns if retries remain") rather than handing a
// retry back to the scheduler for a later layer.
func (h *Handler) runTask(ctx context.Context, p task.Plan, id string) outcome {
	started := time.Now()
	t, _ := p.GetTask(id)

	if err := h.manager.StartTask(id); err != nil {
		return outcome{kind: outcomeFailed, result: TaskResult{TaskID: id, Status: "failure", Duration: time.Since(started), Error: err.Error()}}
	}

	for {
		res, err := h.attempt(ctx, t)
		if err == nil {
			return outcome{
				kind: outcomeCompleted,
				result: TaskResult{
					TaskID:   id,
					Status:   "success",
					Duration: time.Since(started),
					Output:   res.Output,
				},
			}
		}

		_ = h.manager.FailTask(id, err.Error())

		et, _ := h.manager.ExecutionTask(id)
		if !et.CanRetry() {
			return outcome{
				kind:   outcomeFailed,
				result: TaskResult{TaskID: id, Status: "failure", Duration: time.Since(started), Error: err.Error()},
			}
		}

		if rErr := h.manager.RetryTask(id); rErr != nil {
			return outcome{
				kind:   outcomeFailed,
				result: TaskResult{TaskID: id, Status: "failure", Duration: time.Since(started), Error: err.Error()},
			}
		}
		if rErr := h.manager.ResumeTask(id); rErr != nil {
			return outcome{
				kind:   outcomeFailed,
				result: TaskResult{TaskID: id, Status: "failure", Duration: time.Since(started), Error: err.Error()},
			}
		}

		h.sleep(50 * time.Millisecond)
	}
}

// attempt runs a single try of a task's body: prepare the workspace, run
// the agent, hand the result to the strategy to commit.
func (h *Handler) attempt(ctx context.Context, t task.Task) (agent.Result, error) {
	wctx, err := h.prepareWithDefer(t)
	if err != nil {
		return agent.Result{}, err
	}

	forbidden := h.scope.Forbidden(t.ID)
	req := agent.Request{
		TaskID:       t.ID,
		Prompt:       agent.BuildPrompt(t, wctx.Path, forbidden),
		Workdir:      wctx.Path,
		AllowedFiles: t.Files,
		Forbidden:    forbidden,
	}

	res, err := h.invoker.Execute(ctx, req)
	if err != nil {
		return agent.Result{}, err
	}

	completion, err := h.strategy.HandleCompletion(t, wctx)
	if err != nil {
		return agent.Result{}, err
	}
	if completion.NoChanges {
		return agent.Result{}, errNoChanges(t.ID)
	}

	return res, nil
}

func (h *Handler) prepareWithDefer(t task.Task) (strategy.Context, error) {
	for attempt := 0; attempt < deferredRetryLimit; attempt++ {
		wctx, err := h.strategy.PrepareTask(t)
		if err == nil {
			return wctx, nil
		}
		if err != strategy.ErrDeferred {
			return strategy.Context{}, err
		}
		h.sleep(50 * time.Millisecond)
	}
	return strategy.Context{}, errDeferredExhausted(t.ID)
}
