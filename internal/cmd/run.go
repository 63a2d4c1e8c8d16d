package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/arittr/chopstack/internal/agent"
	"github.com/arittr/chopstack/internal/cherr"
	"github.com/arittr/chopstack/internal/clog"
	appconfig "github.com/arittr/chopstack/internal/config"
	"github.com/arittr/chopstack/internal/execute"
	"github.com/arittr/chopstack/internal/plan"
	"github.com/arittr/chopstack/internal/scope"
	"github.com/arittr/chopstack/internal/strategy"
	"github.com/arittr/chopstack/internal/task"
	"github.com/arittr/chopstack/internal/transition"
	"github.com/arittr/chopstack/internal/validate"
	"github.com/arittr/chopstack/internal/vcs"
	"github.com/arittr/chopstack/internal/watch"
)

var runCmd = &cobra.Command{
	Use:   "run [plan-file]",
	Short: "Execute a plan",
	Long: `Run loads a plan file, validates it (C3), then drives every task to
completion layer by layer: an agent subprocess runs inside an isolated git
working copy per the selected VCS strategy (direct, worktree, stacked),
and a successful task's changes are committed and folded into a branch.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var (
	runStrategy   string
	runBaseRef    string
	runDryRun     bool
	runWatchFiles bool
)

func init() {
	runCmd.Flags().StringVar(&runStrategy, "strategy", "", "VCS strategy override: direct, worktree, stacked")
	runCmd.Flags().StringVar(&runBaseRef, "base", "HEAD", "base ref every task's workspace is forked from")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "validate the plan and print its tasks, dependencies and files in plan order without running it")
	runCmd.Flags().BoolVar(&runWatchFiles, "watch-files", false, "warn about cross-task file conflicts as they happen, not just at commit time")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := appconfig.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	p, err := plan.Load(args[0])
	if err != nil {
		return fmt.Errorf("failed to load plan: %w", err)
	}

	result := validate.ValidatePlan(p)
	if !result.Valid {
		return cherr.NewPlanInvalidError("plan failed validation", result.Errors)
	}

	if runDryRun {
		return printDryRun(p)
	}

	repoDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to resolve working directory: %w", err)
	}

	backend, err := selectBackend(cfg, repoDir)
	if err != nil {
		return err
	}

	validationMode := scope.Mode(cfg.Execution.ValidationMode)
	validator := scope.NewValidator(p, validationMode, false)

	strat, err := selectStrategy(cfg, backend, repoDir, validator)
	if err != nil {
		return err
	}

	var watcher *watch.Watcher
	if runWatchFiles {
		watcher, err = watch.New(nil)
		if err != nil {
			return fmt.Errorf("failed to start file watcher: %w", err)
		}
		watcher.Start()
		defer watcher.Stop()
		if setter, ok := strat.(interface{ SetWatcher(*watch.Watcher) }); ok {
			setter.SetWatcher(watcher)
		}
	}

	logger, err := clog.New("", cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Close() }()

	manager := transition.NewManager(p, cfg.Execution.MaxRetries)
	manager.Initialize()

	invoker := agent.NewSubprocessInvoker(cfg.Agent.Command, cfg.Agent.Args)
	invoker.UsePTY = cfg.Agent.UsePTY

	handler := execute.NewHandler(strat, manager, invoker, validator, execute.Config{
		Cwd:              repoDir,
		ContinueOnError:  cfg.Execution.ContinueOnError,
		MaxRetries:       cfg.Execution.MaxRetries,
		ValidationMode:   validationMode,
		ParentRef:        runBaseRef,
		CleanupOnFailure: cfg.VCS.CleanupOnFailure,
	}, logger)

	runResult, err := handler.Run(context.Background(), p)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	if watcher != nil && watcher.HasConflicts() {
		fmt.Println("file conflicts detected during the run:")
		for _, c := range watcher.Conflicts() {
			fmt.Printf("  - %s: %v\n", c.RelativePath, c.TaskIDs)
		}
	}

	return printRunSummary(runResult)
}

// selectBackend resolves cfg's VCS mode to a Backend, falling back to
// merge-commit with a warning when an unavailable mode was never explicitly
// requested (spec.md §7: a defaulted mode degrades gracefully; an explicit
// one is fatal when its tool is missing).
func selectBackend(cfg *appconfig.Config, repoDir string) (*vcs.Backend, error) {
	mode := cfg.VCS.ResolveMode()
	backend, err := vcs.Select(mode, repoDir)
	if err != nil {
		return nil, fmt.Errorf("failed to select VCS backend: %w", err)
	}
	if backend.IsAvailable() {
		return backend, nil
	}

	if appconfig.VCSModeExplicit() {
		return nil, cherr.NewToolUnavailableError(mode, fmt.Sprintf("install the %s CLI and ensure it is on PATH", mode))
	}

	fmt.Printf("warning: %s is not available, falling back to merge-commit\n", mode)
	fallback, err := vcs.Select("merge-commit", repoDir)
	if err != nil {
		return nil, fmt.Errorf("failed to select fallback VCS backend: %w", err)
	}
	if !fallback.IsAvailable() {
		return nil, cherr.NewToolUnavailableError("merge-commit", "install git and ensure it is on PATH")
	}
	return fallback, nil
}

func selectStrategy(cfg *appconfig.Config, backend *vcs.Backend, repoDir string, v *scope.Validator) (strategy.Strategy, error) {
	name := runStrategy
	if name == "" {
		if backend.Name() == "merge-commit" {
			name = "worktree"
		} else {
			name = "stacked"
		}
	}

	shadowDir := filepath.Join(repoDir, cfg.VCS.ShadowPath)

	switch name {
	case "direct":
		return strategy.NewDirect(backend, repoDir, v), nil
	case "worktree":
		return strategy.NewWorktree(backend, shadowDir, cfg.VCS.BranchPrefix, v), nil
	case "stacked":
		return strategy.NewStacked(backend, repoDir, shadowDir, cfg.VCS.BranchPrefix, cfg.VCS.ConflictResolution, v), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q: must be one of direct, worktree, stacked", name)
	}
}

func printDryRun(p task.Plan) error {
	fmt.Printf("%s: %d tasks, strategy=%s\n", p.Name, p.TaskCount(), p.Strategy)
	for _, t := range p.Tasks {
		fmt.Printf("  %s depends_on=%v files=%v\n", t.ID, t.DependsOn, t.Files)
	}
	return nil
}

func printRunSummary(result execute.Result) error {
	var failed int
	for _, t := range result.Tasks {
		status := t.Status
		if status == "failure" {
			failed++
		}
		fmt.Printf("%-8s %-20s %s\n", status, t.TaskID, t.Duration)
	}
	fmt.Printf("\n%d task(s), %d failed, %s total\n", len(result.Tasks), failed, result.TotalDuration)
	for _, b := range result.Branches {
		fmt.Printf("branch: %s\n", b)
	}
	if failed > 0 {
		return fmt.Errorf("run finished with %d failed task(s)", failed)
	}
	return nil
}
