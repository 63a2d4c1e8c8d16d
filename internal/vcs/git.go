package vcs

import (
	"fmt"
	"strings"

	"github.com/arittr/chopstack/internal/cherr"
)

// gitBackend implements Backend for plain git: stacking is simulated with
// ordinary branches created at each task's commit, their stack parents
// kept in memory rather than by a dedicated stacking tool. This is
// the "merge-commit" mode and legacy aliases simple/worktree resolve to
// it (see internal/config.VCSConfig.ResolveMode).
type gitBackend struct {
	repoDir  string
	executor commandExecutor
	// parents records the stack parent recorded for each branch created
	// via CreateBranchFromCommit, since plain git has no native stack
	// metadata to query back out.
	parents map[string]string
}

func newGitBackend(repoDir string) *gitBackend {
	return &gitBackend{repoDir: repoDir, executor: cliExecutor{}, parents: make(map[string]string)}
}

func (g *gitBackend) Name() string { return "merge-commit" }

func (g *gitBackend) IsAvailable() bool {
	return g.executor.RunQuiet(g.repoDir, "git", "rev-parse", "--git-dir") == nil
}

func (g *gitBackend) CreateWorktree(path, baseRef, branch string) error {
	args := []string{"worktree", "add"}
	if branch != "" {
		args = append(args, "-b", branch)
	}
	args = append(args, path)
	if baseRef != "" {
		args = append(args, baseRef)
	}

	output, err := g.executor.Run(g.repoDir, "git", args...)
	if err != nil {
		return cherr.Wrapf(err, "failed to create worktree at %s: %s", path, truncate(output, 500))
	}
	if err := InitSubmodules(g.repoDir, path); err != nil {
		return cherr.Wrapf(err, "failed to initialize submodules in worktree at %s", path)
	}
	return nil
}

func (g *gitBackend) RemoveWorktree(path string, force bool) error {
	args := []string{"worktree", "remove", path}
	if force {
		args = append(args, "--force")
	}
	if _, err := g.executor.Run(g.repoDir, "git", args...); err != nil {
		// Worktree removal failing is non-fatal to the caller; prune so
		// a subsequent worktree at the same path doesn't collide.
		_ = g.executor.RunQuiet(g.repoDir, "git", "worktree", "prune")
	}
	return nil
}

func (g *gitBackend) Status(path string) ([]string, error) {
	output, err := g.executor.Run(path, "git", "status", "--porcelain")
	if err != nil {
		return nil, cherr.Wrapf(err, "failed to read git status in %s", path)
	}
	return parsePorcelainFiles(string(output)), nil
}

func (g *gitBackend) Add(path string, paths []string) error {
	args := []string{"add"}
	if len(paths) == 0 {
		args = append(args, "-A")
	} else {
		args = append(args, paths...)
	}
	if output, err := g.executor.Run(path, "git", args...); err != nil {
		return cherr.Wrapf(err, "failed to stage changes in %s: %s", path, truncate(output, 300))
	}
	return nil
}

func (g *gitBackend) Commit(path, message string) (string, error) {
	output, err := g.executor.Run(path, "git", "commit", "-m", message)
	if err != nil {
		if strings.Contains(string(output), "nothing to commit") {
			return "", nil
		}
		return "", cherr.Wrapf(err, "failed to commit in %s: %s", path, truncate(output, 300))
	}

	hash, err := g.executor.Run(path, "git", "rev-parse", "HEAD")
	if err != nil {
		return "", cherr.Wrap(err, "failed to resolve HEAD after commit")
	}
	return strings.TrimSpace(string(hash)), nil
}

func (g *gitBackend) BranchExists(name string) (bool, error) {
	err := g.executor.RunQuiet(g.repoDir, "git", "rev-parse", "--verify", "refs/heads/"+name)
	return err == nil, nil
}

func (g *gitBackend) CreateBranchFromCommit(branch, commit, parent, cwd string) error {
	if output, err := g.executor.Run(cwd, "git", "branch", branch, commit); err != nil {
		return cherr.Wrapf(err, "failed to create branch %s from %s: %s", branch, commit, truncate(output, 300))
	}
	g.parents[branch] = parent
	return nil
}

func (g *gitBackend) DeleteBranch(branch, cwd string) error {
	if output, err := g.executor.Run(cwd, "git", "branch", "-D", branch); err != nil {
		return cherr.Wrapf(err, "failed to delete branch %s: %s", branch, truncate(output, 300))
	}
	delete(g.parents, branch)
	return nil
}

func (g *gitBackend) CherryPick(path, commit string) error {
	output, err := g.executor.Run(path, "git", "cherry-pick", commit)
	if err != nil {
		outputStr := string(output)
		if strings.Contains(outputStr, "CONFLICT") || strings.Contains(outputStr, "could not apply") {
			return &CherryPickConflictError{Commit: commit, Output: outputStr}
		}
		return cherr.Wrapf(err, "failed to cherry-pick %s: %s", commit, truncate(output, 300))
	}
	return nil
}

func (g *gitBackend) ConflictingFiles(path string) ([]string, error) {
	output, err := g.executor.Run(path, "git", "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, cherr.Wrapf(err, "failed to list conflicting files in %s", path)
	}
	lines := strings.TrimSpace(string(output))
	if lines == "" {
		return nil, nil
	}
	return strings.Split(lines, "\n"), nil
}

// ResolveConflicts applies the cherry-pick conflict policy described in
// spec.md §4.5: "auto" takes --ours then --theirs per file and re-stages;
// any failure during auto resolution is treated the same as "manual" and
// "fail" — the conflict is reported unresolved.
func (g *gitBackend) ResolveConflicts(path string, files []string, policy string) bool {
	if policy != "auto" {
		return false
	}
	for _, f := range files {
		if _, err := g.executor.Run(path, "git", "checkout", "--ours", f); err != nil {
			if _, err := g.executor.Run(path, "git", "checkout", "--theirs", f); err != nil {
				return false
			}
		}
		if _, err := g.executor.Run(path, "git", "add", f); err != nil {
			return false
		}
	}
	return true
}

func (g *gitBackend) AbortCherryPick(path string) error {
	if output, err := g.executor.Run(path, "git", "cherry-pick", "--abort"); err != nil {
		return cherr.Wrapf(err, "failed to abort cherry-pick in %s: %s", path, truncate(output, 300))
	}
	return nil
}

func (g *gitBackend) Restack(cwd string) ([]StackInfo, error) {
	// Plain git has no native restack; the stack is already a linear
	// chain of branch-from-commit operations, so restacking is a no-op
	// report of the currently recorded parent chain.
	return g.GetStackInfo(cwd)
}

func (g *gitBackend) GetStackInfo(cwd string) ([]StackInfo, error) {
	infos := make([]StackInfo, 0, len(g.parents))
	for branch, parent := range g.parents {
		tip, err := g.executor.Run(cwd, "git", "rev-parse", branch)
		if err != nil {
			return nil, cherr.Wrapf(err, "failed to resolve tip of %s", branch)
		}
		infos = append(infos, StackInfo{Branch: branch, Parent: parent, Tip: strings.TrimSpace(string(tip))})
	}
	return infos, nil
}

func (g *gitBackend) SubmitStack(cwd string, opts SubmitOptions) ([]string, error) {
	var urls []string
	for branch := range g.parents {
		args := []string{"push", "-u", "origin", branch}
		if output, err := g.executor.Run(cwd, "git", args...); err != nil {
			return nil, cherr.Wrapf(err, "failed to push %s: %s", branch, truncate(output, 300))
		}
		urls = append(urls, branch)
	}
	return urls, nil
}

func parsePorcelainFiles(output string) []string {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	var files []string
	for _, line := range lines {
		if len(line) < 4 {
			continue
		}
		files = append(files, strings.TrimSpace(line[3:]))
	}
	return files
}

func truncate(b []byte, limit int) string {
	s := string(b)
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

// CherryPickConflictError reports that a cherry-pick stopped on conflicts.
type CherryPickConflictError struct {
	Commit string
	Output string
}

func (e *CherryPickConflictError) Error() string {
	return fmt.Sprintf("cherry-pick of %s produced conflicts", e.Commit)
}
