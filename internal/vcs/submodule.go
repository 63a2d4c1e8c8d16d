package vcs

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// SubmoduleError reports a failed git submodule operation.
type SubmoduleError struct {
	Operation string
	Output    string
	Err       error
}

func (e *SubmoduleError) Error() string {
	return "submodule " + e.Operation + " failed: " + e.Err.Error() + "\n" + e.Output
}

func (e *SubmoduleError) Unwrap() error { return e.Err }

// HasSubmodules reports whether repoDir has a non-empty .gitmodules file.
func HasSubmodules(repoDir string) bool {
	info, err := os.Stat(filepath.Join(repoDir, ".gitmodules"))
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

// InitSubmodules initializes and updates submodules inside worktreePath. A
// no-op if repoRoot has no submodules. Every new task worktree needs this
// before an agent can see submodule content, since `git worktree add`
// itself leaves submodules uninitialized.
//
// protocol.file.allow=always is required for git 2.38+, which blocks
// file:// submodule URLs by default; test fixtures rely on local file
// references, and real deployments may too.
func InitSubmodules(repoRoot, worktreePath string) error {
	if !HasSubmodules(repoRoot) {
		return nil
	}

	args := []string{"-c", "protocol.file.allow=always", "submodule", "update", "--init", "--recursive"}
	cmd := exec.Command("git", args...)
	cmd.Dir = worktreePath

	output, err := cmd.CombinedOutput()
	if err != nil && isSubmoduleCriticalError(string(output)) {
		return &SubmoduleError{Operation: "init", Output: string(output), Err: err}
	}
	return nil
}

// IsSubmoduleDir reports whether path is the root of a git submodule: it
// has a .git file (not directory) referencing a gitdir elsewhere. Used to
// skip recursing into submodules during file watching.
func IsSubmoduleDir(path string) bool {
	gitPath := filepath.Join(path, ".git")
	info, err := os.Stat(gitPath)
	if err != nil {
		return false
	}
	if !info.Mode().IsRegular() {
		return false
	}
	content, err := os.ReadFile(gitPath)
	if err != nil {
		return false
	}
	return strings.HasPrefix(string(content), "gitdir:")
}

func isSubmoduleCriticalError(output string) bool {
	criticalPatterns := []string{
		"fatal:",
		"permission denied",
		"could not read from remote",
		"repository not found",
		"unable to access",
		"authentication failed",
		"host key verification failed",
		"no submodule mapping found",
	}

	lower := strings.ToLower(output)
	for _, pattern := range criticalPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return strings.Contains(lower, "clone") && strings.Contains(lower, "failed")
}
