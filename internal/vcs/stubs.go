package vcs

import "github.com/arittr/chopstack/internal/cherr"

// The git-spice, graphite, and sapling backends are stubs: none of them
// calls its CLI (gs, gt, sl), every operation returns a
// ToolUnavailableError, and IsAvailable always reports false. The
// engine's backend-selection fallback (spec.md §7, "Tool unavailable")
// therefore drops to merge-commit with a warning unless the mode was
// requested explicitly, in which case it is fatal.

type stubBackend struct {
	name    string
	repoDir string
}

func newGitSpiceBackend(repoDir string) *stubBackend { return &stubBackend{name: "git-spice", repoDir: repoDir} }
func newGraphiteBackend(repoDir string) *stubBackend { return &stubBackend{name: "graphite", repoDir: repoDir} }
func newSaplingBackend(repoDir string) *stubBackend  { return &stubBackend{name: "sapling", repoDir: repoDir} }

func (s *stubBackend) Name() string      { return s.name }
func (s *stubBackend) IsAvailable() bool { return false }

func (s *stubBackend) CreateWorktree(path, baseRef, branch string) error { return s.unavailable() }
func (s *stubBackend) RemoveWorktree(path string, force bool) error      { return s.unavailable() }
func (s *stubBackend) Status(path string) ([]string, error)              { return nil, s.unavailable() }
func (s *stubBackend) Add(path string, paths []string) error             { return s.unavailable() }
func (s *stubBackend) Commit(path, message string) (string, error)       { return "", s.unavailable() }
func (s *stubBackend) BranchExists(name string) (bool, error)            { return false, s.unavailable() }
func (s *stubBackend) CreateBranchFromCommit(branch, commit, parent, cwd string) error {
	return s.unavailable()
}
func (s *stubBackend) DeleteBranch(branch, cwd string) error { return s.unavailable() }
func (s *stubBackend) CherryPick(path, commit string) error  { return s.unavailable() }
func (s *stubBackend) ConflictingFiles(path string) ([]string, error) {
	return nil, s.unavailable()
}
func (s *stubBackend) ResolveConflicts(path string, files []string, policy string) bool {
	return false
}
func (s *stubBackend) AbortCherryPick(path string) error { return s.unavailable() }
func (s *stubBackend) Restack(cwd string) ([]StackInfo, error) {
	return nil, s.unavailable()
}
func (s *stubBackend) GetStackInfo(cwd string) ([]StackInfo, error) {
	return nil, s.unavailable()
}
func (s *stubBackend) SubmitStack(cwd string, opts SubmitOptions) ([]string, error) {
	return nil, s.unavailable()
}

func (s *stubBackend) unavailable() error {
	return cherr.NewToolUnavailableError(s.name, "install the "+s.name+" CLI and ensure it is on PATH")
}
