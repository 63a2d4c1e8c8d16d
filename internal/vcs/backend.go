// Package vcs implements the VCS backend capability (C1): a thin
// abstraction over the underlying version-control tool (git, git-spice,
// graphite, sapling) used by the execute handler and the VCS strategies.
// Every backend exposes the same capability set so strategies never branch
// on which tool is actually installed.
package vcs

// StackInfo describes a branch's position in a backend-tracked stack.
type StackInfo struct {
	Branch string
	Parent string // base ref or parent branch name
	Tip    string // HEAD commit of the branch
}

// SubmitOptions controls how a stack is submitted for review.
type SubmitOptions struct {
	Draft bool
}

// Backend is the capability set every VCS tool integration implements.
// Methods correspond 1:1 with spec.md §6's abstract interface.
type Backend struct {
	impl Impl
}

// Impl is implemented per concrete tool; Backend wraps it so
// callers always program against the same exported type.
type Impl interface {
	Name() string
	IsAvailable() bool
	CreateWorktree(path, baseRef, branch string) error
	RemoveWorktree(path string, force bool) error
	Status(path string) ([]string, error)
	Add(path string, paths []string) error
	Commit(path, message string) (string, error)
	BranchExists(name string) (bool, error)
	CreateBranchFromCommit(branch, commit, parent, cwd string) error
	DeleteBranch(branch, cwd string) error
	CherryPick(path, commit string) error
	ConflictingFiles(path string) ([]string, error)
	ResolveConflicts(path string, files []string, policy string) bool
	AbortCherryPick(path string) error
	Restack(cwd string) ([]StackInfo, error)
	GetStackInfo(cwd string) ([]StackInfo, error)
	SubmitStack(cwd string, opts SubmitOptions) ([]string, error)
}

// New wraps a concrete Impl in the exported Backend type. Production code
// should use Select; New exists so tests in other packages can exercise
// callers of *Backend against a fake Impl.
func New(impl Impl) *Backend { return &Backend{impl: impl} }

func wrap(impl Impl) *Backend { return New(impl) }

// Name returns the backend's identifying mode string.
func (b *Backend) Name() string { return b.impl.Name() }

// IsAvailable reports whether the underlying tool is installed and usable.
func (b *Backend) IsAvailable() bool { return b.impl.IsAvailable() }

// CreateWorktree creates a worktree at path on a new branch from baseRef.
// If branch is empty, a branch name is not created (CreateWorktree from
// an existing branch is a separate concern the strategy handles by name).
func (b *Backend) CreateWorktree(path, baseRef, branch string) error {
	return b.impl.CreateWorktree(path, baseRef, branch)
}

// RemoveWorktree removes the worktree at path.
func (b *Backend) RemoveWorktree(path string, force bool) error {
	return b.impl.RemoveWorktree(path, force)
}

// Status returns the paths with pending changes in path's working tree.
func (b *Backend) Status(path string) ([]string, error) { return b.impl.Status(path) }

// Add stages paths (or everything, if paths is empty) in path's working tree.
func (b *Backend) Add(path string, paths []string) error { return b.impl.Add(path, paths) }

// Commit commits staged changes in path and returns the new commit hash.
func (b *Backend) Commit(path, message string) (string, error) {
	return b.impl.Commit(path, message)
}

// BranchExists reports whether a branch with the given name exists.
func (b *Backend) BranchExists(name string) (bool, error) { return b.impl.BranchExists(name) }

// CreateBranchFromCommit creates branch at commit with parent recorded as
// its stack ancestor, run from cwd.
func (b *Backend) CreateBranchFromCommit(branch, commit, parent, cwd string) error {
	return b.impl.CreateBranchFromCommit(branch, commit, parent, cwd)
}

// DeleteBranch removes branch, run from cwd. Used to clean up a fallback
// branch created during a stack-materialization attempt that failed to
// resolve (spec.md §4.5 step 3: abort the cherry-pick, delete the branch).
func (b *Backend) DeleteBranch(branch, cwd string) error { return b.impl.DeleteBranch(branch, cwd) }

// CherryPick cherry-picks commit onto the current branch at path.
func (b *Backend) CherryPick(path, commit string) error { return b.impl.CherryPick(path, commit) }

// ConflictingFiles returns the files currently in a conflicted state at path.
func (b *Backend) ConflictingFiles(path string) ([]string, error) {
	return b.impl.ConflictingFiles(path)
}

// ResolveConflicts attempts to resolve a conflicted cherry-pick under the
// given policy ("auto", "manual", "fail") and reports whether it succeeded.
func (b *Backend) ResolveConflicts(path string, files []string, policy string) bool {
	return b.impl.ResolveConflicts(path, files, policy)
}

// AbortCherryPick aborts an in-progress cherry-pick at path.
func (b *Backend) AbortCherryPick(path string) error { return b.impl.AbortCherryPick(path) }

// Restack repairs out-of-order stack relationships under cwd and returns
// the resulting stack order.
func (b *Backend) Restack(cwd string) ([]StackInfo, error) { return b.impl.Restack(cwd) }

// GetStackInfo returns the current stack metadata under cwd.
func (b *Backend) GetStackInfo(cwd string) ([]StackInfo, error) { return b.impl.GetStackInfo(cwd) }

// SubmitStack submits the stack under cwd for review and returns one
// entry per submitted branch; the merge-commit backend pushes each
// branch and returns the branch names.
func (b *Backend) SubmitStack(cwd string, opts SubmitOptions) ([]string, error) {
	return b.impl.SubmitStack(cwd, opts)
}

// Select resolves a config VCS mode (after legacy-alias resolution) to a
// concrete Backend rooted at repoDir.
func Select(mode, repoDir string) (*Backend, error) {
	switch mode {
	case "git-spice":
		return wrap(newGitSpiceBackend(repoDir)), nil
	case "graphite":
		return wrap(newGraphiteBackend(repoDir)), nil
	case "sapling":
		return wrap(newSaplingBackend(repoDir)), nil
	case "merge-commit":
		return wrap(newGitBackend(repoDir)), nil
	default:
		return nil, errUnknownMode(mode)
	}
}

func errUnknownMode(mode string) error {
	return &unknownModeError{mode: mode}
}

type unknownModeError struct{ mode string }

func (e *unknownModeError) Error() string { return "vcs: unknown mode " + e.mode }
