package vcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	runs       []call
	runOutputs map[string][]byte
	runErrs    map[string]error
	quietErrs  map[string]error
}

type call struct {
	dir  string
	name string
	args []string
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		runOutputs: make(map[string][]byte),
		runErrs:    make(map[string]error),
		quietErrs:  make(map[string]error),
	}
}

func key(args []string) string {
	s := ""
	for _, a := range args {
		s += a + " "
	}
	return s
}

func (f *fakeExecutor) Run(dir, name string, args ...string) ([]byte, error) {
	f.runs = append(f.runs, call{dir, name, args})
	k := key(args)
	return f.runOutputs[k], f.runErrs[k]
}

func (f *fakeExecutor) RunQuiet(dir, name string, args ...string) error {
	f.runs = append(f.runs, call{dir, name, args})
	return f.quietErrs[key(args)]
}

func TestGitBackendIsAvailableChecksGitDir(t *testing.T) {
	exec := newFakeExecutor()
	b := newGitBackend("/repo")
	b.executor = exec

	assert.True(t, b.IsAvailable())
}

func TestGitBackendCreateWorktreeBuildsExpectedArgs(t *testing.T) {
	exec := newFakeExecutor()
	b := newGitBackend("/repo")
	b.executor = exec

	require.NoError(t, b.CreateWorktree("/repo/.shadow/t1", "main", "chopstack/t1"))

	require.Len(t, exec.runs, 1)
	assert.Equal(t, []string{"worktree", "add", "-b", "chopstack/t1", "/repo/.shadow/t1", "main"}, exec.runs[0].args)
}

func TestGitBackendCommitReturnsEmptyHashWhenNothingToCommit(t *testing.T) {
	exec := newFakeExecutor()
	exec.runOutputs[key([]string{"commit", "-m", "msg"})] = []byte("nothing to commit, working tree clean")
	exec.runErrs[key([]string{"commit", "-m", "msg"})] = assertError{}

	b := newGitBackend("/repo")
	b.executor = exec

	hash, err := b.Commit("/repo", "msg")
	require.NoError(t, err)
	assert.Empty(t, hash)
}

func TestGitBackendCherryPickReturnsConflictError(t *testing.T) {
	exec := newFakeExecutor()
	exec.runOutputs[key([]string{"cherry-pick", "abc123"})] = []byte("CONFLICT (content): Merge conflict in a.go")
	exec.runErrs[key([]string{"cherry-pick", "abc123"})] = assertError{}

	b := newGitBackend("/repo")
	b.executor = exec

	err := b.CherryPick("/repo", "abc123")
	require.Error(t, err)
	var conflictErr *CherryPickConflictError
	assert.ErrorAs(t, err, &conflictErr)
}

func TestGitBackendCreateBranchFromCommitRecordsParent(t *testing.T) {
	exec := newFakeExecutor()
	b := newGitBackend("/repo")
	b.executor = exec

	require.NoError(t, b.CreateBranchFromCommit("chopstack/t2", "abc123", "chopstack/t1", "/repo"))
	assert.Equal(t, "chopstack/t1", b.parents["chopstack/t2"])
}

func TestGitBackendDeleteBranchForgetsParent(t *testing.T) {
	exec := newFakeExecutor()
	b := newGitBackend("/repo")
	b.executor = exec

	require.NoError(t, b.CreateBranchFromCommit("chopstack/t2", "abc123", "chopstack/t1", "/repo"))
	require.NoError(t, b.DeleteBranch("chopstack/t2", "/repo"))
	_, ok := b.parents["chopstack/t2"]
	assert.False(t, ok)
}

func TestStubBackendsReportUnavailable(t *testing.T) {
	for _, b := range []*stubBackend{
		newGitSpiceBackend("/repo"),
		newGraphiteBackend("/repo"),
		newSaplingBackend("/repo"),
	} {
		assert.False(t, b.IsAvailable())
		_, err := b.Commit("/repo", "msg")
		assert.Error(t, err)
	}
}

func TestSelectUnknownModeReturnsError(t *testing.T) {
	_, err := Select("mercurial", "/repo")
	assert.Error(t, err)
}

func TestSelectMergeCommitReturnsGitBackend(t *testing.T) {
	backend, err := Select("merge-commit", "/repo")
	require.NoError(t, err)
	assert.Equal(t, "merge-commit", backend.Name())
}

// assertError is a minimal non-nil error used to simulate git CLI
// "failure" exit codes whose real signal is in combined output, not err.
type assertError struct{}

func (assertError) Error() string { return "exit status 1" }
