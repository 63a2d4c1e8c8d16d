package vcs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arittr/chopstack/internal/testutil"
)

// These tests exercise the git backend against a real repository rather
// than a fake executor, confirming the argument lists in git.go actually
// do what they claim against the real CLI.

func TestGitBackendIntegrationCreateWorktreeAndCommit(t *testing.T) {
	testutil.SkipIfNoGit(t)

	repoDir := testutil.SetupTestRepo(t)
	backend, err := Select("merge-commit", repoDir)
	require.NoError(t, err)
	assert.True(t, backend.IsAvailable())

	wtPath := filepath.Join(t.TempDir(), "task-a")
	require.NoError(t, backend.CreateWorktree(wtPath, "main", "chopstack/task-a"))

	exists, err := backend.BranchExists("chopstack/task-a")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, os.WriteFile(filepath.Join(wtPath, "feature.txt"), []byte("hello\n"), 0644))

	changed, err := backend.Status(wtPath)
	require.NoError(t, err)
	assert.Contains(t, changed, "feature.txt")

	require.NoError(t, backend.Add(wtPath, nil))
	hash, err := backend.Commit(wtPath, "add feature.txt")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	require.NoError(t, backend.RemoveWorktree(wtPath, true))
}

func TestGitBackendIntegrationCommitWithNoChangesReturnsEmptyHash(t *testing.T) {
	testutil.SkipIfNoGit(t)

	repoDir := testutil.SetupTestRepo(t)
	backend, err := Select("merge-commit", repoDir)
	require.NoError(t, err)

	hash, err := backend.Commit(repoDir, "nothing to see here")
	require.NoError(t, err)
	assert.Empty(t, hash)
}

func TestGitBackendIntegrationCreateBranchFromCommitTracksParent(t *testing.T) {
	testutil.SkipIfNoGit(t)

	repoDir := testutil.SetupTestRepo(t)
	backend, err := Select("merge-commit", repoDir)
	require.NoError(t, err)

	testutil.CommitFile(t, repoDir, "a.txt", "a\n", "commit a")

	gb := backend.impl.(*gitBackend)
	headBytes, err := gb.executor.Run(repoDir, "git", "rev-parse", "HEAD")
	require.NoError(t, err)
	head := trimNewline(string(headBytes))

	require.NoError(t, backend.CreateBranchFromCommit("chopstack/a", head, "main", repoDir))

	infos, err := backend.GetStackInfo(repoDir)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "chopstack/a", infos[0].Branch)
	assert.Equal(t, "main", infos[0].Parent)
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
