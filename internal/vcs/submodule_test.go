//go:build integration

package vcs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arittr/chopstack/internal/testutil"
)

func TestHasSubmodulesDetectsGitmodulesFile(t *testing.T) {
	testutil.SkipIfNoGit(t)

	plain := testutil.SetupTestRepo(t)
	assert.False(t, HasSubmodules(plain))

	mainRepo, _ := testutil.SetupTestRepoWithSubmodule(t)
	assert.True(t, HasSubmodules(mainRepo))
}

func TestInitSubmodulesPopulatesWorktree(t *testing.T) {
	testutil.SkipIfNoGit(t)

	mainRepo, _ := testutil.SetupTestRepoWithSubmodule(t)

	backend, err := Select("merge-commit", mainRepo)
	require.NoError(t, err)

	wtPath := filepath.Join(t.TempDir(), "wt")
	require.NoError(t, backend.CreateWorktree(wtPath, "main", "chopstack/wt"))

	assert.True(t, IsSubmoduleDir(filepath.Join(wtPath, "vendor/submod")))
}

func TestIsSubmoduleDirFalseForOrdinaryDirectory(t *testing.T) {
	testutil.SkipIfNoGit(t)

	repoDir := testutil.SetupTestRepo(t)
	assert.False(t, IsSubmoduleDir(repoDir))
	assert.False(t, IsSubmoduleDir(filepath.Join(repoDir, "does-not-exist")))
}
