package watch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherNewAndStop(t *testing.T) {
	w, err := New(nil)
	require.NoError(t, err)

	w.Start()
	time.Sleep(10 * time.Millisecond)
	w.Stop()
}

func TestWatcherAddTaskRejectsNonExistentPath(t *testing.T) {
	w, err := New(nil)
	require.NoError(t, err)
	defer w.Stop()

	w.Start()

	missing := filepath.Join(t.TempDir(), "does-not-exist")
	err = w.AddTask("t1", missing)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "does not exist"))
}

func TestWatcherAddTaskRejectsFile(t *testing.T) {
	w, err := New(nil)
	require.NoError(t, err)
	defer w.Stop()

	f, err := os.CreateTemp("", "watch-test-file-*")
	require.NoError(t, err)
	defer func() { _ = os.Remove(f.Name()) }()
	_ = f.Close()

	err = w.AddTask("t1", f.Name())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a directory")
}

func TestWatcherDetectsCrossTaskConflict(t *testing.T) {
	w, err := New(nil)
	require.NoError(t, err)
	defer w.Stop()

	dirA := t.TempDir()
	dirB := t.TempDir()

	w.Start()

	require.NoError(t, w.AddTask("task-a", dirA))
	require.NoError(t, w.AddTask("task-b", dirB))

	assert.False(t, w.HasConflicts())

	const rel = "shared.txt"
	require.NoError(t, os.WriteFile(filepath.Join(dirA, rel), []byte("from a"), 0644))
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dirB, rel), []byte("from b"), 0644))
	time.Sleep(200 * time.Millisecond)

	require.True(t, w.HasConflicts())
	conflicts := w.Conflicts()
	require.Len(t, conflicts, 1)
	assert.Equal(t, rel, conflicts[0].RelativePath)
	assert.ElementsMatch(t, []string{"task-a", "task-b"}, conflicts[0].TaskIDs)
}

func TestWatcherRemoveTaskClearsItsModifications(t *testing.T) {
	w, err := New(nil)
	require.NoError(t, err)
	defer w.Stop()

	dirA := t.TempDir()
	dirB := t.TempDir()
	w.Start()

	require.NoError(t, w.AddTask("task-a", dirA))
	require.NoError(t, w.AddTask("task-b", dirB))

	const rel = "shared.txt"
	require.NoError(t, os.WriteFile(filepath.Join(dirA, rel), []byte("a"), 0644))
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dirB, rel), []byte("b"), 0644))
	time.Sleep(200 * time.Millisecond)
	require.True(t, w.HasConflicts())

	w.RemoveTask("task-a")
	assert.False(t, w.HasConflicts())
}

func TestIsInsideSubmoduleFalseForOrdinaryPath(t *testing.T) {
	assert.False(t, isInsideSubmodule(filepath.Join(t.TempDir(), "file.txt")))
}
