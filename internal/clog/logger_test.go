package clog

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONToRunDir(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(dir, LevelDebug)
	require.NoError(t, err)

	logger.WithRun("run-1").WithTask("task-a").Info("started", "attempt", 1)
	require.NoError(t, logger.Close())

	f, err := os.Open(filepath.Join(dir, "run.log"))
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())
	line := scanner.Text()
	assert.Contains(t, line, `"run_id":"run-1"`)
	assert.Contains(t, line, `"task_id":"task-a"`)
	assert.Contains(t, line, `"msg":"started"`)
}

func TestNopLoggerDiscardsOutput(t *testing.T) {
	logger := NopLogger()
	assert.NotPanics(t, func() {
		logger.Info("anything")
		logger.Error("anything else")
	})
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
}
