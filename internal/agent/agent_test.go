package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arittr/chopstack/internal/task"
)

func TestBuildPromptIncludesAllowedAndForbiddenFiles(t *testing.T) {
	tk := task.Task{
		Name:               "Add retry logic",
		Description:        "Wrap the client call in a retry loop.",
		Files:              []string{"client.go"},
		AcceptanceCriteria: []string{"retries 3 times"},
	}
	prompt := BuildPrompt(tk, "/work/t1", []string{"server.go"})

	assert.Contains(t, prompt, "Add retry logic")
	assert.Contains(t, prompt, "/work/t1")
	assert.Contains(t, prompt, "client.go")
	assert.Contains(t, prompt, "retries 3 times")
	assert.Contains(t, prompt, "server.go")
}

func TestBuildPromptOmitsForbiddenSectionWhenEmpty(t *testing.T) {
	tk := task.Task{Name: "n", Description: "d", Files: []string{"a.go"}}
	prompt := BuildPrompt(tk, "/work", nil)
	assert.NotContains(t, prompt, "reserved by other tasks")
}

func TestSubprocessInvokerDefaultsToClaudePrint(t *testing.T) {
	inv := NewSubprocessInvoker("", nil)
	assert.Equal(t, "claude", inv.Command)
	assert.Equal(t, []string{"--print"}, inv.Args)
}

func TestSubprocessInvokerRunsConfiguredCommand(t *testing.T) {
	inv := NewSubprocessInvoker("echo", nil)
	result, err := inv.Execute(context.Background(), Request{TaskID: "t1", Prompt: "hello"})
	require.NoError(t, err)
	assert.Contains(t, result.Output, "hello")
	assert.Equal(t, 0, result.ExitCode)
}

func TestSubprocessInvokerReturnsErrorOnNonzeroExit(t *testing.T) {
	inv := NewSubprocessInvoker("false", nil)
	_, err := inv.Execute(context.Background(), Request{TaskID: "t1"})
	require.Error(t, err)
}
