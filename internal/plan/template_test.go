package plan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arittr/chopstack/internal/task"
)

func TestCommitMessageIncludesNameAndFiles(t *testing.T) {
	tk := task.Task{
		ID:          "t1",
		Name:        "Add user model",
		Description: "Create the user model and migration.",
	}

	msg := CommitMessage(tk, []string{"models/user.go", "migrations/001_user.sql"})

	assert.True(t, strings.HasPrefix(msg, "Add user model\n"))
	assert.Contains(t, msg, "Create the user model and migration.")
	assert.Contains(t, msg, "models/user.go")
	assert.Contains(t, msg, "migrations/001_user.sql")
	assert.Contains(t, msg, "task-id: t1")
}

func TestCommitMessageTruncatesLongDescription(t *testing.T) {
	tk := task.Task{
		ID:          "t1",
		Name:        "Big task",
		Description: strings.Repeat("word ", 100),
	}

	msg := CommitMessage(tk, nil)
	assert.Contains(t, msg, "...")
}

func TestCommitMessageOmitsFilesSectionWhenEmpty(t *testing.T) {
	tk := task.Task{ID: "t1", Name: "No files task"}
	msg := CommitMessage(tk, nil)
	assert.NotContains(t, msg, "Files changed:")
}

func TestFormatPlanForDisplayIncludesPhasesAndTasks(t *testing.T) {
	p := task.Plan{
		Name:     "add-auth",
		Strategy: task.StrategyPhasedParallel,
		Phases: []task.Phase{
			{ID: "phase-1", Name: "Foundations", Strategy: task.StrategyParallel, Tasks: []string{"t1"}},
		},
		Tasks: []task.Task{
			{ID: "t1", Name: "Add user model", Complexity: task.ComplexityS},
		},
		SuccessMetrics: []string{"All routes require a valid token"},
	}

	out := FormatPlanForDisplay(p)
	assert.Contains(t, out, "Plan: add-auth")
	assert.Contains(t, out, "Phase phase-1: Foundations")
	assert.Contains(t, out, "Add user model")
	assert.Contains(t, out, "All routes require a valid token")
}

func TestFormatPlanForDisplayFallsBackToFlatTaskList(t *testing.T) {
	p := task.Plan{
		Name: "no-phases",
		Tasks: []task.Task{
			{ID: "t1", Name: "Solo task", Complexity: task.ComplexityXS},
		},
	}

	out := FormatPlanForDisplay(p)
	assert.Contains(t, out, "Solo task")
}
