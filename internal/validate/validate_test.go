package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arittr/chopstack/internal/task"
)

func planOf(tasks ...task.Task) task.Plan {
	return task.Plan{Name: "p", Tasks: tasks}
}

func TestValidatePlanCleanPlanIsValid(t *testing.T) {
	p := planOf(
		task.Task{ID: "a", Description: "does the first thing", Files: []string{"a.go"}},
		task.Task{ID: "b", Description: "does the second thing", Files: []string{"b.go"}, DependsOn: []string{"a"}},
	)

	r := ValidatePlan(p)
	assert.True(t, r.Valid)
	assert.Empty(t, r.Errors)
	assert.Empty(t, r.CircularDependencies)
	assert.Empty(t, r.Conflicts)
}

func TestValidatePlanDetectsDuplicateIDs(t *testing.T) {
	p := planOf(
		task.Task{ID: "a", Description: "does the first thing"},
		task.Task{ID: "a", Description: "does the first thing again"},
	)

	r := ValidatePlan(p)
	assert.False(t, r.Valid)
	assert.Contains(t, r.Errors[0], "duplicate task id")
}

func TestValidatePlanDetectsMissingDependency(t *testing.T) {
	p := planOf(
		task.Task{ID: "a", Description: "depends on a ghost task", DependsOn: []string{"ghost"}},
	)

	r := ValidatePlan(p)
	assert.False(t, r.Valid)
	require := assert.New(t)
	require.Len(r.MissingDependencies, 1)
	require.Contains(r.MissingDependencies[0], "ghost")
}

func TestValidatePlanDetectsCycle(t *testing.T) {
	p := planOf(
		task.Task{ID: "a", Description: "depends on b", DependsOn: []string{"b"}},
		task.Task{ID: "b", Description: "depends on a", DependsOn: []string{"a"}},
	)

	r := ValidatePlan(p)
	assert.False(t, r.Valid)
	assert.NotEmpty(t, r.CircularDependencies)
}

func TestValidatePlanDetectsParallelFileConflict(t *testing.T) {
	p := planOf(
		task.Task{ID: "a", Description: "touches shared file", Files: []string{"shared.ts"}},
		task.Task{ID: "b", Description: "also touches shared file", Files: []string{"shared.ts"}},
	)

	r := ValidatePlan(p)
	assert.False(t, r.Valid)
	assert.NotEmpty(t, r.Conflicts)
}

func TestValidatePlanAllowsSharedFilesInDependencyChain(t *testing.T) {
	p := planOf(
		task.Task{ID: "a", Description: "touches shared file", Files: []string{"shared.ts"}},
		task.Task{ID: "b", Description: "refines shared file", Files: []string{"shared.ts"}, DependsOn: []string{"a"}},
	)

	r := ValidatePlan(p)
	assert.True(t, r.Valid)
	assert.Empty(t, r.Conflicts)
}

func TestDetectCycleReturnsNilForAcyclicGraph(t *testing.T) {
	p := planOf(
		task.Task{ID: "a", Description: "root task"},
		task.Task{ID: "b", Description: "child task", DependsOn: []string{"a"}},
	)
	assert.Nil(t, DetectCycle(p))
}

func TestRevalidationIsIdempotent(t *testing.T) {
	p := planOf(
		task.Task{ID: "a", Description: "first task", Files: []string{"a.go"}},
		task.Task{ID: "b", Description: "second task", Files: []string{"b.go"}, DependsOn: []string{"a"}},
	)

	r1 := ValidatePlan(p)
	r2 := ValidatePlan(p)
	assert.Equal(t, r1, r2)
}
