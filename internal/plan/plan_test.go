package plan

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arittr/chopstack/internal/task"
)

const samplePlanYAML = `
name: add-auth
description: Add authentication to the API
strategy: phased-parallel
phases:
  - id: phase-1
    name: Foundations
    strategy: parallel
    tasks: [t1, t2]
  - id: phase-2
    name: Wiring
    strategy: sequential
    tasks: [t3]
    requires: [phase-1]
tasks:
  - id: t1
    name: Add user model
    complexity: S
    description: Create the user model and migration.
    files: [models/user.go]
  - id: t2
    name: Add token model
    complexity: S
    description: Create the token model and migration.
    files: [models/token.go]
  - id: t3
    name: Wire middleware
    complexity: M
    description: Add auth middleware to the router.
    files: [router/middleware.go]
    dependencies: [t1, t2]
    phase: phase-2
success_metrics:
  - All routes require a valid token
`

func TestParseRoundTripsThroughTaskPlan(t *testing.T) {
	p, err := Parse([]byte(samplePlanYAML))
	require.NoError(t, err)

	assert.Equal(t, "add-auth", p.Name)
	assert.Equal(t, task.StrategyPhasedParallel, p.Strategy)
	require.Len(t, p.Phases, 2)
	assert.Equal(t, []string{"t1", "t2"}, p.Phases[0].Tasks)
	assert.Equal(t, []string{"phase-1"}, p.Phases[1].Requires)

	require.Len(t, p.Tasks, 3)
	t3, ok := p.GetTask("t3")
	require.True(t, ok)
	assert.Equal(t, task.ComplexityM, t3.Complexity)
	assert.Equal(t, []string{"t1", "t2"}, t3.DependsOn)
	assert.Equal(t, "phase-2", t3.Phase)
	assert.True(t, t3.HasDependencies())
}

func TestMarshalThenParseIsStable(t *testing.T) {
	p, err := Parse([]byte(samplePlanYAML))
	require.NoError(t, err)

	data, err := Marshal(p)
	require.NoError(t, err)

	roundTripped, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, p, roundTripped)
}

func TestSaveThenLoad(t *testing.T) {
	p, err := Parse([]byte(samplePlanYAML))
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "plan.yaml")
	require.NoError(t, Save(p, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, p, loaded)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load("/nonexistent/path/plan.yaml")
	assert.Error(t, err)
}

func TestParseInvalidYAMLReturnsError(t *testing.T) {
	_, err := Parse([]byte("tasks: [this is not a valid plan"))
	assert.Error(t, err)
}
