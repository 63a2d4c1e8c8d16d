package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arittr/chopstack/internal/task"
)

func samplePlan() task.Plan {
	return task.Plan{
		Tasks: []task.Task{
			{ID: "a", Files: []string{"a.go"}},
			{ID: "b", Files: []string{"b.go"}, DependsOn: []string{"a"}},
			{ID: "c", Files: []string{"c.go"}},
		},
	}
}

func TestAllowedIncludesOwnAndAncestorFiles(t *testing.T) {
	v := NewValidator(samplePlan(), ModeStrict, false)
	allowed := v.Allowed("b")
	assert.True(t, allowed["b.go"])
	assert.True(t, allowed["a.go"])
	assert.False(t, allowed["c.go"])
}

func TestValidateCleanCommitIsValid(t *testing.T) {
	v := NewValidator(samplePlan(), ModeStrict, false)
	r := v.Validate("b", []string{"b.go"})
	assert.True(t, r.Valid)
	assert.Empty(t, r.Violations)
}

func TestValidateFlagsFileBelongingToOtherTask(t *testing.T) {
	v := NewValidator(samplePlan(), ModeStrict, false)
	r := v.Validate("b", []string{"b.go", "c.go"})
	assert.False(t, r.Valid)
	assert.Equal(t, ReasonBelongsToOtherTask, r.Violations[0].Reason)
	assert.Equal(t, "c", r.Violations[0].ConflictingID)
}

func TestValidateFlagsNotInSpecFile(t *testing.T) {
	v := NewValidator(samplePlan(), ModeStrict, false)
	r := v.Validate("b", []string{"b.go", "unexpected.go"})
	assert.False(t, r.Valid)
	assert.Equal(t, ReasonNotInSpec, r.Violations[0].Reason)
}

func TestValidateAllowsNewFilesWhenConfigured(t *testing.T) {
	v := NewValidator(samplePlan(), ModeStrict, true)
	r := v.Validate("b", []string{"b.go", "unexpected.go"})
	assert.True(t, r.Valid)
}

func TestValidateFlagsNoChanges(t *testing.T) {
	v := NewValidator(samplePlan(), ModeStrict, false)
	r := v.Validate("b", nil)
	assert.False(t, r.Valid)
	assert.Equal(t, ReasonNoChanges, r.Violations[0].Reason)
}

func TestPermissiveModeStaysValidDespiteViolations(t *testing.T) {
	v := NewValidator(samplePlan(), ModePermissive, false)
	r := v.Validate("b", []string{"c.go"})
	assert.True(t, r.Valid)
	assert.NotEmpty(t, r.Violations)
}

func TestForbiddenExcludesAncestorFiles(t *testing.T) {
	v := NewValidator(samplePlan(), ModeStrict, false)
	forbidden := v.Forbidden("b")
	assert.Contains(t, forbidden, "c.go")
	assert.NotContains(t, forbidden, "a.go")
}
