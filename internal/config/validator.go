package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string // config field path, e.g. "vcs.mode"
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation
// errors found.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors
	errs = append(errs, c.validateExecution()...)
	errs = append(errs, c.validateVCS()...)
	errs = append(errs, c.validateLogging()...)
	errs = append(errs, c.validateAgent()...)
	return errs
}

func (c *Config) validateExecution() []ValidationError {
	var errs []ValidationError

	if c.Execution.MaxRetries < 0 {
		errs = append(errs, ValidationError{
			Field:   "execution.max_retries",
			Value:   c.Execution.MaxRetries,
			Message: "must be non-negative",
		})
	}

	if !IsValidValidationMode(c.Execution.ValidationMode) {
		errs = append(errs, ValidationError{
			Field:   "execution.validation_mode",
			Value:   c.Execution.ValidationMode,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidValidationModes(), ", ")),
		})
	}

	if c.Execution.LayerPollIntervalMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "execution.layer_poll_interval_ms",
			Value:   c.Execution.LayerPollIntervalMs,
			Message: "must be non-negative",
		})
	}

	return errs
}

func (c *Config) validateVCS() []ValidationError {
	var errs []ValidationError

	if !IsValidVCSMode(c.VCS.Mode) {
		errs = append(errs, ValidationError{
			Field:   "vcs.mode",
			Value:   c.VCS.Mode,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidVCSModes(), ", ")),
		})
	}

	if c.VCS.BranchPrefix == "" {
		errs = append(errs, ValidationError{
			Field:   "vcs.branch_prefix",
			Value:   c.VCS.BranchPrefix,
			Message: "must not be empty",
		})
	}

	if c.VCS.ShadowPath == "" {
		errs = append(errs, ValidationError{
			Field:   "vcs.shadow_path",
			Value:   c.VCS.ShadowPath,
			Message: "must not be empty",
		})
	}

	if !IsValidConflictResolution(c.VCS.ConflictResolution) {
		errs = append(errs, ValidationError{
			Field:   "vcs.conflict_resolution",
			Value:   c.VCS.ConflictResolution,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidConflictResolutions(), ", ")),
		})
	}

	return errs
}

func (c *Config) validateLogging() []ValidationError {
	var errs []ValidationError

	level := strings.ToLower(c.Logging.Level)
	valid := false
	for _, l := range ValidLogLevels() {
		if l == level {
			valid = true
			break
		}
	}
	if !valid {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errs
}

func (c *Config) validateAgent() []ValidationError {
	var errs []ValidationError

	if c.Agent.Command == "" {
		errs = append(errs, ValidationError{
			Field:   "agent.command",
			Value:   c.Agent.Command,
			Message: "must not be empty",
		})
	}

	if c.Agent.TimeoutSec <= 0 {
		errs = append(errs, ValidationError{
			Field:   "agent.timeout_sec",
			Value:   c.Agent.TimeoutSec,
			Message: "must be positive",
		})
	}

	return errs
}
