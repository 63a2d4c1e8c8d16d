// Package config provides layered configuration loading for a chopstack
// run, backed by Viper so values can come from environment variables, a
// config file, or defaults, in that order of precedence.
package config

import (
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete engine configuration.
type Config struct {
	Execution ExecutionConfig `mapstructure:"execution"`
	VCS       VCSConfig       `mapstructure:"vcs"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Agent     AgentConfig     `mapstructure:"agent"`
}

// ExecutionConfig controls the execute handler (C7).
type ExecutionConfig struct {
	// MaxRetries is the maximum retry count applied to every task of a run.
	MaxRetries int `mapstructure:"max_retries"`
	// ContinueOnError controls whether the scheduler halts the run on the
	// first exhausted-retry failure or keeps draining independent layers.
	ContinueOnError bool `mapstructure:"continue_on_error"`
	// ValidationMode is "strict" or "permissive" for the file-modification
	// validator (C2).
	ValidationMode string `mapstructure:"validation_mode"`
	// LayerPollIntervalMs is validated and exposed through
	// LayerPollInterval, but the execute handler does not poll: it waits
	// for a layer's workers to finish before looking for newly executable
	// tasks.
	LayerPollIntervalMs int `mapstructure:"layer_poll_interval_ms"`
}

// VCSConfig controls backend/strategy selection (C1/C5).
type VCSConfig struct {
	// Mode selects the backend: git-spice, graphite, sapling, merge-commit.
	// Legacy aliases: simple->merge-commit, stacked->git-spice, worktree->merge-commit.
	Mode string `mapstructure:"mode"`
	// BranchPrefix is used for both temporary and finalized branch names.
	BranchPrefix string `mapstructure:"branch_prefix"`
	// ShadowPath is the worktree shadow directory, relative to repo root.
	ShadowPath string `mapstructure:"shadow_path"`
	// CleanupOnFailure controls whether failed-task worktrees are removed.
	CleanupOnFailure bool `mapstructure:"cleanup_on_failure"`
	// ResetOnRetry is loaded and defaulted like the other fields, but no
	// code reads it: a retry never resets a task's worktree (see
	// SPEC_FULL.md §13(a)).
	ResetOnRetry bool `mapstructure:"reset_on_retry"`
	// ConflictResolution is one of auto/manual/fail for the incremental
	// stack builder's cherry-pick conflict handling (C6).
	ConflictResolution string `mapstructure:"conflict_resolution"`
}

// LoggingConfig controls the ambient structured-logging stack.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

// AgentConfig controls how the agent subprocess is invoked.
type AgentConfig struct {
	Command    string   `mapstructure:"command"`
	Args       []string `mapstructure:"args"`
	UsePTY     bool     `mapstructure:"use_pty"`
	TimeoutSec int      `mapstructure:"timeout_sec"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Execution: ExecutionConfig{
			MaxRetries:          2,
			ContinueOnError:     false,
			ValidationMode:      "strict",
			LayerPollIntervalMs: 100,
		},
		VCS: VCSConfig{
			Mode:               "git-spice",
			BranchPrefix:       "chopstack",
			ShadowPath:         ".chopstack/shadows",
			CleanupOnFailure:   false,
			ResetOnRetry:       false,
			ConflictResolution: "manual",
		},
		Logging: LoggingConfig{
			Level: "info",
			Path:  "",
		},
		Agent: AgentConfig{
			Command:    "claude",
			Args:       []string{"--print"},
			UsePTY:     false,
			TimeoutSec: 600,
		},
	}
}

// LayerPollInterval returns the scheduler's poll interval as a Duration.
func (c ExecutionConfig) LayerPollInterval() time.Duration {
	return time.Duration(c.LayerPollIntervalMs) * time.Millisecond
}

// Timeout returns the agent subprocess timeout as a Duration.
func (c AgentConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// ResolveMode applies the legacy-alias table from spec.md §6.
func (c VCSConfig) ResolveMode() string {
	switch c.Mode {
	case "simple", "worktree":
		return "merge-commit"
	case "stacked":
		return "git-spice"
	default:
		return c.Mode
	}
}

// SetDefaults registers defaults with viper so a partially-specified config
// file still produces a complete Config on Load.
func SetDefaults() {
	d := Default()

	viper.SetDefault("execution.max_retries", d.Execution.MaxRetries)
	viper.SetDefault("execution.continue_on_error", d.Execution.ContinueOnError)
	viper.SetDefault("execution.validation_mode", d.Execution.ValidationMode)
	viper.SetDefault("execution.layer_poll_interval_ms", d.Execution.LayerPollIntervalMs)

	viper.SetDefault("vcs.mode", d.VCS.Mode)
	viper.SetDefault("vcs.branch_prefix", d.VCS.BranchPrefix)
	viper.SetDefault("vcs.shadow_path", d.VCS.ShadowPath)
	viper.SetDefault("vcs.cleanup_on_failure", d.VCS.CleanupOnFailure)
	viper.SetDefault("vcs.reset_on_retry", d.VCS.ResetOnRetry)
	viper.SetDefault("vcs.conflict_resolution", d.VCS.ConflictResolution)

	viper.SetDefault("logging.level", d.Logging.Level)
	viper.SetDefault("logging.path", d.Logging.Path)

	viper.SetDefault("agent.command", d.Agent.Command)
	viper.SetDefault("agent.args", d.Agent.Args)
	viper.SetDefault("agent.use_pty", d.Agent.UsePTY)
	viper.SetDefault("agent.timeout_sec", d.Agent.TimeoutSec)
}

// Load reads the configuration from viper into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults if
// unmarshaling fails.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// VCSModeExplicit reports whether vcs.mode was actually requested by the
// user (a config file key or environment variable) as opposed to resting on
// its registered default. spec.md §7's "Tool unavailable" handling only
// treats an unavailable backend as fatal when the mode was requested this
// way; an unavailable defaulted mode instead falls back to merge-commit.
func VCSModeExplicit() bool {
	if viper.InConfig("vcs.mode") {
		return true
	}
	_, fromEnv := os.LookupEnv("CHOPSTACK_VCS_MODE")
	return fromEnv
}

// ConfigDir returns the path to the user's chopstack config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "chopstack")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chopstack"
	}
	return filepath.Join(home, ".config", "chopstack")
}

// ConfigFile returns the path to the config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidVCSModes returns the list of valid VCS backend mode values.
func ValidVCSModes() []string {
	return []string{"git-spice", "graphite", "sapling", "merge-commit", "simple", "stacked", "worktree"}
}

// IsValidVCSMode reports whether mode is a recognized VCS mode or alias.
func IsValidVCSMode(mode string) bool {
	return slices.Contains(ValidVCSModes(), mode)
}

// ValidValidationModes returns the list of valid C2 validation modes.
func ValidValidationModes() []string {
	return []string{"strict", "permissive"}
}

// IsValidValidationMode reports whether mode is "strict" or "permissive".
func IsValidValidationMode(mode string) bool {
	return slices.Contains(ValidValidationModes(), mode)
}

// ValidConflictResolutions returns the list of valid cherry-pick conflict
// resolution policies (C6).
func ValidConflictResolutions() []string {
	return []string{"auto", "manual", "fail"}
}

// IsValidConflictResolution reports whether policy is recognized.
func IsValidConflictResolution(policy string) bool {
	return slices.Contains(ValidConflictResolutions(), policy)
}
