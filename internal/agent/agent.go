// Package agent defines the contract for invoking the external, opaque
// code-modifying subprocess ("the agent") that realizes each task. The
// engine treats the agent as a black box: give it a workdir and a scope,
// get back success/failure and whatever it printed.
package agent

import "context"

// Request is everything the agent needs to attempt one task.
type Request struct {
	TaskID       string
	Prompt       string
	Workdir      string
	AllowedFiles []string
	Forbidden    []string // computed by internal/scope, told to the agent upfront
}

// Result is what the agent produced.
type Result struct {
	Output   string
	ExitCode int
}

// Invoker runs an agent against a Request. Implementations may shell out
// to a subprocess, call an API, or (in tests) fake the whole thing.
type Invoker interface {
	Execute(ctx context.Context, req Request) (Result, error)
}
