package runnable

import (
	"github.com/49Simon/dynamiq/cache"
	"github.com/49Simon/dynamiq/callbacks"
)

// Status is the outcome of a single node run.
type Status string

const (
	// StatusSuccess indicates the node executed and produced an output.
	StatusSuccess Status = "success"

	// StatusFailure indicates the node's execution raised an error that
	// survived the retry policy. The error is reified into the result's
	// Output, never propagated as a fault.
	StatusFailure Status = "failure"

	// StatusSkip indicates an upstream dependency failed, was skipped, or
	// its gate condition was not satisfied. Skipping is a normal outcome,
	// not an error.
	StatusSkip Status = "skip"
)

// Result is the uniform outcome envelope produced exactly once per Run
// invocation. It is never mutated after it is returned.
//
// For StatusFailure, Output is a map with "content" (human-readable message)
// and "recoverable" (whether the failure came from a recoverable agent
// condition rather than a system malfunction). For StatusSkip, Output
// describes the failed dependency.
type Result struct {
	Status Status `json:"status"`
	Input  any    `json:"input"`
	Output any    `json:"output"`
}

// DependView returns the output-only view of the result, used when a
// downstream node's input transformer selects fields from upstream outputs.
func (r Result) DependView() any {
	return r.Output
}

// TracingView returns the status-annotated view of the result that is merged
// into a dependent node's input so observers can trace upstream outcomes.
func (r Result) TracingView() map[string]any {
	return map[string]any{
		"status": string(r.Status),
		"output": r.Output,
	}
}

// FailureOutput builds the Output payload for a StatusFailure result.
func FailureOutput(message string, recoverable bool) map[string]any {
	return map[string]any{
		"content":     message,
		"recoverable": recoverable,
	}
}

// Config carries the per-run configuration shared by every node in a run:
// the registered callback handlers and the run-level cache settings.
//
// A nil Config is valid everywhere; use EnsureConfig to normalize it.
type Config struct {
	// Callbacks receive the nine lifecycle events of every node run,
	// synchronously and in registration order.
	Callbacks []callbacks.Handler

	// Cache is the run-level cache configuration. Caching applies to a
	// node only when both this and the node's own caching config allow it.
	Cache cache.RunConfig
}

// EnsureConfig returns cfg if non-nil, or a usable empty configuration.
func EnsureConfig(cfg *Config) *Config {
	if cfg == nil {
		return &Config{}
	}
	return cfg
}
