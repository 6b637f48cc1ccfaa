package callbacks

// NodeView is the serialized view of a node handed to every callback hook.
// It carries only stable identity fields, never a live node reference, so
// handlers can record or forward it freely.
type NodeView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Group string `json:"group"`
	Type  string `json:"type"`
}

// Meta identifies one run of a node within a larger execution. RunID is fresh
// per Run invocation; ExecutionRunID is fresh per execute attempt; ParentRunID
// links a tool or model run back to the agent run that dispatched it.
type Meta struct {
	RunID          string `json:"run_id"`
	ParentRunID    string `json:"parent_run_id,omitempty"`
	ExecutionRunID string `json:"execution_run_id,omitempty"`
	FromCache      bool   `json:"from_cache,omitempty"`
}

// Handler observes the nine lifecycle events of a node run. Events are
// delivered synchronously, in handler registration order, before execution
// continues; a handler can record or stream state but cannot veto anything.
//
// Within one node run the delivery order is always:
//
//	start -> (execute-start -> execute-end|execute-error)* -> end|error
//
// with skip replacing the entire sequence when dependency validation fails.
// Embed Base to implement only the hooks you care about.
type Handler interface {
	// OnNodeStart fires after dependency validation and input transformation,
	// before the cache gate.
	OnNodeStart(node NodeView, input map[string]any, meta Meta)

	// OnNodeEnd fires after output transformation with the final output.
	OnNodeEnd(node NodeView, output any, meta Meta)

	// OnNodeError fires when a run fails after exhausting its retry policy,
	// or when a transform stage fails.
	OnNodeError(node NodeView, err error, meta Meta)

	// OnNodeSkip fires when an upstream dependency failed, was skipped, or
	// its gate condition was not satisfied.
	OnNodeSkip(node NodeView, skipData map[string]any, input map[string]any, meta Meta)

	// OnExecuteStart fires before each execute attempt.
	OnExecuteStart(node NodeView, input map[string]any, meta Meta)

	// OnExecuteEnd fires after a successful execute attempt.
	OnExecuteEnd(node NodeView, output any, meta Meta)

	// OnExecuteError fires after a failed or timed-out execute attempt.
	OnExecuteError(node NodeView, err error, meta Meta)

	// OnExecuteRun fires when an executor reports forward progress within a
	// single attempt (e.g. one reasoning-loop iteration).
	OnExecuteRun(node NodeView, meta Meta)

	// OnExecuteStream delivers a chunk of streamed partial output, such as an
	// agent's intermediate step.
	OnExecuteStream(node NodeView, chunk map[string]any, meta Meta)
}

// Base is a no-op Handler for embedding.
type Base struct{}

// Compile-time check that Base implements Handler.
var _ Handler = (*Base)(nil)

func (Base) OnNodeStart(NodeView, map[string]any, Meta)            {}
func (Base) OnNodeEnd(NodeView, any, Meta)                         {}
func (Base) OnNodeError(NodeView, error, Meta)                     {}
func (Base) OnNodeSkip(NodeView, map[string]any, map[string]any, Meta) {}
func (Base) OnExecuteStart(NodeView, map[string]any, Meta)         {}
func (Base) OnExecuteEnd(NodeView, any, Meta)                      {}
func (Base) OnExecuteError(NodeView, error, Meta)                  {}
func (Base) OnExecuteRun(NodeView, Meta)                           {}
func (Base) OnExecuteStream(NodeView, map[string]any, Meta)        {}
