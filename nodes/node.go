package nodes

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/49Simon/dynamiq/cache"
	"github.com/49Simon/dynamiq/callbacks"
	"github.com/49Simon/dynamiq/core/runnable"
	"github.com/49Simon/dynamiq/core/transform"
	"github.com/49Simon/dynamiq/observability"
)

// Group tags a node with the family it belongs to. Groups are informational:
// they appear in callback views and logs but carry no engine semantics.
type Group string

const (
	GroupDefault Group = "nodes"
	GroupLLMs    Group = "llms"
	GroupAgents  Group = "agents"
	GroupTools   Group = "tools"
	GroupUtils   Group = "utils"
)

// ErrorHandling governs the retry/timeout policy for exactly one node.
type ErrorHandling struct {
	// Timeout is the wall-clock bound for a single execute attempt.
	// Zero means no bound.
	Timeout time.Duration `json:"timeout,omitempty"`

	// RetryInterval is the base sleep between failed attempts.
	RetryInterval time.Duration `json:"retry_interval"`

	// MaxRetries is the number of retries after the first attempt, so a
	// node makes MaxRetries+1 attempts in total.
	MaxRetries int `json:"max_retries"`

	// BackoffRate scales the sleep geometrically: attempt n sleeps
	// RetryInterval * BackoffRate^n.
	BackoffRate float64 `json:"backoff_rate"`
}

// DefaultErrorHandling returns the policy applied to nodes that do not set
// one: no timeout, no retries, one-second flat interval.
func DefaultErrorHandling() ErrorHandling {
	return ErrorHandling{
		RetryInterval: time.Second,
		BackoffRate:   1,
	}
}

// sleepFor returns the backoff sleep preceding retry attempt+1.
func (eh ErrorHandling) sleepFor(attempt int) time.Duration {
	return time.Duration(float64(eh.RetryInterval) * math.Pow(eh.BackoffRate, float64(attempt)))
}

// Dependency is a directed edge to a predecessor node, identified by id only:
// the graph is an adjacency structure over identities, never embedded node
// objects.
//
// If Gate is set, the predecessor's output must contain a field keyed by the
// gate name whose status is not failure; otherwise the dependent node is
// skipped, not failed.
type Dependency struct {
	NodeID string `json:"node_id"`
	Gate   string `json:"gate,omitempty"`
}

// Executor is the single-attempt execution logic of a node. The engine calls
// Execute under the retry/timeout policy with the transformed input; run
// exposes the node, run configuration, and callback emitters.
//
// Execute must honor ctx cancellation to make the timeout bound effective:
// the engine stops waiting at the deadline either way, but only a
// cooperative executor actually stops working.
type Executor interface {
	Execute(ctx context.Context, input map[string]any, run *Execution) (any, error)
}

// ExecutorFunc adapts an ordinary function to the Executor interface.
type ExecutorFunc func(ctx context.Context, input map[string]any, run *Execution) (any, error)

// Execute calls the underlying function.
func (f ExecutorFunc) Execute(ctx context.Context, input map[string]any, run *Execution) (any, error) {
	return f(ctx, input, run)
}

// Node is one dependency-aware step in a workflow. Its identity is stable for
// its lifetime and is the sole key used for dependency lookup, caching and
// tracing. Configure a node before its first run; during execution it is
// immutable.
type Node struct {
	// ID is the opaque unique identity of the node.
	ID string

	// Name is the human-readable name.
	Name string

	// Group tags the node family.
	Group Group

	// ErrorHandling is the node's retry/timeout policy.
	ErrorHandling ErrorHandling

	// InputTransformer reshapes the merged input before execution.
	InputTransformer transform.Transformer

	// OutputTransformer reshapes the raw output after execution.
	OutputTransformer transform.Transformer

	// Caching opts the node into the run-level cache gate.
	Caching cache.Config

	// Streaming configures output streaming and the optional input queue.
	Streaming StreamingConfig

	// Depends lists the node's predecessors in declaration order.
	Depends []Dependency

	executor Executor
	typeName string
	log      observability.Logger
}

// Option customizes a Node at construction time.
type Option func(*Node)

// WithID overrides the generated node identity.
func WithID(id string) Option {
	return func(n *Node) { n.ID = id }
}

// WithGroup sets the node's group tag.
func WithGroup(group Group) Option {
	return func(n *Node) { n.Group = group }
}

// WithErrorHandling sets the retry/timeout policy.
func WithErrorHandling(eh ErrorHandling) Option {
	return func(n *Node) { n.ErrorHandling = eh }
}

// WithInputTransformer sets the input transform stage.
func WithInputTransformer(t transform.Transformer) Option {
	return func(n *Node) { n.InputTransformer = t }
}

// WithOutputTransformer sets the output transform stage.
func WithOutputTransformer(t transform.Transformer) Option {
	return func(n *Node) { n.OutputTransformer = t }
}

// WithCaching enables node-level caching.
func WithCaching(enabled bool) Option {
	return func(n *Node) { n.Caching.Enabled = enabled }
}

// WithStreaming sets the streaming configuration.
func WithStreaming(cfg StreamingConfig) Option {
	return func(n *Node) { n.Streaming = cfg }
}

// WithTypeName sets the type string reported in callback views.
func WithTypeName(typeName string) Option {
	return func(n *Node) { n.typeName = typeName }
}

// WithLogger sets the node's structured logger.
func WithLogger(log observability.Logger) Option {
	return func(n *Node) { n.log = log }
}

// New constructs a Node around an executor. The identity defaults to a fresh
// uuid, the group to GroupDefault, and the error-handling policy to
// DefaultErrorHandling.
func New(name string, executor Executor, opts ...Option) *Node {
	node := &Node{
		ID:            uuid.NewString(),
		Name:          name,
		Group:         GroupDefault,
		ErrorHandling: DefaultErrorHandling(),
		typeName:      "nodes.Node",
		log:           observability.Default(),
	}
	node.executor = executor
	for _, opt := range opts {
		opt(node)
	}
	return node
}

// DependsOn appends plain dependencies on the given nodes and returns the
// node for chaining.
func (n *Node) DependsOn(nodes ...*Node) *Node {
	for _, dep := range nodes {
		n.Depends = append(n.Depends, Dependency{NodeID: dep.ID})
	}
	return n
}

// DependsOnGated appends a gated dependency: the predecessor's output must
// carry a non-failed entry under the gate name for this node to run.
func (n *Node) DependsOnGated(dep *Node, gate string) *Node {
	n.Depends = append(n.Depends, Dependency{NodeID: dep.ID, Gate: gate})
	return n
}

// EnableStreaming switches on output streaming with the given event name
// (empty means the default event) and returns the node for chaining.
func (n *Node) EnableStreaming(event string) *Node {
	n.Streaming.Enabled = true
	if event == "" {
		event = callbacks.DefaultStreamingEvent
	}
	n.Streaming.Event = event
	return n
}

// View returns the serialized node view handed to callbacks.
func (n *Node) View() callbacks.NodeView {
	return callbacks.NodeView{
		ID:    n.ID,
		Name:  n.Name,
		Group: string(n.Group),
		Type:  n.typeName,
	}
}

// validateDepends checks every declared dependency against the upstream
// results. Any violation is a *DependencyError, which Run converts into a
// SKIP result.
func (n *Node) validateDepends(dependsResult map[string]runnable.Result) error {
	for _, dep := range n.Depends {
		result, ok := dependsResult[dep.NodeID]
		if !ok {
			return &DependencyError{NodeID: dep.NodeID, Reason: "result missing"}
		}
		switch result.Status {
		case runnable.StatusFailure:
			return &DependencyError{NodeID: dep.NodeID, Reason: "failed"}
		case runnable.StatusSkip:
			return &DependencyError{NodeID: dep.NodeID, Reason: "skipped"}
		}

		if dep.Gate != "" {
			if err := validateGate(dep, result); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateGate checks the gate condition on a dependency edge: the
// predecessor output must not carry a FAILURE entry under the gate name.
// A missing gate entry passes; only an explicit failure blocks the node.
func validateGate(dep Dependency, result runnable.Result) error {
	output, ok := result.Output.(map[string]any)
	if !ok {
		return nil
	}

	entry, ok := output[dep.Gate]
	if !ok {
		return nil
	}

	failed := false
	switch v := entry.(type) {
	case runnable.Result:
		failed = v.Status == runnable.StatusFailure
	case map[string]any:
		status, _ := v["status"].(string)
		failed = status == string(runnable.StatusFailure)
	}

	if failed {
		return &DependencyError{NodeID: dep.NodeID, Gate: dep.Gate, Reason: "condition not satisfied"}
	}
	return nil
}
