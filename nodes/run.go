package nodes

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"dario.cat/mergo"
	"github.com/google/uuid"

	"github.com/49Simon/dynamiq/callbacks"
	"github.com/49Simon/dynamiq/core/runnable"
	"github.com/49Simon/dynamiq/observability"
)

type parentRunKey struct{}

// ContextWithParentRun links child node runs (tools, models) dispatched from
// within an executor back to the run that spawned them.
func ContextWithParentRun(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, parentRunKey{}, runID)
}

// ParentRunID returns the parent run id carried by ctx, if any.
func ParentRunID(ctx context.Context) string {
	runID, _ := ctx.Value(parentRunKey{}).(string)
	return runID
}

// Execution is the per-attempt context handed to an Executor. It exposes the
// node, the run configuration, and the callback emitters an executor may use
// to report forward progress or stream partial output.
type Execution struct {
	node *Node
	cfg  *runnable.Config
	meta callbacks.Meta
}

// Node returns the node being executed.
func (e *Execution) Node() *Node { return e.node }

// Config returns the run configuration, for dispatching child node runs.
func (e *Execution) Config() *runnable.Config { return e.cfg }

// Meta returns the identity of this execute attempt.
func (e *Execution) Meta() callbacks.Meta { return e.meta }

// Log returns the node's structured logger.
func (e *Execution) Log() observability.Logger { return e.node.log }

// StreamingEnabled reports whether the node streams partial output.
func (e *Execution) StreamingEnabled() bool { return e.node.Streaming.Enabled }

// EmitRun notifies handlers of forward progress within this attempt.
func (e *Execution) EmitRun() {
	for _, handler := range e.cfg.Callbacks {
		handler.OnExecuteRun(e.node.View(), e.meta)
	}
}

// EmitStream delivers one chunk of partial output to every handler.
func (e *Execution) EmitStream(chunk map[string]any) {
	for _, handler := range e.cfg.Callbacks {
		handler.OnExecuteStream(e.node.View(), chunk, e.meta)
	}
}

// NextInputEvent blocks for the next event on the node's input stream.
func (e *Execution) NextInputEvent(event string) (callbacks.EventMessage, error) {
	return e.node.NextInputEvent(event)
}

// Run executes the node once against the given input and upstream results,
// producing exactly one Result. Run never returns an error and never panics
// outward: execution failures are reified into a StatusFailure result and
// unsatisfied dependencies into a StatusSkip result.
//
// The contract, in order: merge input with the tracing views of upstream
// results, validate dependencies, apply the input transformer, notify
// handlers of the start, consult the cache gate, execute under the retry and
// timeout policy, apply the output transformer, notify handlers of the end.
func (n *Node) Run(ctx context.Context, input map[string]any, cfg *runnable.Config, dependsResult map[string]runnable.Result) runnable.Result {
	cfg = runnable.EnsureConfig(cfg)
	if input == nil {
		input = map[string]any{}
	}

	meta := callbacks.Meta{RunID: uuid.NewString(), ParentRunID: ParentRunID(ctx)}
	started := time.Now()
	n.log.Info("node run started",
		observability.String(observability.AttrNodeID, n.ID),
		observability.String(observability.AttrNodeName, n.Name),
	)

	merged, err := mergeTracing(input, dependsResult)
	if err != nil {
		n.emitNodeError(cfg, err, meta)
		return runnable.Result{Status: runnable.StatusFailure, Input: input, Output: runnable.FailureOutput(err.Error(), false)}
	}

	if err := n.validateDepends(dependsResult); err != nil {
		skipData := map[string]any{"message": err.Error()}
		var depErr *DependencyError
		if errors.As(err, &depErr) {
			skipData["failed_dependency"] = map[string]any{
				"node_id": depErr.NodeID,
				"gate":    depErr.Gate,
			}
		}
		n.emitNodeSkip(cfg, skipData, merged, meta)
		n.log.Info("node run skipped",
			observability.String(observability.AttrNodeID, n.ID),
			observability.String(observability.AttrNodeName, n.Name),
		)
		return runnable.Result{Status: runnable.StatusSkip, Input: merged, Output: skipData}
	}

	result, runErr := n.runValidated(ctx, input, merged, cfg, dependsResult, &meta)
	if runErr != nil {
		n.emitNodeError(cfg, runErr, meta)
		n.log.Error("node run failed",
			observability.String(observability.AttrNodeID, n.ID),
			observability.String(observability.AttrNodeName, n.Name),
			observability.Duration(observability.AttrDuration, time.Since(started)),
			observability.Error(runErr),
		)
		return runnable.Result{Status: runnable.StatusFailure, Input: input, Output: runnable.FailureOutput(runErr.Error(), IsRecoverable(runErr))}
	}

	n.log.Info("node run finished",
		observability.String(observability.AttrNodeID, n.ID),
		observability.String(observability.AttrNodeName, n.Name),
		observability.Duration(observability.AttrDuration, time.Since(started)),
		observability.Bool("cache.hit", meta.FromCache),
	)
	return result
}

// runValidated carries a run from validated dependencies through execution
// and output transformation. Any returned error becomes a FAILURE result.
func (n *Node) runValidated(ctx context.Context, original, merged map[string]any, cfg *runnable.Config, dependsResult map[string]runnable.Result, meta *callbacks.Meta) (runnable.Result, error) {
	effective := merged
	if !n.InputTransformer.IsZero() {
		base, err := mergeDependViews(original, dependsResult)
		if err != nil {
			return runnable.Result{}, err
		}
		transformed, err := n.InputTransformer.Apply(base)
		if err != nil {
			return runnable.Result{}, fmt.Errorf("input transform: %w", err)
		}
		effective = asInputMap(transformed)
	}

	n.emitNodeStart(cfg, effective, *meta)

	output, fromCache, err := n.executeCached(ctx, effective, cfg, meta)
	if err != nil {
		return runnable.Result{}, err
	}
	meta.FromCache = fromCache

	if !n.OutputTransformer.IsZero() {
		output, err = n.OutputTransformer.Apply(output)
		if err != nil {
			return runnable.Result{}, fmt.Errorf("output transform: %w", err)
		}
	}

	n.emitNodeEnd(cfg, output, *meta)
	return runnable.Result{Status: runnable.StatusSuccess, Input: effective, Output: output}, nil
}

// mergeTracing overlays the tracing view of every upstream result onto a copy
// of the caller's input, keyed by predecessor id. Dependency entries win over
// caller-provided keys of the same name.
func mergeTracing(input map[string]any, dependsResult map[string]runnable.Result) (map[string]any, error) {
	if len(dependsResult) == 0 {
		return maps.Clone(input), nil
	}

	tracing := make(map[string]any, len(dependsResult))
	for nodeID, result := range dependsResult {
		tracing[nodeID] = result.TracingView()
	}

	merged := maps.Clone(input)
	if err := mergo.Merge(&merged, tracing, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merge depends results: %w", err)
	}
	return merged, nil
}

// mergeDependViews is the transformer-facing variant of mergeTracing: the
// upstream entries are raw outputs without the status envelope, so selector
// paths address fields directly.
func mergeDependViews(input map[string]any, dependsResult map[string]runnable.Result) (map[string]any, error) {
	if len(dependsResult) == 0 {
		return maps.Clone(input), nil
	}

	views := make(map[string]any, len(dependsResult))
	for nodeID, result := range dependsResult {
		views[nodeID] = result.DependView()
	}

	merged := maps.Clone(input)
	if err := mergo.Merge(&merged, views, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merge depends results: %w", err)
	}
	return merged, nil
}

// asInputMap coerces a transformed input back into the map shape executors
// consume. Scalar selections are wrapped under "content".
func asInputMap(value any) map[string]any {
	if m, ok := value.(map[string]any); ok {
		return m
	}
	return map[string]any{"content": value}
}

func (n *Node) emitNodeStart(cfg *runnable.Config, input map[string]any, meta callbacks.Meta) {
	for _, handler := range cfg.Callbacks {
		handler.OnNodeStart(n.View(), input, meta)
	}
}

func (n *Node) emitNodeEnd(cfg *runnable.Config, output any, meta callbacks.Meta) {
	for _, handler := range cfg.Callbacks {
		handler.OnNodeEnd(n.View(), output, meta)
	}
}

func (n *Node) emitNodeError(cfg *runnable.Config, err error, meta callbacks.Meta) {
	for _, handler := range cfg.Callbacks {
		handler.OnNodeError(n.View(), err, meta)
	}
}

func (n *Node) emitNodeSkip(cfg *runnable.Config, skipData, input map[string]any, meta callbacks.Meta) {
	for _, handler := range cfg.Callbacks {
		handler.OnNodeSkip(n.View(), skipData, input, meta)
	}
}
