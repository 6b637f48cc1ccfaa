package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/49Simon/dynamiq/core/runnable"
	"github.com/49Simon/dynamiq/observability"
)

// Workflow is the top-level envelope around a Flow: it owns a stable
// identity and wraps a flow run into one uniform result whose output maps
// node ids to their settled results.
type Workflow struct {
	ID   string
	Flow *Flow

	log observability.Logger
}

// WorkflowOption customizes a Workflow at construction time.
type WorkflowOption func(*Workflow)

// WithWorkflowID overrides the generated workflow identity.
func WithWorkflowID(id string) WorkflowOption {
	return func(w *Workflow) { w.ID = id }
}

// WithWorkflowLogger sets the workflow's structured logger.
func WithWorkflowLogger(log observability.Logger) WorkflowOption {
	return func(w *Workflow) { w.log = log }
}

// New wraps a flow as a Workflow.
func New(flow *Flow, opts ...WorkflowOption) *Workflow {
	workflow := &Workflow{
		ID:   uuid.NewString(),
		Flow: flow,
		log:  observability.Default(),
	}
	for _, opt := range opts {
		opt(workflow)
	}
	return workflow
}

// Run executes the wrapped flow and reports all node results under their
// node ids. The workflow itself succeeds whenever the flow settles, even if
// individual nodes failed or were skipped; inspect the per-node results for
// branch outcomes.
func (w *Workflow) Run(ctx context.Context, input map[string]any, cfg *runnable.Config) runnable.Result {
	started := time.Now()
	w.log.Info("workflow run started", observability.String("workflow.id", w.ID))

	nodeResults := w.Flow.Run(ctx, input, cfg)

	output := make(map[string]any, len(nodeResults))
	for nodeID, result := range nodeResults {
		output[nodeID] = map[string]any{
			"status": string(result.Status),
			"input":  result.Input,
			"output": result.Output,
		}
	}

	w.log.Info("workflow run finished",
		observability.String("workflow.id", w.ID),
		observability.Duration(observability.AttrDuration, time.Since(started)),
	)
	return runnable.Result{
		Status: runnable.StatusSuccess,
		Input:  input,
		Output: output,
	}
}
