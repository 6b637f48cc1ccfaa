package nodes

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/49Simon/dynamiq/cache"
	"github.com/49Simon/dynamiq/callbacks"
	"github.com/49Simon/dynamiq/core/runnable"
	"github.com/49Simon/dynamiq/observability"
)

// executeCached is the cache gate in front of the retry policy. On a hit the
// cached output is returned without a single execute attempt; on a miss the
// node executes normally and a successful output is stored at most once.
// Backend faults degrade to uncached execution, never to a run failure.
func (n *Node) executeCached(ctx context.Context, input map[string]any, cfg *runnable.Config, meta *callbacks.Meta) (any, bool, error) {
	if !cfg.Cache.Active(n.Caching) {
		output, err := n.executeWithRetry(ctx, input, cfg, meta)
		return output, false, err
	}

	key, err := cache.Key(n.ID, input)
	if err != nil {
		return nil, false, err
	}

	value, hit, err := cfg.Cache.Backend.Get(ctx, key)
	if err != nil {
		n.log.Warn("cache lookup failed",
			observability.String(observability.AttrNodeID, n.ID),
			observability.Error(err),
		)
	} else if hit {
		n.log.Debug("cache hit",
			observability.String(observability.AttrNodeID, n.ID),
			observability.String("cache.key", key),
		)
		return value, true, nil
	}

	output, err := n.executeWithRetry(ctx, input, cfg, meta)
	if err != nil {
		return nil, false, err
	}

	if err := cfg.Cache.Backend.Set(ctx, key, output); err != nil {
		n.log.Warn("cache store failed",
			observability.String(observability.AttrNodeID, n.ID),
			observability.Error(err),
		)
	}
	return output, false, nil
}

// executeWithRetry drives up to MaxRetries+1 execute attempts. Every attempt
// gets a fresh execution run id and its own execute-start and execute-end or
// execute-error events. Between failed attempts it sleeps
// RetryInterval * BackoffRate^attempt; there is no sleep after the last.
func (n *Node) executeWithRetry(ctx context.Context, input map[string]any, cfg *runnable.Config, meta *callbacks.Meta) (any, error) {
	policy := n.ErrorHandling
	attempts := policy.MaxRetries + 1

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		meta.ExecutionRunID = uuid.NewString()
		n.emitExecuteStart(cfg, input, *meta)

		output, err := n.executeWithTimeout(ctx, input, cfg, *meta)
		if err == nil {
			n.emitExecuteEnd(cfg, output, *meta)
			return output, nil
		}

		lastErr = err
		n.emitExecuteError(cfg, err, *meta)
		n.log.Warn("execute attempt failed",
			observability.String(observability.AttrNodeID, n.ID),
			observability.Int(observability.AttrAttempt, attempt),
			observability.Error(err),
		)

		if attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(policy.sleepFor(attempt)):
		}
	}
	return nil, lastErr
}

// executeWithTimeout runs one attempt, bounded by the node's timeout when one
// is set. The attempt runs in its own goroutine with a deadline context; at
// the deadline this method stops waiting and reports a TimeoutError, but a
// non-cooperative executor may keep running until it next observes ctx.
func (n *Node) executeWithTimeout(ctx context.Context, input map[string]any, cfg *runnable.Config, meta callbacks.Meta) (any, error) {
	run := &Execution{node: n, cfg: cfg, meta: meta}

	timeout := n.ErrorHandling.Timeout
	if timeout <= 0 {
		return n.executor.Execute(ctx, input, run)
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type attemptResult struct {
		output any
		err    error
	}
	done := make(chan attemptResult, 1)
	go func() {
		output, err := n.executor.Execute(execCtx, input, run)
		done <- attemptResult{output: output, err: err}
	}()

	select {
	case result := <-done:
		return result.output, result.err
	case <-execCtx.Done():
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &TimeoutError{Timeout: timeout}
		}
		return nil, execCtx.Err()
	}
}

func (n *Node) emitExecuteStart(cfg *runnable.Config, input map[string]any, meta callbacks.Meta) {
	for _, handler := range cfg.Callbacks {
		handler.OnExecuteStart(n.View(), input, meta)
	}
}

func (n *Node) emitExecuteEnd(cfg *runnable.Config, output any, meta callbacks.Meta) {
	for _, handler := range cfg.Callbacks {
		handler.OnExecuteEnd(n.View(), output, meta)
	}
}

func (n *Node) emitExecuteError(cfg *runnable.Config, err error, meta callbacks.Meta) {
	for _, handler := range cfg.Callbacks {
		handler.OnExecuteError(n.View(), err, meta)
	}
}
