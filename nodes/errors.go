package nodes

import (
	"errors"
	"fmt"
	"time"
)

// Recoverable marks errors an agent can absorb into its running context as an
// observation instead of failing the run. The engine reifies them into
// FAILURE results with the recoverable flag set, which the tool dispatcher
// renders as observation text.
type Recoverable interface {
	error
	Recoverable() bool
}

// IsRecoverable reports whether err (or anything it wraps) is a recoverable
// agent condition.
func IsRecoverable(err error) bool {
	var recoverable Recoverable
	return errors.As(err, &recoverable) && recoverable.Recoverable()
}

// DependencyError reports why a dependency did not clear validation. It is
// the payload behind a SKIP result, never a FAILURE.
type DependencyError struct {
	// NodeID is the predecessor whose result blocked this node.
	NodeID string

	// Gate is the dependency's gate name, when the gate condition failed.
	Gate string

	// Reason is a short human-readable cause: "result missing", "failed",
	// "skipped", or "condition not satisfied".
	Reason string
}

func (e *DependencyError) Error() string {
	if e.Gate != "" {
		return fmt.Sprintf("dependency %s gate %s: %s", e.NodeID, e.Gate, e.Reason)
	}
	return fmt.Sprintf("dependency %s: %s", e.NodeID, e.Reason)
}

// TimeoutError reports that one execute attempt exceeded its wall-clock
// bound. The retry policy treats it like any other execution error.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("execution timed out after %s", e.Timeout)
}

// ErrInputStreamingDisabled is returned when a node polls its input stream
// without input streaming configured.
var ErrInputStreamingDisabled = errors.New("input streaming is not enabled")

// ErrInputStreamClosed is returned when the input stream's done signal fires
// while a node is polling.
var ErrInputStreamClosed = errors.New("input stream closed")
