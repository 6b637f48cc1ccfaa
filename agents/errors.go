package agents

import (
	"fmt"

	"github.com/49Simon/dynamiq/nodes"
)

// recoverableTag prefixes observations rendered from recoverable tool
// failures, so the model can tell a tool error apart from tool output and
// decide to retry or change course.
const recoverableTag = "RecoverableAgentException"

// RecoverableError is a failure a tool can raise to signal the agent should
// keep reasoning instead of aborting the run: the message is fed back into
// the loop as an observation.
type RecoverableError struct {
	Message string
}

var _ nodes.Recoverable = (*RecoverableError)(nil)

func (e *RecoverableError) Error() string { return e.Message }

// Recoverable marks the error as absorbable by the reasoning loop.
func (e *RecoverableError) Recoverable() bool { return true }

// NewRecoverableError builds a RecoverableError with a formatted message.
func NewRecoverableError(format string, args ...any) *RecoverableError {
	return &RecoverableError{Message: fmt.Sprintf(format, args...)}
}

// ActionParsingError reports a model response that does not follow the
// protocol grammar of the active inference mode. It is recoverable: the loop
// appends the message to its context and re-prompts, letting the model
// correct itself on the next turn.
type ActionParsingError struct {
	Message string
}

var _ nodes.Recoverable = (*ActionParsingError)(nil)

func (e *ActionParsingError) Error() string { return e.Message }

// Recoverable marks the error as absorbable by the reasoning loop.
func (e *ActionParsingError) Recoverable() bool { return true }

// UnknownToolError reports an action naming a tool the agent does not have.
// A configured tool catalog that the model cannot match is a contract
// violation, not a model slip, so the error is fatal and aborts the run.
type UnknownToolError struct {
	Action    string
	ToolNames string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q, expected one of [%s]", e.Action, e.ToolNames)
}

// MaxLoopsError is the fatal error raised when the loop budget is exhausted
// without a final answer. It is not recoverable.
type MaxLoopsError struct {
	AgentName string
	MaxLoops  int
}

func (e *MaxLoopsError) Error() string {
	return fmt.Sprintf("agent %s: maximum number of loops (%d) reached without a final answer", e.AgentName, e.MaxLoops)
}
