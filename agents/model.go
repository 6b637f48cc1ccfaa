package agents

import "context"

// InferenceMode selects the wire protocol between the agent and its model:
// how the prompt asks for actions and how responses are parsed back into
// thought, action and action input.
type InferenceMode string

const (
	// ModeDefault uses the plain-text Thought/Action/Action Input grammar
	// with an "Answer:" marker for the final answer.
	ModeDefault InferenceMode = "DEFAULT"

	// ModeFunctionCalling drives the loop through the model's native tool
	// calling: plan_next_action to act, provide_final_answer to finish.
	ModeFunctionCalling InferenceMode = "FUNCTION_CALLING"

	// ModeStructuredOutput constrains the model to a single JSON object per
	// turn; the reserved action "finish" terminates the loop.
	ModeStructuredOutput InferenceMode = "STRUCTURED_OUTPUT"

	// ModeXML wraps each turn in <output> tags with an <answer> tag for the
	// final answer. Action input must be strict JSON.
	ModeXML InferenceMode = "XML"
)

// Request is one model invocation issued by the reasoning loop.
type Request struct {
	// Prompt is the fully rendered prompt for this turn.
	Prompt string

	// Mode tells the model adapter which protocol the loop expects back.
	Mode InferenceMode

	// Tools carries the function-calling schema when Mode is
	// ModeFunctionCalling.
	Tools []map[string]any

	// ResponseFormat carries the JSON schema when Mode is
	// ModeStructuredOutput.
	ResponseFormat map[string]any
}

// FunctionCall is the name and raw JSON arguments of one tool call returned
// by a function-calling model.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is one entry of a function-calling response.
type ToolCall struct {
	ID       string       `json:"id,omitempty"`
	Function FunctionCall `json:"function"`
}

// Response is the model's reply to one Request. Text protocols fill Content;
// function calling fills ToolCalls.
type Response struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Model is the minimal capability the reasoning loop needs from a language
// model. Adapters for concrete providers implement it; tests script it.
type Model interface {
	Invoke(ctx context.Context, request Request) (Response, error)
}

// ModelFunc adapts an ordinary function to the Model interface.
type ModelFunc func(ctx context.Context, request Request) (Response, error)

// Invoke calls the underlying function.
func (f ModelFunc) Invoke(ctx context.Context, request Request) (Response, error) {
	return f(ctx, request)
}
