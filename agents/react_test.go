package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/49Simon/dynamiq/callbacks"
	"github.com/49Simon/dynamiq/core/runnable"
	"github.com/49Simon/dynamiq/nodes"
)

// --- Mock Types ---

type modelTurn struct {
	response Response
	err      error
}

// scriptedModel replays a fixed sequence of turns and records every prompt
// it was asked.
type scriptedModel struct {
	turns   []modelTurn
	prompts []string
}

var _ Model = (*scriptedModel)(nil)

func (model *scriptedModel) Invoke(_ context.Context, request Request) (Response, error) {
	model.prompts = append(model.prompts, request.Prompt)
	if len(model.prompts) > len(model.turns) {
		return Response{}, errors.New("no more scripted turns")
	}
	turn := model.turns[len(model.prompts)-1]
	return turn.response, turn.err
}

func textTurn(content string) modelTurn {
	return modelTurn{response: Response{Content: content}}
}

func functionTurn(name, arguments string) modelTurn {
	return modelTurn{response: Response{ToolCalls: []ToolCall{{
		Function: FunctionCall{Name: name, Arguments: arguments},
	}}}}
}

// stepStreamHandler collects streamed intermediate steps.
type stepStreamHandler struct {
	callbacks.Base
	chunks []map[string]any
}

func (handler *stepStreamHandler) OnExecuteStream(_ callbacks.NodeView, chunk map[string]any, _ callbacks.Meta) {
	handler.chunks = append(handler.chunks, chunk)
}

// --- Helpers ---

func newTestTool(name, description string, executor nodes.ExecutorFunc) Tool {
	return Tool{
		Node:        nodes.New(name, executor, nodes.WithGroup(nodes.GroupTools)),
		Description: description,
	}
}

func calculatorTool(testCase *testing.T) Tool {
	testCase.Helper()
	return newTestTool("calculator", "evaluates arithmetic expressions",
		func(_ context.Context, input map[string]any, _ *nodes.Execution) (any, error) {
			if input["input"] == "6*7" {
				return "42", nil
			}
			return nil, NewRecoverableError("cannot evaluate %v", input["input"])
		})
}

func runAgentNode(agent *Agent, input map[string]any, cfg *runnable.Config) runnable.Result {
	return NewNode(agent).Run(context.Background(), input, cfg, nil)
}

// --- Loop Termination ---

func TestAgent_FunctionCallingToolThenAnswer(testCase *testing.T) {
	model := &scriptedModel{turns: []modelTurn{
		functionTurn("plan_next_action", `{"thought": "multiply", "action": "calculator", "action_input": "6*7"}`),
		functionTurn("provide_final_answer", `{"thought": "done", "answer": "42"}`),
	}}
	agent := NewAgent("math", model,
		WithTools(calculatorTool(testCase)),
		WithInferenceMode(ModeFunctionCalling),
	)

	result := runAgentNode(agent, map[string]any{"input": "what is 6*7?"}, nil)

	if result.Status != runnable.StatusSuccess {
		testCase.Fatalf("expected success, got %s: %v", result.Status, result.Output)
	}
	output := result.Output.(map[string]any)
	if output["content"] != "42" {
		testCase.Errorf("expected final answer 42, got %v", output["content"])
	}
	steps, _ := output["intermediate_steps"].([]map[string]any)
	if len(steps) != 2 {
		testCase.Fatalf("expected two intermediate steps, got %d", len(steps))
	}
	if steps[0]["observation"] != "42" {
		testCase.Errorf("expected the tool result as the first observation, got %v", steps[0]["observation"])
	}
	if steps[1]["final_answer"] != "42" {
		testCase.Errorf("expected the final step to carry the answer, got %v", steps[1])
	}
}

func TestAgent_DefaultModeAnswerMarker(testCase *testing.T) {
	model := &scriptedModel{turns: []modelTurn{
		textTurn("Thought: I can answer without using any tools\nAnswer: Paris"),
	}}
	agent := NewAgent("geo", model, WithTools(calculatorTool(testCase)))

	result := runAgentNode(agent, map[string]any{"input": "capital of France?"}, nil)

	if result.Status != runnable.StatusSuccess {
		testCase.Fatalf("expected success, got %s", result.Status)
	}
	if result.Output.(map[string]any)["content"] != "Paris" {
		testCase.Errorf("unexpected answer: %v", result.Output)
	}
}

func TestAgent_MaxLoopsReached(testCase *testing.T) {
	looping := textTurn("Thought: again\nAction: calculator\nAction Input: {\"input\": \"6*7\"}")
	model := &scriptedModel{turns: []modelTurn{looping, looping, looping}}
	agent := NewAgent("stuck", model,
		WithTools(calculatorTool(testCase)),
		WithMaxLoops(3),
	)

	handler := &stepStreamHandler{}
	cfg := &runnable.Config{Callbacks: []callbacks.Handler{handler}}
	node := NewNode(agent).EnableStreaming("")
	result := node.Run(context.Background(), map[string]any{"input": "loop forever"}, cfg, nil)

	if result.Status != runnable.StatusFailure {
		testCase.Fatalf("expected failure on loop exhaustion, got %s", result.Status)
	}
	output := result.Output.(map[string]any)
	content, _ := output["content"].(string)
	if !strings.Contains(content, "maximum number of loops") {
		testCase.Errorf("expected a max-loops failure, got %q", content)
	}
	if output["recoverable"] != false {
		testCase.Error("expected loop exhaustion to be fatal, not recoverable")
	}
	if len(model.prompts) != 3 {
		testCase.Errorf("expected exactly max_loops model calls, got %d", len(model.prompts))
	}
	if len(handler.chunks) != 3 {
		testCase.Fatalf("expected one streamed step per loop, got %d", len(handler.chunks))
	}
	for index, chunk := range handler.chunks {
		if chunk["loop"] != index {
			testCase.Errorf("expected monotonic loop numbers from zero, step %d has %v", index, chunk["loop"])
		}
	}
}

func TestAgent_ExecuteReturnsMaxLoopsError(testCase *testing.T) {
	model := &scriptedModel{turns: []modelTurn{
		textTurn("Thought: again\nAction: calculator\nAction Input: {\"input\": \"6*7\"}"),
	}}
	agent := NewAgent("stuck", model, WithTools(calculatorTool(testCase)), WithMaxLoops(1))

	node := NewNode(agent)
	result := node.Run(context.Background(), map[string]any{"input": "x"}, nil, nil)

	if result.Status != runnable.StatusFailure {
		testCase.Fatalf("expected failure, got %s", result.Status)
	}
}

// --- Error Absorption ---

func TestAgent_RecoverableToolErrorBecomesObservation(testCase *testing.T) {
	rateLimited := newTestTool("search", "searches the web",
		func(_ context.Context, _ map[string]any, _ *nodes.Execution) (any, error) {
			return nil, NewRecoverableError("rate limited")
		})
	model := &scriptedModel{turns: []modelTurn{
		textTurn("Thought: search it\nAction: search\nAction Input: {\"query\": \"news\"}"),
		textTurn("Thought: the tool is unavailable\nAnswer: I could not search right now."),
	}}
	agent := NewAgent("reporter", model, WithTools(rateLimited))

	result := runAgentNode(agent, map[string]any{"input": "latest news"}, nil)

	if result.Status != runnable.StatusSuccess {
		testCase.Fatalf("expected the agent to absorb the tool error, got %s: %v", result.Status, result.Output)
	}
	if len(model.prompts) != 2 {
		testCase.Fatalf("expected two model calls, got %d", len(model.prompts))
	}
	if !strings.Contains(model.prompts[1], "Observation: RecoverableAgentException: rate limited") {
		testCase.Errorf("expected the rendered observation in the second prompt, got:\n%s", model.prompts[1])
	}
}

func TestAgent_FatalToolErrorAbortsRun(testCase *testing.T) {
	broken := newTestTool("db", "queries the database",
		func(_ context.Context, _ map[string]any, _ *nodes.Execution) (any, error) {
			return nil, errors.New("connection refused")
		})
	model := &scriptedModel{turns: []modelTurn{
		textTurn("Thought: query\nAction: db\nAction Input: {\"sql\": \"select 1\"}"),
	}}
	agent := NewAgent("analyst", model, WithTools(broken))

	result := runAgentNode(agent, map[string]any{"input": "count users"}, nil)

	if result.Status != runnable.StatusFailure {
		testCase.Fatalf("expected a fatal tool error to fail the run, got %s", result.Status)
	}
	content, _ := result.Output.(map[string]any)["content"].(string)
	if !strings.Contains(content, "connection refused") {
		testCase.Errorf("expected the tool error in the failure content, got %q", content)
	}
}

func TestAgent_UnknownToolAbortsRun(testCase *testing.T) {
	model := &scriptedModel{turns: []modelTurn{
		textTurn("Thought: try\nAction: teleport\nAction Input: {}"),
	}}
	agent := NewAgent("wanderer", model, WithTools(calculatorTool(testCase)))

	result := runAgentNode(agent, map[string]any{"input": "go"}, nil)

	if result.Status != runnable.StatusFailure {
		testCase.Fatalf("expected an unknown tool to fail the run, got %s", result.Status)
	}
	output := result.Output.(map[string]any)
	content, _ := output["content"].(string)
	if !strings.Contains(content, `unknown tool "teleport"`) {
		testCase.Errorf("expected the failure to name the unknown tool, got %q", content)
	}
	if !strings.Contains(content, "calculator") {
		testCase.Errorf("expected the failure to list the valid tools, got %q", content)
	}
	if output["recoverable"] != false {
		testCase.Error("expected an unknown tool to be fatal, not recoverable")
	}
}

func TestAgent_ModelFailureAppendedToContext(testCase *testing.T) {
	model := &scriptedModel{turns: []modelTurn{
		{err: errors.New("upstream 503")},
		textTurn("Thought: retrying worked\nAnswer: fine now"),
	}}
	agent := NewAgent("resilient", model, WithTools(calculatorTool(testCase)))

	result := runAgentNode(agent, map[string]any{"input": "hello"}, nil)

	if result.Status != runnable.StatusSuccess {
		testCase.Fatalf("expected the loop to continue past a model failure, got %s", result.Status)
	}
	if !strings.Contains(model.prompts[1], "upstream 503") {
		testCase.Errorf("expected the model error in the follow-up context, got:\n%s", model.prompts[1])
	}
}

func TestAgent_MalformedXMLAdvancesLoop(testCase *testing.T) {
	model := &scriptedModel{turns: []modelTurn{
		textTurn("<output><action>calculator</action><action_input>{input: '6*7'}</action_input></output>"),
		textTurn("<output><thought>fixed</thought><answer>42</answer></output>"),
	}}
	agent := NewAgent("xml", model,
		WithTools(calculatorTool(testCase)),
		WithInferenceMode(ModeXML),
	)

	result := runAgentNode(agent, map[string]any{"input": "what is 6*7?"}, nil)

	if result.Status != runnable.StatusSuccess {
		testCase.Fatalf("expected the loop to survive a malformed turn, got %s", result.Status)
	}
	if result.Output.(map[string]any)["content"] != "42" {
		testCase.Errorf("unexpected answer: %v", result.Output)
	}
	if !strings.Contains(model.prompts[1], "ActionParsingError") {
		testCase.Errorf("expected the parse error in the follow-up context, got:\n%s", model.prompts[1])
	}
}

// --- Prompt And Schema Wiring ---

func TestAgent_FunctionCallingRequestCarriesSchema(testCase *testing.T) {
	var captured Request
	model := ModelFunc(func(_ context.Context, request Request) (Response, error) {
		captured = request
		return Response{ToolCalls: []ToolCall{{
			Function: FunctionCall{Name: "provide_final_answer", Arguments: `{"answer": "ok"}`},
		}}}, nil
	})
	agent := NewAgent("planner", model,
		WithTools(calculatorTool(testCase)),
		WithInferenceMode(ModeFunctionCalling),
	)

	runAgentNode(agent, map[string]any{"input": "x"}, nil)

	if len(captured.Tools) != 2 {
		testCase.Fatalf("expected plan_next_action and provide_final_answer schemas, got %d", len(captured.Tools))
	}
	if captured.Mode != ModeFunctionCalling {
		testCase.Errorf("expected the request to carry the inference mode, got %s", captured.Mode)
	}
}

func TestAgent_ToolNameNormalization(testCase *testing.T) {
	tool := newTestTool("Web Search", "searches",
		func(_ context.Context, _ map[string]any, _ *nodes.Execution) (any, error) {
			return "results", nil
		})
	model := &scriptedModel{turns: []modelTurn{
		textTurn("Thought: go\nAction: web-search\nAction Input: {\"query\": \"go\"}"),
		textTurn("Thought: done\nAnswer: found it"),
	}}
	agent := NewAgent("searcher", model, WithTools(tool))

	result := runAgentNode(agent, map[string]any{"input": "find"}, nil)

	if result.Status != runnable.StatusSuccess {
		testCase.Fatalf("expected the normalized tool name to dispatch, got %s", result.Status)
	}
	if !strings.Contains(model.prompts[0], "web-search: searches") {
		testCase.Errorf("expected the normalized name in the tool description, got:\n%s", model.prompts[0])
	}
}

func TestAgent_ChildRunsLinkToParent(testCase *testing.T) {
	var childParent string
	tool := newTestTool("probe", "records its parent run",
		func(ctx context.Context, _ map[string]any, _ *nodes.Execution) (any, error) {
			childParent = nodes.ParentRunID(ctx)
			return "ok", nil
		})
	model := &scriptedModel{turns: []modelTurn{
		textTurn("Thought: probe\nAction: probe\nAction Input: {}"),
		textTurn("Thought: done\nAnswer: ok"),
	}}
	agent := NewAgent("parent", model, WithTools(tool))

	runAgentNode(agent, map[string]any{"input": "x"}, nil)

	if childParent == "" {
		testCase.Error("expected the tool run to carry the agent's run id as parent")
	}
}
