package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/49Simon/dynamiq/core/runnable"
	"github.com/49Simon/dynamiq/internal/utils"
	"github.com/49Simon/dynamiq/nodes"
	"github.com/49Simon/dynamiq/observability"
)

// DefaultMaxLoops is the loop budget applied to agents that do not set one.
const DefaultMaxLoops = 15

// Tool pairs a runnable node with the description shown to the model. The
// node's name, normalized to lower-case with hyphens, is the name the model
// uses in its actions.
type Tool struct {
	Node        *nodes.Node
	Description string
}

// Name returns the model-facing tool name.
func (t Tool) Name() string {
	return strings.ToLower(strings.ReplaceAll(t.Node.Name, " ", "-"))
}

// Step records one loop iteration for tracing: the model's turn, the tool
// interaction if any, and the final answer when the iteration terminated the
// loop. Loop numbers are monotonic from zero within one run.
type Step struct {
	Loop        int            `json:"loop"`
	Prompt      string         `json:"prompt"`
	Thought     string         `json:"thought,omitempty"`
	Action      string         `json:"action,omitempty"`
	ActionInput map[string]any `json:"action_input,omitempty"`
	Observation string         `json:"observation,omitempty"`
	Raw         string         `json:"raw"`
	Answer      string         `json:"answer,omitempty"`
	Final       bool           `json:"final,omitempty"`
}

func (s Step) asChunk() map[string]any {
	chunk := map[string]any{
		"loop":   s.Loop,
		"prompt": s.Prompt,
		"raw":    s.Raw,
	}
	if s.Thought != "" {
		chunk["thought"] = s.Thought
	}
	if s.Action != "" {
		chunk["action"] = s.Action
		chunk["action_input"] = s.ActionInput
		chunk["observation"] = s.Observation
	}
	if s.Final {
		chunk["final_answer"] = s.Answer
	}
	return chunk
}

// Agent runs a bounded reason-and-act loop: prompt the model, parse the turn,
// dispatch the chosen tool, feed the observation back, until the model
// provides a final answer or the loop budget runs out.
//
// An Agent is itself a node executor; wrap it with NewNode to run it under
// the engine's retry, caching and callback machinery.
type Agent struct {
	name     string
	model    Model
	tools    []Tool
	mode     InferenceMode
	maxLoops int
	blocks   map[string]string
	log      observability.Logger
}

var _ nodes.Executor = (*Agent)(nil)

// AgentOption customizes an Agent at construction time.
type AgentOption func(*Agent)

// WithTools gives the agent its tool catalog, in dispatch priority order.
func WithTools(tools ...Tool) AgentOption {
	return func(a *Agent) { a.tools = append(a.tools, tools...) }
}

// WithMaxLoops overrides the loop budget. Values below one fall back to the
// default.
func WithMaxLoops(maxLoops int) AgentOption {
	return func(a *Agent) {
		if maxLoops >= 1 {
			a.maxLoops = maxLoops
		}
	}
}

// WithInferenceMode selects the protocol between agent and model.
func WithInferenceMode(mode InferenceMode) AgentOption {
	return func(a *Agent) { a.mode = mode }
}

// WithPromptBlock overrides one prompt block by name.
func WithPromptBlock(name, text string) AgentOption {
	return func(a *Agent) { a.blocks[name] = text }
}

// WithAgentLogger sets the agent's structured logger.
func WithAgentLogger(log observability.Logger) AgentOption {
	return func(a *Agent) { a.log = log }
}

// NewAgent builds an Agent around a model. Prompt blocks default to the
// selected inference mode; override individual blocks with WithPromptBlock.
func NewAgent(name string, model Model, opts ...AgentOption) *Agent {
	agent := &Agent{
		name:     name,
		model:    model,
		mode:     ModeDefault,
		maxLoops: DefaultMaxLoops,
		blocks:   map[string]string{},
		log:      observability.Default(),
	}
	for _, opt := range opts {
		opt(agent)
	}

	defaults := defaultBlocks(agent.mode, len(agent.tools) > 0)
	for name, block := range defaults {
		if _, overridden := agent.blocks[name]; !overridden {
			agent.blocks[name] = block
		}
	}
	return agent
}

// NewNode wraps the agent as a runnable node in the agents group.
func NewNode(agent *Agent, opts ...nodes.Option) *nodes.Node {
	merged := append([]nodes.Option{
		nodes.WithGroup(nodes.GroupAgents),
		nodes.WithTypeName("agents.Agent"),
	}, opts...)
	return nodes.New(agent.name, agent, merged...)
}

// Name returns the agent's name.
func (a *Agent) Name() string { return a.name }

func (a *Agent) toolNames() []string {
	names := make([]string, 0, len(a.tools))
	for _, tool := range a.tools {
		names = append(names, tool.Name())
	}
	return names
}

func (a *Agent) toolDescription() string {
	var builder strings.Builder
	for _, tool := range a.tools {
		fmt.Fprintf(&builder, "%s: %s\n", tool.Name(), tool.Description)
	}
	return strings.TrimSpace(builder.String())
}

func (a *Agent) toolByName(name string) (Tool, bool) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for _, tool := range a.tools {
		if tool.Name() == normalized {
			return tool, true
		}
	}
	return Tool{}, false
}

// Execute runs the reasoning loop. The input's "input" field is the user
// request. The output carries the final answer under "content" and the full
// step trace under "intermediate_steps"; when the node streams, each step is
// also emitted as a chunk the moment it completes.
func (a *Agent) Execute(ctx context.Context, input map[string]any, run *nodes.Execution) (any, error) {
	request := utils.Stringify(input["input"])
	toolsName := strings.Join(a.toolNames(), ",")

	a.log.Info("agent run started",
		observability.String(observability.AttrNodeName, a.name),
		observability.Int("max_loops", a.maxLoops),
	)

	var previousResponses []string
	var steps []Step

	for loopNum := 0; loopNum < a.maxLoops; loopNum++ {
		prompt := renderPrompt(a.blocks, promptVariables{
			ToolsDesc: a.toolDescription(),
			ToolsName: toolsName,
			Input:     request,
			Context:   strings.Join(previousResponses, "\n"),
		})

		modelRequest := Request{Prompt: prompt, Mode: a.mode}
		switch a.mode {
		case ModeFunctionCalling:
			modelRequest.Tools = functionCallingSchema(a.toolNames())
		case ModeStructuredOutput:
			modelRequest.ResponseFormat = structuredOutputSchema(a.toolNames())
		}

		response, err := a.model.Invoke(ctx, modelRequest)
		if err != nil {
			a.log.Warn("model invocation failed",
				observability.String(observability.AttrNodeName, a.name),
				observability.Int(observability.AttrLoop, loopNum),
				observability.Error(err),
			)
			previousResponses = append(previousResponses, err.Error())
			continue
		}
		run.EmitRun()

		parsed, parseErr := a.parse(response)
		if parseErr != nil {
			a.log.Warn("model turn did not follow the protocol",
				observability.String(observability.AttrNodeName, a.name),
				observability.Int(observability.AttrLoop, loopNum),
				observability.Error(parseErr),
			)
			rendered := fmt.Sprintf("ActionParsingError: %s", parseErr.Error())
			previousResponses = append(previousResponses, rendered)
			steps = a.recordStep(run, steps, Step{
				Loop:        loopNum,
				Prompt:      prompt,
				Raw:         response.Content,
				Observation: rendered,
			})
			continue
		}

		if parsed.final {
			a.log.Info("agent found final answer",
				observability.String(observability.AttrNodeName, a.name),
				observability.Int(observability.AttrLoop, loopNum),
			)
			steps = a.recordStep(run, steps, Step{
				Loop:    loopNum,
				Prompt:  prompt,
				Thought: parsed.thought,
				Raw:     parsed.raw,
				Answer:  parsed.answer,
				Final:   true,
			})
			return map[string]any{
				"content":            parsed.answer,
				"intermediate_steps": stepsAsMaps(steps),
			}, nil
		}

		observation, toolErr := a.dispatchTool(ctx, run, parsed.action, parsed.input)
		if toolErr != nil {
			return nil, toolErr
		}

		updated := parsed.raw + "\nObservation: " + observation + "\n"
		previousResponses = append(previousResponses, updated)
		steps = a.recordStep(run, steps, Step{
			Loop:        loopNum,
			Prompt:      prompt,
			Thought:     parsed.thought,
			Action:      parsed.action,
			ActionInput: parsed.input,
			Observation: observation,
			Raw:         updated,
		})
	}

	return nil, &MaxLoopsError{AgentName: a.name, MaxLoops: a.maxLoops}
}

func (a *Agent) parse(response Response) (parsedAction, error) {
	switch a.mode {
	case ModeFunctionCalling:
		return parseFunctionCalling(response)
	case ModeStructuredOutput:
		return parseStructuredOutput(response.Content)
	case ModeXML:
		return parseXML(response.Content)
	default:
		return parseDefault(response.Content)
	}
}

// dispatchTool runs the chosen tool as a child node run and renders its
// result as observation text. Recoverable tool failures become observations
// prefixed with the recoverable tag; an unknown tool name or any other
// failure aborts the agent run.
func (a *Agent) dispatchTool(ctx context.Context, run *nodes.Execution, action string, input map[string]any) (string, error) {
	tool, found := a.toolByName(action)
	if !found {
		return "", &UnknownToolError{Action: action, ToolNames: strings.Join(a.toolNames(), ",")}
	}

	childCtx := nodes.ContextWithParentRun(ctx, run.Meta().RunID)
	result := tool.Node.Run(childCtx, input, run.Config(), nil)

	switch result.Status {
	case runnable.StatusSuccess:
		return utils.Stringify(result.Output), nil

	case runnable.StatusFailure:
		output, _ := result.Output.(map[string]any)
		content := utils.Stringify(output["content"])
		if recoverable, _ := output["recoverable"].(bool); recoverable {
			return fmt.Sprintf("%s: %s", recoverableTag, content), nil
		}
		return "", fmt.Errorf("tool %s failed: %s", tool.Name(), content)

	default:
		return "", fmt.Errorf("tool %s was skipped", tool.Name())
	}
}

// recordStep appends a step to the trace and streams it when the node has
// streaming enabled.
func (a *Agent) recordStep(run *nodes.Execution, steps []Step, step Step) []Step {
	steps = append(steps, step)
	if run.StreamingEnabled() {
		run.EmitStream(step.asChunk())
	}
	return steps
}

func stepsAsMaps(steps []Step) []map[string]any {
	out := make([]map[string]any, 0, len(steps))
	for _, step := range steps {
		out = append(out, step.asChunk())
	}
	return out
}
