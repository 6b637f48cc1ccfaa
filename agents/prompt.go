package agents

import "strings"

// Prompt blocks for the reasoning loop. Each block may contain the
// placeholders {tools_desc}, {tools_name}, {input} and {context}, which are
// substituted on every loop iteration.

const blockTools = `
You have access to a variety of tools, and you are responsible for using them in any order you choose to complete the task:
{tools_desc}
`

const blockNoTools = `
You do not have access to any tools.
`

const blockInstructions = `
Always structure your responses in the following format:

Thought: [Your reasoning about the next step]
Action: [The tool you choose to use, if any from ONLY [{tools_name}]]
Action Input: [The input you provide to the tool]
Remember:
- Avoid using triple quotes (multi-line strings, docstrings) when providing multi line code.
- You have to provide all necessary information in 'Action Input' for a successful next step.
- Provide Action Input in JSON format.
- MUST Begin each response with a "Thought" explaining your reasoning.
- If you need to use a tool, follow the thought with an "Action" (choosing from the available tools) and an "Action Input".
- After each action, the user will provide an "Observation" with the result.
- Continue this Thought/Action/Action Input/Observation sequence until you have enough information to answer the request.

When you have sufficient information, provide your final answer in one of these two formats:

If you can answer the request:

Thought: I can answer without using any tools
Answer: [Your answer here]
If you cannot answer the request:

Thought: I cannot answer with the tools I have
Answer: [Explanation of why you cannot answer]
Remember:
- Always start with a Thought.
- Never use markdown code markers around your response.
`

const blockInstructionsNoTools = `
Always structure your responses in the following format:

Thought: [Your reasoning why you can not answer on initial question fully]
Observation: [Answer on initial question or part of it]
- Do not add information that is not connected to main request.
- MUST Begin each response with a "Thought" explaining your reasoning.
- Continue this Thought/Observation sequence until you have enough information to answer the request.

When you have sufficient information, provide your final answer:

Thought: I can answer without using any tools
Answer: [Your answer here]
Remember:
- Always start with a Thought.
- Never use markdown code markers around your response.
`

const blockXMLInstructions = `
Here is how you will think about the user's request
<output>
    <thought>
        Here you reason about the next step
    </thought>
    <action>
        Here you choose the tool to use from [{tools_name}]
    </action>
    <action_input>
        Here you provide the input to the tool, correct JSON format
    </action_input>
</output>

REMEMBER:
* Inside 'action' provide just name of one tool from this list: [{tools_name}]

After each action, the user will provide an "Observation" with the result.
Continue this Thought/Action/Action Input/Observation sequence until you have enough information to answer the request.

When you have sufficient information, provide your final answer:
<output>
    <thought>
        I can answer without using any tools
    </thought>
    <answer>
        Your answer here
    </answer>
</output>
`

const blockFunctionCallingInstructions = `
You have to call appropriate functions.

Function descriptions
plan_next_action - function that should be called to use tools [{tools_name}].
provide_final_answer - function that should be called when answer on initial request can be provided
`

const blockStructuredOutputInstructions = `
Structure your responses in JSON format.
{"thought": [Your reasoning about the next step],
"action": [The tool you choose to use, if any from ONLY [{tools_name}]],
"action_input": [The input you provide to the tool]}

If you have sufficient information to provide a final answer, respond with:
{"thought": [Why you can provide the final answer],
"action": "finish",
"action_input": [Response for request]}
`

const blockOutputFormat = `
In your final answer do not use wording like 'based on the information gathered or provided'.
Just provide a clear and concise answer.
`

const blockRequest = "User request: {input}"

const blockContext = "Below is the conversation: {context}"

// Block names, in prompt assembly order.
const (
	BlockTools        = "tools"
	BlockInstructions = "instructions"
	BlockOutputFormat = "output_format"
	BlockContext      = "context"
	BlockRequest      = "request"
)

var blockOrder = []string{BlockTools, BlockInstructions, BlockOutputFormat, BlockContext, BlockRequest}

// defaultBlocks selects the prompt blocks for an inference mode, depending on
// whether the agent carries tools at all.
func defaultBlocks(mode InferenceMode, hasTools bool) map[string]string {
	blocks := map[string]string{
		BlockTools:        blockTools,
		BlockInstructions: blockInstructions,
		BlockOutputFormat: blockOutputFormat,
		BlockContext:      blockContext,
		BlockRequest:      blockRequest,
	}

	if !hasTools {
		blocks[BlockTools] = blockNoTools
		blocks[BlockInstructions] = blockInstructionsNoTools
	}

	switch mode {
	case ModeXML:
		blocks[BlockInstructions] = blockXMLInstructions
	case ModeFunctionCalling:
		blocks[BlockInstructions] = blockFunctionCallingInstructions
	case ModeStructuredOutput:
		blocks[BlockInstructions] = blockStructuredOutputInstructions
	}
	return blocks
}

// promptVariables are the per-iteration substitutions for the prompt blocks.
type promptVariables struct {
	ToolsDesc string
	ToolsName string
	Input     string
	Context   string
}

// renderPrompt assembles the non-empty blocks in order, substituting the
// placeholder variables. The context block is dropped entirely on the first
// iteration, when there is no conversation yet.
func renderPrompt(blocks map[string]string, vars promptVariables) string {
	replacer := strings.NewReplacer(
		"{tools_desc}", vars.ToolsDesc,
		"{tools_name}", vars.ToolsName,
		"{input}", vars.Input,
		"{context}", vars.Context,
	)

	parts := make([]string, 0, len(blockOrder))
	for _, name := range blockOrder {
		block, ok := blocks[name]
		if !ok || block == "" {
			continue
		}
		if name == BlockContext && vars.Context == "" {
			continue
		}
		parts = append(parts, strings.TrimSpace(replacer.Replace(block)))
	}
	return strings.Join(parts, "\n\n")
}
