package agents

import (
	"strings"
	"testing"
)

func TestDefaultBlocks_ModeSelection(testCase *testing.T) {
	if blocks := defaultBlocks(ModeDefault, true); !strings.Contains(blocks[BlockInstructions], "Action Input:") {
		testCase.Error("expected the default mode instructions to teach the text grammar")
	}
	if blocks := defaultBlocks(ModeXML, true); !strings.Contains(blocks[BlockInstructions], "<action_input>") {
		testCase.Error("expected the XML mode instructions to teach the tag grammar")
	}
	if blocks := defaultBlocks(ModeFunctionCalling, true); !strings.Contains(blocks[BlockInstructions], "plan_next_action") {
		testCase.Error("expected the function-calling instructions to name the planning function")
	}
	if blocks := defaultBlocks(ModeStructuredOutput, true); !strings.Contains(blocks[BlockInstructions], "finish") {
		testCase.Error("expected the structured-output instructions to name the finish action")
	}
}

func TestDefaultBlocks_NoTools(testCase *testing.T) {
	blocks := defaultBlocks(ModeDefault, false)
	if !strings.Contains(blocks[BlockTools], "do not have access") {
		testCase.Error("expected the no-tools block when the agent has no tools")
	}
	if strings.Contains(blocks[BlockInstructions], "Action Input:") {
		testCase.Error("expected the no-tools instructions to drop the action grammar")
	}
}

func TestRenderPrompt_SubstitutesVariables(testCase *testing.T) {
	blocks := defaultBlocks(ModeDefault, true)
	prompt := renderPrompt(blocks, promptVariables{
		ToolsDesc: "calculator: does math",
		ToolsName: "calculator",
		Input:     "what is 6*7?",
		Context:   "Thought: hmm",
	})

	for _, expected := range []string{
		"calculator: does math",
		"ONLY [calculator]",
		"User request: what is 6*7?",
		"Below is the conversation: Thought: hmm",
	} {
		if !strings.Contains(prompt, expected) {
			testCase.Errorf("expected prompt to contain %q", expected)
		}
	}
	if strings.Contains(prompt, "{tools_desc}") || strings.Contains(prompt, "{input}") {
		testCase.Error("expected all placeholders to be substituted")
	}
}

func TestRenderPrompt_OmitsEmptyContext(testCase *testing.T) {
	blocks := defaultBlocks(ModeDefault, true)
	prompt := renderPrompt(blocks, promptVariables{Input: "hi"})

	if strings.Contains(prompt, "Below is the conversation") {
		testCase.Error("expected the context block to be dropped on the first iteration")
	}
}

func TestRenderPrompt_BlockOrder(testCase *testing.T) {
	blocks := defaultBlocks(ModeDefault, true)
	prompt := renderPrompt(blocks, promptVariables{Input: "hi", Context: "earlier"})

	toolsAt := strings.Index(prompt, "You have access to a variety of tools")
	instructionsAt := strings.Index(prompt, "Always structure your responses")
	contextAt := strings.Index(prompt, "Below is the conversation")
	requestAt := strings.Index(prompt, "User request:")

	if !(toolsAt < instructionsAt && instructionsAt < contextAt && contextAt < requestAt) {
		testCase.Errorf("unexpected block order: tools=%d instructions=%d context=%d request=%d",
			toolsAt, instructionsAt, contextAt, requestAt)
	}
}

func TestRenderPrompt_BlockOverride(testCase *testing.T) {
	agent := NewAgent("custom", nil, WithPromptBlock(BlockOutputFormat, "Keep it terse."))

	if agent.blocks[BlockOutputFormat] != "Keep it terse." {
		testCase.Error("expected the override to survive block initialization")
	}
	if !strings.Contains(agent.blocks[BlockInstructions], "Thought:") {
		testCase.Error("expected non-overridden blocks to keep their defaults")
	}
}
