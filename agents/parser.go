package agents

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/49Simon/dynamiq/core/parse"
	"github.com/49Simon/dynamiq/internal/utils"
)

// parsedAction is one decoded model turn: either the next tool action or the
// final answer.
type parsedAction struct {
	thought string
	action  string
	input   map[string]any
	answer  string
	final   bool

	// raw is the canonical text form of the turn, pushed onto the running
	// conversation (with the observation appended for tool turns).
	raw string
}

var defaultActionPattern = regexp.MustCompile(`(?s)Thought:\s*(.*?)\s*Action:\s*(.*?)\s*Action\s+Input:\s*(.*)`)

// parseDefault decodes the plain-text protocol. The "Answer:" marker takes
// precedence: anything after it is the final answer. Otherwise the turn must
// follow the Thought/Action/Action Input grammar, with the action input
// parsed leniently (sloppy JSON is repaired rather than rejected).
func parseDefault(content string) (parsedAction, error) {
	if _, after, found := strings.Cut(content, "Answer:"); found {
		return parsedAction{answer: strings.TrimSpace(after), final: true, raw: content}, nil
	}

	match := defaultActionPattern.FindStringSubmatch(content)
	if match == nil {
		return parsedAction{}, &ActionParsingError{
			Message: "could not parse action: the response must contain either 'Answer:' or a Thought/Action/Action Input sequence",
		}
	}

	inputText := stripCodeFences(match[3])
	input, err := parse.ParseStringAs[map[string]any](inputText)
	if err != nil {
		return parsedAction{}, &ActionParsingError{
			Message: fmt.Sprintf("could not parse action input as a JSON object: %v", err),
		}
	}

	return parsedAction{
		thought: strings.TrimSpace(match[1]),
		action:  strings.TrimSpace(match[2]),
		input:   input,
		raw:     content,
	}, nil
}

var xmlTagPatterns = map[string]*regexp.Regexp{
	"output":       regexp.MustCompile(`(?s)<output>(.*?)</output>`),
	"thought":      regexp.MustCompile(`(?s)<thought>(.*?)</thought>`),
	"action":       regexp.MustCompile(`(?s)<action>(.*?)</action>`),
	"action_input": regexp.MustCompile(`(?s)<action_input>(.*?)</action_input>`),
	"answer":       regexp.MustCompile(`(?s)<answer>(.*?)</answer>`),
}

// xmlTag extracts the trimmed content of the first <tag>...</tag> pair.
func xmlTag(text, tag string) string {
	pattern, ok := xmlTagPatterns[tag]
	if !ok {
		return ""
	}
	match := pattern.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	return strings.TrimSpace(match[1])
}

// parseXML decodes the XML protocol. An <answer> tag terminates the loop;
// otherwise the <output> wrapper must carry thought, action and an
// action_input that is strict JSON. Unlike the default protocol there is no
// repair pass: a malformed action_input is a recoverable parse error.
func parseXML(content string) (parsedAction, error) {
	if strings.Contains(content, "<answer>") {
		return parsedAction{answer: xmlTag(content, "answer"), final: true, raw: content}, nil
	}

	output := xmlTag(content, "output")
	action := xmlTag(output, "action")
	inputText := xmlTag(output, "action_input")

	var input map[string]any
	if err := json.Unmarshal([]byte(inputText), &input); err != nil {
		return parsedAction{}, &ActionParsingError{
			Message: "could not parse action and action input. " +
				"Please rewrite in the appropriate XML format with action_input as a valid dictionary.",
		}
	}

	return parsedAction{
		thought: xmlTag(output, "thought"),
		action:  action,
		input:   input,
		raw:     content,
	}, nil
}

// parseFunctionCalling decodes a native tool-calling response. The model
// either plans the next action or provides the final answer; anything else
// is a recoverable parse error so the loop can re-prompt.
func parseFunctionCalling(response Response) (parsedAction, error) {
	if len(response.ToolCalls) == 0 {
		return parsedAction{}, &ActionParsingError{
			Message: "expected a tool call to plan_next_action or provide_final_answer, got none",
		}
	}

	call := response.ToolCalls[0].Function
	name := strings.TrimSpace(call.Name)

	var arguments map[string]any
	if err := json.Unmarshal([]byte(call.Arguments), &arguments); err != nil {
		return parsedAction{}, &ActionParsingError{
			Message: fmt.Sprintf("could not parse %s arguments as JSON: %v", name, err),
		}
	}
	raw := utils.ToString(arguments)

	thought, _ := arguments["thought"].(string)
	switch name {
	case "provide_final_answer":
		answer, _ := arguments["answer"].(string)
		return parsedAction{thought: thought, answer: answer, final: true, raw: raw}, nil

	case "plan_next_action":
		action, _ := arguments["action"].(string)
		return parsedAction{
			thought: thought,
			action:  action,
			input:   map[string]any{"input": arguments["action_input"]},
			raw:     raw,
		}, nil

	default:
		return parsedAction{}, &ActionParsingError{
			Message: fmt.Sprintf("unexpected function %q, expected plan_next_action or provide_final_answer", name),
		}
	}
}

// parseStructuredOutput decodes the constrained-JSON protocol. The content is
// parsed leniently; the reserved action "finish" terminates the loop with
// action_input as the final answer.
func parseStructuredOutput(content string) (parsedAction, error) {
	decoded, err := parse.ParseStringAs[map[string]any](content)
	if err != nil {
		return parsedAction{}, &ActionParsingError{
			Message: fmt.Sprintf("could not parse structured output as a JSON object: %v", err),
		}
	}

	thought, _ := decoded["thought"].(string)
	action, _ := decoded["action"].(string)
	actionInput := decoded["action_input"]
	raw := utils.ToString(decoded)

	if action == "finish" {
		return parsedAction{thought: thought, answer: utils.Stringify(actionInput), final: true, raw: raw}, nil
	}

	return parsedAction{
		thought: thought,
		action:  action,
		input:   map[string]any{"input": actionInput},
		raw:     raw,
	}, nil
}

// stripCodeFences removes a surrounding markdown code fence, which models add
// despite instructions not to.
func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
