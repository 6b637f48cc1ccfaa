package agents

import "fmt"

// functionCallingSchema builds the two function definitions driving the loop
// in ModeFunctionCalling: plan_next_action to pick a tool and
// provide_final_answer to terminate.
func functionCallingSchema(toolNames []string) []map[string]any {
	return []map[string]any{
		{
			"type": "function",
			"function": map[string]any{
				"name":        "plan_next_action",
				"description": "Provide next action and action input",
				"parameters": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"thought": map[string]any{
							"type":        "string",
							"description": "Your reasoning about the next step.",
						},
						"action": map[string]any{
							"type":        "string",
							"enum":        toolNames,
							"description": "Next action to make.",
						},
						"action_input": map[string]any{
							"type":        "string",
							"description": "Input for chosen action.",
						},
					},
					"required": []string{"thought", "action", "action_input"},
				},
			},
		},
		{
			"type": "function",
			"function": map[string]any{
				"name":        "provide_final_answer",
				"description": "Function should be called when you can answer the initial request",
				"parameters": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"thought": map[string]any{
							"type":        "string",
							"description": "Your reasoning about why you can answer the original question.",
						},
						"answer": map[string]any{
							"type":        "string",
							"description": "Answer on initial request.",
						},
					},
					"required": []string{"thought", "answer"},
				},
			},
		},
	}
}

// structuredOutputSchema builds the single JSON schema driving the loop in
// ModeStructuredOutput. The reserved action "finish" carries the final answer
// in action_input.
func structuredOutputSchema(toolNames []string) map[string]any {
	return map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"strict": true,
			"name":   "plan_next_action",
			"schema": map[string]any{
				"type":     "object",
				"required": []string{"thought", "action", "action_input"},
				"properties": map[string]any{
					"thought": map[string]any{
						"type":        "string",
						"description": "Your reasoning about the next step.",
					},
					"action": map[string]any{
						"type":        "string",
						"description": fmt.Sprintf("Next action to make (choose from [%v, finish]).", toolNames),
					},
					"action_input": map[string]any{
						"type":        "string",
						"description": "Input for chosen action.",
					},
				},
				"additionalProperties": false,
			},
		},
	}
}
