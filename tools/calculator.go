package tools

import (
	"context"
	"strconv"
	"strings"

	"github.com/49Simon/dynamiq/agents"
	"github.com/49Simon/dynamiq/nodes"
)

// NewCalculator returns a tool that evaluates a binary arithmetic expression.
// It accepts either a free-form expression under "input" (e.g. "6 * 7") or
// the explicit fields "a", "b" and "op". Malformed expressions are
// recoverable so the model can rephrase on the next turn.
func NewCalculator() agents.Tool {
	executor := nodes.ExecutorFunc(func(_ context.Context, input map[string]any, _ *nodes.Execution) (any, error) {
		a, b, op, err := operands(input)
		if err != nil {
			return nil, err
		}

		var result float64
		switch op {
		case "add", "+":
			result = a + b
		case "sub", "-":
			result = a - b
		case "mul", "*":
			result = a * b
		case "div", "/":
			if b == 0 {
				return nil, agents.NewRecoverableError("division by zero")
			}
			result = a / b
		default:
			return nil, agents.NewRecoverableError("unsupported operation %q, use one of +, -, *, /", op)
		}

		return strconv.FormatFloat(result, 'f', -1, 64), nil
	})

	node := nodes.New("calculator", executor,
		nodes.WithGroup(nodes.GroupTools),
		nodes.WithTypeName("tools.Calculator"),
	)
	return agents.Tool{
		Node:        node,
		Description: "A simple calculator to perform basic arithmetic operations like addition, subtraction, multiplication, and division.",
	}
}

func operands(input map[string]any) (float64, float64, string, error) {
	if expression, ok := input["input"].(string); ok && strings.TrimSpace(expression) != "" {
		return parseExpression(expression)
	}

	a, okA := toFloat(input["a"])
	b, okB := toFloat(input["b"])
	op, okOp := input["op"].(string)
	if !okA || !okB || !okOp {
		return 0, 0, "", agents.NewRecoverableError(
			"calculator needs either an expression under 'input' or the fields 'a', 'b' and 'op'")
	}
	return a, b, op, nil
}

// parseExpression splits a binary expression like "6*7" or "10 / 4" on its
// operator. The minus sign is matched last so negative operands parse.
func parseExpression(expression string) (float64, float64, string, error) {
	trimmed := strings.TrimSpace(expression)
	for _, op := range []string{"+", "*", "/", "-"} {
		index := strings.Index(trimmed[1:], op)
		if index < 0 {
			continue
		}
		index++ // offset for the skipped first character

		left, errLeft := strconv.ParseFloat(strings.TrimSpace(trimmed[:index]), 64)
		right, errRight := strconv.ParseFloat(strings.TrimSpace(trimmed[index+1:]), 64)
		if errLeft != nil || errRight != nil {
			break
		}
		return left, right, op, nil
	}
	return 0, 0, "", agents.NewRecoverableError("could not parse expression %q as '<number> <op> <number>'", expression)
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}
