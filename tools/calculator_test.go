package tools

import (
	"context"
	"testing"

	"github.com/49Simon/dynamiq/core/runnable"
)

func calculate(testCase *testing.T, input map[string]any) runnable.Result {
	testCase.Helper()
	return NewCalculator().Node.Run(context.Background(), input, nil, nil)
}

func TestCalculator_Expression(testCase *testing.T) {
	cases := []struct {
		expression string
		expected   string
	}{
		{"6*7", "42"},
		{"10 / 4", "2.5"},
		{"1 + 2", "3"},
		{"5-8", "-3"},
		{"-3 * 2", "-6"},
	}

	for _, entry := range cases {
		result := calculate(testCase, map[string]any{"input": entry.expression})
		if result.Status != runnable.StatusSuccess {
			testCase.Errorf("%s: expected success, got %s: %v", entry.expression, result.Status, result.Output)
			continue
		}
		if result.Output != entry.expected {
			testCase.Errorf("%s: expected %s, got %v", entry.expression, entry.expected, result.Output)
		}
	}
}

func TestCalculator_ExplicitOperands(testCase *testing.T) {
	result := calculate(testCase, map[string]any{"a": 10, "b": 4, "op": "div"})

	if result.Status != runnable.StatusSuccess {
		testCase.Fatalf("expected success, got %s", result.Status)
	}
	if result.Output != "2.5" {
		testCase.Errorf("expected 2.5, got %v", result.Output)
	}
}

func TestCalculator_DivisionByZeroIsRecoverable(testCase *testing.T) {
	result := calculate(testCase, map[string]any{"input": "1 / 0"})

	if result.Status != runnable.StatusFailure {
		testCase.Fatalf("expected failure, got %s", result.Status)
	}
	if result.Output.(map[string]any)["recoverable"] != true {
		testCase.Error("expected division by zero to be recoverable")
	}
}

func TestCalculator_MalformedExpressionIsRecoverable(testCase *testing.T) {
	result := calculate(testCase, map[string]any{"input": "what is the answer"})

	if result.Status != runnable.StatusFailure {
		testCase.Fatalf("expected failure, got %s", result.Status)
	}
	if result.Output.(map[string]any)["recoverable"] != true {
		testCase.Error("expected a malformed expression to be recoverable")
	}
}

func TestCalculator_MissingInputIsRecoverable(testCase *testing.T) {
	result := calculate(testCase, map[string]any{})

	if result.Status != runnable.StatusFailure {
		testCase.Fatalf("expected failure, got %s", result.Status)
	}
	if result.Output.(map[string]any)["recoverable"] != true {
		testCase.Error("expected missing operands to be recoverable")
	}
}
