package nodes

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/49Simon/dynamiq/callbacks"
)

// --- Input Stream Tests ---

func newStreamingNode(stream *InputStream, timeout time.Duration) *Node {
	return New("listener", successExecutor("ok"), WithStreaming(StreamingConfig{
		Enabled:      true,
		Event:        "user-input",
		InputEnabled: true,
		Input:        stream,
		InputTimeout: timeout,
	}))
}

func TestInputStream_DeliversInOrder(testCase *testing.T) {
	stream := NewInputStream(4)
	node := newStreamingNode(stream, time.Second)

	first := callbacks.NewEventMessage("run-1", "user-input", map[string]any{"seq": 1})
	second := callbacks.NewEventMessage("run-1", "user-input", map[string]any{"seq": 2})
	if err := stream.Send(context.Background(), first); err != nil {
		testCase.Fatalf("unexpected send error: %v", err)
	}
	if err := stream.Send(context.Background(), second); err != nil {
		testCase.Fatalf("unexpected send error: %v", err)
	}

	for expectedSeq := 1; expectedSeq <= 2; expectedSeq++ {
		msg, err := node.NextInputEvent("")
		if err != nil {
			testCase.Fatalf("unexpected poll error: %v", err)
		}
		var payload map[string]int
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			testCase.Fatalf("unexpected payload: %v", err)
		}
		if payload["seq"] != expectedSeq {
			testCase.Errorf("expected event %d, got %d", expectedSeq, payload["seq"])
		}
	}
}

func TestInputStream_DiscardsMismatchedEvents(testCase *testing.T) {
	stream := NewInputStream(4)
	node := newStreamingNode(stream, time.Second)

	noise := callbacks.NewEventMessage("run-1", "other", nil)
	wanted := callbacks.NewEventMessage("run-1", "user-input", "payload")
	stream.Send(context.Background(), noise)
	stream.Send(context.Background(), wanted)

	msg, err := node.NextInputEvent("user-input")
	if err != nil {
		testCase.Fatalf("unexpected poll error: %v", err)
	}
	if msg.Event != "user-input" {
		testCase.Errorf("expected the mismatched event to be discarded, got %q", msg.Event)
	}
}

func TestInputStream_PollTimeout(testCase *testing.T) {
	stream := NewInputStream(1)
	node := newStreamingNode(stream, 20*time.Millisecond)

	_, err := node.NextInputEvent("")
	if err == nil {
		testCase.Fatal("expected a timeout error on an empty stream")
	}
	if !strings.Contains(err.Error(), "timeout") {
		testCase.Errorf("expected a timeout error, got %v", err)
	}
}

func TestInputStream_ClosedStream(testCase *testing.T) {
	stream := NewInputStream(1)
	node := newStreamingNode(stream, time.Second)
	stream.Close()
	stream.Close() // idempotent

	if err := stream.Send(context.Background(), callbacks.EventMessage{}); !errors.Is(err, ErrInputStreamClosed) {
		testCase.Errorf("expected send on a closed stream to fail, got %v", err)
	}
	if _, err := node.NextInputEvent(""); !errors.Is(err, ErrInputStreamClosed) {
		testCase.Errorf("expected poll on a closed stream to fail, got %v", err)
	}
}

func TestNextInputEvent_DisabledIsHardError(testCase *testing.T) {
	node := New("plain", successExecutor("ok"))

	_, err := node.NextInputEvent("")
	if !errors.Is(err, ErrInputStreamingDisabled) {
		testCase.Errorf("expected ErrInputStreamingDisabled, got %v", err)
	}
}

// --- Execution Emitter Tests ---

type streamCapturingHandler struct {
	callbacks.Base
	chunks []map[string]any
	runs   int
}

func (handler *streamCapturingHandler) OnExecuteStream(_ callbacks.NodeView, chunk map[string]any, _ callbacks.Meta) {
	handler.chunks = append(handler.chunks, chunk)
}

func (handler *streamCapturingHandler) OnExecuteRun(_ callbacks.NodeView, _ callbacks.Meta) {
	handler.runs++
}

func TestExecution_EmitStreamAndRun(testCase *testing.T) {
	handler := &streamCapturingHandler{}
	node := New("streamer", ExecutorFunc(func(_ context.Context, _ map[string]any, run *Execution) (any, error) {
		run.EmitRun()
		if run.StreamingEnabled() {
			run.EmitStream(map[string]any{"chunk": "partial"})
		}
		return "final", nil
	})).EnableStreaming("")

	cfg := configWith(handler)
	node.Run(context.Background(), nil, cfg, nil)

	if handler.runs != 1 {
		testCase.Errorf("expected one execute-run event, got %d", handler.runs)
	}
	if len(handler.chunks) != 1 || handler.chunks[0]["chunk"] != "partial" {
		testCase.Errorf("expected one streamed chunk, got %v", handler.chunks)
	}
	if node.Streaming.Event != callbacks.DefaultStreamingEvent {
		testCase.Errorf("expected the default streaming event name, got %q", node.Streaming.Event)
	}
}
