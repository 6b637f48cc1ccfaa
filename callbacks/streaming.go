package callbacks

import "encoding/json"

// DefaultStreamingEvent is the event name used when a node enables streaming
// without choosing one.
const DefaultStreamingEvent = "streaming"

// EventMessage is the envelope for streamed data, both for chunks emitted
// through OnExecuteStream and for messages pushed into a node's input queue.
type EventMessage struct {
	// RunID identifies the node run this message belongs to, when known.
	RunID string `json:"run_id,omitempty"`

	// Event is the streaming event name; receivers filter on it.
	Event string `json:"event"`

	// Data is the message payload.
	Data json.RawMessage `json:"data"`
}

// NewEventMessage builds an EventMessage, JSON-encoding the payload. An
// unencodable payload yields a message whose Data explains the failure, so
// streaming never aborts the producing run.
func NewEventMessage(runID, event string, payload any) EventMessage {
	if event == "" {
		event = DefaultStreamingEvent
	}
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(`{"error":"failed to encode streaming payload: ` + err.Error() + `"}`)
	}
	return EventMessage{RunID: runID, Event: event, Data: data}
}
