package nodes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/49Simon/dynamiq/callbacks"
	"github.com/49Simon/dynamiq/observability"
)

// DefaultInputTimeout bounds how long a node waits for the next input event
// when the streaming config does not set its own timeout.
const DefaultInputTimeout = 60 * time.Second

// StreamingConfig configures a node's streaming behavior. Output streaming
// delivers partial output chunks through OnExecuteStream; input streaming
// lets an executor block for externally fed events mid-run.
type StreamingConfig struct {
	// Enabled switches on output streaming.
	Enabled bool

	// Event is the event name attached to streamed output chunks.
	Event string

	// InputEnabled switches on the input queue.
	InputEnabled bool

	// Input is the bounded queue the executor polls when InputEnabled.
	Input *InputStream

	// InputTimeout bounds each poll for the next input event. Zero means
	// DefaultInputTimeout.
	InputTimeout time.Duration
}

// InputStream is a bounded queue of externally fed events for one node.
// Producers push with Send; the executing node polls with NextInputEvent.
// Close signals that no more events will arrive.
type InputStream struct {
	queue chan callbacks.EventMessage
	done  chan struct{}
	once  sync.Once
}

// NewInputStream creates an input stream holding at most buffer pending
// events. Send blocks once the buffer is full.
func NewInputStream(buffer int) *InputStream {
	if buffer < 1 {
		buffer = 1
	}
	return &InputStream{
		queue: make(chan callbacks.EventMessage, buffer),
		done:  make(chan struct{}),
	}
}

// Send enqueues one event, blocking while the buffer is full. It fails if
// the stream is closed or ctx expires first.
func (s *InputStream) Send(ctx context.Context, msg callbacks.EventMessage) error {
	select {
	case <-s.done:
		return ErrInputStreamClosed
	default:
	}

	select {
	case s.queue <- msg:
		return nil
	case <-s.done:
		return ErrInputStreamClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close marks the stream finished. Pending events already in the buffer are
// still delivered before polls start failing. Close is idempotent.
func (s *InputStream) Close() {
	s.once.Do(func() { close(s.done) })
}

// next blocks for the next event. Events whose name does not match the
// expected one are logged and discarded; each discarded event restarts the
// poll timer, matching a fresh poll per queue read.
func (s *InputStream) next(expected string, timeout time.Duration, log observability.Logger) (callbacks.EventMessage, error) {
	for {
		// Buffered events take priority over the done signal, so events sent
		// before Close are still delivered.
		select {
		case msg := <-s.queue:
			if s.matches(msg, expected, log) {
				return msg, nil
			}
			continue
		default:
		}

		timer := time.NewTimer(timeout)
		select {
		case msg := <-s.queue:
			timer.Stop()
			if s.matches(msg, expected, log) {
				return msg, nil
			}
		case <-s.done:
			timer.Stop()
			return callbacks.EventMessage{}, ErrInputStreamClosed
		case <-timer.C:
			return callbacks.EventMessage{}, fmt.Errorf("input streaming timeout: %s exceeded", timeout)
		}
	}
}

// matches reports whether the event carries the expected name; mismatches are
// logged and discarded.
func (s *InputStream) matches(msg callbacks.EventMessage, expected string, log observability.Logger) bool {
	if expected != "" && msg.Event != expected {
		log.Warn("discarding input event with unexpected name",
			observability.String("event.expected", expected),
			observability.String("event.got", msg.Event),
		)
		return false
	}
	return true
}

// NextInputEvent blocks for the next externally fed input event. The event
// name defaults to the streaming config's event when empty. It is a hard
// error to call this on a node without input streaming configured.
func (n *Node) NextInputEvent(event string) (callbacks.EventMessage, error) {
	streaming := n.Streaming
	if !streaming.InputEnabled || streaming.Input == nil {
		return callbacks.EventMessage{}, ErrInputStreamingDisabled
	}

	if event == "" {
		event = streaming.Event
	}
	timeout := streaming.InputTimeout
	if timeout <= 0 {
		timeout = DefaultInputTimeout
	}
	return streaming.Input.next(event, timeout, n.log)
}
