// Package event defines the typed event stream produced by a single agent
// invocation and consumed by the transport layer.
//
// The stream is forward-only and lazy: the loop hands each event to the
// consumer as soon as it is produced over an unbuffered channel, so a slow
// consumer pauses event production at the handoff point. A stream always
// ends with exactly one terminal event (Done or Error), and nothing follows
// the terminal event.
package event

import (
	"context"
	"time"
)

// Kind identifies the type of event.
type Kind string

const (
	// Loading fires once at the start of an invocation, before history
	// is loaded.
	Loading Kind = "loading"

	// Responding fires before each completion call.
	Responding Kind = "responding"

	// ToolActivity fires around tool invocations, once with status
	// "started" and once with status "completed".
	ToolActivity Kind = "tool_activity"

	// Streaming fires once when the final answer begins streaming.
	Streaming Kind = "streaming"

	// Token fires for each whitespace-delimited token of the final answer.
	Token Kind = "token"

	// Done is the terminal event of a successful invocation.
	Done Kind = "done"

	// Error is the terminal event of a failed invocation.
	Error Kind = "error"
)

// Tool activity status values.
const (
	ToolStarted   = "started"
	ToolCompleted = "completed"
)

// Event represents an observable occurrence during agent execution.
// Events are immutable once emitted; their ordering is significant.
type Event struct {
	// Kind identifies the type of event.
	Kind Kind

	// Status carries progress text for Loading, Responding, and
	// Streaming events.
	Status string

	// Tool is the tool name for ToolActivity events.
	Tool string

	// ToolStatus is "started" or "completed" for ToolActivity events.
	ToolStatus string

	// Message carries optional context for ToolActivity events.
	Message string

	// Token is one whitespace-delimited token of the final answer,
	// including its trailing separator.
	Token string

	// MessageID identifies the persisted assistant message for Done events.
	MessageID string

	// Err is the human-readable failure description for Error events,
	// or the tool failure reason on a completed ToolActivity event.
	Err string

	// Timestamp is when the event was emitted.
	Timestamp time.Time
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Kind == Done || e.Kind == Error
}

// Data returns the JSON-serializable payload for the event, shaped by kind.
func (e Event) Data() any {
	switch e.Kind {
	case Loading, Responding, Streaming:
		return statusData{Status: e.Status}
	case ToolActivity:
		return toolActivityData{
			Tool:    e.Tool,
			Status:  e.ToolStatus,
			Message: e.Message,
			Error:   e.Err,
		}
	case Token:
		return tokenData{Token: e.Token}
	case Done:
		return doneData{MessageID: e.MessageID}
	case Error:
		return errorData{Error: e.Err}
	}
	return struct{}{}
}

type statusData struct {
	Status string `json:"status"`
}

type toolActivityData struct {
	Tool    string `json:"tool"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type tokenData struct {
	Token string `json:"token"`
}

type doneData struct {
	MessageID string `json:"message_id"`
}

type errorData struct {
	Error string `json:"error"`
}

// NewChannel creates the unbuffered handoff channel between the loop and
// its consumer.
func NewChannel() chan Event {
	return make(chan Event)
}

// Emit hands e to the consumer, blocking until the event is accepted or
// ctx is cancelled. It returns false when the consumer is gone, signaling
// the producer to stop promptly.
func Emit(ctx context.Context, ch chan<- Event, e Event) bool {
	e.Timestamp = time.Now()
	select {
	case ch <- e:
		return true
	case <-ctx.Done():
		return false
	}
}
