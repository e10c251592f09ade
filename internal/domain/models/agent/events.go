package agent

import (
	"encoding/json"
	"fmt"
)

// EventKind is the SSE event type emitted by the agent chat endpoint.
type EventKind string

// Event kinds consumed by the transcript reducer
const (
	EventConversation   EventKind = "conversation"    // Conversation id assigned
	EventAssistantStart EventKind = "assistant_start" // New assistant turn begins
	EventContentDelta   EventKind = "content_delta"   // Incremental assistant text
	EventToolCallStart  EventKind = "tool_call_start" // Tool invocation requested
	EventToolCallEnd    EventKind = "tool_call_end"   // Tool invocation result
	EventJSONOutput     EventKind = "json_output"     // Structured output payload
	EventError          EventKind = "error"           // Stream failed
	EventDone           EventKind = "done"            // Stream finished
)

// Known reports whether the kind is one the reducer understands.
func (k EventKind) Known() bool {
	switch k {
	case EventConversation, EventAssistantStart, EventContentDelta,
		EventToolCallStart, EventToolCallEnd, EventJSONOutput,
		EventError, EventDone:
		return true
	}
	return false
}

// Event is one decoded server-sent event.
// Data holds the raw JSON payload; use Decode to unmarshal it into the
// payload type matching Kind.
type Event struct {
	ID   string          `json:"id,omitempty"`
	Kind EventKind       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the event payload into dest.
func (e Event) Decode(dest interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s event has no payload", e.Kind)
	}
	if err := json.Unmarshal(e.Data, dest); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Kind, err)
	}
	return nil
}

// ConversationPayload identifies the conversation the reply belongs to
type ConversationPayload struct {
	ConversationID string `json:"conversation_id"`
}

// AssistantStartPayload opens a new assistant turn
type AssistantStartPayload struct {
	RunID   string `json:"run_id"`
	BlockID string `json:"block_id,omitempty"`
}

// ContentDeltaPayload carries a fragment of assistant text
type ContentDeltaPayload struct {
	Delta string `json:"delta"`
}

// ToolCallStartPayload announces a tool invocation
type ToolCallStartPayload struct {
	ToolCallID string          `json:"tool_call_id"`
	ToolName   string          `json:"tool_name"`
	ToolInput  json.RawMessage `json:"tool_input,omitempty"`
}

// ToolCallEndPayload carries a tool result.
// ToolOutput is arbitrary JSON; it is normalized to text by the reducer.
type ToolCallEndPayload struct {
	ToolCallID string          `json:"tool_call_id"`
	ToolOutput json.RawMessage `json:"tool_output,omitempty"`
}

// JSONOutputPayload delivers the structured output requested via json_schema
type JSONOutputPayload struct {
	JSONOutput json.RawMessage `json:"json_output"`
}

// NewEvent builds an Event by marshaling payload as its data.
func NewEvent(kind EventKind, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}
	return Event{Kind: kind, Data: data}, nil
}
