package agent

import "encoding/json"

// ResponseMode selects how the backend delivers the reply
type ResponseMode string

const (
	ModeStreaming ResponseMode = "streaming" // Typed SSE events
	ModeBlocking  ResponseMode = "blocking"  // One complete MessageBlock
)

// Toggle returns the other response mode
func (m ResponseMode) Toggle() ResponseMode {
	if m == ModeBlocking {
		return ModeStreaming
	}
	return ModeBlocking
}

// ChatRequest is the body of POST /api/v1/agent/agents/{id}/chat/
type ChatRequest struct {
	Query          string          `json:"query"`
	User           string          `json:"user"`
	ConversationID string          `json:"conversation_id,omitempty"`
	ResponseMode   ResponseMode    `json:"response_mode"`
	JSONSchema     json.RawMessage `json:"json_schema,omitempty"`
	Files          []Attachment    `json:"files,omitempty"`
}
