package agent

import "encoding/json"

// Role constants
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a tool invocation made by the assistant during a turn.
// Output is nil until the tool result arrives; a nil Output in a final
// transcript means the call never completed.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Output    *string         `json:"output,omitempty"`
}

// Completed returns true once the tool result has been received
func (tc *ToolCall) Completed() bool {
	return tc.Output != nil
}

// Entry is one line of a transcript.
//
// Assistant entries carry the turn's text in Content and every tool call the
// turn issued in ToolCalls. Tool entries carry a single tool result: the
// output in Content and the call it answers in ToolCallID.
type Entry struct {
	ID         string     `json:"id"`
	Role       string     `json:"role"`
	RunID      string     `json:"run_id,omitempty"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// IsToolResult returns true if this entry is a tool result
func (e *Entry) IsToolResult() bool {
	return e.Role == RoleTool
}

// DeclaresToolCall returns true if this entry issued the given tool call
func (e *Entry) DeclaresToolCall(toolCallID string) bool {
	for i := range e.ToolCalls {
		if e.ToolCalls[i].ID == toolCallID {
			return true
		}
	}
	return false
}

// MessageBlock is the renderable unit of a conversation: either a user turn
// or the group of entries produced by one assistant reply.
// Blocks are snapshots; they are rebuilt rather than mutated.
type MessageBlock struct {
	ID                string          `json:"id"`
	Role              string          `json:"role"`
	ConversationID    string          `json:"conversation_id,omitempty"`
	Entries           []Entry         `json:"messages"`
	StructuredPayload json.RawMessage `json:"json_output,omitempty"`
	Attachments       []Attachment    `json:"attachments,omitempty"`
}

// Clone returns a deep copy of the block
func (b *MessageBlock) Clone() MessageBlock {
	out := *b
	out.Entries = CloneEntries(b.Entries)
	if b.StructuredPayload != nil {
		out.StructuredPayload = append(json.RawMessage(nil), b.StructuredPayload...)
	}
	if b.Attachments != nil {
		out.Attachments = append([]Attachment(nil), b.Attachments...)
	}
	return out
}

// IsEmpty returns true if the block has nothing to render
func (b *MessageBlock) IsEmpty() bool {
	return len(b.Entries) == 0 && len(b.StructuredPayload) == 0
}

// CloneEntries deep-copies a slice of entries, including tool call outputs
func CloneEntries(entries []Entry) []Entry {
	if entries == nil {
		return nil
	}
	out := make([]Entry, len(entries))
	for i := range entries {
		out[i] = entries[i]
		out[i].ToolCalls = CloneToolCalls(entries[i].ToolCalls)
	}
	return out
}

// CloneToolCalls deep-copies a slice of tool calls
func CloneToolCalls(calls []ToolCall) []ToolCall {
	if calls == nil {
		return nil
	}
	out := make([]ToolCall, len(calls))
	for i, tc := range calls {
		out[i] = tc
		if tc.Output != nil {
			output := *tc.Output
			out[i].Output = &output
		}
		if tc.Arguments != nil {
			out[i].Arguments = append(json.RawMessage(nil), tc.Arguments...)
		}
	}
	return out
}
