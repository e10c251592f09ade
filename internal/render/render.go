// Package render turns transcripts into terminal text.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/tidwall/gjson"

	agentModels "github.com/watercrawl/WaterCrawl-sub003/internal/domain/models/agent"
)

// maxResultLines caps how much of a tool result is shown inline
const maxResultLines = 12

// Renderer renders message blocks with a fixed set of styles.
// A zero width disables wrapping.
type Renderer struct {
	styles Styles
	width  int
	html   *htmlConverter
}

// New creates a Renderer
func New(styles Styles, width int) *Renderer {
	return &Renderer{styles: styles, width: width, html: newHTMLConverter()}
}

// SetWidth changes the wrap width
func (r *Renderer) SetWidth(width int) {
	r.width = width
}

// Transcript renders history, the live block (if any) and the error banner
func (r *Renderer) Transcript(history []agentModels.MessageBlock, live *agentModels.MessageBlock, streamErr *agentModels.StreamError) string {
	parts := make([]string, 0, len(history)+2)
	for i := range history {
		if s := r.Block(history[i]); s != "" {
			parts = append(parts, s)
		}
	}
	if live != nil {
		if s := r.Block(*live); s != "" {
			parts = append(parts, s)
		}
	}
	if streamErr != nil {
		parts = append(parts, r.Error(streamErr))
	}
	return strings.Join(parts, "\n\n")
}

// Block renders one message block
func (r *Renderer) Block(b agentModels.MessageBlock) string {
	answered := make(map[string]bool)
	for _, e := range b.Entries {
		if e.IsToolResult() {
			answered[e.ToolCallID] = true
		}
	}

	var lines []string
	for _, e := range b.Entries {
		switch {
		case e.Role == agentModels.RoleUser:
			lines = append(lines, r.userEntry(e, b.Attachments))
		case e.IsToolResult():
			lines = append(lines, r.toolResult(e))
		default:
			if s := r.assistantEntry(e, answered); s != "" {
				lines = append(lines, s)
			}
		}
	}
	if len(b.StructuredPayload) > 0 {
		lines = append(lines,
			r.styles.Muted.Render("structured output:"),
			r.styles.JSON.Render(PrettyJSON(b.StructuredPayload)),
		)
	}
	return strings.Join(lines, "\n")
}

// Error renders the error banner shown beneath a transcript
func (r *Renderer) Error(e *agentModels.StreamError) string {
	msg := "✗ " + e.Message
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	return r.styles.Error.Render(r.wrap(msg))
}

func (r *Renderer) userEntry(e agentModels.Entry, attachments []agentModels.Attachment) string {
	out := r.styles.User.Render("You") + " " + r.styles.Body.Render(r.wrap(e.Content))
	for _, a := range attachments {
		name := a.Name
		if name == "" {
			name = a.URL
		}
		if name == "" {
			name = a.MediaType
		}
		out += "\n" + r.styles.Muted.Render(fmt.Sprintf("  [%s: %s]", a.Type, name))
	}
	return out
}

// assistantEntry renders the turn text and its tool calls. A call counts as
// done once it has an output or a result entry in the same block.
func (r *Renderer) assistantEntry(e agentModels.Entry, answered map[string]bool) string {
	var lines []string
	if e.Content != "" {
		lines = append(lines, r.styles.Assistant.Render("Agent")+" "+r.styles.Body.Render(r.wrap(e.Content)))
	}
	for _, tc := range e.ToolCalls {
		lines = append(lines, r.toolCall(tc, tc.Completed() || answered[tc.ID]))
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) toolCall(tc agentModels.ToolCall, done bool) string {
	call := r.styles.ToolCall.Render("  ⚙ " + tc.Name + "(" + compactArgs(tc.Arguments) + ")")
	if done {
		return call + " " + r.styles.Done.Render("✓")
	}
	return call + " " + r.styles.Pending.Render("… pending")
}

func (r *Renderer) toolResult(e agentModels.Entry) string {
	label := e.Name
	if label == "" {
		label = e.ToolCallID
	}
	content := e.Content
	if looksLikeHTML(content) {
		if markdown, err := r.html.Convert(content); err == nil {
			content = markdown
		}
	}
	body := truncateLines(content, maxResultLines)
	return r.styles.Muted.Render("  ↳ "+label) + "\n" + r.styles.Result.Render(body)
}

func (r *Renderer) wrap(s string) string {
	if r.width <= 0 {
		return s
	}
	return lipgloss.NewStyle().Width(r.width).Render(s)
}

// PrettyJSON indents a JSON payload; invalid JSON is returned as text
func PrettyJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

func compactArgs(args json.RawMessage) string {
	if len(args) == 0 || !gjson.ValidBytes(args) {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, args); err != nil {
		return string(args)
	}
	s := buf.String()
	if s == "{}" || s == "null" {
		return ""
	}
	const maxArgs = 80
	if len(s) > maxArgs {
		cut := maxArgs
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return s[:cut] + "…"
	}
	return s
}

func truncateLines(s string, max int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= max {
		return s
	}
	return strings.Join(lines[:max], "\n") + fmt.Sprintf("\n… (%d more lines)", len(lines)-max)
}
