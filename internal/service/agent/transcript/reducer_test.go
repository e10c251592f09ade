package transcript

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agentModels "github.com/watercrawl/WaterCrawl-sub003/internal/domain/models/agent"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("e%d", n)
	}
}

func newTestState() *State {
	return NewState(WithIDGenerator(sequentialIDs()), WithBlockID("block-1"))
}

func event(t *testing.T, kind agentModels.EventKind, payload interface{}) agentModels.Event {
	t.Helper()
	ev, err := agentModels.NewEvent(kind, payload)
	require.NoError(t, err)
	return ev
}

func conversation(t *testing.T, id string) agentModels.Event {
	return event(t, agentModels.EventConversation, map[string]string{"conversation_id": id})
}

func turnStart(t *testing.T, runID string) agentModels.Event {
	return event(t, agentModels.EventAssistantStart, map[string]string{"run_id": runID})
}

func delta(t *testing.T, text string) agentModels.Event {
	return event(t, agentModels.EventContentDelta, map[string]string{"delta": text})
}

func toolStart(t *testing.T, id, name string) agentModels.Event {
	return event(t, agentModels.EventToolCallStart, map[string]interface{}{
		"tool_call_id": id,
		"tool_name":    name,
		"tool_input":   map[string]string{"q": "x"},
	})
}

func toolEnd(t *testing.T, id string, output interface{}) agentModels.Event {
	return event(t, agentModels.EventToolCallEnd, map[string]interface{}{
		"tool_call_id": id,
		"tool_output":  output,
	})
}

func done(t *testing.T) agentModels.Event {
	return event(t, agentModels.EventDone, map[string]string{})
}

func applyAll(s *State, events ...agentModels.Event) {
	for _, ev := range events {
		s.Apply(ev)
	}
}

func roles(entries []agentModels.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		if e.IsToolResult() {
			out[i] = "tool:" + e.ToolCallID
		} else {
			out[i] = e.Role + ":" + e.RunID
		}
	}
	return out
}

// TestReduce_ReferenceSequence covers a tool result arriving after the
// owning turn has already been flushed by the next assistant_start.
func TestReduce_ReferenceSequence(t *testing.T) {
	s := newTestState()
	applyAll(s,
		conversation(t, "C"),
		turnStart(t, "R1"),
		delta(t, "Hi"),
		toolStart(t, "T1", "x"),
		turnStart(t, "R2"),
		toolEnd(t, "T1", "42"),
		delta(t, "Bye"),
		done(t),
	)

	block := s.FinalView()
	assert.Equal(t, "C", block.ConversationID)
	assert.Equal(t, "C", s.ConversationID())
	require.Equal(t, []string{"assistant:R1", "tool:T1", "assistant:R2"}, roles(block.Entries))

	first := block.Entries[0]
	assert.Equal(t, "Hi", first.Content)
	require.Len(t, first.ToolCalls, 1)
	assert.Equal(t, "T1", first.ToolCalls[0].ID)
	assert.Equal(t, "x", first.ToolCalls[0].Name)

	result := block.Entries[1]
	assert.Equal(t, "42", result.Content)
	assert.Equal(t, "x", result.Name)

	assert.Equal(t, "Bye", block.Entries[2].Content)
	assert.Empty(t, block.Entries[2].ToolCalls)
	assert.Empty(t, s.PendingToolCalls())
}

func TestReduce_ReturnsStateAndTracksRun(t *testing.T) {
	s := newTestState()
	assert.Same(t, s, Reduce(s, turnStart(t, "R1")))
	assert.Equal(t, "R1", s.RunID())

	Reduce(Reduce(s, delta(t, "Hi")), turnStart(t, "R2"))
	assert.Equal(t, "R2", s.RunID())
	assert.Equal(t, []string{"assistant:R1"}, roles(s.Entries()))
}

func TestReduce_DeltasConcatenateInOrder(t *testing.T) {
	s := newTestState()
	parts := []string{"The ", "quick ", "brown", " fox", "."}

	s.Apply(turnStart(t, "R1"))
	for _, p := range parts {
		s.Apply(delta(t, p))
	}

	block := s.FinalView()
	require.Len(t, block.Entries, 1)
	assert.Equal(t, strings.Join(parts, ""), block.Entries[0].Content)
}

func TestReduce_TextWithoutTurnStart(t *testing.T) {
	s := newTestState()
	applyAll(s, delta(t, "orphan "), delta(t, "text"))

	block := s.FinalView()
	require.Len(t, block.Entries, 1)
	assert.Equal(t, "orphan text", block.Entries[0].Content)
	assert.Equal(t, agentModels.RoleAssistant, block.Entries[0].Role)
	assert.NotEmpty(t, block.Entries[0].ID)
}

func TestReduce_TurnStartFallsBackToNewRunID(t *testing.T) {
	s := newTestState()
	applyAll(s, delta(t, "early"), turnStart(t, "R1"), delta(t, "later"))

	entries := s.FinalView().Entries
	require.Len(t, entries, 2)
	assert.Equal(t, "R1", entries[0].RunID)
	assert.Equal(t, "early", entries[0].Content)
	assert.Equal(t, "R1", entries[1].RunID)
	assert.Equal(t, "later", entries[1].Content)
}

func TestReduce_EmptyTurnIsNotFlushed(t *testing.T) {
	s := newTestState()
	applyAll(s, turnStart(t, "R1"), turnStart(t, "R2"), delta(t, "only"))

	entries := s.FinalView().Entries
	require.Len(t, entries, 1)
	assert.Equal(t, "R2", entries[0].RunID)
}

func TestReduce_ToolResultBeforeNextTurn(t *testing.T) {
	s := newTestState()
	applyAll(s,
		turnStart(t, "R1"),
		toolStart(t, "T1", "search"),
		toolStart(t, "T2", "scrape"),
		toolEnd(t, "T2", map[string]string{"content": "page"}),
		toolEnd(t, "T1", map[string]int{"hits": 3}),
		turnStart(t, "R2"),
		delta(t, "summary"),
	)

	entries := s.FinalView().Entries
	require.Equal(t, []string{"assistant:R1", "tool:T1", "tool:T2", "assistant:R2"}, roles(entries))
	assert.Equal(t, `{"hits":3}`, entries[1].Content)
	assert.Equal(t, "page", entries[2].Content)

	calls := entries[0].ToolCalls
	require.Len(t, calls, 2)
	require.NotNil(t, calls[0].Output)
	require.NotNil(t, calls[1].Output)
	assert.JSONEq(t, `{"q":"x"}`, string(calls[0].Arguments))
	assert.Empty(t, s.PendingToolCalls())
}

func TestReduce_LateResultsKeepArrivalOrder(t *testing.T) {
	s := newTestState()
	applyAll(s,
		turnStart(t, "R1"),
		toolStart(t, "T1", "a"),
		toolStart(t, "T2", "b"),
		toolStart(t, "T3", "c"),
		turnStart(t, "R2"),
		delta(t, "waiting"),
		turnStart(t, "R3"),
	)
	assert.Equal(t, []string{"T1", "T2", "T3"}, s.PendingToolCalls())

	applyAll(s,
		toolEnd(t, "T3", "three"),
		toolEnd(t, "T1", "one"),
		toolEnd(t, "T2", "two"),
	)

	entries := s.FinalView().Entries
	assert.Equal(t,
		[]string{"assistant:R1", "tool:T3", "tool:T1", "tool:T2", "assistant:R2"},
		roles(entries),
	)
	assert.Empty(t, s.PendingToolCalls())
}

func TestReduce_LateResultsForDifferentTurns(t *testing.T) {
	s := newTestState()
	applyAll(s,
		turnStart(t, "R1"),
		toolStart(t, "T1", "a"),
		turnStart(t, "R2"),
		toolStart(t, "T2", "b"),
		turnStart(t, "R3"),
		toolEnd(t, "T2", "two"),
		toolEnd(t, "T1", "one"),
		delta(t, "end"),
	)

	assert.Equal(t,
		[]string{"assistant:R1", "tool:T1", "assistant:R2", "tool:T2", "assistant:R3"},
		roles(s.FinalView().Entries),
	)
}

func TestReduce_IncompleteToolCallAtEnd(t *testing.T) {
	s := newTestState()
	applyAll(s,
		turnStart(t, "R1"),
		toolStart(t, "T1", "crawl"),
		turnStart(t, "R2"),
		toolStart(t, "T2", "scrape"),
	)

	entries := s.FinalView().Entries
	require.Equal(t, []string{"assistant:R1", "assistant:R2"}, roles(entries))
	assert.Nil(t, entries[0].ToolCalls[0].Output)
	assert.Nil(t, entries[1].ToolCalls[0].Output)
	assert.Equal(t, []string{"T1"}, s.PendingToolCalls())
}

func TestReduce_UnknownToolResultIsIgnored(t *testing.T) {
	s := newTestState()
	applyAll(s, turnStart(t, "R1"), delta(t, "hi"))

	require.NotPanics(t, func() {
		s.Apply(toolEnd(t, "missing", "x"))
	})
	entries := s.FinalView().Entries
	require.Len(t, entries, 1)
	assert.Equal(t, "hi", entries[0].Content)
}

func TestReduce_ErrorStopsAccumulation(t *testing.T) {
	s := newTestState()
	applyAll(s,
		turnStart(t, "R1"),
		delta(t, "partial"),
		toolStart(t, "T1", "x"),
		turnStart(t, "R2"),
		delta(t, "more"),
	)
	before := s.Entries()

	s.Apply(event(t, agentModels.EventError, map[string]string{"error": "rate limited", "code": "429"}))
	applyAll(s,
		delta(t, " ignored"),
		toolEnd(t, "T1", "late"),
		conversation(t, "late-conversation"),
		turnStart(t, "R3"),
	)

	require.NotNil(t, s.Err())
	assert.Equal(t, "rate limited", s.Err().Message)
	assert.Equal(t, "429", s.Err().Code)
	assert.Equal(t, before, s.Entries())
	assert.Empty(t, s.ConversationID())

	block := s.FinalView()
	require.Equal(t, []string{"assistant:R1", "assistant:R2"}, roles(block.Entries))
	assert.Equal(t, "more", block.Entries[1].Content)
}

func TestReduce_ErrorPayloadFallback(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		message string
		code    string
	}{
		{name: "empty object", data: `{}`, message: agentModels.DefaultErrorMessage},
		{name: "malformed", data: `{not json`, message: agentModels.DefaultErrorMessage},
		{name: "bare string", data: `"boom"`, message: "boom"},
		{name: "nested", data: `{"error":{"message":"quota","code":"Q1"}}`, message: "quota", code: "Q1"},
		{name: "detail", data: `{"detail":"bad agent","code":404}`, message: "bad agent", code: "404"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestState()
			s.Apply(agentModels.Event{Kind: agentModels.EventError, Data: json.RawMessage(tt.data)})

			require.NotNil(t, s.Err())
			assert.Equal(t, tt.message, s.Err().Message)
			assert.Equal(t, tt.code, s.Err().Code)
		})
	}
}

func TestReduce_IgnoresUnknownAndMalformedEvents(t *testing.T) {
	s := newTestState()
	applyAll(s,
		turnStart(t, "R1"),
		agentModels.Event{Kind: "ping", Data: json.RawMessage(`{}`)},
		agentModels.Event{Kind: agentModels.EventContentDelta, Data: json.RawMessage(`{"delta": 7}`)},
		agentModels.Event{Kind: agentModels.EventToolCallStart},
		delta(t, "ok"),
	)

	block := s.FinalView()
	require.Len(t, block.Entries, 1)
	assert.Equal(t, "ok", block.Entries[0].Content)
	assert.Nil(t, s.Err())
}

func TestReduce_StructuredPayloadOverwrites(t *testing.T) {
	s := newTestState()
	applyAll(s,
		event(t, agentModels.EventJSONOutput, map[string]interface{}{"json_output": map[string]int{"v": 1}}),
		event(t, agentModels.EventJSONOutput, map[string]interface{}{"json_output": map[string]int{"v": 2}}),
	)

	block := s.FinalView()
	assert.JSONEq(t, `{"v":2}`, string(block.StructuredPayload))
	assert.Empty(t, block.Entries)
}

func TestReduce_BlockIDFromServer(t *testing.T) {
	s := newTestState()
	s.Apply(event(t, agentModels.EventAssistantStart, map[string]string{"run_id": "R1", "block_id": "srv-block"}))
	s.Apply(event(t, agentModels.EventAssistantStart, map[string]string{"run_id": "R2", "block_id": "other"}))

	assert.Equal(t, "srv-block", s.BlockID())
	assert.Equal(t, "srv-block", s.LiveView().ID)
}
