package transcript

import (
	"slices"

	agentModels "github.com/watercrawl/WaterCrawl-sub003/internal/domain/models/agent"
)

// Reduce applies ev to s and returns s.
func Reduce(s *State, ev agentModels.Event) *State {
	s.Apply(ev)
	return s
}

// Apply folds one event into the state.
// Once an error event has been applied every later event is ignored.
// Malformed payloads and unknown event kinds are dropped.
func (s *State) Apply(ev agentModels.Event) {
	if s.err != nil {
		s.logger.Debug("ignoring event after stream error",
			"event", ev.Kind,
			"block_id", s.blockID,
		)
		return
	}

	switch ev.Kind {
	case agentModels.EventConversation:
		var p agentModels.ConversationPayload
		if !s.decode(ev, &p) {
			return
		}
		s.conversationID = p.ConversationID

	case agentModels.EventAssistantStart:
		var p agentModels.AssistantStartPayload
		if !s.decode(ev, &p) {
			return
		}
		s.startTurn(p)

	case agentModels.EventContentDelta:
		var p agentModels.ContentDeltaPayload
		if !s.decode(ev, &p) {
			return
		}
		if p.Delta == "" {
			return
		}
		s.ensureEntryID()
		s.text.WriteString(p.Delta)

	case agentModels.EventToolCallStart:
		var p agentModels.ToolCallStartPayload
		if !s.decode(ev, &p) {
			return
		}
		s.startToolCall(p)

	case agentModels.EventToolCallEnd:
		var p agentModels.ToolCallEndPayload
		if !s.decode(ev, &p) {
			return
		}
		s.completeToolCall(p)

	case agentModels.EventJSONOutput:
		var p agentModels.JSONOutputPayload
		if !s.decode(ev, &p) {
			return
		}
		s.payload = p.JSONOutput

	case agentModels.EventError:
		s.err = agentModels.ParseStreamError(ev.Data)
		s.logger.Debug("stream error received",
			"block_id", s.blockID,
			"message", s.err.Message,
			"code", s.err.Code,
		)

	case agentModels.EventDone:
		// Finalization happens in FinalView

	default:
		s.logger.Debug("ignoring unknown event", "event", ev.Kind)
	}
}

func (s *State) decode(ev agentModels.Event, dest interface{}) bool {
	if err := ev.Decode(dest); err != nil {
		s.logger.Debug("dropping malformed event",
			"event", ev.Kind,
			"error", err,
		)
		return false
	}
	return true
}

// startTurn flushes the previous turn and opens a new one
func (s *State) startTurn(p agentModels.AssistantStartPayload) {
	if s.hasAccumulation() {
		runID := s.runID
		if runID == "" {
			runID = p.RunID
		}
		s.flush(runID)
	}

	if p.BlockID != "" && !s.blockIDFixed {
		s.blockID = p.BlockID
		s.blockIDFixed = true
	}

	s.resetTurn()
	s.runID = p.RunID
	s.entryID = s.newID()
}

func (s *State) startToolCall(p agentModels.ToolCallStartPayload) {
	if p.ToolCallID == "" {
		s.logger.Debug("dropping tool call without id", "tool_name", p.ToolName)
		return
	}

	s.ensureEntryID()
	if _, exists := s.toolCalls[p.ToolCallID]; !exists {
		s.toolOrder = append(s.toolOrder, p.ToolCallID)
	}
	s.toolCalls[p.ToolCallID] = &agentModels.ToolCall{
		ID:        p.ToolCallID,
		Name:      p.ToolName,
		Arguments: p.ToolInput,
	}
}

func (s *State) completeToolCall(p agentModels.ToolCallEndPayload) {
	output := NormalizeToolOutput(p.ToolOutput)

	if tc, ok := s.toolCalls[p.ToolCallID]; ok {
		tc.Output = &output
		return
	}

	if po, ok := s.pending[p.ToolCallID]; ok {
		s.insertLateResult(po, output)
		delete(s.pending, p.ToolCallID)
		return
	}

	// Results for ids never announced in this reply are dropped
	s.logger.Debug("ignoring result for unknown tool call",
		"tool_call_id", p.ToolCallID,
		"block_id", s.blockID,
	)
}

// flush finalizes the current turn into entries.
// Completed tool calls get their result entries right behind the turn;
// incomplete ones are parked in pending so a late result can find its owner.
func (s *State) flush(runID string) {
	entry, results := s.buildTurn(runID)

	s.entries = append(s.entries, entry)
	s.entries = append(s.entries, results...)

	for _, tc := range entry.ToolCalls {
		if !tc.Completed() {
			s.pending[tc.ID] = pendingOutput{
				call:         tc,
				ownerEntryID: entry.ID,
			}
		}
	}

	s.resetTurn()
}

// buildTurn projects the current turn into an assistant entry plus the
// result entries of its completed tool calls. It does not modify s.
func (s *State) buildTurn(runID string) (agentModels.Entry, []agentModels.Entry) {
	entry := agentModels.Entry{
		ID:      s.entryID,
		Role:    agentModels.RoleAssistant,
		RunID:   runID,
		Content: s.text.String(),
	}

	if len(s.toolOrder) == 0 {
		return entry, nil
	}

	calls := make([]agentModels.ToolCall, 0, len(s.toolOrder))
	for _, id := range s.toolOrder {
		calls = append(calls, *s.toolCalls[id])
	}
	entry.ToolCalls = agentModels.CloneToolCalls(calls)

	var results []agentModels.Entry
	for _, tc := range entry.ToolCalls {
		if tc.Completed() {
			results = append(results, toolResultEntry(tc, *tc.Output))
		}
	}
	return entry, results
}

// insertLateResult places a tool result behind its owning assistant entry and
// behind any results of the same turn that were inserted before it.
func (s *State) insertLateResult(po pendingOutput, output string) {
	owner := slices.IndexFunc(s.entries, func(e agentModels.Entry) bool {
		return e.ID == po.ownerEntryID
	})
	if owner < 0 {
		s.logger.Warn("owning entry missing for pending tool call",
			"tool_call_id", po.call.ID,
			"entry_id", po.ownerEntryID,
		)
		return
	}

	pos := owner + 1
	for pos < len(s.entries) &&
		s.entries[pos].IsToolResult() &&
		s.entries[owner].DeclaresToolCall(s.entries[pos].ToolCallID) {
		pos++
	}

	s.entries = slices.Insert(s.entries, pos, toolResultEntry(po.call, output))
}

func toolResultEntry(tc agentModels.ToolCall, output string) agentModels.Entry {
	return agentModels.Entry{
		ID:         "result_" + tc.ID,
		Role:       agentModels.RoleTool,
		Content:    output,
		ToolCallID: tc.ID,
		Name:       tc.Name,
	}
}
