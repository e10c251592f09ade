package transcript

import (
	"encoding/json"

	agentModels "github.com/watercrawl/WaterCrawl-sub003/internal/domain/models/agent"
)

// LiveView returns the block to display while the reply is still streaming:
// the finalized entries followed by the turn in progress, if any.
// Calling it repeatedly without applying events yields identical blocks.
func (s *State) LiveView() agentModels.MessageBlock {
	return s.materialize()
}

// FinalView returns the completed block once the stream has ended or was
// cancelled. The turn in progress is flushed into the returned entries; tool
// calls that never completed keep a nil Output. The state is left untouched.
func (s *State) FinalView() agentModels.MessageBlock {
	return s.materialize()
}

func (s *State) materialize() agentModels.MessageBlock {
	entries := make([]agentModels.Entry, 0, len(s.entries)+1)
	entries = append(entries, agentModels.CloneEntries(s.entries)...)

	if s.hasAccumulation() {
		entry, results := s.buildTurn(s.runID)
		entries = append(entries, entry)
		entries = append(entries, results...)
	}

	block := agentModels.MessageBlock{
		ID:             s.blockID,
		Role:           agentModels.RoleAssistant,
		ConversationID: s.conversationID,
		Entries:        entries,
	}
	if s.payload != nil {
		block.StructuredPayload = append(json.RawMessage(nil), s.payload...)
	}
	return block
}
