// Package transcript folds the agent chat event stream into a transcript.
//
// A State accumulates one streaming reply. Events are applied in arrival
// order with Apply (or Reduce); LiveView and FinalView project the state into
// an immutable agent.MessageBlock without modifying it.
//
// Assistant text and tool calls accumulate for the current turn until the
// next assistant_start flushes them into a finalized assistant entry. Tool
// results that arrive after their turn was flushed are inserted directly after
// the owning entry, behind any results already placed there.
package transcript

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"

	agentModels "github.com/watercrawl/WaterCrawl-sub003/internal/domain/models/agent"
)

// pendingOutput is a flushed tool call still waiting for its result
type pendingOutput struct {
	call         agentModels.ToolCall
	ownerEntryID string
}

// State is the accumulated transcript of one in-flight streaming reply.
// A State is owned by a single goroutine; it is not safe for concurrent use.
type State struct {
	conversationID string
	blockID        string
	blockIDFixed   bool // set once the server assigned the block id

	runID   string
	entryID string // id the current turn is flushed under
	text    strings.Builder

	toolCalls map[string]*agentModels.ToolCall
	toolOrder []string

	pending map[string]pendingOutput
	entries []agentModels.Entry

	err     *agentModels.StreamError
	payload json.RawMessage

	newID  func() string
	logger *slog.Logger
}

// Option configures a State
type Option func(*State)

// WithIDGenerator replaces the entry id generator
func WithIDGenerator(fn func() string) Option {
	return func(s *State) {
		s.newID = fn
	}
}

// WithBlockID sets the id of the assistant reply block
func WithBlockID(id string) Option {
	return func(s *State) {
		s.blockID = id
	}
}

// WithLogger sets the logger used for dropped events
func WithLogger(logger *slog.Logger) Option {
	return func(s *State) {
		s.logger = logger
	}
}

// NewState creates an empty State for a new streaming reply
func NewState(opts ...Option) *State {
	s := &State{
		toolCalls: make(map[string]*agentModels.ToolCall),
		pending:   make(map[string]pendingOutput),
		newID:     newEntryID,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.blockID == "" {
		s.blockID = uuid.NewString()
	}
	return s
}

func newEntryID() string {
	id, err := gonanoid.New()
	if err != nil {
		return "msg_" + uuid.NewString()
	}
	return "msg_" + id
}

// ConversationID returns the conversation id announced by the server
func (s *State) ConversationID() string {
	return s.conversationID
}

// BlockID returns the id of the assistant reply block
func (s *State) BlockID() string {
	return s.blockID
}

// RunID returns the id of the turn currently accumulating
func (s *State) RunID() string {
	return s.runID
}

// Err returns the error descriptor, or nil if no error event was received
func (s *State) Err() *agentModels.StreamError {
	if s.err == nil {
		return nil
	}
	e := *s.err
	return &e
}

// Entries returns a copy of the finalized entries
func (s *State) Entries() []agentModels.Entry {
	return agentModels.CloneEntries(s.entries)
}

// PendingToolCalls returns the ids of flushed tool calls still awaiting output
func (s *State) PendingToolCalls() []string {
	ids := make([]string, 0, len(s.pending))
	for _, e := range s.entries {
		for _, tc := range e.ToolCalls {
			if _, ok := s.pending[tc.ID]; ok {
				ids = append(ids, tc.ID)
			}
		}
	}
	return ids
}

// hasAccumulation reports whether the current turn holds unflushed content
func (s *State) hasAccumulation() bool {
	return s.text.Len() > 0 || len(s.toolOrder) > 0
}

// ensureEntryID allocates the id of the current turn's entry on first use
func (s *State) ensureEntryID() {
	if s.entryID == "" {
		s.entryID = s.newID()
	}
}

func (s *State) resetTurn() {
	s.entryID = ""
	s.text.Reset()
	s.toolCalls = make(map[string]*agentModels.ToolCall)
	s.toolOrder = nil
}
