// Package chat implements the chat session: submission, response mode
// selection, cancellation and the transcript history shown to the user.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/watercrawl/WaterCrawl-sub003/internal/domain"
	agentModels "github.com/watercrawl/WaterCrawl-sub003/internal/domain/models/agent"
	agentServices "github.com/watercrawl/WaterCrawl-sub003/internal/domain/services/agent"
	agentService "github.com/watercrawl/WaterCrawl-sub003/internal/service/agent"
	"github.com/watercrawl/WaterCrawl-sub003/internal/service/agent/streaming"
	"github.com/watercrawl/WaterCrawl-sub003/internal/service/agent/transcript"
)

// ErrBusy is returned while a reply is still in flight
var ErrBusy = fmt.Errorf("%w: a reply is already in progress", domain.ErrConflict)

// SubmitInput is one user turn
type SubmitInput struct {
	Query       string
	Attachments []agentModels.Attachment
	Mode        agentModels.ResponseMode // Empty selects the session mode
	JSONSchema  json.RawMessage
}

// Snapshot is the view model handed to renderers.
// All blocks are copies; holding a Snapshot never races with the session.
type Snapshot struct {
	History        []agentModels.MessageBlock
	Live           *agentModels.MessageBlock
	Err            *agentModels.StreamError
	InFlight       bool
	Mode           agentModels.ResponseMode
	ConversationID string
}

// UpdateFunc receives a snapshot whenever the session changes during Submit
type UpdateFunc func(Snapshot)

// Session holds one conversation with an agent.
// Only one reply may be in flight at a time.
type Session struct {
	client agentServices.ChatClient
	user   string
	logger *slog.Logger
	newID  func() string
	opts   []transcript.Option

	mu             sync.Mutex
	history        []agentModels.MessageBlock
	live           *agentModels.MessageBlock
	err            *agentModels.StreamError
	inFlight       bool
	mode           agentModels.ResponseMode
	conversationID string
	cancel         context.CancelFunc
}

// Option configures a Session
type Option func(*Session)

// WithConversationID continues an existing conversation
func WithConversationID(id string) Option {
	return func(s *Session) {
		s.conversationID = id
	}
}

// WithIDGenerator replaces the user block id generator
func WithIDGenerator(fn func() string) Option {
	return func(s *Session) {
		s.newID = fn
	}
}

// WithTranscriptOptions configures the transcript state of streaming replies
func WithTranscriptOptions(opts ...transcript.Option) Option {
	return func(s *Session) {
		s.opts = append(s.opts, opts...)
	}
}

// NewSession creates a session for user.
// An empty or unknown mode selects streaming.
func NewSession(client agentServices.ChatClient, user string, mode agentModels.ResponseMode, logger *slog.Logger, opts ...Option) *Session {
	if mode != agentModels.ModeBlocking {
		mode = agentModels.ModeStreaming
	}
	s := &Session{
		client: client,
		user:   user,
		logger: logger,
		newID:  uuid.NewString,
		mode:   mode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit sends one user turn and waits for the reply.
//
// The user block is appended immediately. In blocking mode the reply is
// appended on success; on failure only the error is set. In streaming mode
// every event publishes a snapshot with the live transcript, and the final
// transcript is appended when the stream ends for any reason, including
// cancellation. The returned error is the request validation error, ErrBusy,
// or the reply's *agent.StreamError.
func (s *Session) Submit(ctx context.Context, in SubmitInput, onUpdate UpdateFunc) (*agentModels.MessageBlock, error) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil, ErrBusy
	}

	mode := in.Mode
	if mode == "" {
		mode = s.mode
	}
	req := &agentModels.ChatRequest{
		Query:          strings.TrimSpace(in.Query),
		User:           s.user,
		ConversationID: s.conversationID,
		ResponseMode:   mode,
		JSONSchema:     in.JSONSchema,
		Files:          in.Attachments,
	}
	if err := agentService.ValidateChatRequest(req); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	userBlock := agentModels.UserMessageBlock{
		ID:          s.newID(),
		Text:        req.Query,
		Attachments: in.Attachments,
	}
	s.history = append(s.history, userBlock.ToMessageBlock(s.conversationID))
	s.live = nil
	s.err = nil
	s.inFlight = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	snap := s.snapshotLocked()
	s.mu.Unlock()
	defer cancel()

	publish(onUpdate, snap)

	s.logger.Info("submitting chat request",
		"mode", mode,
		"conversation_id", req.ConversationID,
		"query_len", len(req.Query),
		"attachments", len(req.Files),
	)

	if mode == agentModels.ModeBlocking {
		return s.submitBlocking(ctx, req, onUpdate)
	}
	return s.submitStreaming(ctx, req, onUpdate)
}

func (s *Session) submitBlocking(ctx context.Context, req *agentModels.ChatRequest, onUpdate UpdateFunc) (*agentModels.MessageBlock, error) {
	block, err := s.client.SendMessage(ctx, req)

	s.mu.Lock()
	s.inFlight = false
	s.cancel = nil

	var result *agentModels.MessageBlock
	var streamErr *agentModels.StreamError
	switch {
	case err != nil && ctx.Err() != nil:
		s.logger.Info("blocking request cancelled")
	case err != nil:
		streamErr = toStreamError(err)
		s.err = streamErr
		s.logger.Error("blocking request failed", "error", err)
	default:
		if block.Role == "" {
			block.Role = agentModels.RoleAssistant
		}
		s.history = append(s.history, block.Clone())
		s.captureConversationID(block.ConversationID)
		result = block
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	publish(onUpdate, snap)
	if streamErr != nil {
		return nil, streamErr
	}
	return result, nil
}

func (s *Session) submitStreaming(ctx context.Context, req *agentModels.ChatRequest, onUpdate UpdateFunc) (*agentModels.MessageBlock, error) {
	source, err := s.client.StreamMessage(ctx, req)
	if err != nil {
		s.mu.Lock()
		s.inFlight = false
		s.cancel = nil
		var streamErr *agentModels.StreamError
		if ctx.Err() == nil {
			streamErr = toStreamError(err)
			s.err = streamErr
			s.logger.Error("stream request failed", "error", err)
		}
		snap := s.snapshotLocked()
		s.mu.Unlock()

		publish(onUpdate, snap)
		if streamErr != nil {
			return nil, streamErr
		}
		return nil, nil
	}

	ingestor := streaming.NewIngestor(source,
		func(live agentModels.MessageBlock) {
			s.mu.Lock()
			s.live = &live
			snap := s.snapshotLocked()
			s.mu.Unlock()
			publish(onUpdate, snap)
		},
		nil,
		s.logger,
		s.opts...,
	)
	out := ingestor.Run(ctx)

	s.mu.Lock()
	s.inFlight = false
	s.cancel = nil
	s.live = nil
	if !out.Block.IsEmpty() {
		s.history = append(s.history, out.Block.Clone())
	}
	s.captureConversationID(out.Block.ConversationID)
	s.err = out.Err
	snap := s.snapshotLocked()
	s.mu.Unlock()

	publish(onUpdate, snap)

	if out.Cancelled {
		s.logger.Info("stream cancelled", "entries", len(out.Block.Entries))
	}
	if out.Err != nil {
		return &out.Block, out.Err
	}
	return &out.Block, nil
}

// Cancel aborts the in-flight reply. Returns false if nothing was in flight.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

// Reset starts a new conversation
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight {
		return ErrBusy
	}
	s.history = nil
	s.live = nil
	s.err = nil
	s.conversationID = ""
	return nil
}

// Mode returns the response mode used when SubmitInput.Mode is empty
func (s *Session) Mode() agentModels.ResponseMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// ToggleMode switches between streaming and blocking for later submissions
func (s *Session) ToggleMode() agentModels.ResponseMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = s.mode.Toggle()
	return s.mode
}

// Snapshot returns the current view model
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		History:        make([]agentModels.MessageBlock, len(s.history)),
		InFlight:       s.inFlight,
		Mode:           s.mode,
		ConversationID: s.conversationID,
	}
	for i := range s.history {
		snap.History[i] = s.history[i].Clone()
	}
	if s.live != nil {
		live := s.live.Clone()
		snap.Live = &live
	}
	if s.err != nil {
		e := *s.err
		snap.Err = &e
	}
	return snap
}

func (s *Session) captureConversationID(id string) {
	if id != "" {
		s.conversationID = id
	}
}

func publish(onUpdate UpdateFunc, snap Snapshot) {
	if onUpdate != nil {
		onUpdate(snap)
	}
}

// toStreamError converts a request failure into the error shown to the user.
// Network failures get the generic message; API and domain errors keep theirs.
func toStreamError(err error) *agentModels.StreamError {
	var streamErr *agentModels.StreamError
	if errors.As(err, &streamErr) {
		e := *streamErr
		return &e
	}
	var httpErr domain.HTTPError
	if errors.As(err, &httpErr) {
		return &agentModels.StreamError{Message: httpErr.Error()}
	}
	return &agentModels.StreamError{Message: agentModels.DefaultErrorMessage}
}
