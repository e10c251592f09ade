package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watercrawl/WaterCrawl-sub003/internal/domain"
	agentModels "github.com/watercrawl/WaterCrawl-sub003/internal/domain/models/agent"
	agentServices "github.com/watercrawl/WaterCrawl-sub003/internal/domain/services/agent"
	"github.com/watercrawl/WaterCrawl-sub003/internal/service/agent/transcript"
)

type scriptedSource struct {
	events []agentModels.Event
	hold   bool
	pos    int

	started chan struct{} // closed when the scripted events are exhausted
	closed  chan struct{}
	once    sync.Once
}

func (s *scriptedSource) Next() (agentModels.Event, error) {
	if s.pos < len(s.events) {
		s.pos++
		return s.events[s.pos-1], nil
	}
	if s.hold {
		close(s.started)
		<-s.closed
		return agentModels.Event{}, errors.New("connection closed")
	}
	return agentModels.Event{}, io.EOF
}

func (s *scriptedSource) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type fakeClient struct {
	mu       sync.Mutex
	requests []agentModels.ChatRequest

	block     *agentModels.MessageBlock
	sendErr   error
	streamErr error
	source    *scriptedSource
}

func (f *fakeClient) record(req *agentModels.ChatRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, *req)
}

func (f *fakeClient) SendMessage(ctx context.Context, req *agentModels.ChatRequest) (*agentModels.MessageBlock, error) {
	f.record(req)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	b := f.block.Clone()
	return &b, nil
}

func (f *fakeClient) StreamMessage(ctx context.Context, req *agentModels.ChatRequest) (agentServices.EventSource, error) {
	f.record(req)
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	return f.source, nil
}

func newSource(hold bool, events ...agentModels.Event) *scriptedSource {
	return &scriptedSource{
		events:  events,
		hold:    hold,
		started: make(chan struct{}),
		closed:  make(chan struct{}),
	}
}

func mustEvent(t *testing.T, kind agentModels.EventKind, payload interface{}) agentModels.Event {
	t.Helper()
	ev, err := agentModels.NewEvent(kind, payload)
	require.NoError(t, err)
	return ev
}

func newTestSession(client agentServices.ChatClient, mode agentModels.ResponseMode, opts ...Option) *Session {
	n := 0
	ids := func() string {
		n++
		return fmt.Sprintf("u%d", n)
	}
	opts = append([]Option{
		WithIDGenerator(ids),
		WithTranscriptOptions(transcript.WithBlockID("block-1")),
	}, opts...)
	return NewSession(client, "tester", mode, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

func TestSubmit_Blocking(t *testing.T) {
	client := &fakeClient{block: &agentModels.MessageBlock{
		ID:             "b1",
		ConversationID: "conv-1",
		Entries:        []agentModels.Entry{{ID: "m1", Role: agentModels.RoleAssistant, Content: "hello"}},
	}}
	s := newTestSession(client, agentModels.ModeBlocking)

	var updates []Snapshot
	block, err := s.Submit(context.Background(), SubmitInput{Query: "  hi  "}, func(snap Snapshot) {
		updates = append(updates, snap)
	})
	require.NoError(t, err)
	assert.Equal(t, "b1", block.ID)

	require.Len(t, updates, 2)
	assert.True(t, updates[0].InFlight)
	assert.Len(t, updates[0].History, 1)
	assert.False(t, updates[1].InFlight)

	snap := s.Snapshot()
	require.Len(t, snap.History, 2)
	assert.Equal(t, agentModels.RoleUser, snap.History[0].Role)
	assert.Equal(t, "hi", snap.History[0].Entries[0].Content)
	assert.Equal(t, agentModels.RoleAssistant, snap.History[1].Role)
	assert.Equal(t, "conv-1", snap.ConversationID)
	assert.Nil(t, snap.Err)

	// follow-up turns carry the conversation id
	_, err = s.Submit(context.Background(), SubmitInput{Query: "again"}, nil)
	require.NoError(t, err)
	require.Len(t, client.requests, 2)
	assert.Empty(t, client.requests[0].ConversationID)
	assert.Equal(t, "conv-1", client.requests[1].ConversationID)
	assert.Equal(t, agentModels.ModeBlocking, client.requests[1].ResponseMode)
}

func TestSubmit_BlockingFailure(t *testing.T) {
	client := &fakeClient{sendErr: &agentModels.StreamError{Message: "agent disabled", Code: "agent_disabled"}}
	s := newTestSession(client, agentModels.ModeBlocking)

	block, err := s.Submit(context.Background(), SubmitInput{Query: "hi"}, nil)
	assert.Nil(t, block)

	var streamErr *agentModels.StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.Equal(t, "agent disabled", streamErr.Message)

	snap := s.Snapshot()
	assert.Len(t, snap.History, 1, "only the user block is kept")
	require.NotNil(t, snap.Err)
	assert.Equal(t, "agent_disabled", snap.Err.Code)
	assert.False(t, snap.InFlight)
}

func TestSubmit_Streaming(t *testing.T) {
	client := &fakeClient{source: newSource(false,
		mustEvent(t, agentModels.EventConversation, map[string]string{"conversation_id": "C"}),
		mustEvent(t, agentModels.EventAssistantStart, map[string]string{"run_id": "R1"}),
		mustEvent(t, agentModels.EventContentDelta, map[string]string{"delta": "Hi"}),
		mustEvent(t, agentModels.EventContentDelta, map[string]string{"delta": " there"}),
		mustEvent(t, agentModels.EventDone, map[string]string{}),
	)}
	s := newTestSession(client, agentModels.ModeStreaming)

	var lives []string
	block, err := s.Submit(context.Background(), SubmitInput{Query: "hi"}, func(snap Snapshot) {
		if snap.Live != nil && len(snap.Live.Entries) > 0 {
			lives = append(lives, snap.Live.Entries[0].Content)
		}
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hi", "Hi there", "Hi there"}, lives)
	assert.Equal(t, "block-1", block.ID)

	snap := s.Snapshot()
	assert.Nil(t, snap.Live)
	require.Len(t, snap.History, 2)
	assert.Equal(t, "Hi there", snap.History[1].Entries[0].Content)
	assert.Equal(t, "C", snap.ConversationID)
}

func TestSubmit_StreamingErrorKeepsPartial(t *testing.T) {
	client := &fakeClient{source: newSource(false,
		mustEvent(t, agentModels.EventAssistantStart, map[string]string{"run_id": "R1"}),
		mustEvent(t, agentModels.EventContentDelta, map[string]string{"delta": "partial"}),
		mustEvent(t, agentModels.EventError, map[string]string{"message": "tool crashed"}),
	)}
	s := newTestSession(client, agentModels.ModeStreaming)

	block, err := s.Submit(context.Background(), SubmitInput{Query: "hi"}, nil)
	require.Error(t, err)
	require.NotNil(t, block)

	snap := s.Snapshot()
	require.Len(t, snap.History, 2)
	assert.Equal(t, "partial", snap.History[1].Entries[0].Content)
	require.NotNil(t, snap.Err)
	assert.Equal(t, "tool crashed", snap.Err.Message)
}

func TestSubmit_StreamOpenFailure(t *testing.T) {
	client := &fakeClient{streamErr: errors.New("dial tcp: connection refused")}
	s := newTestSession(client, agentModels.ModeStreaming)

	_, err := s.Submit(context.Background(), SubmitInput{Query: "hi"}, nil)
	require.Error(t, err)

	snap := s.Snapshot()
	assert.Len(t, snap.History, 1)
	require.NotNil(t, snap.Err)
	assert.Equal(t, agentModels.DefaultErrorMessage, snap.Err.Message)
}

func TestSubmit_CancelFinalizesTranscript(t *testing.T) {
	source := newSource(true,
		mustEvent(t, agentModels.EventAssistantStart, map[string]string{"run_id": "R1"}),
		mustEvent(t, agentModels.EventContentDelta, map[string]string{"delta": "so far"}),
	)
	s := newTestSession(&fakeClient{source: source}, agentModels.ModeStreaming)

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), SubmitInput{Query: "hi"}, nil)
		done <- err
	}()

	<-source.started
	assert.True(t, s.Snapshot().InFlight)

	_, err := s.Submit(context.Background(), SubmitInput{Query: "second"}, nil)
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, s.Reset(), ErrBusy)

	assert.True(t, s.Cancel())
	require.NoError(t, <-done)

	snap := s.Snapshot()
	assert.False(t, snap.InFlight)
	assert.Nil(t, snap.Err)
	require.Len(t, snap.History, 2)
	assert.Equal(t, "so far", snap.History[1].Entries[0].Content)
	assert.False(t, s.Cancel(), "nothing left to cancel")
}

func TestSubmit_ValidationFailure(t *testing.T) {
	client := &fakeClient{}
	s := newTestSession(client, agentModels.ModeStreaming)

	_, err := s.Submit(context.Background(), SubmitInput{Query: "   "}, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, client.requests)
	assert.Empty(t, s.Snapshot().History)
}

func TestReset(t *testing.T) {
	client := &fakeClient{block: &agentModels.MessageBlock{ID: "b1", ConversationID: "conv-1"}}
	s := newTestSession(client, agentModels.ModeBlocking, WithConversationID("conv-0"))

	_, err := s.Submit(context.Background(), SubmitInput{Query: "hi"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "conv-0", client.requests[0].ConversationID)

	require.NoError(t, s.Reset())
	snap := s.Snapshot()
	assert.Empty(t, snap.History)
	assert.Empty(t, snap.ConversationID)
}

func TestToggleMode(t *testing.T) {
	s := newTestSession(&fakeClient{}, "")
	assert.Equal(t, agentModels.ModeStreaming, s.Mode())
	assert.Equal(t, agentModels.ModeBlocking, s.ToggleMode())
	assert.Equal(t, agentModels.ModeStreaming, s.ToggleMode())
}
