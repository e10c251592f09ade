package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	agentModels "github.com/watercrawl/WaterCrawl-sub003/internal/domain/models/agent"
	"github.com/watercrawl/WaterCrawl-sub003/internal/httputil"
	"github.com/watercrawl/WaterCrawl-sub003/internal/mock"
	agentService "github.com/watercrawl/WaterCrawl-sub003/internal/service/agent"
	"github.com/watercrawl/WaterCrawl-sub003/internal/service/agent/transcript"
	"github.com/watercrawl/WaterCrawl-sub003/internal/sse"
)

// ChatHandler serves the agent chat endpoint from scripted scenarios
type ChatHandler struct {
	scenarios *mock.ScenarioSet
	sseConfig *sse.Config
	logger    *slog.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(scenarios *mock.ScenarioSet, sseConfig *sse.Config, logger *slog.Logger) *ChatHandler {
	if sseConfig == nil {
		sseConfig = sse.DefaultConfig()
	}
	return &ChatHandler{
		scenarios: scenarios,
		sseConfig: sseConfig,
		logger:    logger,
	}
}

// Chat answers one chat request
// POST /api/v1/agent/agents/{agentID}/chat/
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	agentID, ok := PathParam(w, r, "agentID", "Agent ID")
	if !ok {
		return
	}

	var req agentModels.ChatRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		handleError(w, err)
		return
	}
	if req.ResponseMode == "" {
		req.ResponseMode = agentModels.ModeStreaming
	}
	if err := agentService.ValidateChatRequest(&req); err != nil {
		handleError(w, err)
		return
	}

	scenario := h.scenarios.Match(agentID, req.Query)
	if scenario == nil {
		httputil.RespondError(w, http.StatusNotFound, "no scenario matches this agent and query")
		return
	}

	events, err := scenario.TimedEvents()
	if err != nil {
		h.logger.Error("failed to build scenario events", "scenario", scenario.Name, "error", err)
		handleError(w, err)
		return
	}
	if !scenario.HasConversationEvent() {
		events, err = withConversation(events, req.ConversationID)
		if err != nil {
			handleError(w, err)
			return
		}
	}

	h.logger.Info("chat request",
		"agent_id", agentID,
		"user", req.User,
		"caller", httputil.GetUserID(r),
		"team_id", httputil.GetTeamID(r),
		"mode", req.ResponseMode,
		"scenario", scenario.Name,
		"conversation_id", req.ConversationID,
	)

	if req.ResponseMode == agentModels.ModeBlocking {
		h.respondBlocking(w, r, events)
		return
	}
	h.stream(w, r, events)
}

// withConversation prepends the conversation event, assigning a new id when
// the request has none
func withConversation(events []mock.TimedEvent, conversationID string) ([]mock.TimedEvent, error) {
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	ev, err := agentModels.NewEvent(agentModels.EventConversation, agentModels.ConversationPayload{
		ConversationID: conversationID,
	})
	if err != nil {
		return nil, err
	}
	return append([]mock.TimedEvent{{Event: ev}}, events...), nil
}

// stream writes the scenario as server-sent events
func (h *ChatHandler) stream(w http.ResponseWriter, r *http.Request, events []mock.TimedEvent) {
	writer, err := sse.NewWriter(w, h.sseConfig.EventIDs)
	if err != nil {
		h.logger.Error("response writer cannot stream", "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	w.WriteHeader(http.StatusOK)

	if h.sseConfig.KeepAliveInterval > 0 {
		keepAlive := sse.NewTickerKeepAlive(h.sseConfig.KeepAliveInterval)
		stopped := keepAlive.Start(writer, h.logger)
		defer func() {
			keepAlive.Stop()
			<-stopped
		}()
	}

	for _, te := range events {
		if !wait(r.Context(), te.Delay) {
			h.logger.Info("client disconnected", "sent_until", te.Event.Kind)
			return
		}
		if err := writer.WriteEvent(string(te.Event.Kind), te.Event.Data); err != nil {
			h.logger.Info("client disconnected during event write", "error", err)
			return
		}
		h.logger.Debug("SSE event sent", "type", te.Event.Kind)
	}
}

// respondBlocking folds the scenario through the transcript reducer and
// returns the final block
func (h *ChatHandler) respondBlocking(w http.ResponseWriter, r *http.Request, events []mock.TimedEvent) {
	state := transcript.NewState(transcript.WithLogger(h.logger))
	for _, te := range events {
		if !wait(r.Context(), te.Delay) {
			return
		}
		state.Apply(te.Event)
		if te.Event.Kind == agentModels.EventDone || state.Err() != nil {
			break
		}
	}

	if streamErr := state.Err(); streamErr != nil {
		httputil.RespondErrorWithCode(w, http.StatusBadGateway, streamErr.Message, streamErr.Code)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, state.FinalView())
}

// wait sleeps for d unless ctx ends first
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
