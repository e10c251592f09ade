package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watercrawl/WaterCrawl-sub003/internal/config"
	"github.com/watercrawl/WaterCrawl-sub003/internal/domain"
	agentModels "github.com/watercrawl/WaterCrawl-sub003/internal/domain/models/agent"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		APIURL:         srv.URL + "/",
		APIKey:         "key-1",
		TeamID:         "team-1",
		AgentID:        "agent-1",
		RequestTimeout: 5 * time.Second,
	}
	return NewClient(cfg, srv.Client(), testLogger()), srv
}

func TestSendMessage(t *testing.T) {
	var got agentModels.ChatRequest
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/agent/agents/agent-1/chat/", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("X-API-Key"))
		assert.Equal(t, "team-1", r.Header.Get("X-Team-ID"))
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"b1","role":"assistant","conversation_id":"c1","messages":[{"id":"m1","role":"assistant","content":"hello"}]}`))
	})

	block, err := c.SendMessage(context.Background(), &agentModels.ChatRequest{
		Query:        "hi",
		User:         "u1",
		ResponseMode: agentModels.ModeStreaming,
	})
	require.NoError(t, err)

	assert.Equal(t, agentModels.ModeBlocking, got.ResponseMode)
	assert.Equal(t, "hi", got.Query)
	assert.Equal(t, "c1", block.ConversationID)
	require.Len(t, block.Entries, 1)
	assert.Equal(t, "hello", block.Entries[0].Content)
}

func TestSendMessage_ErrorStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		message  string
	}{
		{
			name:     "problem details",
			status:   http.StatusNotFound,
			body:     `{"type":"about:blank","title":"Not Found","status":404,"detail":"agent not found"}`,
			sentinel: domain.ErrNotFound,
			message:  "agent not found",
		},
		{
			name:     "error object",
			status:   http.StatusBadRequest,
			body:     `{"error":{"message":"query too long","code":"invalid_query"}}`,
			sentinel: domain.ErrValidation,
			message:  "query too long",
		},
		{
			name:     "empty body",
			status:   http.StatusUnauthorized,
			sentinel: domain.ErrUnauthorized,
			message:  "Unauthorized",
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `{"message":"boom"}`,
			message: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.SendMessage(context.Background(), &agentModels.ChatRequest{Query: "hi", User: "u1"})
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)

			var streamErr *agentModels.StreamError
			require.ErrorAs(t, err, &streamErr)
			assert.Equal(t, tt.message, streamErr.Message)

			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
		})
	}
}

func TestSendMessage_MissingAgent(t *testing.T) {
	c := NewClient(&config.Config{APIURL: "http://unused"}, nil, testLogger())
	_, err := c.SendMessage(context.Background(), &agentModels.ChatRequest{Query: "hi"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSendMessage_ExpiredToken(t *testing.T) {
	called := false
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)
	c.accessToken = signed

	_, err = c.SendMessage(context.Background(), &agentModels.ChatRequest{Query: "hi"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.False(t, called, "expired token must not reach the server")
}

func TestCheckAccessToken(t *testing.T) {
	now := time.Now()
	sign := func(exp time.Time) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		}).SignedString([]byte("secret"))
		require.NoError(t, err)
		return s
	}

	assert.NoError(t, checkAccessToken("", now))
	assert.NoError(t, checkAccessToken("opaque-token", now))
	assert.NoError(t, checkAccessToken(sign(now.Add(time.Hour)), now))
	assert.ErrorIs(t, checkAccessToken(sign(now.Add(-time.Minute)), now), domain.ErrUnauthorized)
}

func TestStreamMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		var req agentModels.ChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, agentModels.ModeStreaming, req.ResponseMode)
		assert.Equal(t, "c1", req.ConversationID)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(strings.Join([]string{
			"event: conversation",
			`data: {"conversation_id":"c1"}`,
			"",
			": keepalive",
			"",
			`data: {"type":"assistant_start","data":{"run_id":"r1"}}`,
			"",
			"event: content_delta",
			`data: {"delta":"Hi"`,
			"",
			`data: {"type":"content_delta","delta":"Hi"}`,
			"",
			"data: [DONE]",
			"",
		}, "\n")))
	})

	stream, err := c.StreamMessage(context.Background(), &agentModels.ChatRequest{
		Query:          "hi",
		User:           "u1",
		ConversationID: "c1",
	})
	require.NoError(t, err)
	defer stream.Close()

	var kinds []agentModels.EventKind
	var payloads []string
	for {
		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		kinds = append(kinds, ev.Kind)
		payloads = append(payloads, string(ev.Data))
	}

	assert.Equal(t, []agentModels.EventKind{
		agentModels.EventConversation,
		agentModels.EventAssistantStart,
		agentModels.EventContentDelta,
		agentModels.EventDone,
	}, kinds)
	assert.JSONEq(t, `{"run_id":"r1"}`, payloads[1])
	assert.JSONEq(t, `{"type":"content_delta","delta":"Hi"}`, payloads[2])
	assert.NoError(t, stream.Close(), "second close is a no-op")
}

func TestStreamMessage_Cancel(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("event: conversation\ndata: {\"conversation_id\":\"c1\"}\n\n"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := c.StreamMessage(ctx, &agentModels.ChatRequest{Query: "hi", User: "u1"})
	require.NoError(t, err)
	defer stream.Close()

	ev, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, agentModels.EventConversation, ev.Kind)

	cancel()
	_, err = stream.Next()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}

func TestEventStream_PlainTextError(t *testing.T) {
	body := io.NopCloser(strings.NewReader("event: error\ndata: upstream exploded\n\n"))
	stream := NewEventStream(body, testLogger())

	ev, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, agentModels.EventError, ev.Kind)
	assert.Equal(t, "upstream exploded", agentModels.ParseStreamError(ev.Data).Message)

	_, err = stream.Next()
	assert.ErrorIs(t, err, io.EOF)
}
