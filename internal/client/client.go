// Package client implements the agent chat API client.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/watercrawl/WaterCrawl-sub003/internal/config"
	"github.com/watercrawl/WaterCrawl-sub003/internal/domain"
	agentModels "github.com/watercrawl/WaterCrawl-sub003/internal/domain/models/agent"
	agentServices "github.com/watercrawl/WaterCrawl-sub003/internal/domain/services/agent"
)

// Client implements agentServices.ChatClient over HTTP
type Client struct {
	baseURL     string
	agentID     string
	apiKey      string
	accessToken string
	teamID      string
	timeout     time.Duration
	http        *http.Client
	logger      *slog.Logger
}

var _ agentServices.ChatClient = (*Client)(nil)

// APIError is returned for non-2xx responses.
// It unwraps to the decoded *agent.StreamError and, when the status has one,
// the matching domain sentinel.
type APIError struct {
	Status int
	Detail *agentModels.StreamError
	kind   error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Detail.Error())
}

func (e *APIError) Unwrap() []error {
	if e.kind == nil {
		return []error{e.Detail}
	}
	return []error{e.Detail, e.kind}
}

// NewClient creates a client for the configured agent.
// A nil httpClient selects http.DefaultClient.
func NewClient(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.APIURL, "/"),
		agentID:     cfg.AgentID,
		apiKey:      cfg.APIKey,
		accessToken: cfg.AccessToken,
		teamID:      cfg.TeamID,
		timeout:     cfg.RequestTimeout,
		http:        httpClient,
		logger:      logger,
	}
}

// SendMessage performs a blocking chat request.
// The configured request timeout applies to the whole exchange.
func (c *Client) SendMessage(ctx context.Context, req *agentModels.ChatRequest) (*agentModels.MessageBlock, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body := *req
	body.ResponseMode = agentModels.ModeBlocking

	resp, err := c.do(ctx, &body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var block agentModels.MessageBlock
	if err := json.NewDecoder(resp.Body).Decode(&block); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}
	if block.Entries == nil {
		block.Entries = []agentModels.Entry{}
	}

	c.logger.Debug("blocking reply received",
		"block_id", block.ID,
		"conversation_id", block.ConversationID,
		"entries", len(block.Entries),
	)
	return &block, nil
}

// StreamMessage opens a streaming chat request.
// The returned stream must be closed by the caller.
func (c *Client) StreamMessage(ctx context.Context, req *agentModels.ChatRequest) (agentServices.EventSource, error) {
	body := *req
	body.ResponseMode = agentModels.ModeStreaming

	resp, err := c.do(ctx, &body)
	if err != nil {
		return nil, err
	}

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		c.logger.Warn("streaming response has unexpected content type",
			"content_type", ct,
		)
	}

	return NewEventStream(resp.Body, c.logger), nil
}

func (c *Client) chatURL() string {
	return c.baseURL + "/api/v1/agent/agents/" + url.PathEscape(c.agentID) + "/chat/"
}

func (c *Client) do(ctx context.Context, req *agentModels.ChatRequest) (*http.Response, error) {
	if c.agentID == "" {
		return nil, &domain.ValidationError{Message: "agent id is not configured"}
	}
	if err := checkAccessToken(c.accessToken, time.Now()); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build chat request: %w", err)
	}
	c.setHeaders(httpReq, req.ResponseMode)

	c.logger.Debug("sending chat request",
		"url", httpReq.URL.String(),
		"mode", req.ResponseMode,
		"conversation_id", req.ConversationID,
		"files", len(req.Files),
	)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		apiErr := readAPIError(resp)
		c.logger.Warn("chat request rejected",
			"status", resp.StatusCode,
			"error", apiErr.Detail.Message,
		)
		return nil, apiErr
	}

	return resp, nil
}

func (c *Client) setHeaders(r *http.Request, mode agentModels.ResponseMode) {
	r.Header.Set("Content-Type", "application/json")
	if mode == agentModels.ModeStreaming {
		r.Header.Set("Accept", "text/event-stream")
		r.Header.Set("Cache-Control", "no-cache")
	} else {
		r.Header.Set("Accept", "application/json")
	}
	if c.apiKey != "" {
		r.Header.Set("X-API-Key", c.apiKey)
	}
	if c.accessToken != "" {
		r.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	if c.teamID != "" {
		r.Header.Set("X-Team-ID", c.teamID)
	}
}

func readAPIError(resp *http.Response) *APIError {
	body, err := io.ReadAll(io.LimitReader(resp.Body, config.MaxErrorBodySize))
	if err != nil && !errors.Is(err, io.EOF) {
		body = nil
	}

	detail := agentModels.ParseStreamError(body)
	if detail.Message == agentModels.DefaultErrorMessage {
		if text := http.StatusText(resp.StatusCode); text != "" {
			detail.Message = text
		}
	}

	return &APIError{
		Status: resp.StatusCode,
		Detail: detail,
		kind:   domain.FromStatus(resp.StatusCode),
	}
}
