package agent

import (
	"context"

	agentModels "github.com/watercrawl/WaterCrawl-sub003/internal/domain/models/agent"
)

// EventSource yields the events of one streaming reply in arrival order.
type EventSource interface {
	// Next returns the next event.
	// Returns io.EOF when the stream ended normally; any other error is a
	// transport failure. Next must not be called after Close.
	Next() (agentModels.Event, error)

	// Close releases the underlying connection. Safe to call more than once.
	Close() error
}

// ChatClient talks to the agent chat endpoint.
// Both modes accept the same request; ResponseMode is set by the client.
type ChatClient interface {
	// SendMessage performs a blocking request and returns the complete reply
	SendMessage(ctx context.Context, req *agentModels.ChatRequest) (*agentModels.MessageBlock, error)

	// StreamMessage opens a streaming request.
	// Cancelling ctx closes the connection and ends the EventSource.
	StreamMessage(ctx context.Context, req *agentModels.ChatRequest) (EventSource, error)
}
