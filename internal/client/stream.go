package client

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/watercrawl/WaterCrawl-sub003/internal/config"
	agentModels "github.com/watercrawl/WaterCrawl-sub003/internal/domain/models/agent"
	agentServices "github.com/watercrawl/WaterCrawl-sub003/internal/domain/services/agent"
	"github.com/watercrawl/WaterCrawl-sub003/internal/sse"
)

// EventStream decodes agent events from a text/event-stream body.
//
// The event kind comes from the SSE event field. Frames without one are
// sniffed as {"type": ..., "data": {...}} envelopes; a flat object carrying
// "type" is used as its own payload. "[DONE]" maps to a done event. Frames
// that cannot be decoded are skipped.
type EventStream struct {
	body      io.ReadCloser
	dec       *sse.Decoder
	logger    *slog.Logger
	closeOnce sync.Once
	closeErr  error
}

var _ agentServices.EventSource = (*EventStream)(nil)

// NewEventStream wraps body. Closing the stream closes body.
func NewEventStream(body io.ReadCloser, logger *slog.Logger) *EventStream {
	return &EventStream{
		body:   body,
		dec:    sse.NewDecoder(body, config.MaxEventSize),
		logger: logger,
	}
}

// Next returns the next decodable event, or io.EOF at end of stream
func (s *EventStream) Next() (agentModels.Event, error) {
	for {
		frame, err := s.dec.Next()
		if err != nil {
			return agentModels.Event{}, err
		}

		ev, ok := decodeFrame(frame)
		if !ok {
			s.logger.Debug("skipping undecodable SSE frame",
				"event", frame.Event,
				"id", frame.ID,
				"size", len(frame.Data),
			)
			continue
		}
		return ev, nil
	}
}

// Close closes the response body. Safe to call more than once.
func (s *EventStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

func decodeFrame(frame *sse.Frame) (agentModels.Event, bool) {
	data := bytes.TrimSpace(frame.Data)

	if string(data) == "[DONE]" {
		return agentModels.Event{ID: frame.ID, Kind: agentModels.EventDone}, true
	}

	if frame.Event != "" && frame.Event != "message" {
		ev := agentModels.Event{ID: frame.ID, Kind: agentModels.EventKind(frame.Event)}
		if len(data) > 0 && !gjson.ValidBytes(data) {
			if ev.Kind != agentModels.EventError {
				return agentModels.Event{}, false
			}
			// Plain-text error messages are kept as a JSON string
			data, _ = json.Marshal(string(data))
		}
		if len(data) > 0 {
			ev.Data = json.RawMessage(data)
		}
		return ev, true
	}

	if !gjson.ValidBytes(data) {
		return agentModels.Event{}, false
	}
	envelope := gjson.ParseBytes(data)
	kind := envelope.Get("type")
	if !envelope.IsObject() || kind.Type != gjson.String || kind.String() == "" {
		return agentModels.Event{}, false
	}

	ev := agentModels.Event{ID: frame.ID, Kind: agentModels.EventKind(kind.String())}
	if payload := envelope.Get("data"); payload.Exists() {
		ev.Data = json.RawMessage(payload.Raw)
	} else {
		ev.Data = json.RawMessage(data)
	}
	return ev, true
}
