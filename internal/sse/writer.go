package sse

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// ErrStreamingUnsupported is returned when the ResponseWriter cannot flush
var ErrStreamingUnsupported = errors.New("sse: response writer does not support flushing")

// Writer writes server-sent events to an HTTP response.
// It is safe for concurrent use so keep-alive pings can share the connection
// with the event loop.
type Writer struct {
	mu       sync.Mutex
	w        http.ResponseWriter
	flusher  http.Flusher
	eventIDs bool
	seq      int
}

// NewWriter prepares w for streaming and returns a Writer.
// Headers are set but not yet sent; the first write commits them.
func NewWriter(w http.ResponseWriter, eventIDs bool) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // Disable nginx buffering

	return &Writer{
		w:        w,
		flusher:  flusher,
		eventIDs: eventIDs,
	}, nil
}

// WriteEvent writes one event and flushes it to the client
func (s *Writer) WriteEvent(eventType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := ""
	if s.eventIDs {
		s.seq++
		id = strconv.Itoa(s.seq)
	}

	if _, err := fmt.Fprint(s.w, FormatSSE(id, eventType, data)); err != nil {
		return fmt.Errorf("write %s event failed: %w", eventType, err)
	}
	s.flusher.Flush()
	return nil
}

// WriteKeepAlive writes an SSE comment (": keepalive") and flushes.
// Returns error if the connection is closed or the write fails.
func (s *Writer) WriteKeepAlive() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprint(s.w, ": keepalive\n\n"); err != nil {
		return fmt.Errorf("write keepalive failed: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// FormatSSE formats an event for transmission:
//
//	id: 3
//	event: content_delta
//	data: {"delta": "hi"}
//
// Multi-line data is split across several data fields.
func FormatSSE(id, eventType string, data []byte) string {
	var b strings.Builder
	if id != "" {
		b.WriteString("id: ")
		b.WriteString(id)
		b.WriteByte('\n')
	}
	if eventType != "" {
		b.WriteString("event: ")
		b.WriteString(eventType)
		b.WriteByte('\n')
	}
	for _, line := range strings.Split(string(data), "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}
