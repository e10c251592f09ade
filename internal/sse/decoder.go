package sse

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Frame is one dispatched server-sent event
type Frame struct {
	ID    string
	Event string
	Data  []byte
}

// Decoder reads text/event-stream frames from an io.Reader.
//
// Comment lines (": keepalive") and the retry field are skipped. Multiple
// data lines are joined with "\n". A frame still buffered when the stream
// ends is dispatched rather than dropped.
type Decoder struct {
	scanner *bufio.Scanner
	lastID  string
}

// ErrEventTooLarge is returned when a single line exceeds the decoder limit
var ErrEventTooLarge = errors.New("sse: event exceeds maximum size")

// NewDecoder creates a Decoder reading from r. maxLine caps the size of a
// single line; values <= 0 select a 1MB limit.
func NewDecoder(r io.Reader, maxLine int) *Decoder {
	if maxLine <= 0 {
		maxLine = 1 << 20
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(64*1024, maxLine)), maxLine)
	return &Decoder{scanner: scanner}
}

// LastEventID returns the most recent id field seen on the stream
func (d *Decoder) LastEventID() string {
	return d.lastID
}

// Next returns the next frame. Returns io.EOF when the stream is exhausted.
func (d *Decoder) Next() (*Frame, error) {
	var (
		event   string
		data    bytes.Buffer
		hasData bool
	)

	dispatch := func() *Frame {
		f := &Frame{ID: d.lastID, Event: event, Data: bytes.Clone(data.Bytes())}
		event = ""
		data.Reset()
		hasData = false
		return f
	}

	for d.scanner.Scan() {
		line := d.scanner.Text()

		if line == "" {
			if hasData {
				return dispatch(), nil
			}
			event = ""
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			event = value
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				d.lastID = value
			}
		}
	}

	if err := d.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, ErrEventTooLarge
		}
		return nil, fmt.Errorf("sse: read failed: %w", err)
	}
	if hasData {
		return dispatch(), nil
	}
	return nil, io.EOF
}
