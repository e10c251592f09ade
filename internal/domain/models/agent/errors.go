package agent

import (
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultErrorMessage is used when an error payload carries no message
const DefaultErrorMessage = "An error occurred while generating the response"

// StreamError is the error descriptor shown beneath a transcript.
// It is produced by error events and by failed API calls.
type StreamError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (e *StreamError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// ParseStreamError extracts a message and optional code from an error payload.
// Accepted shapes include a bare JSON string, {"error": "..."},
// {"error": {"message": "...", "code": "..."}}, {"message": "..."} and RFC 7807
// problem details. Payloads without a usable message get DefaultErrorMessage.
func ParseStreamError(raw []byte) *StreamError {
	se := &StreamError{Message: DefaultErrorMessage}
	if !gjson.ValidBytes(raw) {
		return se
	}

	result := gjson.ParseBytes(raw)
	if result.Type == gjson.String {
		if msg := strings.TrimSpace(result.String()); msg != "" {
			se.Message = msg
		}
		return se
	}
	if !result.IsObject() {
		return se
	}

	for _, path := range []string{"error.message", "error", "message", "detail", "title"} {
		v := result.Get(path)
		if v.Type == gjson.String && strings.TrimSpace(v.String()) != "" {
			se.Message = v.String()
			break
		}
	}
	for _, path := range []string{"code", "error.code", "error_code"} {
		v := result.Get(path)
		if v.Type == gjson.String || v.Type == gjson.Number {
			se.Code = v.String()
			break
		}
	}
	return se
}
