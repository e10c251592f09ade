package transcript

import (
	"bytes"
	"encoding/json"

	"github.com/tidwall/gjson"
)

// NormalizeToolOutput renders a tool result payload as display text.
//
//   - a JSON string is returned unquoted
//   - an object with a scalar "content" field yields that field's text
//   - anything else is returned as compact JSON
//
// An absent payload yields the empty string.
func NormalizeToolOutput(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}
	if !gjson.ValidBytes(trimmed) {
		return string(trimmed)
	}

	result := gjson.ParseBytes(trimmed)
	switch {
	case result.Type == gjson.String:
		return result.String()
	case result.IsObject():
		if content := result.Get("content"); isScalar(content) {
			return content.String()
		}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return string(trimmed)
	}
	return buf.String()
}

func isScalar(r gjson.Result) bool {
	switch r.Type {
	case gjson.String, gjson.Number, gjson.True, gjson.False:
		return true
	}
	return false
}
