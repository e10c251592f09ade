package render

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/microcosm-cc/bluemonday"
)

// htmlConverter turns scraped HTML tool results into markdown for display.
// Sanitizing first drops scripts, styles and event handlers so only the
// readable page content reaches the converter.
type htmlConverter struct {
	policy    *bluemonday.Policy
	converter *md.Converter
}

func newHTMLConverter() *htmlConverter {
	return &htmlConverter{
		policy:    bluemonday.UGCPolicy(),
		converter: md.NewConverter("", true, nil),
	}
}

// Convert sanitizes html and converts it to markdown
func (c *htmlConverter) Convert(html string) (string, error) {
	sanitized := c.policy.Sanitize(html)

	markdown, err := c.converter.ConvertString(sanitized)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}
	return strings.TrimSpace(markdown), nil
}

// looksLikeHTML reports whether a tool result is an HTML fragment or page
func looksLikeHTML(s string) bool {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "<") || !strings.HasSuffix(s, ">") {
		return false
	}
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "<!doctype html") || strings.Contains(lower, "</")
}
