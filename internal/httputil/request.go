package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/watercrawl/WaterCrawl-sub003/internal/domain"
)

// MaxRequestBodySize bounds chat request bodies, which may carry inline
// attachments.
const MaxRequestBodySize = 32 << 20

// ParseJSON decodes the request body into dest.
// Returns a *domain.ValidationError for malformed or oversized bodies.
func ParseJSON(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &domain.ValidationError{Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)}
		}
		return &domain.ValidationError{Message: fmt.Sprintf("invalid JSON: %v", err)}
	}

	return nil
}
