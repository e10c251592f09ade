package middleware

import (
	"net/http"

	"github.com/watercrawl/WaterCrawl-sub003/internal/httputil"
)

// TeamMiddleware copies the X-Team-ID header into the request context.
// A team id taken from a verified token wins over the header.
func TeamMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if httputil.GetTeamID(r) == "" {
				if teamID := r.Header.Get("X-Team-ID"); teamID != "" {
					r = httputil.WithTeamID(r, teamID)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
