package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/watercrawl/WaterCrawl-sub003/internal/auth"
	"github.com/watercrawl/WaterCrawl-sub003/internal/httputil"
)

// apiKeyUser identifies callers authenticated with the static API key
const apiKeyUser = "api-key"

// AuthMiddleware authenticates requests with an X-API-Key header or a bearer
// token.
//
// apiKey enables static key auth; verifier enables JWT auth. When neither is
// configured every request is let through. Health checks and CORS pre-flight
// requests are never authenticated.
func AuthMiddleware(verifier auth.JWTVerifier, apiKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	open := verifier == nil && apiKey == ""

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if open || r.Method == http.MethodOptions || r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			if apiKey != "" {
				if key := r.Header.Get("X-API-Key"); key != "" {
					if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
						next.ServeHTTP(w, httputil.WithUserID(r, apiKeyUser))
						return
					}
					logger.Warn("invalid API key", "path", r.URL.Path)
					httputil.RespondError(w, http.StatusUnauthorized, "invalid API key")
					return
				}
			}

			token, ok := bearerToken(r)
			if !ok || verifier == nil {
				httputil.RespondError(w, http.StatusUnauthorized, "missing credentials")
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				httputil.RespondError(w, http.StatusUnauthorized, err.Error())
				return
			}

			r = httputil.WithUserID(r, claims.GetUserID())
			if claims.TeamID != "" {
				r = httputil.WithTeamID(r, claims.TeamID)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
