package client

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/watercrawl/WaterCrawl-sub003/internal/domain"
)

// checkAccessToken fails fast on an expired dashboard token.
// The signature is not verified here; the API does that. Tokens that are not
// JWTs are passed through untouched.
func checkAccessToken(token string, now time.Time) error {
	if token == "" {
		return nil
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil
	}

	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(now) {
		return &domain.UnauthorizedError{
			Message: fmt.Sprintf("access token expired at %s", claims.ExpiresAt.Format(time.RFC3339)),
		}
	}
	return nil
}
