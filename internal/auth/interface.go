package auth

import "github.com/watercrawl/WaterCrawl-sub003/internal/domain/models"

// JWTVerifier defines the interface for JWT token verification.
// The auth middleware depends only on this interface.
type JWTVerifier interface {
	// VerifyToken validates a JWT token string and returns the parsed claims.
	// Returns an error if the token is invalid, expired, or has an invalid signature.
	VerifyToken(tokenString string) (*models.DashboardClaims, error)

	// Close releases any resources held by the verifier.
	Close() error
}
