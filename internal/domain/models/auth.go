package models

import "github.com/golang-jwt/jwt/v5"

// DashboardClaims represents the JWT claims of a WaterCrawl dashboard token
type DashboardClaims struct {
	jwt.RegisteredClaims        // Standard JWT claims (sub, iss, aud, exp, iat, etc.)
	Email                string `json:"email,omitempty"`
	TeamID               string `json:"team_id,omitempty"`
}

// GetUserID returns the user ID from the JWT subject claim
func (c *DashboardClaims) GetUserID() string {
	return c.Subject
}
