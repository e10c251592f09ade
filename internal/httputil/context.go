package httputil

import (
	"context"
	"net/http"
)

// Context key type to avoid collisions
type contextKey string

const (
	userIDKey contextKey = "userID"
	teamIDKey contextKey = "teamID"
)

// WithUserID adds the authenticated caller to the request context
func WithUserID(r *http.Request, userID string) *http.Request {
	ctx := context.WithValue(r.Context(), userIDKey, userID)
	return r.WithContext(ctx)
}

// GetUserID retrieves userID from context, returns empty string if not found
func GetUserID(r *http.Request) string {
	userID, _ := r.Context().Value(userIDKey).(string)
	return userID
}

// WithTeamID adds the caller's team to the request context
func WithTeamID(r *http.Request, teamID string) *http.Request {
	ctx := context.WithValue(r.Context(), teamIDKey, teamID)
	return r.WithContext(ctx)
}

// GetTeamID retrieves the team id from context, returns empty string if not found
func GetTeamID(r *http.Request) string {
	teamID, _ := r.Context().Value(teamIDKey).(string)
	return teamID
}
