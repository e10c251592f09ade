package sse

import "time"

// Config holds configuration for SSE responses written by the mock backend
type Config struct {
	// KeepAliveInterval is how often to send keep-alive comments.
	// Zero disables keep-alive.
	KeepAliveInterval time.Duration

	// EventIDs adds sequential id fields to every event (debug aid)
	EventIDs bool
}

// DefaultConfig returns the default SSE configuration
// 10 seconds is safe for most proxies
func DefaultConfig() *Config {
	return &Config{
		KeepAliveInterval: 10 * time.Second,
	}
}
