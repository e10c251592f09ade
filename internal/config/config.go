package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Environment string

	// Agent API (client side)
	APIURL         string
	APIKey         string
	AccessToken    string // Dashboard JWT, sent as a bearer token
	TeamID         string
	AgentID        string
	UserID         string
	ResponseMode   string // "streaming" or "blocking"
	RequestTimeout time.Duration

	// CLI logging
	LogDir      string
	MaxLogFiles int

	// Mock backend
	Port              string
	CORSOrigins       string
	JWKSURL           string
	MockAPIKey        string
	ScenarioPath      string
	KeepAliveInterval time.Duration

	// Debug flags
	Debug bool // Enables debug logging and SSE event IDs
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Environment: env,

		APIURL:         strings.TrimRight(getEnv("WATERCRAWL_API_URL", "https://app.watercrawl.dev"), "/"),
		APIKey:         getEnv("WATERCRAWL_API_KEY", ""),
		AccessToken:    getEnv("WATERCRAWL_ACCESS_TOKEN", ""),
		TeamID:         getEnv("WATERCRAWL_TEAM_ID", ""),
		AgentID:        getEnv("WATERCRAWL_AGENT_ID", ""),
		UserID:         getEnv("WATERCRAWL_USER", defaultUser()),
		ResponseMode:   getEnv("RESPONSE_MODE", "streaming"),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 2*time.Minute),

		LogDir:      getEnv("LOG_DIR", defaultLogDir()),
		MaxLogFiles: getInt("MAX_LOG_FILES", 10),

		Port:              getEnv("PORT", "8080"),
		CORSOrigins:       getEnv("CORS_ORIGINS", "http://localhost:3000"),
		JWKSURL:           getEnv("JWKS_URL", ""),
		MockAPIKey:        getEnv("MOCK_API_KEY", ""),
		ScenarioPath:      getEnv("SCENARIO_PATH", "scenarios.yaml"),
		KeepAliveInterval: getDuration("KEEPALIVE_INTERVAL", 10*time.Second),

		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

func defaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "agentchat"
}

func defaultLogDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "logs"
	}
	return filepath.Join(dir, "watercrawl", "logs")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}
