package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/watercrawl/WaterCrawl-sub003/internal/auth"
	"github.com/watercrawl/WaterCrawl-sub003/internal/config"
	"github.com/watercrawl/WaterCrawl-sub003/internal/handler"
	"github.com/watercrawl/WaterCrawl-sub003/internal/middleware"
	"github.com/watercrawl/WaterCrawl-sub003/internal/mock"
	"github.com/watercrawl/WaterCrawl-sub003/internal/sse"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := config.NewServerLogger(os.Stdout, cfg.Environment)

	logger.Info("mock backend starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"scenario_path", cfg.ScenarioPath,
	)

	scenarios, err := mock.LoadScenarios(cfg.ScenarioPath, true)
	if err != nil {
		log.Fatalf("Failed to load scenarios: %v", err)
	}
	logger.Info("scenarios loaded", "count", len(scenarios.Scenarios))

	// Dashboard JWT verification is optional for the mock
	var verifier auth.JWTVerifier
	if cfg.JWKSURL != "" {
		jwksVerifier, err := auth.NewJWTVerifier(context.Background(), cfg.JWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
		defer jwksVerifier.Close()
		verifier = jwksVerifier
	}
	if verifier == nil && cfg.MockAPIKey == "" {
		logger.Warn("authentication disabled: set JWKS_URL or MOCK_API_KEY to enable it")
	}

	sseConfig := &sse.Config{
		KeepAliveInterval: cfg.KeepAliveInterval,
		EventIDs:          cfg.Debug,
	}

	chatHandler := handler.NewChatHandler(scenarios, sseConfig, logger)
	healthHandler := handler.NewHealthHandler(scenarios)

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthHandler.HealthCheck)
	mux.HandleFunc("POST /api/v1/agent/agents/{agentID}/chat/", chatHandler.Chat)

	// Build middleware chain
	var h http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → RequestLogger → Auth → Team → Routes
	h = middleware.TeamMiddleware()(h)
	h = middleware.AuthMiddleware(verifier, cfg.MockAPIKey, logger)(h)
	h = middleware.RequestLogger(logger)(h)
	h = middleware.Recovery(logger)(h)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key", "X-Team-ID"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
