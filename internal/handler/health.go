package handler

import (
	"net/http"

	"github.com/watercrawl/WaterCrawl-sub003/internal/httputil"
	"github.com/watercrawl/WaterCrawl-sub003/internal/mock"
)

// HealthHandler reports liveness of the mock backend
type HealthHandler struct {
	scenarios *mock.ScenarioSet
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(scenarios *mock.ScenarioSet) *HealthHandler {
	return &HealthHandler{scenarios: scenarios}
}

// HealthCheck handles GET /health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"scenarios": len(h.scenarios.Scenarios),
	})
}
