package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/halcyonsec/camrelay/utils"
	"go.uber.org/zap"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Pinger defines the dependency probe used by the readiness check
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// DispatcherStats reports sink queue occupancy for the readiness check
type DispatcherStats interface {
	QueueDepth() (used, capacity int)
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db         Pinger
	dispatcher DispatcherStats
	logger     *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db Pinger, dispatcher DispatcherStats, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:         db,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// HandleHealth handles GET /healthz
// Basic health check - always returns 200 if service is running
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz
// Readiness check - validates that all dependencies are available
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if err := h.db.HealthCheck(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		checks["database"] = "unhealthy"
		allHealthy = false
	} else {
		checks["database"] = "healthy"
	}

	// A saturated sink queue means frames are being dropped on
	// hand-off; report it, but it does not fail readiness since the
	// buffer keeps admitting.
	used, capacity := h.dispatcher.QueueDepth()
	if capacity > 0 && used >= capacity {
		checks["sink_queue"] = "saturated"
	} else {
		checks["sink_queue"] = "healthy"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}
