package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockbridge/internal/infrastructure/http/v1/dto"
)

// AppName and Version are reported by /health/info.
const (
	AppName = "stockbridge"
	Version = "0.1.0"
)

// ReadinessChecker reports whether the CRM endpoint is configured.
type ReadinessChecker interface {
	Initialized(ctx context.Context) bool
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	vault ReadinessChecker
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(vault ReadinessChecker) *HealthHandler {
	return &HealthHandler{vault: vault}
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{Status: "ok"})
}

// Ready handles readiness probe: documents cannot be processed before setup.
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.vault.Initialized(c.Request.Context()) {
		c.JSON(http.StatusServiceUnavailable, dto.HealthResponse{
			Status: "error",
			Checks: map[string]string{"crm_endpoint": "not initialized"},
		})
		return
	}
	c.JSON(http.StatusOK, dto.HealthResponse{
		Status: "ok",
		Checks: map[string]string{"crm_endpoint": "initialized"},
	})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, dto.InfoResponse{
		App:         AppName,
		Version:     Version,
		Initialized: h.vault.Initialized(c.Request.Context()),
	})
}
