// handlers_health.go - Health check handlers
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/driftgate/backend/internal/session"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version   string
	startedAt time.Time
	workflows *session.Manager
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, workflows *session.Manager) HealthHandler {
	return &HealthHandlerImpl{version: version, startedAt: time.Now(), workflows: workflows}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"version":   h.version,
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
		"workflows": h.workflows.Len(),
	})
}
