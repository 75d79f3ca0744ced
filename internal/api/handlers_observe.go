// handlers_observe.go - Progress, result and message handlers
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/driftgate/backend/internal/session"
)

// ObserveHandlerImpl implements the ObserveHandler interface
type ObserveHandlerImpl struct {
	workflows *session.Manager
}

// NewObserveHandler creates a new observe handler instance
func NewObserveHandler(workflows *session.Manager) ObserveHandler {
	return &ObserveHandlerImpl{workflows: workflows}
}

// HandleProgress returns the aggregate progress snapshot
func (h *ObserveHandlerImpl) HandleProgress(c echo.Context) error {
	wf, apiErr := resolveWorkflow(c, h.workflows)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, wf.Progress())
}

// HandleProgressStream streams aggregate progress via SSE until the
// workflow settles or the stream times out.
func (h *ObserveHandlerImpl) HandleProgressStream(c echo.Context) error {
	id := c.Param("workflowId")
	if id == "" {
		return NewValidationError("workflowId")
	}

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	wf, ok := h.workflows.Get(id)
	if !ok {
		h.sendSSEError(c, "workflow not found")
		return nil
	}

	// Send initial snapshot
	h.sendSSEData(c, wf.Progress())

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	timeout := time.NewTimer(5 * time.Minute)
	defer timeout.Stop()

	for {
		select {
		case <-ticker.C:
			wf, ok := h.workflows.Get(id)
			if !ok {
				h.sendSSEError(c, "workflow not found")
				return nil
			}

			h.sendSSEData(c, wf.Progress())

			if wf.Settled() {
				return nil
			}

		case <-timeout.C:
			h.sendSSEError(c, "stream timeout")
			return nil

		case <-c.Request().Context().Done():
			return nil
		}
	}
}

// HandleResult returns the current result projection and workflow messages
func (h *ObserveHandlerImpl) HandleResult(c echo.Context) error {
	wf, apiErr := resolveWorkflow(c, h.workflows)
	if apiErr != nil {
		return apiErr
	}

	errMsg, successMsg := wf.Messages()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"result":  wf.Project(),
		"error":   errMsg,
		"success": successMsg,
	})
}

// HandleDismissMessages clears the workflow's error and success banners
func (h *ObserveHandlerImpl) HandleDismissMessages(c echo.Context) error {
	wf, apiErr := resolveWorkflow(c, h.workflows)
	if apiErr != nil {
		return apiErr
	}
	wf.DismissMessages()
	return c.NoContent(http.StatusNoContent)
}

func (h *ObserveHandlerImpl) sendSSEData(c echo.Context, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

func (h *ObserveHandlerImpl) sendSSEError(c echo.Context, message string) {
	h.sendSSEData(c, map[string]string{"error": message})
}
