// handlers_workflow.go - Workflow lifecycle handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/driftgate/backend/internal/session"
)

// WorkflowHandlerImpl implements the WorkflowHandler interface
type WorkflowHandlerImpl struct {
	workflows *session.Manager
}

// NewWorkflowHandler creates a new workflow handler instance
func NewWorkflowHandler(workflows *session.Manager) WorkflowHandler {
	return &WorkflowHandlerImpl{workflows: workflows}
}

// HandleCreateWorkflow opens a fresh upload workflow
func (h *WorkflowHandlerImpl) HandleCreateWorkflow(c echo.Context) error {
	wf, err := h.workflows.Create()
	if err != nil {
		return NewServiceUnavailableError("workflow capacity exhausted")
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"workflowId": wf.ID,
		"createdAt":  wf.CreatedAt,
	})
}

// HandleDeleteWorkflow tears a workflow down, cancelling in-flight work
func (h *WorkflowHandlerImpl) HandleDeleteWorkflow(c echo.Context) error {
	id := c.Param("workflowId")
	if id == "" {
		return NewValidationError("workflowId")
	}
	if !h.workflows.Delete(id) {
		return NewNotFoundError("workflow", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleKeepAlive extends a workflow's idle window
func (h *WorkflowHandlerImpl) HandleKeepAlive(c echo.Context) error {
	id := c.Param("workflowId")
	if id == "" {
		return NewValidationError("workflowId")
	}
	if !h.workflows.Touch(id) {
		return NewNotFoundError("workflow", id)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
