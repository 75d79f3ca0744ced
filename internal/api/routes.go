// routes.go - Route registration helpers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/minio/minio-go/v7"

	"github.com/driftgate/backend/internal/pipeline"
	"github.com/driftgate/backend/internal/session"
	"github.com/driftgate/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store     storage.Store
	Workflows *session.Manager
	Pipeline  *pipeline.Pipeline
	Cloud     *minio.Client // nil when no cloud connector is configured
	URLClient *http.Client
	// URLParallel bounds concurrent URL resolution for the URL importer.
	URLParallel int
	Version     string
}

// Handlers holds all handler instances
type Handlers struct {
	Health   HealthHandler
	Workflow WorkflowHandler
	Ingest   IngestHandler
	Files    FileHandler
	Observe  ObserveHandler
	WS       *WebSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:   NewHealthHandler(deps.Version, deps.Workflows),
		Workflow: NewWorkflowHandler(deps.Workflows),
		Ingest:   NewIngestHandler(deps.Workflows, deps.Pipeline, deps.Cloud, deps.URLClient, deps.URLParallel),
		Files:    NewFileHandler(deps.Workflows, deps.Store),
		Observe:  NewObserveHandler(deps.Workflows),
		WS:       NewWebSocketHandler(deps.Workflows),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/api/health", handlers.Health.HandleHealth)

	// Workflow lifecycle
	e.POST("/api/workflows", handlers.Workflow.HandleCreateWorkflow)

	wf := e.Group("/api/workflows/:workflowId")
	wf.DELETE("", handlers.Workflow.HandleDeleteWorkflow)
	wf.POST("/keepalive", handlers.Workflow.HandleKeepAlive)

	// Ingestion channels
	wf.POST("/ingest/upload", handlers.Ingest.HandleUpload)
	wf.POST("/ingest/urls", handlers.Ingest.HandleImportURLs)
	wf.POST("/ingest/cloud", handlers.Ingest.HandleImportCloud)

	// File registry
	wf.GET("/files", handlers.Files.HandleListFiles)
	wf.GET("/files/msgpack", handlers.Files.HandleListFilesMsgpack)
	wf.DELETE("/files/:fileId", handlers.Files.HandleDeleteFile)

	// Progress and results
	wf.GET("/progress", handlers.Observe.HandleProgress)
	wf.GET("/progress/stream", handlers.Observe.HandleProgressStream)
	wf.GET("/result", handlers.Observe.HandleResult)
	wf.POST("/messages/dismiss", handlers.Observe.HandleDismissMessages)

	// WebSocket progress push
	wf.GET("/ws", handlers.WS.HandleWebSocket)
}

// resolveWorkflow fetches the workflow named in the path and bumps its
// last-accessed timestamp.
func resolveWorkflow(c echo.Context, mgr *session.Manager) (*session.Workflow, *APIError) {
	id := c.Param("workflowId")
	if id == "" {
		return nil, NewValidationError("workflowId")
	}
	wf, ok := mgr.Get(id)
	if !ok {
		return nil, NewNotFoundError("workflow", id)
	}
	wf.Touch()
	return wf, nil
}
