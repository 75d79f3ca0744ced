// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"
)

// WorkflowHandler handles workflow lifecycle operations
type WorkflowHandler interface {
	HandleCreateWorkflow(c echo.Context) error
	HandleDeleteWorkflow(c echo.Context) error
	HandleKeepAlive(c echo.Context) error
}

// IngestHandler handles the four file ingestion channels
type IngestHandler interface {
	HandleUpload(c echo.Context) error
	HandleImportURLs(c echo.Context) error
	HandleImportCloud(c echo.Context) error
}

// FileHandler handles per-file operations within a workflow
type FileHandler interface {
	HandleListFiles(c echo.Context) error
	HandleListFilesMsgpack(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
}

// ObserveHandler exposes progress, results and messages
type ObserveHandler interface {
	HandleProgress(c echo.Context) error
	HandleProgressStream(c echo.Context) error
	HandleResult(c echo.Context) error
	HandleDismissMessages(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}
