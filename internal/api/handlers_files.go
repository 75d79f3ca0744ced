// handlers_files.go - File registry handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/driftgate/backend/internal/session"
	"github.com/driftgate/backend/internal/storage"
)

// FileHandlerImpl implements the FileHandler interface
type FileHandlerImpl struct {
	workflows *session.Manager
	store     storage.Store
}

// NewFileHandler creates a new file handler instance
func NewFileHandler(workflows *session.Manager, store storage.Store) FileHandler {
	return &FileHandlerImpl{workflows: workflows, store: store}
}

// HandleListFiles returns all files in ingestion order
func (h *FileHandlerImpl) HandleListFiles(c echo.Context) error {
	wf, apiErr := resolveWorkflow(c, h.workflows)
	if apiErr != nil {
		return apiErr
	}

	files := wf.Registry().List()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"files": files,
		"total": len(files),
	})
}

// HandleListFilesMsgpack returns the file list in MessagePack format for
// high-frequency polling clients.
func (h *FileHandlerImpl) HandleListFilesMsgpack(c echo.Context) error {
	wf, apiErr := resolveWorkflow(c, h.workflows)
	if apiErr != nil {
		return apiErr
	}

	files := wf.Registry().List()
	data, err := msgpack.Marshal(map[string]interface{}{
		"files": files,
		"total": len(files),
	})
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}

	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleDeleteFile removes a settled file and its stored artifact.
// Files with in-flight transfers or analysis cannot be removed.
func (h *FileHandlerImpl) HandleDeleteFile(c echo.Context) error {
	wf, apiErr := resolveWorkflow(c, h.workflows)
	if apiErr != nil {
		return apiErr
	}

	fileID := c.Param("fileId")
	if fileID == "" {
		return NewValidationError("fileId")
	}

	if err := wf.Registry().Remove(fileID); err != nil {
		return FromRegistryError(err, fileID)
	}

	// Artifact cleanup is best effort, the registry entry is already gone.
	h.store.Delete(fileID)

	return c.NoContent(http.StatusNoContent)
}
