// handlers_ingest.go - Ingestion channel handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/minio/minio-go/v7"

	"github.com/driftgate/backend/internal/ingest"
	"github.com/driftgate/backend/internal/models"
	"github.com/driftgate/backend/internal/pipeline"
	"github.com/driftgate/backend/internal/session"
)

// IngestHandlerImpl implements the IngestHandler interface
type IngestHandlerImpl struct {
	workflows   *session.Manager
	pipeline    *pipeline.Pipeline
	cloud       *minio.Client
	urlClient   *http.Client
	urlParallel int
}

// NewIngestHandler creates a new ingest handler instance
func NewIngestHandler(workflows *session.Manager, p *pipeline.Pipeline, cloud *minio.Client, urlClient *http.Client, urlParallel int) IngestHandler {
	if urlClient == nil {
		urlClient = http.DefaultClient
	}
	return &IngestHandlerImpl{
		workflows:   workflows,
		pipeline:    p,
		cloud:       cloud,
		urlClient:   urlClient,
		urlParallel: urlParallel,
	}
}

type importURLsRequest struct {
	URLs []string `json:"urls"`
}

type importCloudRequest struct {
	Bucket  string   `json:"bucket"`
	Objects []string `json:"objects"`
}

// HandleUpload accepts multipart files from the local picker or drop zone.
// The optional "method" form field distinguishes the two channels.
func (h *IngestHandlerImpl) HandleUpload(c echo.Context) error {
	wf, apiErr := resolveWorkflow(c, h.workflows)
	if apiErr != nil {
		return apiErr
	}

	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("invalid multipart form", err)
	}
	files := form.File["files"]
	if len(files) == 0 {
		return NewValidationError("files")
	}

	var src ingest.Source
	switch method := c.FormValue("method"); method {
	case "", string(models.MethodLocalPicker):
		src = ingest.NewLocalPickerSource(files)
	case string(models.MethodDropZone):
		src = ingest.NewDropZoneSource(files)
	default:
		return NewValidationError("method")
	}

	return h.ingest(c, wf, src)
}

// HandleImportURLs queues remote files for download by URL
func (h *IngestHandlerImpl) HandleImportURLs(c echo.Context) error {
	wf, apiErr := resolveWorkflow(c, h.workflows)
	if apiErr != nil {
		return apiErr
	}

	var req importURLsRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if len(req.URLs) == 0 {
		return NewValidationError("urls")
	}

	return h.ingest(c, wf, ingest.NewURLSource(h.urlClient, req.URLs, h.urlParallel))
}

// HandleImportCloud queues objects from the configured cloud bucket
func (h *IngestHandlerImpl) HandleImportCloud(c echo.Context) error {
	wf, apiErr := resolveWorkflow(c, h.workflows)
	if apiErr != nil {
		return apiErr
	}

	if h.cloud == nil {
		return NewServiceUnavailableError("cloud connector is not configured")
	}

	var req importCloudRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Bucket == "" {
		return NewValidationError("bucket")
	}
	if len(req.Objects) == 0 {
		return NewValidationError("objects")
	}

	return h.ingest(c, wf, ingest.NewCloudSource(h.cloud, req.Bucket, req.Objects))
}

func (h *IngestHandlerImpl) ingest(c echo.Context, wf *session.Workflow, src ingest.Source) error {
	wf.SelectMethod(src.Method())

	ids, err := h.pipeline.Ingest(wf, src)
	if err != nil {
		return NewBadRequestError("ingestion failed", err)
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"fileIds": ids,
		"method":  src.Method(),
	})
}
