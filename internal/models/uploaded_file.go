package models

import "time"

// ProcessingStatus represents the lifecycle state of an uploaded file.
type ProcessingStatus string

const (
	StatusQueued     ProcessingStatus = "queued"
	StatusUploading  ProcessingStatus = "uploading"
	StatusProcessing ProcessingStatus = "processing"
	StatusProcessed  ProcessingStatus = "processed"
	StatusFailed     ProcessingStatus = "failed"
)

// Terminal reports whether no further automatic transition occurs.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

// CanTransitionTo reports whether the state machine permits moving to next.
// Allowed: queued -> uploading -> processing -> {processed | failed},
// plus uploading -> failed for transfer errors. Terminal states never leave.
func (s ProcessingStatus) CanTransitionTo(next ProcessingStatus) bool {
	switch s {
	case StatusQueued:
		return next == StatusUploading
	case StatusUploading:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusProcessed || next == StatusFailed
	default:
		return false
	}
}

// FailureKind classifies why a file ended in the failed state.
type FailureKind string

const (
	FailureTransfer        FailureKind = "transfer_failure"
	FailureFormat          FailureKind = "format_unrecognized"
	FailureSchemaMismatch  FailureKind = "schema_mismatch"
	FailureNoActiveModel   FailureKind = "no_active_model"
	FailureAnalysisService FailureKind = "analysis_service_failure"
)

// IngestMethod identifies which of the four ingestion channels supplied a file.
type IngestMethod string

const (
	MethodLocalPicker    IngestMethod = "local_picker"
	MethodCloudConnector IngestMethod = "cloud_connector"
	MethodURLImport      IngestMethod = "url_import"
	MethodDropZone       IngestMethod = "drop_zone"
)

// ValidIngestMethod reports whether m is one of the four known channels.
func ValidIngestMethod(m IngestMethod) bool {
	switch m {
	case MethodLocalPicker, MethodCloudConnector, MethodURLImport, MethodDropZone:
		return true
	}
	return false
}

// UploadedFile is the canonical per-artifact lifecycle record.
type UploadedFile struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	SizeDisplay string           `json:"sizeDisplay"`
	IsModel     bool             `json:"isModel"`
	Format      string           `json:"format,omitempty"`
	Status      ProcessingStatus `json:"processingStatus"`
	Progress    float64          `json:"progress"` // 0.0-1.0 within the whole lifecycle
	FailureKind FailureKind      `json:"failureKind,omitempty"`
	Error       string           `json:"error,omitempty"`
	Method      IngestMethod     `json:"method"`
	IngestedAt  time.Time        `json:"ingestedAt"`
}

// Processed is derived: true iff the file reached the processed state.
func (f *UploadedFile) Processed() bool {
	return f.Status == StatusProcessed
}
