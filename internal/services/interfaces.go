// Package services defines the external collaborators the pipeline calls
// into: byte transfer, model registration, drift analysis, and patch
// synthesis/validation. The algorithms behind the analysis services are
// opaque to this backend; only their result records matter here.
package services

import (
	"context"

	"github.com/driftgate/backend/internal/ingest"
	"github.com/driftgate/backend/internal/models"
	"github.com/driftgate/backend/internal/storage"
)

// ParsedModel is what validation extracted from a model artifact, handed to
// the registry service for registration.
type ParsedModel struct {
	Name      string `json:"name"`
	Format    string `json:"format"`
	SizeBytes int64  `json:"sizeBytes"`
}

// ParsedDataset is what validation extracted from a dataset artifact.
type ParsedDataset struct {
	FileID  string   `json:"fileId"`
	Name    string   `json:"name"`
	Format  string   `json:"format"`
	Path    string   `json:"path"`
	Columns []string `json:"columns,omitempty"`
}

// Transfer moves one file's bytes from its ingestion reference into local
// artifact storage. One call per file; cancellable only before it starts.
type Transfer interface {
	Upload(ctx context.Context, fileID string, ref ingest.FileRef, onProgress storage.ProgressFunc) (int64, error)
}

// ModelRegistry registers a parsed model and returns the canonical MLModel.
type ModelRegistry interface {
	Register(ctx context.Context, parsed ParsedModel) (*models.MLModel, error)
}

// DriftDetection compares a dataset against the active model.
type DriftDetection interface {
	Analyze(ctx context.Context, active models.MLModel, dataset ParsedDataset) (*models.DriftResult, error)
}

// PatchSynthesis proposes a corrective patch for detected drift. A nil patch
// with a nil error means synthesis declined: drift found, no patch available.
type PatchSynthesis interface {
	Synthesize(ctx context.Context, active models.MLModel, drift models.DriftResult) (*models.Patch, error)
}

// PatchValidation checks a synthesized patch and scores its safety.
type PatchValidation interface {
	Validate(ctx context.Context, patch models.Patch) (*models.ValidationResult, error)
}
