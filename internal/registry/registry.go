package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/driftgate/backend/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no record exists for a file id.
	ErrNotFound = errors.New("file not found")
	// ErrConflict is returned when removal is attempted on an in-flight file.
	ErrConflict = errors.New("file still in flight")
	// ErrBadTransition is returned for a status change the state machine forbids.
	ErrBadTransition = errors.New("invalid status transition")
)

// Registry is the single source of truth for uploaded-file lifecycle records.
// Listing order is ingestion order and is stable regardless of completion
// order. All mutation happens under the registry lock; readers receive copies
// and never observe a half-updated record.
type Registry struct {
	mu    sync.RWMutex
	files map[string]*models.UploadedFile
	order []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		files: make(map[string]*models.UploadedFile),
	}
}

// Register creates a record for an ingested reference and returns its id.
// IDs are never reused.
func (r *Registry) Register(name, sizeDisplay string, isModel bool, method models.IngestMethod) string {
	id := uuid.New().String()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.files[id] = &models.UploadedFile{
		ID:          id,
		Name:        name,
		SizeDisplay: sizeDisplay,
		IsModel:     isModel,
		Status:      models.StatusQueued,
		Method:      method,
		IngestedAt:  time.Now(),
	}
	r.order = append(r.order, id)

	return id
}

// Get returns a copy of the record for id.
func (r *Registry) Get(id string) (models.UploadedFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.files[id]
	if !ok {
		return models.UploadedFile{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *f, nil
}

// UpdateStatus advances a file's lifecycle state. Transitions out of a
// terminal state, or any other move the state machine forbids, are rejected.
func (r *Registry) UpdateStatus(id string, next models.ProcessingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.files[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !f.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, f.Status, next)
	}

	f.Status = next
	if next.Terminal() {
		f.Progress = 1.0
	}
	return nil
}

// SetProgress records per-file progress in [0,1]. Terminal records are left
// alone: progress is pinned to 1.0 once a file completes or fails.
func (r *Registry) SetProgress(id string, progress float64) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.files[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if f.Status.Terminal() {
		return nil
	}
	f.Progress = progress
	return nil
}

// SetFormat records the detected format tag. Set once, during validation.
func (r *Registry) SetFormat(id, format string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.files[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if f.Format == "" {
		f.Format = format
	}
	return nil
}

// MarkFailed resolves a file to the failed state with a classified,
// human-readable reason. Failing one file never touches its siblings.
func (r *Registry) MarkFailed(id string, kind models.FailureKind, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.files[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if f.Status.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, f.Status, models.StatusFailed)
	}

	f.Status = models.StatusFailed
	f.Progress = 1.0
	f.FailureKind = kind
	f.Error = message
	return nil
}

// Remove deletes a record. Files that are uploading or processing must reach
// a terminal state first; removing them returns ErrConflict so in-flight work
// is never lost.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.files[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if f.Status == models.StatusUploading || f.Status == models.StatusProcessing {
		return fmt.Errorf("%w: %s is %s", ErrConflict, id, f.Status)
	}

	delete(r.files, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns copies of all records in ingestion order.
func (r *Registry) List() []models.UploadedFile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.UploadedFile, 0, len(r.order))
	for _, id := range r.order {
		if f, ok := r.files[id]; ok {
			out = append(out, *f)
		}
	}
	return out
}

// Len returns the number of registered files.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.files)
}
