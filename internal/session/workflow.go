package session

import (
	"context"
	"sync"
	"time"

	"github.com/driftgate/backend/internal/models"
	"github.com/driftgate/backend/internal/progress"
	"github.com/driftgate/backend/internal/registry"
)

// Workflow is one upload workflow's state: the file registry, the latest
// completed result set, and the user-visible messages. It is an explicit,
// single-owner object created at workflow start and torn down on exit, never
// an ambient singleton.
type Workflow struct {
	ID        string
	CreatedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	files  *registry.Registry

	mu             sync.RWMutex
	selectedMethod models.IngestMethod
	lastAccessed   time.Time
	model          *models.MLModel
	drift          *models.DriftResult
	patch          *models.Patch
	errMsg         string
	successMsg     string
}

func newWorkflow(id string) *Workflow {
	ctx, cancel := context.WithCancel(context.Background())
	return &Workflow{
		ID:           id,
		CreatedAt:    time.Now(),
		ctx:          ctx,
		cancel:       cancel,
		files:        registry.New(),
		lastAccessed: time.Now(),
	}
}

// Registry returns the workflow's file registry.
func (w *Workflow) Registry() *registry.Registry { return w.files }

// Context is the workflow lifetime; teardown cancels it.
func (w *Workflow) Context() context.Context { return w.ctx }

// SelectMethod records which ingestion channel the workflow is using.
func (w *Workflow) SelectMethod(m models.IngestMethod) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.selectedMethod = m
}

// SelectedMethod returns the channel last used, or empty if none yet.
func (w *Workflow) SelectedMethod() models.IngestMethod {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.selectedMethod
}

// ActiveModel returns the model drift comparisons run against. Only one
// model is active at a time; the most recent registration wins for analyses
// that start after it.
func (w *Workflow) ActiveModel() (models.MLModel, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.model == nil || !w.model.IsActive {
		return models.MLModel{}, false
	}
	return *w.model, true
}

// AttachModel installs a freshly registered model as the active one.
// Previously attached drift results refer to the prior model and are
// cleared; analysis is never re-run retroactively.
func (w *Workflow) AttachModel(model models.MLModel) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.model = &model
	w.drift = nil
	w.patch = nil
}

// AttachDriftReport installs the latest drift result and optional patch.
func (w *Workflow) AttachDriftReport(drift models.DriftResult, patch *models.Patch) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.drift = &drift
	w.patch = patch
}

// SetSuccess replaces the user-visible messages with a success notice.
func (w *Workflow) SetSuccess(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.successMsg = msg
	w.errMsg = ""
}

// SetError replaces the user-visible messages with an error notice.
func (w *Workflow) SetError(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errMsg = msg
	w.successMsg = ""
}

// Messages returns the current error and success messages.
func (w *Workflow) Messages() (errMsg, successMsg string) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.errMsg, w.successMsg
}

// DismissMessages clears both messages together without touching file state.
func (w *Workflow) DismissMessages() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errMsg = ""
	w.successMsg = ""
}

// Progress aggregates the overall progress and phase flag across all files.
func (w *Workflow) Progress() progress.Overall {
	return progress.Compute(w.files.List())
}

// Project derives the external result projection from the workflow state.
func (w *Workflow) Project() models.ResultProjection {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return project(w.model, w.drift, w.patch)
}

// Touch refreshes the keep-alive timestamp.
func (w *Workflow) Touch() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastAccessed = time.Now()
}

// LastAccessed returns the keep-alive timestamp.
func (w *Workflow) LastAccessed() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastAccessed
}

// Settled reports whether every registered file reached a terminal state.
// A workflow with no files is not settled; it may still receive a batch.
func (w *Workflow) Settled() bool {
	files := w.files.List()
	if len(files) == 0 {
		return false
	}
	for _, f := range files {
		if !f.Status.Terminal() {
			return false
		}
	}
	return true
}

// teardown cancels the workflow context, abandoning queued work.
func (w *Workflow) teardown() {
	w.cancel()
}
