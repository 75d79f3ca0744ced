// Package pipeline drives each registered file through its lifecycle:
// queued -> uploading -> processing -> processed/failed. Every file gets its
// own worker goroutine; a semaphore bounds how many transfers run at once,
// and one file's failure never touches its siblings.
package pipeline

import (
	"context"
	"fmt"

	"github.com/driftgate/backend/internal/ingest"
	"github.com/driftgate/backend/internal/models"
	"github.com/driftgate/backend/internal/registry"
	"github.com/driftgate/backend/internal/services"
	"github.com/driftgate/backend/internal/sniff"
	"github.com/driftgate/backend/internal/storage"
)

// Lifecycle progress checkpoints. Transfer fills the seed value up to 0.5
// byte-linearly; processing advances in stages from 0.5 to 1.0.
const (
	progressStarted   = 0.01
	progressUploaded  = 0.5
	progressValidated = 0.6
	progressAnalyzing = 0.7
	progressAnalyzed  = 0.8
	progressPatching  = 0.9
)

// Sink is the workflow-side surface the pipeline writes results into. The
// session package implements it; using an interface here keeps the pipeline
// free of session bookkeeping.
type Sink interface {
	Registry() *registry.Registry
	Context() context.Context
	// ActiveModel returns the model drift comparisons run against, if any.
	ActiveModel() (models.MLModel, bool)
	AttachModel(model models.MLModel)
	AttachDriftReport(drift models.DriftResult, patch *models.Patch)
	SetSuccess(msg string)
	SetError(msg string)
}

// Deps are the external collaborators a pipeline invokes.
type Deps struct {
	Transfer   services.Transfer
	Models     services.ModelRegistry
	Drift      services.DriftDetection
	Synthesis  services.PatchSynthesis
	Validation services.PatchValidation
	Store      storage.Store
}

// Pipeline coordinates per-file workers across all workflows.
type Pipeline struct {
	deps  Deps
	slots chan bool // bounds concurrent transfers
}

// New creates a pipeline with at most maxConcurrentTransfers files in the
// uploading state at once.
func New(deps Deps, maxConcurrentTransfers int) *Pipeline {
	if maxConcurrentTransfers < 1 {
		maxConcurrentTransfers = 1
	}
	return &Pipeline{
		deps:  deps,
		slots: make(chan bool, maxConcurrentTransfers),
	}
}

// Ingest registers every reference the source produces and starts a worker
// per file. It returns the assigned file ids in batch order; files advance
// independently from here on.
func (p *Pipeline) Ingest(wf Sink, source ingest.Source) ([]string, error) {
	refs, err := source.Produce(wf.Context())
	if err != nil {
		return nil, fmt.Errorf("producing references: %w", err)
	}

	reg := wf.Registry()
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		id := reg.Register(ref.Name, ingest.SizeDisplay(ref.Size), sniff.IsModelName(ref.Name), source.Method())
		ids = append(ids, id)
	}

	for i, id := range ids {
		go p.runFile(wf, id, refs[i])
	}

	fmt.Printf("[Pipeline] Ingested %d file(s) via %s\n", len(ids), source.Method())
	return ids, nil
}

// runFile drives one file to a terminal state.
func (p *Pipeline) runFile(wf Sink, id string, ref ingest.FileRef) {
	reg := wf.Registry()

	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("[Pipeline %s] PANIC recovered: %v\n", short(id), r)
			p.fail(wf, id, models.FailureAnalysisService, fmt.Sprintf("processing panicked: %v", r))
		}
	}()

	// Wait for a transfer slot; a torn-down workflow abandons queued files.
	select {
	case p.slots <- true:
	case <-wf.Context().Done():
		return
	}

	if err := reg.UpdateStatus(id, models.StatusUploading); err != nil {
		// Record was removed while queued; give the slot back and stop.
		<-p.slots
		return
	}
	// An in-flight transfer always shows some progress, even before the
	// first byte callback or when the source size is unknown.
	reg.SetProgress(id, progressStarted)

	written, err := p.deps.Transfer.Upload(wf.Context(), id, ref, func(done, total int64) {
		if total <= 0 {
			return
		}
		frac := float64(done) / float64(total) * progressUploaded
		if frac > progressUploaded-0.01 {
			frac = progressUploaded - 0.01
		}
		if frac < progressStarted {
			frac = progressStarted
		}
		reg.SetProgress(id, frac)
	})
	<-p.slots

	if err != nil {
		fmt.Printf("[Pipeline %s] Transfer failed: %v\n", short(id), err)
		p.fail(wf, id, models.FailureTransfer, fmt.Sprintf("transfer failed for %s: %v", ref.Name, err))
		return
	}

	if err := reg.UpdateStatus(id, models.StatusProcessing); err != nil {
		return
	}
	reg.SetProgress(id, progressUploaded)
	fmt.Printf("[Pipeline %s] Transferred %s (%d bytes)\n", short(id), ref.Name, written)

	rec, err := reg.Get(id)
	if err != nil {
		return
	}

	head, err := p.deps.Store.Head(id, sniff.HeadSize)
	if err != nil {
		p.fail(wf, id, models.FailureFormat, fmt.Sprintf("cannot read %s: %v", ref.Name, err))
		return
	}

	det := sniff.Detect(ref.Name, head)
	if det.Kind == sniff.KindUnknown {
		p.fail(wf, id, models.FailureFormat, fmt.Sprintf("unrecognized format for %s", ref.Name))
		return
	}
	if (det.Kind == sniff.KindModel) != rec.IsModel {
		p.fail(wf, id, models.FailureFormat, fmt.Sprintf("content of %s does not match its extension", ref.Name))
		return
	}

	reg.SetFormat(id, det.Format)
	reg.SetProgress(id, progressValidated)

	if rec.IsModel {
		p.processModel(wf, id, ref, det.Format, written)
	} else {
		p.processDataset(wf, id, ref, det.Format)
	}
}

// processModel registers a validated model artifact and makes it the active
// model for subsequent drift comparisons.
func (p *Pipeline) processModel(wf Sink, id string, ref ingest.FileRef, format string, size int64) {
	reg := wf.Registry()

	parsed := services.ParsedModel{
		Name:      modelName(ref.Name),
		Format:    format,
		SizeBytes: size,
	}
	reg.SetProgress(id, progressAnalyzing)

	model, err := p.deps.Models.Register(wf.Context(), parsed)
	if err != nil {
		p.fail(wf, id, models.FailureAnalysisService, fmt.Sprintf("model registration failed for %s: %v", ref.Name, err))
		return
	}

	wf.AttachModel(*model)
	if err := reg.UpdateStatus(id, models.StatusProcessed); err != nil {
		return
	}
	wf.SetSuccess(fmt.Sprintf("Model %s v%s registered", model.Name, model.Version))
	fmt.Printf("[Pipeline %s] Model registered: %s v%s\n", short(id), model.Name, model.Version)
}

// processDataset runs drift analysis against the active model and, when
// drift is detected, the patch synthesis/validation chain. The active model
// is resolved once, here; a model registered later never swaps underneath an
// analysis already in flight.
func (p *Pipeline) processDataset(wf Sink, id string, ref ingest.FileRef, format string) {
	reg := wf.Registry()

	active, ok := wf.ActiveModel()
	if !ok {
		// Fail fast rather than wait for a model that may never arrive.
		p.fail(wf, id, models.FailureNoActiveModel,
			fmt.Sprintf("no model registered to compare %s against; upload a model first", ref.Name))
		return
	}

	columns, err := extractDatasetColumns(p.deps.Store, id, format)
	if err != nil {
		p.fail(wf, id, models.FailureFormat, fmt.Sprintf("cannot read schema of %s: %v", ref.Name, err))
		return
	}
	if missing := missingFeatures(active.InputFeatures, columns); len(missing) > 0 {
		p.fail(wf, id, models.FailureSchemaMismatch,
			fmt.Sprintf("%s is missing model input features: %v", ref.Name, missing))
		return
	}

	path, err := p.deps.Store.Path(id)
	if err != nil {
		p.fail(wf, id, models.FailureTransfer, fmt.Sprintf("artifact for %s unavailable: %v", ref.Name, err))
		return
	}

	reg.SetProgress(id, progressAnalyzing)

	dataset := services.ParsedDataset{
		FileID:  id,
		Name:    ref.Name,
		Format:  format,
		Path:    path,
		Columns: columns,
	}
	drift, err := p.deps.Drift.Analyze(wf.Context(), active, dataset)
	if err != nil {
		p.fail(wf, id, models.FailureAnalysisService, fmt.Sprintf("drift analysis failed for %s: %v", ref.Name, err))
		return
	}
	reg.SetProgress(id, progressAnalyzed)

	var patch *models.Patch
	if drift.IsDriftDetected {
		patch, err = p.synthesizePatch(wf, id, active, *drift)
		if err != nil {
			p.fail(wf, id, models.FailureAnalysisService, fmt.Sprintf("patch pipeline failed for %s: %v", ref.Name, err))
			return
		}
	}

	wf.AttachDriftReport(*drift, patch)
	if err := reg.UpdateStatus(id, models.StatusProcessed); err != nil {
		return
	}

	if drift.IsDriftDetected {
		wf.SetSuccess(fmt.Sprintf("Drift detected in %s (score %.2f)", ref.Name, drift.DriftScore))
	} else {
		wf.SetSuccess(fmt.Sprintf("No drift detected in %s", ref.Name))
	}
	fmt.Printf("[Pipeline %s] Dataset analyzed: %s (drift=%v score=%.2f)\n",
		short(id), ref.Name, drift.IsDriftDetected, drift.DriftScore)
}

// synthesizePatch runs synthesis then validation. A nil patch means the
// synthesis service declined; the validation verdict is attached to the
// patch either way, it never discards one.
func (p *Pipeline) synthesizePatch(wf Sink, id string, active models.MLModel, drift models.DriftResult) (*models.Patch, error) {
	wf.Registry().SetProgress(id, progressPatching)

	patch, err := p.deps.Synthesis.Synthesize(wf.Context(), active, drift)
	if err != nil {
		return nil, fmt.Errorf("synthesis: %w", err)
	}
	if patch == nil {
		fmt.Printf("[Pipeline %s] Synthesis declined, no patch\n", short(id))
		return nil, nil
	}

	result, err := p.deps.Validation.Validate(wf.Context(), *patch)
	if err != nil {
		return nil, fmt.Errorf("validation: %w", err)
	}

	patch.ValidationResult = result
	if result.Passed {
		patch.Status = models.PatchStatusValidated
	} else {
		patch.Status = models.PatchStatusRejected
	}
	return patch, nil
}

// fail resolves one file to the failed state and surfaces the message on the
// session, leaving all sibling files untouched.
func (p *Pipeline) fail(wf Sink, id string, kind models.FailureKind, message string) {
	if err := wf.Registry().MarkFailed(id, kind, message); err != nil {
		return
	}
	wf.SetError(message)
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
