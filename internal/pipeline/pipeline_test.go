package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/driftgate/backend/internal/ingest"
	"github.com/driftgate/backend/internal/models"
	"github.com/driftgate/backend/internal/services"
	"github.com/driftgate/backend/internal/session"
	"github.com/driftgate/backend/internal/storage"
	"github.com/driftgate/backend/internal/testutil"
)

func newTestPipeline(analysis *testutil.MockAnalysis, maxTransfers int) (*Pipeline, *testutil.MockStore) {
	store := testutil.NewMockStore()
	p := New(Deps{
		Transfer:   services.NewLocalTransfer(store),
		Models:     analysis,
		Drift:      analysis,
		Synthesis:  analysis,
		Validation: analysis,
		Store:      store,
	}, maxTransfers)
	return p, store
}

func newTestWorkflow(t *testing.T) *session.Workflow {
	t.Helper()
	wf, err := session.NewManager().Create()
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	return wf
}

func oneRef(name string, content []byte) []ingest.FileRef {
	return []ingest.FileRef{testutil.Ref(name, content)}
}

// waitSettled polls until every file reached a terminal state.
func waitSettled(t *testing.T, wf *session.Workflow) {
	t.Helper()
	for i := 0; i < 100; i++ {
		files := wf.Registry().List()
		done := len(files) > 0
		for _, f := range files {
			if !f.Status.Terminal() {
				done = false
			}
		}
		if done {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("files never settled: %+v", wf.Registry().List())
}

func TestPipeline_ModelAlone(t *testing.T) {
	analysis := &testutil.MockAnalysis{}
	p, _ := newTestPipeline(analysis, 2)
	wf := newTestWorkflow(t)

	ids, err := p.Ingest(wf, &testutil.StaticSource{
		ChannelMethod: models.MethodLocalPicker,
		Refs:          oneRef("model.tflite", testutil.TFLiteBytes()),
	})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected 1 id, got %d", len(ids))
	}

	waitSettled(t, wf)

	f, _ := wf.Registry().Get(ids[0])
	if f.Status != models.StatusProcessed {
		t.Fatalf("expected processed, got %s (%s)", f.Status, f.Error)
	}
	if !f.IsModel || f.Format != "tflite" {
		t.Errorf("unexpected record: %+v", f)
	}

	got := wf.Project()
	if got.Kind != models.ProjectionModelRegistered {
		t.Fatalf("expected model_registered, got %s", got.Kind)
	}
	if got.Drift != nil || got.Patch != nil {
		t.Errorf("no drift fields may be set")
	}
	if got.Model.Name != "model" || got.Model.Version != "1.0.0" {
		t.Errorf("unexpected model: %+v", got.Model)
	}

	overall := wf.Progress()
	if overall.Value != 1.0 {
		t.Errorf("expected progress 1.0, got %f", overall.Value)
	}
}

func TestPipeline_DatasetWithDriftAndPatch(t *testing.T) {
	analysis := &testutil.MockAnalysis{
		AnalyzeFn: func(active models.MLModel, dataset services.ParsedDataset) (*models.DriftResult, error) {
			return &models.DriftResult{
				IsDriftDetected: true,
				DriftScore:      0.82,
				DriftType:       models.DriftTypeCovariate,
				FeatureDrifts:   []models.FeatureDrift{{Feature: "income", Drifted: true, Score: 0.9}},
			}, nil
		},
		ValidateFn: func(patch models.Patch) (*models.ValidationResult, error) {
			return &models.ValidationResult{Passed: true, SafetyScore: 0.65}, nil
		},
	}
	p, _ := newTestPipeline(analysis, 2)
	wf := newTestWorkflow(t)

	// Register a model first, then its companion dataset.
	p.Ingest(wf, &testutil.StaticSource{Refs: oneRef("fraud.tflite", testutil.TFLiteBytes())})
	waitSettled(t, wf)

	p.Ingest(wf, &testutil.StaticSource{Refs: oneRef("data.csv", []byte("age,income\n30,50000\n"))})
	waitSettled(t, wf)

	got := wf.Project()
	if got.Kind != models.ProjectionFullReport {
		t.Fatalf("expected full_report, got %s", got.Kind)
	}
	if got.Drift == nil || got.Drift.DriftScore != 0.82 {
		t.Fatalf("unexpected drift: %+v", got.Drift)
	}
	if got.Patch == nil {
		t.Fatalf("expected attached patch")
	}
	if got.Patch.Status != models.PatchStatusValidated {
		t.Errorf("expected validated patch, got %s", got.Patch.Status)
	}
	if got.Patch.ValidationResult == nil || got.Patch.ValidationResult.SafetyScore != 0.65 {
		t.Errorf("unexpected validation: %+v", got.Patch.ValidationResult)
	}
}

func TestPipeline_DriftWithoutPatch(t *testing.T) {
	// Synthesis declining still yields a valid full report, just patchless.
	analysis := &testutil.MockAnalysis{
		AnalyzeFn: func(active models.MLModel, dataset services.ParsedDataset) (*models.DriftResult, error) {
			return &models.DriftResult{IsDriftDetected: true, DriftScore: 0.7, DriftType: models.DriftTypeLabel}, nil
		},
		SynthesizeFn: func(active models.MLModel, drift models.DriftResult) (*models.Patch, error) {
			return nil, nil
		},
	}
	p, _ := newTestPipeline(analysis, 2)
	wf := newTestWorkflow(t)

	p.Ingest(wf, &testutil.StaticSource{Refs: oneRef("m.tflite", testutil.TFLiteBytes())})
	waitSettled(t, wf)
	p.Ingest(wf, &testutil.StaticSource{Refs: oneRef("data.csv", []byte("a,b\n1,2\n"))})
	waitSettled(t, wf)

	got := wf.Project()
	if got.Kind != models.ProjectionFullReport {
		t.Fatalf("expected full_report, got %s", got.Kind)
	}
	if got.Patch != nil {
		t.Errorf("expected no patch when synthesis declines")
	}
}

func TestPipeline_DatasetWithoutModelFailsFast(t *testing.T) {
	analysis := &testutil.MockAnalysis{}
	p, _ := newTestPipeline(analysis, 2)
	wf := newTestWorkflow(t)

	ids, _ := p.Ingest(wf, &testutil.StaticSource{Refs: oneRef("data.csv", []byte("a,b\n1,2\n"))})
	waitSettled(t, wf)

	f, _ := wf.Registry().Get(ids[0])
	if f.Status != models.StatusFailed {
		t.Fatalf("expected failed, got %s", f.Status)
	}
	if f.FailureKind != models.FailureNoActiveModel {
		t.Errorf("expected no_active_model, got %s", f.FailureKind)
	}
	if got := wf.Project(); got.Kind != models.ProjectionEmpty {
		t.Errorf("result must stay empty, got %s", got.Kind)
	}
	if overall := wf.Progress(); overall.Value != 1.0 {
		t.Errorf("progress must still reach 1.0, got %f", overall.Value)
	}
	if analysis.AnalyzeCalls != 0 {
		t.Errorf("analysis must not be invoked without a model")
	}
}

func TestPipeline_ErrorIsolation(t *testing.T) {
	// Three files, the middle one fails transfer. The other two complete
	// regardless of finish order.
	analysis := &testutil.MockAnalysis{}
	p, _ := newTestPipeline(analysis, 3)
	wf := newTestWorkflow(t)

	src := &testutil.StaticSource{Refs: []ingest.FileRef{
		testutil.Ref("one.tflite", testutil.TFLiteBytes()),
		testutil.BrokenRef("two.tflite"),
		testutil.Ref("three.tflite", testutil.TFLiteBytes()),
	}}
	ids, err := p.Ingest(wf, src)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	waitSettled(t, wf)

	var failed, processed int
	for i, id := range ids {
		f, gerr := wf.Registry().Get(id)
		if gerr != nil {
			t.Fatalf("file %d missing: %v", i, gerr)
		}
		switch f.Status {
		case models.StatusFailed:
			failed++
			if f.FailureKind != models.FailureTransfer {
				t.Errorf("expected transfer failure, got %s", f.FailureKind)
			}
		case models.StatusProcessed:
			processed++
		default:
			t.Errorf("file %d not terminal: %s", i, f.Status)
		}
	}
	if failed != 1 || processed != 2 {
		t.Fatalf("expected 1 failed / 2 processed, got %d / %d", failed, processed)
	}

	// Listing order is ingestion order regardless of completion order.
	list := wf.Registry().List()
	for i, f := range list {
		if f.ID != ids[i] {
			t.Errorf("ordering broken at %d", i)
		}
	}
}

func TestPipeline_SchemaMismatch(t *testing.T) {
	analysis := &testutil.MockAnalysis{
		RegisterFn: func(parsed services.ParsedModel) (*models.MLModel, error) {
			return &models.MLModel{
				Name: parsed.Name, Version: "1.0.0", IsActive: true,
				InputFeatures: []string{"age", "income"},
			}, nil
		},
	}
	p, _ := newTestPipeline(analysis, 2)
	wf := newTestWorkflow(t)

	p.Ingest(wf, &testutil.StaticSource{Refs: oneRef("m.tflite", testutil.TFLiteBytes())})
	waitSettled(t, wf)

	ids, _ := p.Ingest(wf, &testutil.StaticSource{Refs: oneRef("data.csv", []byte("age,height\n30,180\n"))})
	waitSettled(t, wf)

	f, _ := wf.Registry().Get(ids[0])
	if f.FailureKind != models.FailureSchemaMismatch {
		t.Fatalf("expected schema_mismatch, got %s (%s)", f.FailureKind, f.Error)
	}
	if got := wf.Project(); got.Kind != models.ProjectionModelRegistered {
		t.Errorf("model registration must survive a dataset failure")
	}
}

func TestPipeline_UnrecognizedFormat(t *testing.T) {
	analysis := &testutil.MockAnalysis{}
	p, _ := newTestPipeline(analysis, 2)
	wf := newTestWorkflow(t)

	ids, _ := p.Ingest(wf, &testutil.StaticSource{Refs: oneRef("blob", []byte{0x00, 0x01, 0xff})})
	waitSettled(t, wf)

	f, _ := wf.Registry().Get(ids[0])
	if f.FailureKind != models.FailureFormat {
		t.Fatalf("expected format_unrecognized, got %s", f.FailureKind)
	}
}

func TestPipeline_AnalysisServiceFailure(t *testing.T) {
	analysis := &testutil.MockAnalysis{
		AnalyzeFn: func(active models.MLModel, dataset services.ParsedDataset) (*models.DriftResult, error) {
			return nil, fmt.Errorf("service overloaded")
		},
	}
	p, _ := newTestPipeline(analysis, 2)
	wf := newTestWorkflow(t)

	p.Ingest(wf, &testutil.StaticSource{Refs: oneRef("m.tflite", testutil.TFLiteBytes())})
	waitSettled(t, wf)
	ids, _ := p.Ingest(wf, &testutil.StaticSource{Refs: oneRef("data.csv", []byte("a,b\n1,2\n"))})
	waitSettled(t, wf)

	f, _ := wf.Registry().Get(ids[0])
	if f.FailureKind != models.FailureAnalysisService {
		t.Fatalf("expected analysis_service_failure, got %s", f.FailureKind)
	}
	errMsg, _ := wf.Messages()
	if errMsg == "" {
		t.Errorf("expected workflow error message")
	}
}

func TestPipeline_ModelRegistrationPayload(t *testing.T) {
	var got services.ParsedModel
	analysis := &testutil.MockAnalysis{
		RegisterFn: func(parsed services.ParsedModel) (*models.MLModel, error) {
			got = parsed
			return &models.MLModel{Name: parsed.Name, Version: "1.0.0", IsActive: true}, nil
		},
	}
	p, _ := newTestPipeline(analysis, 2)
	wf := newTestWorkflow(t)

	p.Ingest(wf, &testutil.StaticSource{Refs: oneRef("fraud-net.tflite", testutil.TFLiteBytes())})
	waitSettled(t, wf)

	if got.Name != "fraud-net" {
		t.Errorf("expected name fraud-net, got %q", got.Name)
	}
	if got.Format != "tflite" {
		t.Errorf("expected format tflite, got %q", got.Format)
	}
	if got.SizeBytes != int64(len(testutil.TFLiteBytes())) {
		t.Errorf("expected size %d, got %d", len(testutil.TFLiteBytes()), got.SizeBytes)
	}
}

// gatedTransfer blocks uploads until released, without ever reporting bytes.
type gatedTransfer struct {
	store   storage.Store
	started chan struct{}
	release chan struct{}
}

func (g gatedTransfer) Upload(ctx context.Context, fileID string, ref ingest.FileRef, onProgress storage.ProgressFunc) (int64, error) {
	close(g.started)
	<-g.release
	rc, err := ref.Open(ctx)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	return g.store.Save(fileID, rc, ref.Size, nil)
}

func TestPipeline_UploadingShowsProgress(t *testing.T) {
	// A file mid-transfer must read as nonzero in the aggregate, even when
	// the source size is unknown so no byte callbacks ever fire. Zero is
	// reserved for an all-queued workflow.
	analysis := &testutil.MockAnalysis{}
	store := testutil.NewMockStore()
	gate := gatedTransfer{store: store, started: make(chan struct{}), release: make(chan struct{})}
	p := New(Deps{
		Transfer: gate,
		Models:   analysis, Drift: analysis, Synthesis: analysis, Validation: analysis,
		Store: store,
	}, 2)
	wf := newTestWorkflow(t)

	ref := testutil.Ref("model.tflite", testutil.TFLiteBytes())
	ref.Size = 0 // channel could not determine size up front
	ids, err := p.Ingest(wf, &testutil.StaticSource{Refs: []ingest.FileRef{ref}})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	<-gate.started
	f, _ := wf.Registry().Get(ids[0])
	if f.Status != models.StatusUploading {
		t.Fatalf("expected uploading, got %s", f.Status)
	}
	if overall := wf.Progress(); overall.Value <= 0 {
		t.Errorf("expected nonzero progress while uploading, got %f", overall.Value)
	}

	close(gate.release)
	waitSettled(t, wf)
	if overall := wf.Progress(); overall.Value != 1.0 {
		t.Errorf("expected progress 1.0 after settle, got %f", overall.Value)
	}
}

// slowTransfer counts concurrent uploads to verify the slot bound.
type slowTransfer struct {
	store    storage.Store
	inFlight *int32
	peak     *int32
}

func (s slowTransfer) Upload(ctx context.Context, fileID string, ref ingest.FileRef, onProgress storage.ProgressFunc) (int64, error) {
	cur := atomic.AddInt32(s.inFlight, 1)
	defer atomic.AddInt32(s.inFlight, -1)
	for {
		old := atomic.LoadInt32(s.peak)
		if cur <= old || atomic.CompareAndSwapInt32(s.peak, old, cur) {
			break
		}
	}
	time.Sleep(30 * time.Millisecond)

	rc, err := ref.Open(ctx)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	return s.store.Save(fileID, rc, ref.Size, onProgress)
}

func TestPipeline_TransferSlotsBounded(t *testing.T) {
	var inFlight, peak int32
	analysis := &testutil.MockAnalysis{}
	store := testutil.NewMockStore()
	p := New(Deps{
		Transfer: slowTransfer{store: store, inFlight: &inFlight, peak: &peak},
		Models:   analysis, Drift: analysis, Synthesis: analysis, Validation: analysis,
		Store: store,
	}, 2)
	wf := newTestWorkflow(t)

	refs := make([]ingest.FileRef, 6)
	for i := range refs {
		refs[i] = testutil.Ref(fmt.Sprintf("m%d.tflite", i), testutil.TFLiteBytes())
	}
	p.Ingest(wf, &testutil.StaticSource{Refs: refs})
	waitSettled(t, wf)

	if got := atomic.LoadInt32(&peak); got > 2 {
		t.Fatalf("transfer bound exceeded: peak %d", got)
	}
}
