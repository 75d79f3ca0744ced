// handlers_observe_test.go - Tests for progress, result and message handlers
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/driftgate/backend/internal/ingest"
	"github.com/driftgate/backend/internal/models"
	"github.com/driftgate/backend/internal/progress"
	"github.com/driftgate/backend/internal/testutil"
)

func TestObserveHandler_HandleProgress(t *testing.T) {
	env := newTestEnv()
	handler := NewObserveHandler(env.workflows)
	wf, _ := env.workflows.Create()

	// Empty workflow reports zero
	req := httptest.NewRequest(http.MethodGet, "/progress", nil)
	c, rec := newWorkflowContext(req, wf.ID)
	if err := handler.HandleProgress(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var snap progress.Overall
	json.Unmarshal(rec.Body.Bytes(), &snap)
	if snap.Value != 0 {
		t.Errorf("expected zero progress, got %f", snap.Value)
	}

	// Settled workflow reports 1.0
	env.pipeline.Ingest(wf, &testutil.StaticSource{
		Refs: []ingest.FileRef{testutil.Ref("model.tflite", testutil.TFLiteBytes())},
	})
	waitWorkflowSettled(t, wf)

	req = httptest.NewRequest(http.MethodGet, "/progress", nil)
	c, rec = newWorkflowContext(req, wf.ID)
	if err := handler.HandleProgress(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	json.Unmarshal(rec.Body.Bytes(), &snap)
	if snap.Value != 1.0 {
		t.Errorf("expected progress 1.0, got %f", snap.Value)
	}
}

func TestObserveHandler_HandleResult(t *testing.T) {
	env := newTestEnv()
	handler := NewObserveHandler(env.workflows)
	wf, _ := env.workflows.Create()

	env.pipeline.Ingest(wf, &testutil.StaticSource{
		Refs: []ingest.FileRef{testutil.Ref("model.tflite", testutil.TFLiteBytes())},
	})
	waitWorkflowSettled(t, wf)

	req := httptest.NewRequest(http.MethodGet, "/result", nil)
	c, rec := newWorkflowContext(req, wf.ID)
	if err := handler.HandleResult(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp struct {
		Result  models.ResultProjection `json:"result"`
		Error   string                  `json:"error"`
		Success string                  `json:"success"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Result.Kind != models.ProjectionModelRegistered {
		t.Errorf("expected model_registered, got %s", resp.Result.Kind)
	}
	if resp.Success == "" {
		t.Error("expected a success message")
	}
	if resp.Error != "" {
		t.Errorf("unexpected error message: %s", resp.Error)
	}
}

func TestObserveHandler_HandleDismissMessages(t *testing.T) {
	env := newTestEnv()
	handler := NewObserveHandler(env.workflows)
	wf, _ := env.workflows.Create()
	wf.SetError("something broke")

	req := httptest.NewRequest(http.MethodPost, "/messages/dismiss", nil)
	c, rec := newWorkflowContext(req, wf.ID)
	if err := handler.HandleDismissMessages(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}

	errMsg, successMsg := wf.Messages()
	if errMsg != "" || successMsg != "" {
		t.Errorf("messages not cleared: %q %q", errMsg, successMsg)
	}
}

func TestObserveHandler_HandleProgressStream(t *testing.T) {
	env := newTestEnv()
	handler := NewObserveHandler(env.workflows)
	wf, _ := env.workflows.Create()

	env.pipeline.Ingest(wf, &testutil.StaticSource{
		Refs: []ingest.FileRef{testutil.Ref("model.tflite", testutil.TFLiteBytes())},
	})
	waitWorkflowSettled(t, wf)

	req := httptest.NewRequest(http.MethodGet, "/progress/stream", nil)
	c, rec := newWorkflowContext(req, wf.ID)
	if err := handler.HandleProgressStream(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("unexpected content type: %s", got)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "data: ") {
		t.Error("expected SSE data frames")
	}
	if !strings.Contains(body, `"progress":1`) {
		t.Errorf("expected terminal progress event, got: %s", body)
	}
}

func TestObserveHandler_HandleProgressStreamUnknownWorkflow(t *testing.T) {
	env := newTestEnv()
	handler := NewObserveHandler(env.workflows)

	req := httptest.NewRequest(http.MethodGet, "/progress/stream", nil)
	c, rec := newWorkflowContext(req, "missing")
	if err := handler.HandleProgressStream(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "workflow not found") {
		t.Errorf("expected not-found SSE error, got: %s", rec.Body.String())
	}
}
