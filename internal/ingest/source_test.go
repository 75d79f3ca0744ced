package ingest

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/driftgate/backend/internal/models"
)

func TestSizeDisplay(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{0, "unknown"},
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, tt := range tests {
		if got := SizeDisplay(tt.size); got != tt.want {
			t.Errorf("SizeDisplay(%d): expected %q, got %q", tt.size, tt.want, got)
		}
	}
}

func TestURLSource_Produce(t *testing.T) {
	content := []byte("age,income\n1,2\n")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/data.csv" {
			http.NotFound(w, r)
			return
		}
		w.Write(content)
	}))
	defer srv.Close()

	src := NewURLSource(srv.Client(), []string{srv.URL + "/files/data.csv"}, 2)
	if src.Method() != models.MethodURLImport {
		t.Fatalf("wrong method: %s", src.Method())
	}

	refs, err := src.Produce(context.Background())
	if err != nil {
		t.Fatalf("produce failed: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("expected 1 ref, got %d", len(refs))
	}
	if refs[0].Name != "data.csv" {
		t.Errorf("expected name data.csv, got %s", refs[0].Name)
	}
	if refs[0].Size != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), refs[0].Size)
	}

	rc, err := refs[0].Open(context.Background())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if !bytes.Equal(got, content) {
		t.Errorf("content mismatch: %q", got)
	}
}

func TestURLSource_BoundedParallel(t *testing.T) {
	var inFlight, peak int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	urls := make([]string, 6)
	for i := range urls {
		urls[i] = srv.URL + "/f" + strconv.Itoa(i) + ".csv"
	}
	src := NewURLSource(srv.Client(), urls, 2)
	refs, err := src.Produce(context.Background())
	if err != nil {
		t.Fatalf("produce failed: %v", err)
	}
	if len(refs) != 6 {
		t.Fatalf("expected 6 refs, got %d", len(refs))
	}
	if p := atomic.LoadInt32(&peak); p > 2 {
		t.Errorf("expected at most 2 concurrent requests, saw %d", p)
	}
}

func TestURLSource_InvalidURL(t *testing.T) {
	src := NewURLSource(nil, []string{"ftp://example.com/x"}, 0)
	if _, err := src.Produce(context.Background()); err == nil {
		t.Fatalf("expected error for non-http scheme")
	}

	empty := NewURLSource(nil, nil, 0)
	if _, err := empty.Produce(context.Background()); err == nil {
		t.Fatalf("expected error for empty batch")
	}
}

func TestMultipartSource_Produce(t *testing.T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, _ := w.CreateFormFile("files", "model.tflite")
	part.Write([]byte("bytes"))
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("parse form: %v", err)
	}

	src := NewDropZoneSource(req.MultipartForm.File["files"])
	if src.Method() != models.MethodDropZone {
		t.Fatalf("wrong method: %s", src.Method())
	}

	refs, err := src.Produce(context.Background())
	if err != nil {
		t.Fatalf("produce failed: %v", err)
	}
	if len(refs) != 1 || refs[0].Name != "model.tflite" {
		t.Fatalf("unexpected refs: %+v", refs)
	}

	rc, err := refs[0].Open(context.Background())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "bytes" {
		t.Errorf("content mismatch: %q", got)
	}

	picker := NewLocalPickerSource(req.MultipartForm.File["files"])
	if picker.Method() != models.MethodLocalPicker {
		t.Errorf("wrong method: %s", picker.Method())
	}
}
