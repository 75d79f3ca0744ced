// mocks.go - In-memory collaborators for testing
package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/driftgate/backend/internal/ingest"
	"github.com/driftgate/backend/internal/models"
	"github.com/driftgate/backend/internal/services"
	"github.com/driftgate/backend/internal/storage"
)

// MockStore implements storage.Store in memory.
type MockStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMockStore creates an empty in-memory artifact store.
func NewMockStore() *MockStore {
	return &MockStore{data: make(map[string][]byte)}
}

func (m *MockStore) Save(id string, r io.Reader, total int64, onProgress storage.ProgressFunc) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	if onProgress != nil {
		onProgress(int64(len(data)), total)
	}

	m.mu.Lock()
	m.data[id] = data
	m.mu.Unlock()
	return int64(len(data)), nil
}

func (m *MockStore) Path(id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.data[id]; !ok {
		return "", errors.New("artifact not found")
	}
	return "mock://" + id, nil
}

func (m *MockStore) Head(id string, n int) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[id]
	if !ok {
		return nil, errors.New("artifact not found")
	}
	if len(data) > n {
		return data[:n], nil
	}
	return data, nil
}

func (m *MockStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

// Bytes returns the stored content for assertions.
func (m *MockStore) Bytes(id string) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[id]
}

// StaticSource is an ingest.Source over in-memory refs.
type StaticSource struct {
	ChannelMethod models.IngestMethod
	Refs          []ingest.FileRef
	ProduceErr    error
}

func (s *StaticSource) Method() models.IngestMethod {
	if s.ChannelMethod == "" {
		return models.MethodDropZone
	}
	return s.ChannelMethod
}

func (s *StaticSource) Produce(ctx context.Context) ([]ingest.FileRef, error) {
	if s.ProduceErr != nil {
		return nil, s.ProduceErr
	}
	return s.Refs, nil
}

// Ref builds an in-memory file reference.
func Ref(name string, content []byte) ingest.FileRef {
	return ingest.FileRef{
		Name: name,
		Size: int64(len(content)),
		Open: func(ctx context.Context) (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

// BrokenRef builds a reference whose transfer always fails.
func BrokenRef(name string) ingest.FileRef {
	return ingest.FileRef{
		Name: name,
		Size: 100,
		Open: func(ctx context.Context) (io.ReadCloser, error) {
			return nil, fmt.Errorf("connection reset")
		},
	}
}

// TFLiteBytes returns a minimal buffer the sniffer accepts as tflite.
func TFLiteBytes() []byte {
	return append([]byte{0x1c, 0x00, 0x00, 0x00}, []byte("TFL3\x00\x00\x00\x00")...)
}

// MockAnalysis implements the four analysis service interfaces with
// overridable behavior. Zero value registers models and reports no drift.
type MockAnalysis struct {
	mu sync.Mutex

	RegisterFn   func(parsed services.ParsedModel) (*models.MLModel, error)
	AnalyzeFn    func(active models.MLModel, dataset services.ParsedDataset) (*models.DriftResult, error)
	SynthesizeFn func(active models.MLModel, drift models.DriftResult) (*models.Patch, error)
	ValidateFn   func(patch models.Patch) (*models.ValidationResult, error)

	RegisterCalls int
	AnalyzeCalls  int
}

func (m *MockAnalysis) Register(ctx context.Context, parsed services.ParsedModel) (*models.MLModel, error) {
	m.mu.Lock()
	m.RegisterCalls++
	fn := m.RegisterFn
	m.mu.Unlock()

	if fn != nil {
		return fn(parsed)
	}
	return &models.MLModel{
		Name:     parsed.Name,
		Version:  "1.0.0",
		IsActive: true,
	}, nil
}

func (m *MockAnalysis) Analyze(ctx context.Context, active models.MLModel, dataset services.ParsedDataset) (*models.DriftResult, error) {
	m.mu.Lock()
	m.AnalyzeCalls++
	fn := m.AnalyzeFn
	m.mu.Unlock()

	if fn != nil {
		return fn(active, dataset)
	}
	return &models.DriftResult{IsDriftDetected: false, DriftType: models.DriftTypeNone}, nil
}

func (m *MockAnalysis) Synthesize(ctx context.Context, active models.MLModel, drift models.DriftResult) (*models.Patch, error) {
	m.mu.Lock()
	fn := m.SynthesizeFn
	m.mu.Unlock()

	if fn != nil {
		return fn(active, drift)
	}
	return &models.Patch{PatchType: models.PatchTypeReweight, Status: models.PatchStatusSynthesized}, nil
}

func (m *MockAnalysis) Validate(ctx context.Context, patch models.Patch) (*models.ValidationResult, error) {
	m.mu.Lock()
	fn := m.ValidateFn
	m.mu.Unlock()

	if fn != nil {
		return fn(patch)
	}
	return &models.ValidationResult{Passed: true, SafetyScore: 0.9}, nil
}
