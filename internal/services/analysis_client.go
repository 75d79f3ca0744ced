package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/driftgate/backend/internal/models"
)

// AnalysisClient talks to the analysis suite over HTTP/JSON. It implements
// ModelRegistry, DriftDetection, PatchSynthesis and PatchValidation against
// one base URL. No timeout beyond the HTTP client's: bounding a stuck call is
// the analysis service's responsibility.
type AnalysisClient struct {
	baseURL string
	client  *http.Client
}

// NewAnalysisClient creates a client for the analysis suite at baseURL.
func NewAnalysisClient(baseURL string, timeout time.Duration) *AnalysisClient {
	return &AnalysisClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// WaitReady probes the service health endpoint with exponential backoff
// until it answers or the deadline passes. Called once at startup.
func (c *AnalysisClient) WaitReady(maxElapsed time.Duration) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = maxElapsed

	return backoff.Retry(func() error {
		resp, err := c.client.Get(c.baseURL + "/healthz")
		if err != nil {
			fmt.Printf("[Analysis] Not ready yet: %v\n", err)
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("health status %d", resp.StatusCode)
			fmt.Printf("[Analysis] Not ready yet: %v\n", err)
			return err
		}
		return nil
	}, policy)
}

// Register implements ModelRegistry.
func (c *AnalysisClient) Register(ctx context.Context, parsed ParsedModel) (*models.MLModel, error) {
	var model models.MLModel
	if err := c.post(ctx, "/v1/models/register", parsed, &model); err != nil {
		return nil, err
	}
	return &model, nil
}

type analyzeRequest struct {
	Model   models.MLModel `json:"model"`
	Dataset ParsedDataset  `json:"dataset"`
}

// Analyze implements DriftDetection.
func (c *AnalysisClient) Analyze(ctx context.Context, active models.MLModel, dataset ParsedDataset) (*models.DriftResult, error) {
	var result models.DriftResult
	if err := c.post(ctx, "/v1/drift/analyze", analyzeRequest{Model: active, Dataset: dataset}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type synthesizeRequest struct {
	Model models.MLModel     `json:"model"`
	Drift models.DriftResult `json:"drift"`
}

// Synthesize implements PatchSynthesis. A 204 from the service means it
// declined to propose a patch, reported here as (nil, nil).
func (c *AnalysisClient) Synthesize(ctx context.Context, active models.MLModel, drift models.DriftResult) (*models.Patch, error) {
	body, err := json.Marshal(synthesizeRequest{Model: active, Drift: drift})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/patches/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling synthesize: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil, nil
	case http.StatusOK:
		var patch models.Patch
		if err := json.NewDecoder(resp.Body).Decode(&patch); err != nil {
			return nil, fmt.Errorf("decoding patch: %w", err)
		}
		return &patch, nil
	default:
		return nil, serviceError("synthesize", resp)
	}
}

// Validate implements PatchValidation.
func (c *AnalysisClient) Validate(ctx context.Context, patch models.Patch) (*models.ValidationResult, error) {
	var result models.ValidationResult
	if err := c.post(ctx, "/v1/patches/validate", patch, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *AnalysisClient) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return serviceError(path, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func serviceError(op string, resp *http.Response) error {
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if len(detail) > 0 {
		return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, bytes.TrimSpace(detail))
	}
	return fmt.Errorf("%s: status %d", op, resp.StatusCode)
}
