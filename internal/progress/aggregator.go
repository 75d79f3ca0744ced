// Package progress derives a single observable progress value from the set of
// in-flight file records. Consumers never compute this independently, so the
// displayed value cannot drift from actual registry state.
package progress

import "github.com/driftgate/backend/internal/models"

// Overall holds the aggregate progress for one workflow.
type Overall struct {
	// Value is the mean of per-file progress, in [0,1]. 0 with zero files.
	Value float64 `json:"progress"`
	// Processing is true when at least one file is processing and none is
	// still uploading; false means the uploading phase (or idle).
	Processing bool `json:"processing"`
}

// Compute aggregates per-file progress into a single value and phase flag.
func Compute(files []models.UploadedFile) Overall {
	if len(files) == 0 {
		return Overall{}
	}

	var sum float64
	anyUploading := false
	anyProcessing := false

	for _, f := range files {
		switch f.Status {
		case models.StatusQueued:
			// queued contributes 0
		case models.StatusUploading:
			anyUploading = true
			sum += clamp(f.Progress)
		case models.StatusProcessing:
			anyProcessing = true
			sum += clamp(f.Progress)
		case models.StatusProcessed, models.StatusFailed:
			sum += 1.0
		}
	}

	return Overall{
		Value:      sum / float64(len(files)),
		Processing: anyProcessing && !anyUploading,
	}
}

func clamp(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
