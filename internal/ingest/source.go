// Package ingest supplies raw file references to the pipeline. The four
// channels are a closed set of variants differing only in how references are
// obtained; lifecycle handling downstream is identical for all of them.
package ingest

import (
	"context"
	"fmt"
	"io"

	"github.com/driftgate/backend/internal/models"
)

// FileRef is a lazy handle to one ingestable file. Open is called at most
// once, by the transfer worker, when an upload slot becomes available.
type FileRef struct {
	Name string
	Size int64 // 0 when the channel could not determine it up front
	Open func(ctx context.Context) (io.ReadCloser, error)
}

// Source produces the references of one ingestion batch.
type Source interface {
	Method() models.IngestMethod
	Produce(ctx context.Context) ([]FileRef, error)
}

// SizeDisplay renders a byte count the way the file list shows it.
func SizeDisplay(size int64) string {
	switch {
	case size <= 0:
		return "unknown"
	case size < 1024:
		return fmt.Sprintf("%d B", size)
	case size < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	case size < 1024*1024*1024:
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	default:
		return fmt.Sprintf("%.1f GB", float64(size)/(1024*1024*1024))
	}
}
