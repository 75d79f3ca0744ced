package ingest

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/driftgate/backend/internal/models"
)

// MultipartSource adapts browser-delivered multipart files. Both the local
// file picker and the drop zone arrive this way; the method tag is the only
// difference between the two channels.
type MultipartSource struct {
	method models.IngestMethod
	files  []*multipart.FileHeader
}

// NewLocalPickerSource wraps files chosen through the local file picker.
func NewLocalPickerSource(files []*multipart.FileHeader) *MultipartSource {
	return &MultipartSource{method: models.MethodLocalPicker, files: files}
}

// NewDropZoneSource wraps files dropped onto the drop zone.
func NewDropZoneSource(files []*multipart.FileHeader) *MultipartSource {
	return &MultipartSource{method: models.MethodDropZone, files: files}
}

func (s *MultipartSource) Method() models.IngestMethod { return s.method }

// Produce hands out one lazy reference per form file.
func (s *MultipartSource) Produce(ctx context.Context) ([]FileRef, error) {
	if len(s.files) == 0 {
		return nil, fmt.Errorf("no files in form")
	}

	refs := make([]FileRef, 0, len(s.files))
	for _, fh := range s.files {
		fh := fh
		refs = append(refs, FileRef{
			Name: fh.Filename,
			Size: fh.Size,
			Open: func(ctx context.Context) (io.ReadCloser, error) {
				f, err := fh.Open()
				if err != nil {
					return nil, fmt.Errorf("opening form file %s: %w", fh.Filename, err)
				}
				return f, nil
			},
		})
	}
	return refs, nil
}
