package services

import (
	"context"
	"fmt"

	"github.com/driftgate/backend/internal/ingest"
	"github.com/driftgate/backend/internal/storage"
)

// LocalTransfer copies reference bytes into the artifact store, reporting
// byte progress so the uploading phase stays linear.
type LocalTransfer struct {
	store storage.Store
}

// NewLocalTransfer creates a transfer service backed by the given store.
func NewLocalTransfer(store storage.Store) *LocalTransfer {
	return &LocalTransfer{store: store}
}

// Upload opens the reference and streams it to storage under fileID.
func (t *LocalTransfer) Upload(ctx context.Context, fileID string, ref ingest.FileRef, onProgress storage.ProgressFunc) (int64, error) {
	rc, err := ref.Open(ctx)
	if err != nil {
		return 0, fmt.Errorf("opening reference %s: %w", ref.Name, err)
	}
	defer rc.Close()

	written, err := t.store.Save(fileID, rc, ref.Size, onProgress)
	if err != nil {
		return written, fmt.Errorf("transferring %s: %w", ref.Name, err)
	}
	return written, nil
}
