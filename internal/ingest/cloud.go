package ingest

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/driftgate/backend/internal/models"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// CloudSource imports objects from an S3-compatible bucket through the
// configured connector credentials. Auth flows beyond static credentials are
// the provider's concern, not this service's.
type CloudSource struct {
	client *minio.Client
	bucket string
	keys   []string
}

// NewCloudClient builds the shared object-store client.
func NewCloudClient(endpoint, accessKey, secretKey string, useSSL bool) (*minio.Client, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating object-store client: %w", err)
	}
	return client, nil
}

// NewCloudSource creates a connector batch for the given bucket objects.
func NewCloudSource(client *minio.Client, bucket string, keys []string) *CloudSource {
	return &CloudSource{client: client, bucket: bucket, keys: keys}
}

func (s *CloudSource) Method() models.IngestMethod { return models.MethodCloudConnector }

// Produce stats each object so size and name are known before transfer.
func (s *CloudSource) Produce(ctx context.Context) ([]FileRef, error) {
	if s.client == nil {
		return nil, fmt.Errorf("cloud connector not configured")
	}
	if len(s.keys) == 0 {
		return nil, fmt.Errorf("no object keys given")
	}

	refs := make([]FileRef, 0, len(s.keys))
	for _, key := range s.keys {
		key := key
		stat, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
		if err != nil {
			return nil, fmt.Errorf("stat %s/%s: %w", s.bucket, key, err)
		}

		refs = append(refs, FileRef{
			Name: path.Base(key),
			Size: stat.Size,
			Open: func(ctx context.Context) (io.ReadCloser, error) {
				obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
				if err != nil {
					return nil, fmt.Errorf("fetching %s/%s: %w", s.bucket, key, err)
				}
				return obj, nil
			},
		})
	}
	return refs, nil
}
