package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	"github.com/driftgate/backend/internal/models"
	"golang.org/x/sync/errgroup"
)

// DefaultURLParallel bounds concurrent URL resolution when no limit is given.
const DefaultURLParallel = 4

// URLSource imports files referenced by URL. References are resolved
// concurrently with HEAD requests, at most parallel at a time; bytes are
// fetched lazily when the transfer worker opens the ref.
type URLSource struct {
	client   *http.Client
	urls     []string
	parallel int
}

// NewURLSource creates a URL importer for the given links, resolving at
// most parallel references concurrently.
func NewURLSource(client *http.Client, urls []string, parallel int) *URLSource {
	if client == nil {
		client = http.DefaultClient
	}
	if parallel < 1 {
		parallel = DefaultURLParallel
	}
	return &URLSource{client: client, urls: urls, parallel: parallel}
}

func (s *URLSource) Method() models.IngestMethod { return models.MethodURLImport }

// Produce resolves every URL to a reference. A single unreachable or
// malformed URL fails the whole batch before anything is registered;
// per-file error isolation starts once files enter the registry.
func (s *URLSource) Produce(ctx context.Context) ([]FileRef, error) {
	if len(s.urls) == 0 {
		return nil, fmt.Errorf("no urls given")
	}

	refs := make([]FileRef, len(s.urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)

	for i, raw := range s.urls {
		i, raw := i, raw
		g.Go(func() error {
			u, err := url.Parse(raw)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
				return fmt.Errorf("invalid url %q", raw)
			}

			size := s.headSize(gctx, raw)

			name := path.Base(u.Path)
			if name == "" || name == "/" || name == "." {
				name = u.Host
			}

			refs[i] = FileRef{
				Name: name,
				Size: size,
				Open: func(ctx context.Context) (io.ReadCloser, error) {
					req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
					if err != nil {
						return nil, err
					}
					resp, err := s.client.Do(req)
					if err != nil {
						return nil, fmt.Errorf("fetching %s: %w", raw, err)
					}
					if resp.StatusCode != http.StatusOK {
						resp.Body.Close()
						return nil, fmt.Errorf("fetching %s: status %d", raw, resp.StatusCode)
					}
					return resp.Body, nil
				},
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return refs, nil
}

// headSize asks for Content-Length up front so progress can be byte-linear.
// Servers that reject HEAD just leave the size unknown.
func (s *URLSource) headSize(ctx context.Context, raw string) int64 {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, raw, nil)
	if err != nil {
		return 0
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.ContentLength < 0 {
		return 0
	}
	return resp.ContentLength
}
