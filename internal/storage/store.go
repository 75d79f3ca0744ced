package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// ProgressFunc receives the running byte count while an artifact is written.
type ProgressFunc func(written, total int64)

// Store holds the raw bytes of transferred artifacts while a workflow is
// active. Registered-model persistence belongs to the registry service, not
// here; this is scratch storage keyed by the registry's file ids.
type Store interface {
	Save(id string, r io.Reader, total int64, onProgress ProgressFunc) (int64, error)
	Path(id string) (string, error)
	Head(id string, n int) ([]byte, error)
	Delete(id string) error
}

// LocalStore implements Store on the local filesystem.
type LocalStore struct {
	mu        sync.RWMutex
	uploadDir string
	sizes     map[string]int64
}

// NewLocalStore creates a LocalStore rooted at uploadDir.
func NewLocalStore(uploadDir string) (*LocalStore, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &LocalStore{
		uploadDir: uploadDir,
		sizes:     make(map[string]int64),
	}, nil
}

// Save streams r to disk under id, reporting progress as bytes land. total
// may be 0 when the source did not declare a size.
func (s *LocalStore) Save(id string, r io.Reader, total int64, onProgress ProgressFunc) (int64, error) {
	path := filepath.Join(s.uploadDir, id)

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, 256*1024)
	var written int64
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			if _, writeErr := f.Write(buf[:n]); writeErr != nil {
				os.Remove(path)
				return written, fmt.Errorf("writing file: %w", writeErr)
			}
			written += int64(n)
			if onProgress != nil {
				onProgress(written, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			os.Remove(path)
			return written, fmt.Errorf("reading source: %w", readErr)
		}
	}

	s.mu.Lock()
	s.sizes[id] = written
	s.mu.Unlock()

	return written, nil
}

// Path returns the absolute path of a saved artifact.
func (s *LocalStore) Path(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sizes[id]; !ok {
		return "", fmt.Errorf("artifact not found: %s", id)
	}
	return filepath.Join(s.uploadDir, id), nil
}

// Head returns up to n leading bytes of a saved artifact.
func (s *LocalStore) Head(id string, n int) ([]byte, error) {
	path, err := s.Path(id)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening artifact: %w", err)
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("reading artifact head: %w", err)
	}
	return buf[:read], nil
}

// Delete removes a saved artifact. Missing files are not an error.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.uploadDir, id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting artifact: %w", err)
	}
	delete(s.sizes, id)
	return nil
}
