// Package artifact stores pipeline inputs and outputs as blobs: partition
// layers keyed by scenario, and run results keyed by run id.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// StorageClient abstracts blob storage for partition layers and run results.
type StorageClient interface {
	PutPartition(ctx context.Context, scenario, name string, data []byte) error
	GetPartition(ctx context.Context, scenario, name string) ([]byte, error)
	PutResult(ctx context.Context, scenario, runID string, data []byte) error
	GetResult(ctx context.Context, scenario, runID string) ([]byte, error)
}

// LocalStorage implements StorageClient using the local filesystem.
// Useful for development and testing.
type LocalStorage struct {
	BaseDir string
}

// NewLocalStorage creates a LocalStorage rooted at the given directory.
func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{BaseDir: baseDir}
}

func (s *LocalStorage) path(scenario, kind, id, ext string) string {
	return filepath.Join(s.BaseDir, scenario, kind, id+ext)
}

func (s *LocalStorage) put(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// PutPartition stores a partition layer blob.
func (s *LocalStorage) PutPartition(ctx context.Context, scenario, name string, data []byte) error {
	return s.put(s.path(scenario, "partitions", name, ".geojson"), data)
}

// GetPartition retrieves a partition layer blob.
func (s *LocalStorage) GetPartition(ctx context.Context, scenario, name string) ([]byte, error) {
	return os.ReadFile(s.path(scenario, "partitions", name, ".geojson"))
}

// PutResult stores a run result blob.
func (s *LocalStorage) PutResult(ctx context.Context, scenario, runID string, data []byte) error {
	return s.put(s.path(scenario, "results", runID, ".json"), data)
}

// GetResult retrieves a run result blob.
func (s *LocalStorage) GetResult(ctx context.Context, scenario, runID string) ([]byte, error) {
	return os.ReadFile(s.path(scenario, "results", runID, ".json"))
}
