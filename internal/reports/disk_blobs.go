package reports

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DiskBlobStore writes photos into a local directory.
type DiskBlobStore struct {
	dir string
}

var _ BlobStore = (*DiskBlobStore)(nil)

// NewDiskBlobStore creates dir if needed.
func NewDiskBlobStore(dir string) (*DiskBlobStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("reports: photo directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("reports: create photo directory: %w", err)
	}
	return &DiskBlobStore{dir: dir}, nil
}

// Put writes data to dir/name via a temp file and rename, so readers never see partial photos.
func (s *DiskBlobStore) Put(ctx context.Context, name string, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("reports: invalid blob name %q", name)
	}
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("reports: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("reports: write photo: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("reports: close photo: %w", err)
	}
	target := filepath.Join(s.dir, name)
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("reports: move photo: %w", err)
	}
	return target, nil
}
