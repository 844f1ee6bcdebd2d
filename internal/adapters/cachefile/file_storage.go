// Package cachefile keeps the last rates payload in a plain file.
package cachefile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	portsrepo "github.com/SscSPs/money_oxr/internal/core/ports/repositories"
)

// FileStorage stores the payload at Path, overwriting it wholesale on write.
type FileStorage struct {
	Path string
}

// NewFileStorage creates a FileStorage for path.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{Path: path}
}

// Ensure FileStorage implements the SnapshotStorage port
var _ portsrepo.SnapshotStorage = (*FileStorage)(nil)

// Exists reports whether the cache file is present.
func (s *FileStorage) Exists(_ context.Context) (bool, error) {
	_, err := os.Stat(s.Path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat cache file %s: %w", s.Path, err)
}

// Read returns the cache file contents.
func (s *FileStorage) Read(_ context.Context) (string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read cache file %s: %w", s.Path, err)
	}
	return string(data), nil
}

// Write replaces the cache file. The text goes to a temp file in the same
// directory first so readers never see a half-written payload.
func (s *FileStorage) Write(_ context.Context, text string) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		return fmt.Errorf("failed to replace cache file %s: %w", s.Path, err)
	}
	return nil
}
