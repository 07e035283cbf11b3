// Package fs is the local-directory photo backend.
package fs

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/rezkam/housekeeping/internal/infrastructure/blob"
)

// Store keeps objects as files under a base directory.
type Store struct {
	baseDir string
	baseURL string
}

var _ blob.Store = (*Store)(nil)

// NewStore creates a filesystem store. Returned URLs are baseURL + "/" + name.
func NewStore(baseDir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &Store{baseDir: baseDir, baseURL: baseURL}, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(name))
}

// Upload writes data atomically: a temp file in the target directory is renamed into place.
func (s *Store) Upload(_ context.Context, name, _ string, data []byte) (string, error) {
	if err := blob.ValidateName(name); err != nil {
		return "", err
	}
	path := s.path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}

	return blob.JoinURL(s.baseURL, name), nil
}

// Open returns the stored file. The content type is derived from the extension.
func (s *Store) Open(_ context.Context, name string) (*blob.Object, error) {
	if err := blob.ValidateName(name); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", blob.ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s", blob.ErrNotFound, name)
	}

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &blob.Object{ReadCloser: f, ContentType: contentType, Size: info.Size()}, nil
}

// Delete removes a stored file.
func (s *Store) Delete(_ context.Context, name string) error {
	if err := blob.ValidateName(name); err != nil {
		return err
	}
	if err := os.Remove(s.path(name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", blob.ErrNotFound, name)
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
