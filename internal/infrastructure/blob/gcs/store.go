// Package gcs is the Google Cloud Storage photo backend.
package gcs

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/rezkam/housekeeping/internal/infrastructure/blob"
)

// Store keeps objects in one bucket.
type Store struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

var _ blob.Store = (*Store)(nil)

// NewStore creates a GCS store. It assumes the client is authenticated
// (e.g. via GOOGLE_APPLICATION_CREDENTIALS) unless opts say otherwise.
// Returned URLs are baseURL + "/" + name.
func NewStore(ctx context.Context, bucketName, baseURL string, opts ...option.ClientOption) (*Store, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &Store{
		client:  client,
		bucket:  bucketName,
		baseURL: baseURL,
	}, nil
}

// EmulatorOptions points the client at a storage emulator without credentials.
func EmulatorOptions(endpoint string) []option.ClientOption {
	return []option.ClientOption{
		option.WithEndpoint(endpoint),
		option.WithoutAuthentication(),
	}
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Upload writes data as a single object with the given content type.
func (s *Store) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if err := blob.ValidateName(name); err != nil {
		return "", err
	}

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize object: %w", err)
	}

	return blob.JoinURL(s.baseURL, name), nil
}

// Open streams an object.
func (s *Store) Open(ctx context.Context, name string) (*blob.Object, error) {
	if err := blob.ValidateName(name); err != nil {
		return nil, err
	}

	r, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", blob.ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return &blob.Object{ReadCloser: r, ContentType: r.Attrs.ContentType, Size: r.Attrs.Size}, nil
}

// Delete removes an object.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := blob.ValidateName(name); err != nil {
		return err
	}
	if err := s.client.Bucket(s.bucket).Object(name).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("%w: %s", blob.ErrNotFound, name)
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}
