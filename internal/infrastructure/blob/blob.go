// Package blob stores issue photos. Backends live in subpackages.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrNotFound is returned when an object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrInvalidName is returned for empty, absolute or escaping object names.
	ErrInvalidName = errors.New("invalid object name")
)

// Store is a photo backend. Upload returns the URL the photo is served under.
type Store interface {
	Upload(ctx context.Context, name, contentType string, data []byte) (string, error)
	Open(ctx context.Context, name string) (*Object, error)
	Delete(ctx context.Context, name string) error
}

// Object is an open stored object. Callers must Close it.
type Object struct {
	io.ReadCloser
	ContentType string
	Size        int64
}

// ValidateName rejects names that could escape the store's namespace.
func ValidateName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}

// JoinURL appends an object name to a base URL.
func JoinURL(baseURL, name string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + name
}
