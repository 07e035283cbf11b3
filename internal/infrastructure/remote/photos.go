package remote

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rezkam/housekeeping/internal/infrastructure/http/dto"
)

// Upload stores a photo on the server and returns its absolute URL.
func (c *Client) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint("/photos", url.Values{"name": {name}}), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	var out dto.PhotoUpload
	if err := c.send(req, &out); err != nil {
		return "", err
	}

	ref, err := url.Parse(out.URL)
	if err != nil {
		return "", fmt.Errorf("server returned invalid photo URL %q: %w", out.URL, err)
	}
	return c.base.ResolveReference(ref).String(), nil
}
