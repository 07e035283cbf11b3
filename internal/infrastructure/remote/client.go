// Package remote talks to the housekeeping server over its HTTP API.
//
// Client satisfies the same task store, catalog, change feed and photo
// uploader interfaces as the in-process stores, so a kiosk runs the state
// machine, guard and cache unchanged against a shared server.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rezkam/housekeeping/internal/application/booking"
	"github.com/rezkam/housekeeping/internal/application/reconcile"
	"github.com/rezkam/housekeeping/internal/application/task"
	"github.com/rezkam/housekeeping/internal/domain"
	"github.com/rezkam/housekeeping/internal/infrastructure/http/response"
)

const apiPrefix = "/api/v1"

// DefaultTimeout bounds each API request.
const DefaultTimeout = 10 * time.Second

// Client is an HTTP client for the housekeeping API. It is safe for concurrent use.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	dialer     *websocket.Dialer
}

var (
	_ task.Repository      = (*Client)(nil)
	_ task.PhotoUploader   = (*Client)(nil)
	_ booking.Store        = (*Client)(nil)
	_ booking.RoomCatalog  = (*Client)(nil)
	_ booking.LimitLookup  = (*Client)(nil)
	_ reconcile.Subscriber = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its transport is used as is.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithTimeout sets the per-request timeout and the websocket handshake timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.httpClient.Timeout = d
		cl.dialer.HandshakeTimeout = d
	}
}

// NewClient creates a client for the server at baseURL, e.g. http://localhost:8080.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", baseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		base: base,
		httpClient: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + apiPrefix + path
	u.RawQuery = query.Encode()
	return u.String()
}

// do sends a JSON request and decodes a JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

// decodeError maps an API error response back to the domain error it came from.
func decodeError(resp *http.Response) error {
	var er response.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&er); err != nil || er.Error.Code == "" {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	msg := er.Error.Message

	var sentinel error
	switch er.Error.Code {
	case response.CodeRoomConflict:
		sentinel = domain.ErrRoomConflict
	case response.CodeStaleTask:
		sentinel = domain.ErrStaleTask
	case response.CodeActiveTask:
		sentinel = domain.ErrActiveTaskConflict
	case response.CodeConflict:
		sentinel = domain.ErrConflict
	case response.CodeNotFound:
		switch msg {
		case "task not found":
			sentinel = domain.ErrTaskNotFound
		case "room not found":
			sentinel = domain.ErrRoomNotFound
		case "staff member not found":
			sentinel = domain.ErrStaffNotFound
		default:
			sentinel = domain.ErrNotFound
		}
	case response.CodeValidation, response.CodeInvalidRequest,
		response.CodePayloadTooLarge, response.CodeUnsupportedMedia:
		sentinel = domain.ErrValidation
		if len(er.Error.Details) > 0 {
			d := er.Error.Details[0]
			sentinel = fieldError(d)
			msg = d.Field + ": " + d.Issue
		}
	default:
		return fmt.Errorf("server returned %s: %s (%s)", resp.Status, msg, er.Error.Code)
	}
	return &apiError{sentinel: sentinel, status: resp.StatusCode, message: msg}
}

// fieldError recovers the validation sentinel the server reported for a field.
func fieldError(d response.ErrorField) error {
	switch d.Field {
	case "id":
		return domain.ErrInvalidID
	case "status":
		return domain.ErrInvalidTaskStatus
	case "date":
		return domain.ErrInvalidDate
	case "room_id":
		return domain.ErrRoomRequired
	case "staff_id":
		return domain.ErrStaffRequired
	case "update_mask":
		if strings.Contains(d.Issue, "empty") {
			return domain.ErrEmptyUpdateMask
		}
		return domain.ErrUnknownField
	default:
		return domain.ErrValidation
	}
}

// apiError carries the server's message while matching the domain sentinel.
type apiError struct {
	sentinel error
	status   int
	message  string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%v (server: %s)", e.sentinel, e.message)
}

func (e *apiError) Unwrap() error {
	return e.sentinel
}

// StatusCode returns the HTTP status of a server error, or 0.
func StatusCode(err error) int {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.status
	}
	return 0
}
