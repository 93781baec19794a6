// ABOUTME: HTTP client for the MDT simulation backend: submit, stream and report endpoints.
// ABOUTME: Every request carries an X-Request-ID so backend logs can be correlated with ours.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Defaults used when no configuration is supplied.
const (
	DefaultBaseURL        = "http://localhost:8000"
	DefaultRequestTimeout = 30 * time.Second
)

// Endpoint paths.
const (
	pathSimulate     = "/api/simulate"
	pathStream       = "/api/stream/"
	pathReport       = "/api/report/"
	pathLatestReport = "/api/latest-report/"
)

// UserAgent is sent on every request.
var UserAgent = "mdtview"

// Client talks to one backend. It is safe for concurrent use.
type Client struct {
	BaseURL string

	// HTTPClient is used for submit and fetch requests and carries the request timeout.
	HTTPClient *http.Client

	// StreamClient is used for the event stream and has no overall timeout;
	// the stream lives as long as its context.
	StreamClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the client used for submit and fetch requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.HTTPClient = hc
	}
}

// WithStreamClient replaces the client used for the event stream.
func WithStreamClient(hc *http.Client) Option {
	return func(c *Client) {
		c.StreamClient = hc
	}
}

// WithRequestTimeout sets the timeout for submit and fetch requests.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.HTTPClient = &http.Client{Timeout: d}
	}
}

// New creates a Client for baseURL. An empty baseURL means DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		HTTPClient:   &http.Client{Timeout: DefaultRequestTimeout},
		StreamClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// runURL joins the base URL, an endpoint prefix and an escaped run id.
func (c *Client) runURL(prefix, runID string) string {
	return c.BaseURL + prefix + url.PathEscape(runID)
}

// newRequest builds a request with the headers every call shares.
func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	req.Header.Set("User-Agent", UserAgent)
	return req, nil
}

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// errorFromResponse builds an APIError from a non-2xx response. fallback is
// used when the body carries no detail.
func errorFromResponse(resp *http.Response, fallback string) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		Status:    resp.StatusCode,
		Detail:    extractDetail(body, fallback),
		RequestID: resp.Request.Header.Get("X-Request-ID"),
	}
}

// extractDetail returns the backend's "detail" field as text. FastAPI sends a
// string for handled errors and a list of objects for validation errors.
func extractDetail(body []byte, fallback string) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 || string(payload.Detail) == "null" {
		return fallback
	}
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		if s == "" {
			return fallback
		}
		return s
	}
	return string(payload.Detail)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
