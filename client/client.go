// Package client configures and inspects a running stub over HTTP.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"configurablestub/internal/models"
)

// RouteConfig is the response behaviour sent to the stub for one route
type RouteConfig = models.RouteConfig

// RequestRecord is a request captured by the stub
type RequestRecord = models.RequestRecord

// ErrNotFound is returned when the stub has no recorded request for a route
var ErrNotFound = errors.New("no recorded requests")

// Client talks to the control API of one stub
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client, including its TLS
// settings.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New creates a client for the stub at baseURL. The stub serves a freshly
// generated self-signed certificate, so server certificates are not
// verified unless WithHTTPClient says otherwise.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the stub address this client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ConfigureRoute sets the response for verb + route
func (c *Client) ConfigureRoute(ctx context.Context, verb, route string, config RouteConfig) error {
	resp, err := c.post(ctx, routePath(verb, "api", route), config)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.parseError(resp)
	}
	return nil
}

// LastRequest returns the request recorded for verb + route. ErrNotFound
// when nothing was recorded.
func (c *Client) LastRequest(ctx context.Context, verb, route string) (*RequestRecord, error) {
	var record RequestRecord
	if err := c.getJSON(ctx, routePath(verb, "api", route), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// History returns every request recorded for verb + route, oldest first
func (c *Client) History(ctx context.Context, verb, route string) ([]RequestRecord, error) {
	var records []RequestRecord
	if err := c.getJSON(ctx, routePath(verb, "history/api", route), &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Reset forgets every configured route and recorded request
func (c *Client) Reset(ctx context.Context) error {
	resp, err := c.delete(ctx, "/stub")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.parseError(resp)
	}
	return nil
}

// Health returns nil when the stub answers its health endpoint
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.get(ctx, "/health")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("stub unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// HealthCheck reports whether the stub is up. Errors count as not up.
func (c *Client) HealthCheck(ctx context.Context) bool {
	return c.Health(ctx) == nil
}

// DecodeBody converts a recorded body into v, for example a struct the
// caller expects the system under test to have sent.
func DecodeBody(record RequestRecord, v interface{}) error {
	raw, err := json.Marshal(record.RequestBody)
	if err != nil {
		return fmt.Errorf("failed to encode recorded body: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode recorded body: %w", err)
	}
	return nil
}

func routePath(verb, section, route string) string {
	return "/Stub/" + strings.ToUpper(verb) + "/" + section + "/" + strings.TrimLeft(route, "/")
}

func (c *Client) getJSON(ctx context.Context, path string, v interface{}) error {
	resp, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSpace(string(body)))
	}
	if resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.httpClient.Do(req)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}

func (c *Client) delete(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.httpClient.Do(req)
}

func (c *Client) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return fmt.Errorf("response from %s: status %d: %s", resp.Request.URL, resp.StatusCode, msg)
	}
	return fmt.Errorf("response from %s: status %d", resp.Request.URL, resp.StatusCode)
}
