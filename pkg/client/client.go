// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package client provides a Go client library for the orchestrator
// control-plane API.
//
// # Getting Started
//
// Create a client pointing to your orchestrator daemon:
//
//	c := client.New("http://localhost:7890")
//
// The client provides access to different API resources through sub-clients:
//
//	// Submit a task
//	t, err := c.Tasks.Submit(ctx, client.SubmitTaskRequest{Text: "fix the build"})
//
//	// Snapshot and activate a release
//	info, err := c.Releases.Snapshot(ctx, "/srv/orchestrator")
//	err = c.Releases.Activate(ctx, info.SHA)
//
// # API Versioning
//
// The orchestrator uses Stripe-style date-based API versioning. By default,
// the client uses the latest API version. You can pin to a specific version
// for stability:
//
//	c := client.New("http://localhost:7890", client.WithVersion("2026-01-01"))
//
// The version is sent via the Orchestrator-Version HTTP header on each
// request.
//
// # Error Handling
//
// API errors are returned as *APIError values, which include an error code
// and message:
//
//	t, err := c.Tasks.Get(ctx, "unknown")
//	if err != nil {
//	    if apiErr, ok := err.(*client.APIError); ok {
//	        fmt.Printf("API error: %s - %s\n", apiErr.Code, apiErr.Message)
//	    }
//	}
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// LatestVersion is the default API version a client without an explicit
// WithVersion option sends.
const LatestVersion = "2026-01-01"

// Client is an orchestrator control-plane API client.
//
// A Client provides access to the API through resource-specific
// sub-clients. Use [New] to create a Client instance.
//
// The Client is safe for concurrent use by multiple goroutines.
type Client struct {
	baseURL    string
	version    string
	authToken  string
	httpClient *http.Client

	// Tasks provides access to task submission, inspection, and control.
	Tasks *TaskClient

	// Releases provides access to the content-addressed release manager.
	Releases *ReleaseClient

	// Bridge provides access to the inbound webhook ingress.
	Bridge *BridgeClient

	// Health reports the combined orchestrator/dispatch health snapshot.
	Health *HealthClient

	// Events provides access to the event log.
	Events *EventClient
}

// Option configures a [Client]. Options are passed to [New] to customize
// client behavior.
type Option func(*Client)

// New creates a new orchestrator API client with the given base URL and
// options.
//
// The baseURL should be the root URL of the orchestrator daemon (e.g.,
// "http://localhost:7890"). Any trailing slash is automatically removed.
//
// By default, the client uses:
//   - The latest API version ([LatestVersion])
//   - A 30-second HTTP timeout
//
// Use options like [WithVersion], [WithTimeout], [WithAuthToken], or
// [WithHTTPClient] to customize.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		version: LatestVersion,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Tasks = &TaskClient{c: c}
	c.Releases = &ReleaseClient{c: c}
	c.Bridge = &BridgeClient{c: c}
	c.Health = &HealthClient{c: c}
	c.Events = &EventClient{c: c}

	return c
}

// WithVersion sets the API version to use for all requests.
func WithVersion(v string) Option {
	return func(c *Client) {
		c.version = v
	}
}

// WithAuthToken sets the bearer token sent with every request, matching
// the server's CONTROL_AUTH_TOKEN.
func WithAuthToken(token string) Option {
	return func(c *Client) {
		c.authToken = token
	}
}

// WithHTTPClient sets a custom HTTP client for making requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the HTTP client timeout for all requests.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// Version returns the API version being used.
func (c *Client) Version() string {
	return c.version
}

// BaseURL returns the base URL of the API.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// apiResponse is the standard API response envelope.
type apiResponse struct {
	Data  json.RawMessage `json:"data"`
	Error *APIError       `json:"error"`
}

// APIError represents an error response from the orchestrator API.
type APIError struct {
	// Code is a machine-readable error code (e.g., "NOT_FOUND", "illegal_transition").
	Code string `json:"code"`

	// Message is a human-readable description of the error.
	Message string `json:"message"`

	// Details contains additional error information, if available.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// get performs a GET request to the given path.
func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil, nil)
}

// post performs a POST request to the given path with no body.
func (c *Client) post(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// postJSON performs a POST request with a JSON body.
func (c *Client) postJSON(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	return c.postJSONWithHeaders(ctx, path, body, nil)
}

// postJSONWithHeaders performs a POST request with a JSON body and extra
// request headers, for endpoints like the bridge webhook whose secret
// travels out-of-band from the payload.
func (c *Client) postJSONWithHeaders(ctx context.Context, path string, body interface{}, headers map[string]string) (json.RawMessage, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(data), headers)
}

// do performs an HTTP request and parses the response.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, headers map[string]string) (json.RawMessage, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Orchestrator-Version", c.version)
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return c.parseResponse(resp)
}

// parseResponse reads and parses an API response.
func (c *Client) parseResponse(resp *http.Response) (json.RawMessage, error) {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
		}
		return respBody, nil
	}

	if apiResp.Error != nil {
		return nil, apiResp.Error
	}

	return apiResp.Data, nil
}
