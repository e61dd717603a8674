// Package client provides the HTTP client for the examscan backend service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
)

// Client talks to the examscan backend over JSON/HTTP.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New creates a new backend client.
// If endpoint is empty, uses EXAMSCAN_SERVER_URL env var or defaults to localhost:8080.
// Timeout can be configured via EXAMSCAN_CLIENT_TIMEOUT env var (default 30s).
func New(endpoint string) *Client {
	if endpoint == "" {
		endpoint = os.Getenv("EXAMSCAN_SERVER_URL")
	}
	if endpoint == "" {
		endpoint = "http://localhost:8080"
	}

	timeout := 30 * time.Second
	if t := os.Getenv("EXAMSCAN_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// apiError is the error payload the backend returns on non-2xx responses.
type apiError struct {
	Error string `json:"error"`
}

// do executes one request and decodes the JSON response into result.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, result any) error {
	u := c.endpoint + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ae apiError
		if json.Unmarshal(respBody, &ae) == nil && ae.Error != "" {
			return fmt.Errorf("server error: %s - %s", resp.Status, ae.Error)
		}
		return fmt.Errorf("server error: %s - %s", resp.Status, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, result)
}
