// verge/pkg/platform/client.go

package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"verge/pkg/logging"
)

// DefaultBaseURL is the hosting platform's API endpoint.
const DefaultBaseURL = "https://api.fastly.com"

// Client is a thin REST client for the hosting platform. All calls
// attach the account token and decode JSON responses; non-2xx responses
// surface as *APIError with the operation name, status and body so
// failures can be diagnosed without re-running with extra logging.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient builds a client with the default endpoint and a bounded
// request timeout.
func NewClient(token string) *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx platform response.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
}

// Conflict reports whether the error is a resource conflict (the
// "already exists" case the orchestrator reconciles instead of
// aborting).
func (e *APIError) Conflict() bool {
	return e.Status == http.StatusConflict
}

// do issues one request and decodes the JSON response body into out
// when out is non-nil.
func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Fastly-Key", c.Token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	logging.Logger.Debug().Str("op", op).Str("method", method).Str("path", path).Msg("Platform API request")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
	}
	return nil
}

// get issues a GET request.
func (c *Client) get(ctx context.Context, op, path string, out interface{}) error {
	return c.do(ctx, op, http.MethodGet, path, nil, "", out)
}

// postForm issues a form-encoded POST.
func (c *Client) postForm(ctx context.Context, op, path string, form url.Values, out interface{}) error {
	return c.do(ctx, op, http.MethodPost, path, bytes.NewBufferString(form.Encode()),
		"application/x-www-form-urlencoded", out)
}

// putForm issues a form-encoded PUT.
func (c *Client) putForm(ctx context.Context, op, path string, form url.Values, out interface{}) error {
	return c.do(ctx, op, http.MethodPut, path, bytes.NewBufferString(form.Encode()),
		"application/x-www-form-urlencoded", out)
}
