// Package httpclient is a small JSON-over-HTTP client used to deliver
// webhooks and to call a running catalog server from the CLI.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// Configurator provides the server location and credentials.
type Configurator interface {
	GetServerURL() string
	GetAPIKey() string
}

// ServerError is the error body returned by the catalog server.
type ServerError struct {
	Result int    `json:"result"`
	Error  string `json:"error"`
}

// HTTPError is a response with a status code of 400 or above.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// Retryable reports whether sending the same request again may succeed.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusRequestTimeout
}

// HTTPClient sends requests relative to the configured server URL.
type HTTPClient struct {
	config     Configurator
	httpClient *http.Client
}

// ClientOptions configures an HTTPClient.
type ClientOptions struct {
	Timeout time.Duration // zero means no client side timeout
}

// NewClient returns a client for config.
func NewClient(config Configurator, opts ...ClientOptions) *HTTPClient {
	clientOpts := ClientOptions{}
	if len(opts) > 0 {
		clientOpts = opts[0]
	}
	return &HTTPClient{
		config:     config,
		httpClient: &http.Client{Timeout: clientOpts.Timeout},
	}
}

// RequestOptions describes one request. QueryParams, Headers and Body are
// optional.
type RequestOptions struct {
	Method      string
	Path        string
	QueryParams map[string]string
	Headers     map[string]string
	Body        []byte
}

// DoRequest sends the request and returns the response body and the
// Location header. Responses with a status of 400 or above become an
// *HTTPError carrying the server's error message when it sent one.
func (c *HTTPClient) DoRequest(ctx context.Context, opts RequestOptions) ([]byte, string, error) {
	u, err := url.Parse(c.config.GetServerURL())
	if err != nil {
		return nil, "", fmt.Errorf("invalid server URL: %v", err)
	}
	if opts.Path != "" {
		u.Path = path.Join(u.Path, opts.Path)
	}
	if len(opts.QueryParams) > 0 {
		q := u.Query()
		for k, v := range opts.QueryParams {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, u.String(), bytes.NewReader(opts.Body))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := c.config.GetAPIKey(); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %v", err)
	}

	if resp.StatusCode >= 400 {
		var serverErr ServerError
		if err := json.Unmarshal(body, &serverErr); err == nil && serverErr.Error != "" {
			return nil, "", &HTTPError{StatusCode: resp.StatusCode, Message: serverErr.Error}
		}
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, "", &HTTPError{StatusCode: resp.StatusCode, Message: msg}
	}

	return body, resp.Header.Get("Location"), nil
}

// PostJSON marshals v and POSTs it to p.
func (c *HTTPClient) PostJSON(ctx context.Context, p string, v any, headers map[string]string) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	body, _, err := c.DoRequest(ctx, RequestOptions{
		Method:  http.MethodPost,
		Path:    p,
		Headers: headers,
		Body:    data,
	})
	return body, err
}

// Get sends a GET request to p.
func (c *HTTPClient) Get(ctx context.Context, p string, queryParams, headers map[string]string) ([]byte, error) {
	body, _, err := c.DoRequest(ctx, RequestOptions{
		Method:      http.MethodGet,
		Path:        p,
		QueryParams: queryParams,
		Headers:     headers,
	})
	return body, err
}

// StaticConfig is a Configurator with fixed values.
type StaticConfig struct {
	ServerURL string
	APIKey    string
}

func (s StaticConfig) GetServerURL() string { return s.ServerURL }
func (s StaticConfig) GetAPIKey() string { return s.APIKey }
