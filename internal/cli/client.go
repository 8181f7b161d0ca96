package cli

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

// maxResponseBytes bounds a single smoke response; exports are the largest.
const maxResponseBytes = 64 << 20

// apiClient talks JSON to a scout server.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// call describes one request and the status it must answer with.
type call struct {
	method string
	path   string
	body   any
	header map[string]string
	want   int
	out    any
}

// apiError is an unexpected response status.
type apiError struct {
	Method  string
	Path    string
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: status %d %s: %s", e.Method, e.Path, e.Status, e.Code, msg)
}

func (e *apiError) Unwrap() error { return ErrSmoke }

// do sends c and decodes a JSON answer into c.out when set. It returns the
// response, whose body has already been consumed, and the raw body.
func (a *apiClient) do(ctx context.Context, c call) (*http.Response, []byte, error) {
	var body io.Reader
	if c.body != nil {
		data, err := json.Marshal(c.body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, c.method, a.baseURL+c.path, body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.header {
		req.Header.Set(k, v)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s: %w", c.method, c.path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp, nil, fmt.Errorf("%s %s: read body: %w", c.method, c.path, err)
	}
	if resp.StatusCode != c.want {
		apiErr := &apiError{Method: c.method, Path: c.path, Status: resp.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		return resp, raw, apiErr
	}
	if c.out != nil {
		if err := json.Unmarshal(raw, c.out); err != nil {
			return resp, raw, fmt.Errorf("%s %s: decode: %w", c.method, c.path, err)
		}
	}
	return resp, raw, nil
}
