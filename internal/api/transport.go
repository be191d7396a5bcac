package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Transport dispatches one request against the backend and returns the
// decoded (but still enveloped) JSON value. The primary transport is
// injected so tests and alternate stacks can substitute their own; the
// client falls back to a direct HTTP call when a GET through the primary
// comes back empty.
type Transport interface {
	Do(ctx context.Context, method, path string, headers http.Header, body any) (any, error)
}

// HTTPTransport is the default Transport: plain HTTP against the backend
// base URL.
type HTTPTransport struct {
	BaseURL string
	Client  *http.Client
}

func (t *HTTPTransport) Do(ctx context.Context, method, path string, headers http.Header, body any) (any, error) {
	return doHTTP(ctx, t.httpClient(), t.BaseURL, method, path, headers, body)
}

func (t *HTTPTransport) httpClient() *http.Client {
	if t.Client != nil {
		return t.Client
	}
	return http.DefaultClient
}

// doHTTP performs one HTTP round trip and decodes the response body as JSON.
// A non-JSON body is wrapped into a Lambda-style envelope carrying the raw
// text, matching what the gateway does for opaque bodies.
func doHTTP(ctx context.Context, client *http.Client, baseURL, method, path string, headers http.Header, body any) (any, error) {
	var reader io.Reader
	if body != nil && method != http.MethodGet {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(text, &decoded); err != nil {
		return map[string]any{"statusCode": float64(resp.StatusCode), "body": string(text)}, nil
	}
	return decoded, nil
}
