package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"time"

	"gatehouse/internal/app"
	"gatehouse/internal/platform/config"
	"gatehouse/internal/platform/logger"
)

const appOrigin = "http://app.gatehouse.test"

// TestContext holds state between test steps
type TestContext struct {
	BaseURL          string
	HTTPClient       *http.Client
	LastResponse     *http.Response
	LastResponseBody []byte
	Statuses         []int

	server *httptest.Server
	app    *app.App
}

// NewTestContext starts an in-process server unless BASE_URL points at a
// running one. The client keeps cookies between steps and never follows
// redirects.
func NewTestContext(ctx context.Context) (*TestContext, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	tc := &TestContext{
		BaseURL: os.Getenv("BASE_URL"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			Jar:     jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
	if tc.BaseURL != "" {
		return tc, nil
	}

	cfg := config.Server{
		Environment:   config.Development,
		AppURL:        appOrigin,
		SeedDemoUsers: true,
		Auth:          config.Auth{TokenSigningKey: "e2e-signing-key-0123456789abcdef"},
	}
	application, err := app.New(ctx, cfg, logger.NewWithWriter(io.Discard, "error"))
	if err != nil {
		return nil, fmt.Errorf("failed to build app: %w", err)
	}
	tc.app = application
	tc.server = httptest.NewServer(application.Handler)
	tc.BaseURL = tc.server.URL
	return tc, nil
}

// Close stops the in-process server.
func (tc *TestContext) Close() {
	if tc.server != nil {
		tc.server.Close()
	}
	if tc.app != nil {
		_ = tc.app.Close()
	}
}

// Do sends a request with an optional JSON body and stores the response.
func (tc *TestContext) Do(method, path string, body any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, tc.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Origin", appOrigin)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}

	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	tc.Statuses = append(tc.Statuses, resp.StatusCode)
	return nil
}

// GetResponseField extracts a top-level field from the JSON response
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var data map[string]any
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	value, ok := data[field]
	if !ok {
		return nil, fmt.Errorf("field %q not found in response", field)
	}
	return value, nil
}
