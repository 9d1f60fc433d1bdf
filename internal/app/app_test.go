package app

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatehouse/internal/auth/models"
	"gatehouse/internal/platform/config"
	"gatehouse/internal/platform/logger"
)

func testConfig() config.Server {
	return config.Server{
		Environment:   config.Development,
		AppURL:        "http://app.local",
		SeedDemoUsers: true,
		Auth:          config.Auth{TokenSigningKey: "app-test-signing-key-0123456789ab"},
	}
}

func newTestApp(t *testing.T, cfg config.Server) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, logger.NewWithWriter(io.Discard, "error"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func serve(a *App, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Origin", "http://app.local")
	}
	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, req)
	return rec
}

func TestNew_InMemory(t *testing.T) {
	a := newTestApp(t, testConfig())

	_, total, err := a.Users.List(context.Background(), models.UserQuery{})
	require.NoError(t, err)
	assert.Equal(t, 4, total)

	assert.Equal(t, http.StatusOK, serve(a, http.MethodGet, "/health/live", "").Code)
	assert.Equal(t, http.StatusOK, serve(a, http.MethodGet, "/health/ready", "").Code)

	rec := serve(a, http.MethodPost, "/api/auth/login", `{"email":"admin@example.com","password":"admin123"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "auth-token=")

	rec = serve(a, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gatehouse_auth_signins_total")
}

func TestNew_SQLite(t *testing.T) {
	cfg := testConfig()
	cfg.DatabaseURL = "sqlite::memory:"
	a := newTestApp(t, cfg)

	rec := serve(a, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "database")

	rec = serve(a, http.MethodPost, "/api/contact",
		`{"name":"Ada Lovelace","email":"ada@example.com","subject":"Hello there","message":"A message long enough."}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestNew_RejectsBadDatabaseURL(t *testing.T) {
	cfg := testConfig()
	cfg.DatabaseURL = "mysql://nope"
	_, err := New(context.Background(), cfg, logger.NewWithWriter(io.Discard, "error"))
	assert.Error(t, err)
}

func TestRunWorkers_StopsOnCancel(t *testing.T) {
	a := newTestApp(t, testConfig())
	require.Len(t, a.workers, 3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.RunWorkers(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop")
	}
}
