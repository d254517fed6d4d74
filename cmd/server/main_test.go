package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-sitecontent/pkg/sitecontent/config"
)

func newTestRoutes(t *testing.T, opts ...config.Option) http.Handler {
	t.Helper()
	cfg, err := config.Load(opts...)
	require.NoError(t, err)

	app, err := cfg.Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return routes(cfg, logger, app.Handler())
}

func TestRoutes_Homepage(t *testing.T) {
	handler := newTestRoutes(t)

	req := httptest.NewRequest(http.MethodGet, "/api/homepage", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"status":true,"data":null,"cached":false}`, rec.Body.String())
}

func TestRoutes_DevelopmentCORS(t *testing.T) {
	handler := newTestRoutes(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/admin/homepage/hero", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRoutes_ProductionWithoutCORS(t *testing.T) {
	handler := newTestRoutes(t, config.WithEnvironment("production"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
