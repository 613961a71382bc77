package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-catalog/internal/database"
	"media-catalog/internal/handlers"
	"media-catalog/internal/indexer"
	"media-catalog/internal/streaming"
)

func testRouter(t *testing.T) *mux.Router {
	t.Helper()

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	root := t.TempDir()
	reconciler := indexer.NewReconciler(db, indexer.NewScanner(root, indexer.ScannerConfig{}), nil)
	h := handlers.New(db, reconciler, streaming.NewServer(root, 0), nil, handlers.Config{})
	return setupRouter(h)
}

func TestSetupRouter(t *testing.T) {
	router := testRouter(t)

	tests := []struct {
		method string
		path   string
		match  bool
	}{
		{http.MethodGet, "/health", true},
		{http.MethodGet, "/healthz", true},
		{http.MethodHead, "/livez", true},
		{http.MethodGet, "/readyz", true},
		{http.MethodGet, "/version", true},
		{http.MethodPost, "/api/scan", true},
		{http.MethodGet, "/api/scan", true},
		{http.MethodGet, "/file/store/scan", true},
		{http.MethodPost, "/file/store/scan", false},
		{http.MethodGet, "/api/catalogs", true},
		{http.MethodGet, "/api/catalogs/7", true},
		{http.MethodGet, "/api/catalogs/7/videos", true},
		{http.MethodGet, "/api/catalogs/abc", false},
		{http.MethodGet, "/api/videos", true},
		{http.MethodGet, "/api/videos/3", true},
		{http.MethodGet, "/api/videos/3/stream", true},
		{http.MethodHead, "/api/videos/3/stream", true},
		{http.MethodGet, "/file/video/3/stream", true},
		{http.MethodDelete, "/api/videos/3", false},
		{http.MethodGet, "/metrics", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			var match mux.RouteMatch
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			assert.Equal(t, tt.match, router.Match(req, &match) && match.MatchErr == nil)
		})
	}
}

func TestRouterServesThroughMiddleware(t *testing.T) {
	router := testRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/catalogs", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/videos/99/stream", http.NoBody))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsServer(t *testing.T) {
	srv := newMetricsServer(9999)
	assert.Equal(t, ":9999", srv.Addr)
	assert.NotZero(t, srv.ReadHeaderTimeout)

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "media_catalog_")
}
