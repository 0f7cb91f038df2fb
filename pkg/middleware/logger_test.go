package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(NewStructuredLogger(logger))
	router.Get("/accounts/{userId}", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	router.Post("/purchases", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadRequest) })
	router.Get("/fail", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) })
	router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {})

	lastEntry := func(t *testing.T) map[string]any {
		t.Helper()
		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		return entry
	}

	t.Run("Success", func(t *testing.T) {
		buf.Reset()
		req := httptest.NewRequest(http.MethodGet, "/accounts/u1", nil)
		req.Header.Set(middleware.RequestIDHeader, "req-123")
		router.ServeHTTP(httptest.NewRecorder(), req)

		entry := lastEntry(t)
		request := entry["request"].(map[string]any)
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "req-123", request["id"])
		assert.Equal(t, "/accounts/{userId}", request["route"])
		assert.Equal(t, "/accounts/u1", request["path"])
		assert.Equal(t, float64(200), entry["response"].(map[string]any)["status"])
		assert.Equal(t, float64(2), entry["response"].(map[string]any)["bytes"])
	})

	t.Run("Client Error", func(t *testing.T) {
		buf.Reset()
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/purchases", nil))

		assert.Equal(t, "WARN", lastEntry(t)["level"])
	})

	t.Run("Server Error", func(t *testing.T) {
		buf.Reset()
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

		assert.Equal(t, "ERROR", lastEntry(t)["level"])
	})

	t.Run("Metrics Scrape Is Quiet", func(t *testing.T) {
		buf.Reset()
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Empty(t, buf.String())
	})
}
