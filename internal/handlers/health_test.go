package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duotalk/duo-talk-gm/internal/services"
)

func TestHealthHandler(t *testing.T) {
	t.Run("healthy storage", func(t *testing.T) {
		handler := NewHealthHandler(services.NewMockStorage(), testLogger())
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp HealthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "duo-talk-gm", resp.Service)
		assert.Equal(t, "healthy", resp.Components["storage"])
	})

	t.Run("degraded storage", func(t *testing.T) {
		storage := services.NewMockStorage()
		storage.SetPingError(errors.New("connection refused"))
		handler := NewHealthHandler(storage, testLogger())

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		var resp HealthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "degraded", resp.Status)
		assert.Equal(t, "unhealthy", resp.Components["storage"])
	})
}
