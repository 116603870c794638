package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name       string
		checker    Checker
		wantStatus Status
		wantCode   int
	}{
		{"healthy", &mockChecker{name: "test"}, StatusOK, http.StatusOK},
		{"degraded", &mockChecker{name: "test", err: ErrDegraded}, StatusDegraded, http.StatusOK},
		{"down", &mockChecker{name: "test", err: assert.AnError}, StatusDown, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := NewManager(nil)
			manager.Register(tt.checker)
			handler := NewHandler(manager)

			rr := httptest.NewRecorder()
			handler.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assert.Equal(t, "no-cache, no-store, must-revalidate", rr.Header().Get("Cache-Control"))

			var response Response
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
			assert.Equal(t, tt.wantStatus, response.Status)
			assert.NotEmpty(t, response.Version)
			assert.NotEmpty(t, response.Uptime)
			assert.Contains(t, response.Checks, "test")
		})
	}
}

func TestHandleReady(t *testing.T) {
	manager := NewManager(nil)
	manager.Register(&mockChecker{name: "test"})
	handler := NewHandler(manager)

	// Nothing has run yet
	rr := httptest.NewRecorder()
	handler.HandleReady(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	manager.RunChecks(context.Background())

	rr = httptest.NewRecorder()
	handler.HandleReady(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHandleLive(t *testing.T) {
	handler := NewHandler(NewManager(nil))

	rr := httptest.NewRecorder()
	handler.HandleLive(rr, httptest.NewRequest(http.MethodGet, "/live", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "alive")
}

func TestGetUptime(t *testing.T) {
	handler := &Handler{startTime: time.Now().Add(-90 * time.Second)}
	assert.Equal(t, "1m30s", handler.getUptime())
}
