package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveHealth(t *testing.T, h gin.HandlerFunc) (*httptest.ResponseRecorder, HealthResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthz", h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var body HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestHealthCheck(t *testing.T) {
	w, body := serveHealth(t, HealthCheck("threatwatch", "1.0.0"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "threatwatch", body.Service)
	assert.Empty(t, body.Checks)
}

func TestHealthCheckWithDeps(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]func() error
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "no dependencies",
			checks:     map[string]func() error{},
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
		},
		{
			name: "all healthy",
			checks: map[string]func() error{
				"postgres": func() error { return nil },
				"redis":    func() error { return nil },
			},
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			wantChecks: map[string]string{"postgres": "healthy", "redis": "healthy"},
		},
		{
			name: "one failing",
			checks: map[string]func() error{
				"postgres": func() error { return nil },
				"nats":     func() error { return errors.New("disconnected") },
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
			wantChecks: map[string]string{"postgres": "healthy", "nats": "unhealthy: disconnected"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := serveHealth(t, HealthCheckWithDeps("threatwatch", "1.0.0", tt.checks))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantStatus, body.Status)
			if tt.wantChecks != nil {
				assert.Equal(t, tt.wantChecks, body.Checks)
			}
		})
	}
}
