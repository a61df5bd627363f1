package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/threatwatch/internal/alerts"
	"github.com/richxcame/threatwatch/internal/patterns"
	"github.com/richxcame/threatwatch/internal/prediction"
	"github.com/richxcame/threatwatch/internal/store/memory"
	"github.com/richxcame/threatwatch/pkg/config"
	"github.com/richxcame/threatwatch/pkg/middleware"
	"github.com/richxcame/threatwatch/pkg/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSalt = "test-salt"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Environment: "test", CORSOrigins: "http://localhost:3000"},
		Alerts: config.AlertsConfig{FingerprintSalt: testSalt},
	}
}

// setupTestRouter builds the production router over an in-memory store
func setupTestRouter(t *testing.T, checks map[string]func() error) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	alertService := alerts.NewService(store)
	patternService := patterns.NewService(store, alertService, patterns.EmitOnCrossing)

	if checks == nil {
		checks = map[string]func() error{}
	}
	return setupRouter(testConfig(), dependencies{
		alerts:   alertService,
		patterns: patternService,
		engine:   prediction.NewEngine(prediction.Models{}),
		checks:   checks,
	})
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(alerts.DeviceIDHeader, "device-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		checks     map[string]func() error
		wantStatus int
	}{
		{"healthz", "/healthz", nil, http.StatusOK},
		{"live", "/health/live", nil, http.StatusOK},
		{"ready without deps", "/health/ready", nil, http.StatusOK},
		{"ready healthy", "/health/ready", map[string]func() error{"database": func() error { return nil }}, http.StatusOK},
		{"ready failing", "/health/ready", map[string]func() error{"redis": func() error { return errors.New("down") }}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter(t, tt.checks)

			w := doJSON(router, http.MethodGet, tt.path, "")

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.NotEmpty(t, w.Header().Get(middleware.CorrelationIDHeader))
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := setupTestRouter(t, nil)

	doJSON(router, http.MethodGet, "/healthz", "")
	w := doJSON(router, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "threatwatch_http_requests_total")
}

func TestAPIRoutes(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"submit alert", http.MethodPost, "/api/v1/alerts", `{"type":"FAKE_AGENT","title":"Fake agent","description":"Asked for PIN","severity":"HIGH"}`, http.StatusCreated},
		{"submit alert missing title", http.MethodPost, "/api/v1/alerts", `{"type":"FAKE_AGENT","description":"x"}`, http.StatusBadRequest},
		{"active alerts", http.MethodGet, "/api/v1/alerts/active", "", http.StatusOK},
		{"unknown alert", http.MethodGet, "/api/v1/alerts/missing", "", http.StatusNotFound},
		{"area safety", http.MethodGet, "/api/v1/areas/safety?lat=-1.29&lng=36.82", "", http.StatusOK},
		{"trending patterns", http.MethodGet, "/api/v1/patterns/trending", "", http.StatusOK},
		{"predict threats without model", http.MethodPost, "/api/v1/predictions/threats", `{"time_of_day":22,"day_of_week":5}`, http.StatusOK},
		{"behavior without model", http.MethodPost, "/api/v1/predictions/behavior", `{}`, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter(t, nil)

			w := doJSON(router, tt.method, tt.path, tt.body)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestAPIRoutes_RejectsNonJSONBody(t *testing.T) {
	router := setupTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts", bytes.NewBufferString("type=FAKE_AGENT"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestSubmitAlert_FingerprintsDevice(t *testing.T) {
	router := setupTestRouter(t, nil)

	w := doJSON(router, http.MethodPost, "/api/v1/alerts", `{"type":"SCAM_HOTSPOT","title":"Hotspot","description":"Many reports"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data alerts.SafetyAlert `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, alerts.Fingerprint("device-1", testSalt), resp.Data.ReporterFingerprint)
	assert.NotEqual(t, "device-1", resp.Data.ReporterFingerprint)
}

func TestReporterIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	identify := reporterIdentity(testSalt)

	tests := []struct {
		name   string
		device string
		want   string
	}{
		{"device header", "device-1", alerts.Fingerprint("device-1", testSalt)},
		{"padded device header", "  device-1 ", alerts.Fingerprint("device-1", testSalt)},
		{"client address", "", alerts.Fingerprint("ip:192.0.2.1", testSalt)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/alerts", nil)
			c.Request.RemoteAddr = "192.0.2.1:5555"
			if tt.device != "" {
				c.Request.Header.Set(alerts.DeviceIDHeader, tt.device)
			}

			assert.Equal(t, tt.want, identify(c))
		})
	}
}

func TestSplitOrigins(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"http://a.test", []string{"http://a.test"}},
		{" http://a.test , ,http://b.test ", []string{"http://a.test", "http://b.test"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, splitOrigins(tt.in))
		})
	}
}

func TestEscalationStreamRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := memory.NewStore()
	alertService := alerts.NewService(store)

	tests := []struct {
		name   string
		hub    *websocket.Hub
		status int
	}{
		{name: "monitor disabled", hub: nil, status: http.StatusNotFound},
		{name: "plain request is not upgraded", hub: websocket.NewHub(nil), status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupRouter(testConfig(), dependencies{
				alerts:   alertService,
				patterns: patterns.NewService(store, alertService, patterns.EmitOnCrossing),
				engine:   prediction.NewEngine(prediction.Models{}),
				hub:      tt.hub,
				checks:   map[string]func() error{},
			})

			w := doJSON(router, http.MethodGet, "/api/v1/escalations/stream", "")

			assert.Equal(t, tt.status, w.Code)
		})
	}
}
