package alerts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/threatwatch/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupRouter(store Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHandler(newTestService(store), "test-salt")
	handler.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func doRequest(router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandler_SubmitAlert(t *testing.T) {
	store := new(mockStore)
	router := setupRouter(store)

	expected := Fingerprint("device-1", "test-salt")
	store.On("CreateAlert", mock.Anything, mock.MatchedBy(func(a *SafetyAlert) bool {
		return a.ReporterFingerprint == expected
	})).Return(nil).Once()

	w := doRequest(router, http.MethodPost, "/api/v1/alerts", map[string]interface{}{
		"type":        "PHISHING_CAMPAIGN",
		"title":       "Fake bank link",
		"description": "SMS with a login link",
		"severity":    "HIGH",
		"location":    map[string]float64{"latitude": -1.29, "longitude": 36.82},
	}, map[string]string{DeviceIDHeader: "device-1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp["success"].(bool))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "PHISHING_CAMPAIGN", data["type"])
	assert.Equal(t, expected, data["reporter_fingerprint"])
	store.AssertExpectations(t)
}

func TestHandler_SubmitAlert_BadBody(t *testing.T) {
	router := setupRouter(new(mockStore))

	w := doRequest(router, http.MethodPost, "/api/v1/alerts", map[string]interface{}{"title": "missing fields"}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_SubmitAlert_UnknownType(t *testing.T) {
	router := setupRouter(new(mockStore))

	w := doRequest(router, http.MethodPost, "/api/v1/alerts", map[string]interface{}{
		"type":        "UFO_SIGHTING",
		"title":       "t",
		"description": "d",
	}, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandler_VerifyAlert(t *testing.T) {
	tests := []struct {
		name       string
		storeAlert *SafetyAlert
		storeErr   error
		body       interface{}
		wantStatus int
	}{
		{
			name:       "legitimate vote",
			storeAlert: &SafetyAlert{ID: "a1", VerificationCount: 2},
			body:       map[string]bool{"legitimate": true},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing alert",
			storeErr:   fmt.Errorf("alert a1: %w", common.ErrNotFound),
			body:       map[string]bool{"legitimate": true},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "store failure",
			storeErr:   errors.New("connection reset"),
			body:       map[string]bool{"legitimate": false},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "missing vote",
			body:       map[string]string{},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(mockStore)
			router := setupRouter(store)
			if tt.storeAlert != nil || tt.storeErr != nil {
				store.On("UpdateAlert", mock.Anything, "a1").Return(tt.storeAlert, tt.storeErr).Once()
			}

			w := doRequest(router, http.MethodPost, "/api/v1/alerts/a1/verify", tt.body, nil)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				data := decodeResponse(t, w)["data"].(map[string]interface{})
				assert.Equal(t, float64(3), data["verification_count"])
				assert.Equal(t, true, data["is_verified"])
			}
		})
	}
}

func TestHandler_GetAreaSafety(t *testing.T) {
	store := new(mockStore)
	router := setupRouter(store)
	store.On("QueryAlerts", mock.Anything, mock.Anything).Return([]*SafetyAlert{}, nil).Once()

	w := doRequest(router, http.MethodGet, "/api/v1/areas/safety?lat=-1.2921&lng=36.8219&radius_km=2", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w)["data"].(map[string]interface{})
	assert.Equal(t, 0.8, data["score"])
	assert.Equal(t, string(SafetySafe), data["level"])
}

func TestHandler_GetAlertsInWindow(t *testing.T) {
	since := time.Date(2026, 5, 12, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		query  string
		setup  func(*mockStore)
		status int
		count  float64
	}{
		{
			name:  "lists alerts since timestamp",
			query: "?since=2026-05-12T08:00:00Z",
			setup: func(m *mockStore) {
				m.On("QueryAlerts", mock.Anything, mock.MatchedBy(func(q Query) bool {
					return q.Since.Equal(since) && q.ActiveAt.IsZero() && q.Cells == nil
				})).Return([]*SafetyAlert{{ID: "a1"}, {ID: "a2"}}, nil).Once()
			},
			status: http.StatusOK,
			count:  2,
		},
		{name: "missing since", query: "", setup: func(m *mockStore) {}, status: http.StatusBadRequest},
		{name: "malformed since", query: "?since=yesterday", setup: func(m *mockStore) {}, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(mockStore)
			tt.setup(store)
			router := setupRouter(store)

			w := doRequest(router, http.MethodGet, "/api/v1/alerts"+tt.query, nil, nil)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				data := decodeResponse(t, w)["data"].(map[string]interface{})
				assert.Equal(t, tt.count, data["count"])
			}
			store.AssertExpectations(t)
		})
	}
}

func TestHandler_GetNearbyAlerts_InvalidQuery(t *testing.T) {
	router := setupRouter(new(mockStore))

	w := doRequest(router, http.MethodGet, "/api/v1/alerts/nearby?lat=200&lng=0", nil, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_GetAlert_NotFound(t *testing.T) {
	store := new(mockStore)
	router := setupRouter(store)
	store.On("GetAlert", mock.Anything, "nope").Return(nil, fmt.Errorf("alert nope: %w", common.ErrNotFound)).Once()

	w := doRequest(router, http.MethodGet, "/api/v1/alerts/nope", nil, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeResponse(t, w)
	assert.False(t, resp["success"].(bool))
}
