package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/threatwatch/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type submission struct {
	Title string `json:"title" binding:"required,max=5"`
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.POST("/submit", func(c *gin.Context) {
		var req submission
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondWithValidationError(c, "invalid request body", err)
			return
		}
		common.SuccessResponse(c, req)
	})
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	r.GET("/ok", func(c *gin.Context) {
		common.SuccessResponse(c, GetCorrelationID(c))
	})
	return r
}

func decode(t *testing.T, w *httptest.ResponseRecorder) common.Response {
	t.Helper()
	var resp common.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCorrelationID(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"propagates header", "req-123"},
		{"generates when missing", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ok", nil)
			if tt.header != "" {
				req.Header.Set(CorrelationIDHeader, tt.header)
			}
			w := httptest.NewRecorder()

			newRouter(CorrelationID()).ServeHTTP(w, req)

			got := w.Header().Get(CorrelationIDHeader)
			require.NotEmpty(t, got)
			if tt.header != "" {
				assert.Equal(t, tt.header, got)
			}
			assert.Equal(t, got, decode(t, w).Data)
		})
	}
}

func TestRecovery(t *testing.T) {
	w := httptest.NewRecorder()

	newRouter(Recovery()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decode(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, "internal server error", resp.Error.Message)
}

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		name string
		hsts bool
	}{
		{"without hsts", false},
		{"with hsts", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			newRouter(SecurityHeaders(tt.hsts)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
			assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
			assert.Equal(t, tt.hsts, w.Header().Get("Strict-Transport-Security") != "")
		})
	}
}

func TestRespondWithValidationError(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantCode    int
		wantMessage string
	}{
		{"valid", `{"title":"ok"}`, http.StatusOK, ""},
		{"missing field", `{}`, http.StatusBadRequest, "invalid request body: Title is required"},
		{"too long", `{"title":"much too long"}`, http.StatusBadRequest, "invalid request body: Title must be at most 5 characters long"},
		{"malformed", `{"title":`, http.StatusBadRequest, "invalid request body: malformed request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			newRouter().ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, decode(t, w).Error.Message)
			}
		})
	}
}

func TestMaxBodySize(t *testing.T) {
	body := `{"title":"` + strings.Repeat("x", 100) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/submit", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	newRouter(MaxBodySize(16)).ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestValidateJSONContentType(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		wantCode    int
	}{
		{"json", "application/json", http.StatusOK},
		{"json with charset", "application/json; charset=utf-8", http.StatusOK},
		{"form", "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(`{"title":"ok"}`))
			req.Header.Set("Content-Type", tt.contentType)
			w := httptest.NewRecorder()

			newRouter(ValidateJSONContentType()).ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestMetricsAndLoggerPassThrough(t *testing.T) {
	w := httptest.NewRecorder()

	newRouter(Metrics("threatwatch"), RequestLogger()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}
