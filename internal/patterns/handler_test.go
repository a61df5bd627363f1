package patterns

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(store Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(newTestService(store, nil, EmitOnCrossing)).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestHandler_SubmitPattern(t *testing.T) {
	store := newFakeStore()
	router := setupRouter(store)

	body, _ := json.Marshal(map[string]interface{}{
		"pattern_type": "Fake Prize",
		"description":  "You have won a car",
		"phrases":      []string{"claim your prize", "processing fee"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patterns", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool        `json:"success"`
		Data    ScamPattern `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "fake_prize", resp.Data.ID)
	assert.Equal(t, 1, resp.Data.ReportCount)
}

func TestHandler_SubmitPattern_MissingFields(t *testing.T) {
	router := setupRouter(newFakeStore())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/patterns", bytes.NewReader([]byte(`{"phrases":["x"]}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_GetTrendingPatterns(t *testing.T) {
	store := newFakeStore()
	store.patterns["loan_scam"] = &ScamPattern{ID: "loan_scam", ReportCount: 4, LastSeen: baseTime}
	store.patterns["job_scam"] = &ScamPattern{ID: "job_scam", ReportCount: 1, LastSeen: baseTime}
	router := setupRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patterns/trending?limit=5", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data struct {
			Patterns []ScamPattern `json:"patterns"`
			Count    int           `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Count)
	assert.Equal(t, "loan_scam", resp.Data.Patterns[0].ID)
}

func TestHandler_GetPattern_NotFound(t *testing.T) {
	router := setupRouter(newFakeStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patterns/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
