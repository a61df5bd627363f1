package patterns

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/threatwatch/pkg/common"
	"github.com/richxcame/threatwatch/pkg/middleware"
	"github.com/richxcame/threatwatch/pkg/pagination"
)

// Handler handles HTTP requests for scam patterns
type Handler struct {
	service *Service
	submit  []gin.HandlerFunc
}

// NewHandler creates a new pattern handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// UseOnSubmit adds middleware that runs only in front of pattern reports
func (h *Handler) UseOnSubmit(mw ...gin.HandlerFunc) *Handler {
	h.submit = append(h.submit, mw...)
	return h
}

// RegisterRoutes registers pattern routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patterns := r.Group("/patterns")
	{
		patterns.POST("", append(h.submit, h.SubmitPattern)...)
		patterns.GET("/trending", h.GetTrendingPatterns)
		patterns.GET("/:id", h.GetPattern)
	}
}

// SubmitPattern records a scam pattern report
// POST /api/v1/patterns
func (h *Handler) SubmitPattern(c *gin.Context) {
	var req SubmitPatternRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithValidationError(c, "invalid request body", err)
		return
	}

	pattern, err := h.service.SubmitPattern(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "failed to submit pattern")
		return
	}

	common.SuccessResponse(c, pattern)
}

// GetTrendingPatterns lists trending scam patterns
// GET /api/v1/patterns/trending?limit=10
func (h *Handler) GetTrendingPatterns(c *gin.Context) {
	limit := pagination.ParseLimit(c, 10)

	patterns, err := h.service.TrendingPatterns(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err, "failed to list trending patterns")
		return
	}

	common.SuccessResponse(c, gin.H{"patterns": patterns, "count": len(patterns)})
}

// GetPattern returns one pattern
// GET /api/v1/patterns/:id
func (h *Handler) GetPattern(c *gin.Context) {
	pattern, err := h.service.GetPattern(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "failed to get pattern")
		return
	}

	common.SuccessResponse(c, pattern)
}

func respondError(c *gin.Context, err error, fallback string) {
	if appErr, ok := err.(*common.AppError); ok {
		common.AppErrorResponse(c, appErr)
		return
	}
	common.ErrorResponse(c, http.StatusInternalServerError, fallback)
}
