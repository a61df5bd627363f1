package prediction

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/threatwatch/internal/features"
	"github.com/richxcame/threatwatch/pkg/common"
	"github.com/richxcame/threatwatch/pkg/middleware"
)

// Handler handles HTTP requests for predictions
type Handler struct {
	engine *Engine
}

// NewHandler creates a new prediction handler
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes registers prediction routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	predictions := r.Group("/predictions")
	{
		predictions.POST("/threats", h.PredictThreats)
		predictions.POST("/scams", h.DetectScams)
		predictions.POST("/behavior", h.AnalyzeBehavior)
	}
}

// PredictThreats ranks threats for a context
// POST /api/v1/predictions/threats
func (h *Handler) PredictThreats(c *gin.Context) {
	var tc features.ThreatContext
	if err := c.ShouldBindJSON(&tc); err != nil {
		middleware.RespondWithValidationError(c, "invalid threat context", err)
		return
	}

	predictions, err := h.engine.PredictThreats(c.Request.Context(), tc)
	if err != nil {
		respondError(c, err, "failed to predict threats")
		return
	}

	common.SuccessResponse(c, gin.H{"predictions": predictions, "count": len(predictions)})
}

// DetectScams scans messages for scam patterns
// POST /api/v1/predictions/scams
func (h *Handler) DetectScams(c *gin.Context) {
	var req ScamScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithValidationError(c, "invalid request body", err)
		return
	}

	predictions, err := h.engine.DetectScamPatterns(c.Request.Context(), req.Messages, req.Transactions)
	if err != nil {
		respondError(c, err, "failed to detect scams")
		return
	}

	common.SuccessResponse(c, gin.H{"predictions": predictions, "count": len(predictions)})
}

// AnalyzeBehavior profiles user activity
// POST /api/v1/predictions/behavior
func (h *Handler) AnalyzeBehavior(c *gin.Context) {
	var activity features.UserActivity
	if err := c.ShouldBindJSON(&activity); err != nil {
		middleware.RespondWithValidationError(c, "invalid activity", err)
		return
	}

	analysis, err := h.engine.AnalyzeBehavior(c.Request.Context(), activity)
	if err != nil {
		respondError(c, err, "failed to analyze behavior")
		return
	}

	common.SuccessResponse(c, analysis)
}

func respondError(c *gin.Context, err error, fallback string) {
	if appErr, ok := err.(*common.AppError); ok {
		common.AppErrorResponse(c, appErr)
		return
	}
	common.ErrorResponse(c, http.StatusInternalServerError, fallback)
}
