package alerts

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/threatwatch/internal/geo"
	"github.com/richxcame/threatwatch/pkg/common"
	"github.com/richxcame/threatwatch/pkg/middleware"
	"github.com/richxcame/threatwatch/pkg/pagination"
)

const (
	// DeviceIDHeader carries the opaque reporter id hashed into the fingerprint
	DeviceIDHeader = "X-Device-ID"

	defaultRadiusKm = 5.0
)

// Handler handles HTTP requests for community alerts
type Handler struct {
	service *Service
	salt    string
	submit  []gin.HandlerFunc
}

// NewHandler creates a new alert handler
func NewHandler(service *Service, fingerprintSalt string) *Handler {
	return &Handler{service: service, salt: fingerprintSalt}
}

// UseOnSubmit adds middleware that runs only in front of alert submission
func (h *Handler) UseOnSubmit(mw ...gin.HandlerFunc) *Handler {
	h.submit = append(h.submit, mw...)
	return h
}

// RegisterRoutes registers alert routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	alerts := r.Group("/alerts")
	{
		alerts.POST("", append(h.submit, h.SubmitAlert)...)
		alerts.GET("", h.GetAlertsInWindow)
		alerts.GET("/active", h.GetActiveAlerts)
		alerts.GET("/nearby", h.GetNearbyAlerts)
		alerts.GET("/:id", h.GetAlert)
		alerts.POST("/:id/verify", h.VerifyAlert)
	}

	r.GET("/areas/safety", h.GetAreaSafety)
}

// SubmitAlert creates a new community alert
// POST /api/v1/alerts
func (h *Handler) SubmitAlert(c *gin.Context) {
	var req SubmitAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithValidationError(c, "invalid request body", err)
		return
	}
	req.ReporterFingerprint = Fingerprint(c.GetHeader(DeviceIDHeader), h.salt)

	alert, err := h.service.SubmitAlert(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "failed to submit alert")
		return
	}

	common.CreatedResponse(c, alert)
}

// GetAlert returns one alert
// GET /api/v1/alerts/:id
func (h *Handler) GetAlert(c *gin.Context) {
	alert, err := h.service.GetAlert(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "failed to get alert")
		return
	}

	common.SuccessResponse(c, alert)
}

// GetActiveAlerts lists unexpired alerts
// GET /api/v1/alerts/active?limit=50
func (h *Handler) GetActiveAlerts(c *gin.Context) {
	limit := pagination.ParseLimit(c, 50)

	alerts, err := h.service.ActiveAlerts(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err, "failed to list alerts")
		return
	}

	common.SuccessResponse(c, gin.H{"alerts": alerts, "count": len(alerts)})
}

// GetAlertsInWindow lists every alert created since a timestamp, expired
// ones included
// GET /api/v1/alerts?since=2026-05-12T00:00:00Z
func (h *Handler) GetAlertsInWindow(c *gin.Context) {
	var q WindowQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.RespondWithValidationError(c, "invalid window query", err)
		return
	}

	alerts, err := h.service.AlertsInWindow(c.Request.Context(), q.Since)
	if err != nil {
		respondError(c, err, "failed to list alerts")
		return
	}

	common.SuccessResponse(c, gin.H{"alerts": alerts, "count": len(alerts)})
}

// GetNearbyAlerts lists active alerts around a point
// GET /api/v1/alerts/nearby?lat=..&lng=..&radius_km=..
func (h *Handler) GetNearbyAlerts(c *gin.Context) {
	q, ok := bindArea(c)
	if !ok {
		return
	}

	alerts, err := h.service.NearbyAlerts(c.Request.Context(), geo.Point{Latitude: q.Latitude, Longitude: q.Longitude}, q.RadiusKm)
	if err != nil {
		respondError(c, err, "failed to list nearby alerts")
		return
	}

	common.SuccessResponse(c, gin.H{"alerts": alerts, "count": len(alerts)})
}

// VerifyAlert records a verification vote
// POST /api/v1/alerts/:id/verify
func (h *Handler) VerifyAlert(c *gin.Context) {
	var req VerifyAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithValidationError(c, "invalid request body", err)
		return
	}

	alert, err := h.service.VerifyAlert(c.Request.Context(), c.Param("id"), *req.Legitimate)
	if err != nil {
		respondError(c, err, "failed to verify alert")
		return
	}

	common.SuccessResponse(c, alert)
}

// GetAreaSafety returns the safety score of an area
// GET /api/v1/areas/safety?lat=..&lng=..&radius_km=..
func (h *Handler) GetAreaSafety(c *gin.Context) {
	q, ok := bindArea(c)
	if !ok {
		return
	}

	score, err := h.service.AreaSafety(c.Request.Context(), geo.Point{Latitude: q.Latitude, Longitude: q.Longitude}, q.RadiusKm)
	if err != nil {
		respondError(c, err, "failed to compute area safety")
		return
	}

	common.SuccessResponse(c, score)
}

func bindArea(c *gin.Context) (*AreaQuery, bool) {
	var q AreaQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.RespondWithValidationError(c, "invalid area query", err)
		return nil, false
	}
	if q.RadiusKm == 0 {
		q.RadiusKm = defaultRadiusKm
	}
	return &q, true
}

func respondError(c *gin.Context, err error, fallback string) {
	if appErr, ok := err.(*common.AppError); ok {
		common.AppErrorResponse(c, appErr)
		return
	}
	common.ErrorResponse(c, http.StatusInternalServerError, fallback)
}
