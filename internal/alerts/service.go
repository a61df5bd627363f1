package alerts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/threatwatch/internal/geo"
	"github.com/richxcame/threatwatch/pkg/common"
	"github.com/richxcame/threatwatch/pkg/logger"
	"github.com/richxcame/threatwatch/pkg/security"
	"go.uber.org/zap"
)

const defaultActiveLimit = 100

// Service handles community alert business logic
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a new alert service
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// SetClock overrides the time source
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SubmitAlert validates and stores a new alert
func (s *Service) SubmitAlert(ctx context.Context, req *SubmitAlertRequest) (*SafetyAlert, error) {
	if req != nil {
		clean := *req
		clean.Title = security.SanitizeString(req.Title)
		clean.Description = security.SanitizeString(req.Description)
		req = &clean
	}
	if err := validateSubmission(req); err != nil {
		return nil, err
	}

	severity := req.Severity
	if severity == "" {
		severity = SeverityMedium
	}

	fingerprint := req.ReporterFingerprint
	if fingerprint == "" {
		fingerprint = AnonymousReporter
	}

	ttl := DefaultAlertTTL
	if req.TTLHours > 0 {
		ttl = time.Duration(req.TTLHours) * time.Hour
	}

	now := s.now()
	alert := &SafetyAlert{
		ID:                  uuid.New().String(),
		Type:                req.Type,
		Title:               req.Title,
		Description:         req.Description,
		Location:            req.Location,
		CreatedAt:           now,
		ReporterFingerprint: fingerprint,
		Severity:            severity,
		ExpiresAt:           now.Add(ttl),
		Tags:                DeriveTags(req.Type, now),
	}

	if alert.Location != nil {
		cell, err := geo.CellFor(*alert.Location)
		if err != nil {
			return nil, common.NewBadRequestError("invalid location", err)
		}
		alert.Cell = cell
	}

	if err := s.store.CreateAlert(ctx, alert); err != nil {
		return nil, common.NewStoreError("failed to create alert", err)
	}

	logger.WithContext(ctx).Info("Safety alert submitted",
		zap.String("alert_id", alert.ID),
		zap.String("type", string(alert.Type)),
		zap.String("severity", string(alert.Severity)),
		zap.Bool("has_location", alert.Location != nil),
	)

	return alert, nil
}

// VerifyAlert records a community vote. A legitimate vote increments the
// counter, any other vote decrements it. Once verified an alert stays verified.
func (s *Service) VerifyAlert(ctx context.Context, alertID string, legitimate bool) (*SafetyAlert, error) {
	if strings.TrimSpace(alertID) == "" {
		return nil, common.NewValidationError("alert id is required")
	}

	updated, err := s.store.UpdateAlert(ctx, alertID, func(a *SafetyAlert) error {
		if legitimate {
			a.VerificationCount++
		} else {
			a.VerificationCount--
		}
		if a.VerificationCount >= VerificationThreshold {
			a.IsVerified = true
		}
		return nil
	})
	if err != nil {
		return nil, storeError("failed to verify alert", "alert not found", err)
	}

	return updated, nil
}

// GetAlert returns a single alert
func (s *Service) GetAlert(ctx context.Context, alertID string) (*SafetyAlert, error) {
	alert, err := s.store.GetAlert(ctx, alertID)
	if err != nil {
		return nil, storeError("failed to get alert", "alert not found", err)
	}
	return alert, nil
}

// ActiveAlerts returns unexpired alerts, newest first
func (s *Service) ActiveAlerts(ctx context.Context, limit int) ([]*SafetyAlert, error) {
	if limit <= 0 {
		limit = defaultActiveLimit
	}

	alerts, err := s.store.QueryAlerts(ctx, Query{ActiveAt: s.now(), Limit: limit})
	if err != nil {
		return nil, common.NewStoreError("failed to list active alerts", err)
	}
	return alerts, nil
}

// NearbyAlerts returns active alerts whose location lies within radiusKm of center
func (s *Service) NearbyAlerts(ctx context.Context, center geo.Point, radiusKm float64) ([]*SafetyAlert, error) {
	q := Query{ActiveAt: s.now()}
	return s.alertsWithin(ctx, q, center, radiusKm)
}

// AlertsInWindow returns every alert created at or after since
func (s *Service) AlertsInWindow(ctx context.Context, since time.Time) ([]*SafetyAlert, error) {
	if since.IsZero() {
		return nil, common.NewValidationError("since is required")
	}
	alerts, err := s.store.QueryAlerts(ctx, Query{Since: since})
	if err != nil {
		return nil, common.NewStoreError("failed to list alerts", err)
	}
	return alerts, nil
}

// AreaSafety scores an area from the alerts of the trailing safety window
func (s *Service) AreaSafety(ctx context.Context, center geo.Point, radiusKm float64) (*AreaSafetyScore, error) {
	q := Query{Since: s.now().Add(-SafetyWindow)}
	alerts, err := s.alertsWithin(ctx, q, center, radiusKm)
	if err != nil {
		return nil, err
	}

	score := SafetyScore(alerts)
	return &score, nil
}

func (s *Service) alertsWithin(ctx context.Context, q Query, center geo.Point, radiusKm float64) ([]*SafetyAlert, error) {
	if radiusKm <= 0 {
		return nil, common.NewValidationError("radius must be positive")
	}

	cells, err := geo.CoveringCells(center, radiusKm)
	if err != nil {
		return nil, common.NewBadRequestError("invalid area", err)
	}
	q.Cells = cells

	candidates, err := s.store.QueryAlerts(ctx, q)
	if err != nil {
		return nil, common.NewStoreError("failed to query alerts", err)
	}

	result := make([]*SafetyAlert, 0, len(candidates))
	for _, a := range candidates {
		if a.Location == nil {
			continue
		}
		if geo.Within(center, *a.Location, radiusKm) {
			result = append(result, a)
		}
	}
	return result, nil
}

func validateSubmission(req *SubmitAlertRequest) error {
	if req == nil {
		return common.NewValidationError("alert is required")
	}
	if strings.TrimSpace(req.Title) == "" {
		return common.NewValidationError("title is required")
	}
	if strings.TrimSpace(req.Description) == "" {
		return common.NewValidationError("description is required")
	}
	if !req.Type.Valid() {
		return common.NewValidationError("unknown alert type")
	}
	if req.Severity != "" && !req.Severity.Valid() {
		return common.NewValidationError("unknown severity")
	}
	if loc := req.Location; loc != nil {
		if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
			return common.NewValidationError("location out of range")
		}
	}
	return nil
}

func storeError(message, notFoundMessage string, err error) error {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, common.ErrNotFound) {
		return common.NewNotFoundError(notFoundMessage)
	}
	return common.NewStoreError(message, err)
}
