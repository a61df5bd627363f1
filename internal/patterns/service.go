package patterns

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/richxcame/threatwatch/internal/alerts"
	"github.com/richxcame/threatwatch/pkg/common"
	"github.com/richxcame/threatwatch/pkg/logger"
	"github.com/richxcame/threatwatch/pkg/security"
	"go.uber.org/zap"
)

const defaultTrendingLimit = 10

var (
	patternReports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatwatch_pattern_reports_total",
			Help: "Scam pattern reports by outcome",
		},
		[]string{"outcome"},
	)

	trendAlerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatwatch_pattern_trend_alerts_total",
			Help: "Synthetic trend alerts for trending scam patterns by result",
		},
		[]string{"result"},
	)
)

// Service aggregates scam pattern reports
type Service struct {
	store    Store
	alerts   AlertSubmitter
	emission TrendEmission
	now      func() time.Time
}

// NewService creates a new pattern service
func NewService(store Store, alerts AlertSubmitter, emission TrendEmission) *Service {
	if emission == "" {
		emission = EmitOnCrossing
	}
	return &Service{
		store:    store,
		alerts:   alerts,
		emission: emission,
		now:      time.Now,
	}
}

// SetClock overrides the time source
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SubmitPattern merges a report into the pattern keyed by its type, creating
// it on first report. A synthetic SCAM_HOTSPOT alert is emitted when the
// pattern trends under the configured emission policy.
func (s *Service) SubmitPattern(ctx context.Context, req *SubmitPatternRequest) (*ScamPattern, error) {
	if req == nil {
		return nil, common.NewValidationError("pattern is required")
	}
	key := PatternKey(req.PatternType)
	if key == "" || key == "_" {
		return nil, common.NewValidationError("pattern type is required")
	}
	description := security.SanitizeString(req.Description)
	if description == "" {
		return nil, common.NewValidationError("description is required")
	}

	now := s.now()
	var (
		created bool
		emit    bool
	)

	pattern, err := s.store.UpsertPattern(ctx, key, func(existing *ScamPattern) (*ScamPattern, error) {
		var next ScamPattern
		if existing == nil {
			created = true
			next = ScamPattern{
				ID:              key,
				PatternType:     strings.TrimSpace(req.PatternType),
				Description:     description,
				CommonPhrases:   MergePhrases(nil, req.Phrases),
				ReportCount:     1,
				LastSeen:        now,
				Countermeasures: Countermeasures(key),
			}
		} else {
			created = false
			next = *existing
			next.ReportCount = existing.ReportCount + 1
			next.LastSeen = now
			next.CommonPhrases = MergePhrases(existing.CommonPhrases, req.Phrases)
		}

		// the claim commits with the report so concurrent reports emit once
		emit = s.alerts != nil && s.emission.ShouldEmit(next.ReportCount, next.TrendAlerted)
		if emit {
			next.TrendAlerted = true
		}
		return &next, nil
	})
	if err != nil {
		patternReports.WithLabelValues("error").Inc()
		return nil, common.NewStoreError("failed to save scam pattern", err)
	}

	outcome := "merged"
	if created {
		outcome = "created"
	}
	patternReports.WithLabelValues(outcome).Inc()

	logger.WithContext(ctx).Info("Scam pattern reported",
		zap.String("pattern_id", pattern.ID),
		zap.String("outcome", outcome),
		zap.Int("report_count", pattern.ReportCount),
	)

	if emit {
		s.emitTrendAlert(ctx, pattern)
	}

	return pattern, nil
}

// emitTrendAlert submits the synthetic alert. The pattern write is already
// committed, so a failure is not returned; the trend claim is released
// instead and the next report of the pattern tries again.
func (s *Service) emitTrendAlert(ctx context.Context, pattern *ScamPattern) {
	alert, err := s.alerts.SubmitAlert(ctx, &alerts.SubmitAlertRequest{
		Type:                alerts.AlertScamHotspot,
		Title:               fmt.Sprintf("Trending scam: %s", pattern.PatternType),
		Description:         fmt.Sprintf("%s (reported %d times)", pattern.Description, pattern.ReportCount),
		Severity:            alerts.SeverityMedium,
		ReporterFingerprint: alerts.SystemReporter,
	})
	if err != nil {
		trendAlerts.WithLabelValues("error").Inc()
		logger.WithContext(ctx).Error("Failed to emit trend alert",
			zap.String("pattern_id", pattern.ID),
			zap.Error(err),
		)
		if err := s.releaseTrendClaim(ctx, pattern.ID); err != nil {
			logger.WithContext(ctx).Error("Failed to release trend claim",
				zap.String("pattern_id", pattern.ID),
				zap.Error(err),
			)
			return
		}
		pattern.TrendAlerted = false
		return
	}

	trendAlerts.WithLabelValues("emitted").Inc()
	logger.WithContext(ctx).Info("Trend alert emitted",
		zap.String("pattern_id", pattern.ID),
		zap.String("alert_id", alert.ID),
	)
}

func (s *Service) releaseTrendClaim(ctx context.Context, id string) error {
	_, err := s.store.UpsertPattern(ctx, id, func(existing *ScamPattern) (*ScamPattern, error) {
		if existing == nil {
			return nil, fmt.Errorf("pattern %s: %w", id, common.ErrNotFound)
		}
		next := *existing
		next.TrendAlerted = false
		return &next, nil
	})
	return err
}

// GetPattern returns a pattern by type or key
func (s *Service) GetPattern(ctx context.Context, patternType string) (*ScamPattern, error) {
	pattern, err := s.store.GetPattern(ctx, PatternKey(patternType))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NewNotFoundError("scam pattern not found")
		}
		return nil, common.NewStoreError("failed to get scam pattern", err)
	}
	return pattern, nil
}

// TrendingPatterns returns patterns reported more than twice, most reported
// first and most recently seen first among equals
func (s *Service) TrendingPatterns(ctx context.Context, limit int) ([]*ScamPattern, error) {
	if limit <= 0 {
		limit = defaultTrendingLimit
	}

	patterns, err := s.store.ListPatterns(ctx, TrendThreshold)
	if err != nil {
		return nil, common.NewStoreError("failed to list scam patterns", err)
	}

	trending := make([]*ScamPattern, 0, len(patterns))
	for _, p := range patterns {
		if p.ReportCount > TrendThreshold-1 {
			trending = append(trending, p)
		}
	}

	sort.SliceStable(trending, func(i, j int) bool {
		if trending[i].ReportCount != trending[j].ReportCount {
			return trending[i].ReportCount > trending[j].ReportCount
		}
		return trending[i].LastSeen.After(trending[j].LastSeen)
	})

	if len(trending) > limit {
		trending = trending[:limit]
	}
	return trending, nil
}
