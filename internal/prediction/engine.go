package prediction

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/richxcame/threatwatch/internal/features"
	"github.com/richxcame/threatwatch/pkg/common"
	"github.com/richxcame/threatwatch/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Retention thresholds. Scam predictions are surfaced per message, so the bar
// is higher.
const (
	ThreatThreshold        = 0.10
	ScamThreshold          = 0.30
	VulnerabilityThreshold = 0.30
)

const behaviorOutputSize = 5

var (
	predictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatwatch_predictions_total",
			Help: "Prediction requests by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	predictionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "threatwatch_prediction_duration_seconds",
			Help:    "Prediction latency by kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

// Engine turns feature vectors into ranked, enriched predictions
type Engine struct {
	models Models
	tracer trace.Tracer
}

// NewEngine creates an engine over models. Missing models degrade per
// operation: threat and scam predictions come back empty, behaviour
// analysis fails.
func NewEngine(models Models) *Engine {
	return &Engine{
		models: models,
		tracer: otel.Tracer("threatwatch/prediction"),
	}
}

// PredictThreats ranks threat categories for the context
func (e *Engine) PredictThreats(ctx context.Context, tc features.ThreatContext) ([]ThreatPrediction, error) {
	ctx, span := e.tracer.Start(ctx, "prediction.PredictThreats")
	defer span.End()
	defer observe("threat", time.Now())

	if e.models.Threat == nil {
		predictionsTotal.WithLabelValues("threat", "unavailable").Inc()
		logger.WithContext(ctx).Debug("threat model unavailable, returning no predictions")
		return []ThreatPrediction{}, nil
	}

	vector := features.ThreatFeatures(tc)
	probs, err := classify(ctx, e.models.Threat, vector, len(AllThreatTypes), "threat")
	if err != nil {
		return nil, fail(ctx, span, "threat", err)
	}

	diversity := features.Diversity(vector)
	hasCommunityAlerts := len(tc.CommunityAlerts) > 0

	predictions := make([]ThreatPrediction, 0, len(AllThreatTypes))
	for i, threat := range AllThreatTypes {
		p := probs[i]
		if p <= ThreatThreshold {
			continue
		}
		predictions = append(predictions, ThreatPrediction{
			ThreatType:          threat,
			Probability:         p,
			Confidence:          confidence(p, diversity),
			RiskLevel:           RiskLevelFor(p),
			TimeWindow:          windowFor(threat),
			GeographicScope:     scopeFor(threat, hasCommunityAlerts),
			ContributingFactors: threatFactors(threat),
			RecommendedActions:  threatActions(threat, p),
		})
	}

	sort.SliceStable(predictions, func(i, j int) bool {
		if predictions[i].Probability != predictions[j].Probability {
			return predictions[i].Probability > predictions[j].Probability
		}
		return predictions[i].RiskLevel > predictions[j].RiskLevel
	})

	span.SetAttributes(attribute.Int("prediction.count", len(predictions)))
	predictionsTotal.WithLabelValues("threat", "ok").Inc()
	return predictions, nil
}

// DetectScamPatterns classifies each message and returns at most one
// prediction per scam category, keeping the first message that raised it
func (e *Engine) DetectScamPatterns(ctx context.Context, messages []string, transactions []features.Transaction) ([]ScamPrediction, error) {
	ctx, span := e.tracer.Start(ctx, "prediction.DetectScamPatterns",
		trace.WithAttributes(attribute.Int("prediction.messages", len(messages))),
	)
	defer span.End()
	defer observe("scam", time.Now())

	if e.models.Scam == nil {
		predictionsTotal.WithLabelValues("scam", "unavailable").Inc()
		logger.WithContext(ctx).Debug("scam model unavailable, returning no predictions")
		return []ScamPrediction{}, nil
	}

	seen := make(map[ScamType]struct{}, len(AllScamTypes))
	predictions := make([]ScamPrediction, 0)

	for idx, message := range messages {
		vector := features.ScamFeatures(message, transactions)
		probs, err := classify(ctx, e.models.Scam, vector, len(AllScamTypes), "scam")
		if err != nil {
			return nil, fail(ctx, span, "scam", err)
		}
		diversity := features.Diversity(vector)

		for i, scam := range AllScamTypes {
			p := probs[i]
			if p <= ScamThreshold {
				continue
			}
			if _, dup := seen[scam]; dup {
				continue
			}
			seen[scam] = struct{}{}

			entry := scamCatalog[scam]
			predictions = append(predictions, ScamPrediction{
				ScamType:            scam,
				Likelihood:          p,
				Confidence:          confidence(p, diversity),
				RiskLevel:           RiskLevelFor(p),
				MessageIndex:        idx,
				TargetDemographics:  cloneStrings(entry.demographics),
				CommonChannels:      cloneStrings(entry.channels),
				Indicators:          cloneStrings(entry.indicators),
				ContributingFactors: cloneFactors(entry.factors),
				RecommendedActions:  cloneStrings(entry.actions),
			})
		}
	}

	span.SetAttributes(attribute.Int("prediction.count", len(predictions)))
	predictionsTotal.WithLabelValues("scam", "ok").Inc()
	return predictions, nil
}

// AnalyzeBehavior profiles a user's activity. It fails when the behaviour
// model is unavailable.
func (e *Engine) AnalyzeBehavior(ctx context.Context, activity features.UserActivity) (*BehavioralAnalysis, error) {
	ctx, span := e.tracer.Start(ctx, "prediction.AnalyzeBehavior")
	defer span.End()
	defer observe("behavior", time.Now())

	if e.models.Behavior == nil {
		predictionsTotal.WithLabelValues("behavior", "unavailable").Inc()
		span.SetStatus(codes.Error, "model unavailable")
		return nil, common.NewModelUnavailableError("behavior")
	}

	vector := features.BehavioralFeatures(activity)
	out, err := classify(ctx, e.models.Behavior, vector, behaviorOutputSize, "behavior")
	if err != nil {
		return nil, fail(ctx, span, "behavior", err)
	}

	index := profileIndex(out[0])
	profile := AllRiskProfiles[index]
	certainty := clamp01(1 - math.Abs(out[0]-float64(index)))

	anomaly := clamp01(out[1])
	analysis := &BehavioralAnalysis{
		RiskProfile:      profile,
		AnomalyScore:     anomaly,
		AnomalyLevel:     RiskLevelFor(anomaly),
		Confidence:       confidence(certainty, features.Diversity(vector)),
		BehaviorPatterns: cloneStrings(profilePatterns[profile]),
		Vulnerabilities:  []Vulnerability{},
		Warnings:         []string{},
		ContributingFactors: []Factor{
			{Name: "Anomaly score", Weight: anomaly, Impact: impactFor(anomaly)},
		},
	}

	if analysis.AnomalyLevel >= RiskHigh {
		analysis.Warnings = append(analysis.Warnings, anomalyWarning)
	}

	for i, vt := range AllVulnerabilityTypes {
		score := clamp01(out[2+i])
		if score <= VulnerabilityThreshold {
			continue
		}
		level := RiskLevelFor(score)
		analysis.Vulnerabilities = append(analysis.Vulnerabilities, Vulnerability{
			Type:        vt,
			Score:       score,
			Level:       level,
			Description: vulnerabilityDescriptions[vt],
		})
		analysis.ContributingFactors = append(analysis.ContributingFactors, Factor{
			Name:   fmt.Sprintf("%s vulnerability", vt),
			Weight: score,
			Impact: impactFor(score),
		})
		if level >= RiskHigh {
			analysis.Warnings = append(analysis.Warnings, vulnerabilityWarnings[vt])
		}
	}

	if w, ok := profileWarnings[profile]; ok {
		analysis.Warnings = append(analysis.Warnings, w)
	}

	span.SetAttributes(
		attribute.String("prediction.profile", string(profile)),
		attribute.Float64("prediction.anomaly", anomaly),
	)
	predictionsTotal.WithLabelValues("behavior", "ok").Inc()
	return analysis, nil
}

// classify runs the classifier and rejects outputs shorter than want
func classify(ctx context.Context, c Classifier, vector []float64, want int, model string) ([]float64, error) {
	out, err := c.Classify(ctx, vector)
	if err != nil {
		return nil, err
	}
	if len(out) < want {
		return nil, fmt.Errorf("%s model returned %d outputs, want %d", model, len(out), want)
	}
	return out, nil
}

func fail(ctx context.Context, span trace.Span, kind string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	predictionsTotal.WithLabelValues(kind, "error").Inc()
	logger.WithContext(ctx).Error("prediction failed", zap.String("kind", kind), zap.Error(err))
	return common.NewAppError(http.StatusServiceUnavailable, fmt.Sprintf("%s prediction failed", kind), err)
}

func observe(kind string, start time.Time) {
	predictionDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func confidence(p, diversity float64) float64 {
	return clamp01(p*0.7 + diversity*0.3)
}

func impactFor(weight float64) Impact {
	switch {
	case weight >= 0.6:
		return ImpactHigh
	case weight >= 0.4:
		return ImpactMedium
	default:
		return ImpactLow
	}
}

// profileIndex rounds a raw profile output onto AllRiskProfiles. The value is
// clamped as a float first so NaN, infinities and huge outputs never reach
// the int conversion.
func profileIndex(raw float64) int {
	last := float64(len(AllRiskProfiles) - 1)
	switch {
	case math.IsNaN(raw), raw <= 0:
		return 0
	case raw >= last:
		return len(AllRiskProfiles) - 1
	default:
		return int(math.Round(raw))
	}
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
