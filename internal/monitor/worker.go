package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/richxcame/threatwatch/internal/geo"
	"github.com/richxcame/threatwatch/internal/prediction"
	"go.uber.org/zap"
)

// DefaultInterval is the time between monitor cycles
const DefaultInterval = 300 * time.Second

// Cycle results reported in metrics
const (
	resultQuiet           = "quiet"
	resultEscalated       = "escalated"
	resultContextError    = "context_error"
	resultPredictionError = "prediction_error"
	resultSkipped         = "skipped"
	resultPanic           = "panic"
)

var (
	cyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatwatch_monitor_cycles_total",
			Help: "Monitor cycles by result",
		},
		[]string{"result"},
	)

	escalationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "threatwatch_monitor_escalations_total",
			Help: "High-risk predictions handed to the escalation sink",
		},
	)
)

// Escalation is a batch of high-risk predictions found by one cycle
type Escalation struct {
	ID          string                        `json:"id"`
	DetectedAt  time.Time                     `json:"detected_at"`
	Location    *geo.Point                    `json:"location,omitempty"`
	Predictions []prediction.ThreatPrediction `json:"predictions"`
}

// Worker periodically predicts threats and escalates the high-risk ones
type Worker struct {
	predictor Predictor
	provider  ContextProvider
	sink      Sink
	logger    *zap.Logger
	interval  time.Duration
	minLevel  prediction.RiskLevel
	now       func() time.Time
	newID     func() string

	running  atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Worker
type Option func(*Worker)

// WithInterval sets the time between cycles
func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithMinLevel sets the lowest risk level that is escalated
func WithMinLevel(level prediction.RiskLevel) Option {
	return func(w *Worker) {
		w.minLevel = level
	}
}

// WithClock overrides the clock
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		w.now = now
	}
}

// NewWorker creates a monitor worker. Escalations at HIGH and above go to sink.
func NewWorker(predictor Predictor, provider ContextProvider, sink Sink, logger *zap.Logger, opts ...Option) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Worker{
		predictor: predictor,
		provider:  provider,
		sink:      sink,
		logger:    logger,
		interval:  DefaultInterval,
		minLevel:  prediction.RiskHigh,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs a cycle immediately and then every interval until ctx is
// cancelled or Stop is called. A running cycle is allowed to finish.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Starting threat monitor", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			w.logger.Info("Threat monitor stopped", zap.Error(ctx.Err()))
			return
		}
		w.runCycle(ctx)

		select {
		case <-ctx.Done():
			w.logger.Info("Threat monitor stopped", zap.Error(ctx.Err()))
			return
		case <-w.done:
			w.logger.Info("Threat monitor stopped")
			return
		case <-ticker.C:
		}
	}
}

// Stop signals the worker to exit at its next wait
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
}

func (w *Worker) runCycle(ctx context.Context) {
	if !w.running.CompareAndSwap(false, true) {
		cyclesTotal.WithLabelValues(resultSkipped).Inc()
		w.logger.Warn("Previous monitor cycle still running, skipping")
		return
	}
	defer w.running.Store(false)
	defer func() {
		if r := recover(); r != nil {
			cyclesTotal.WithLabelValues(resultPanic).Inc()
			w.logger.Error("Monitor cycle panicked", zap.Any("panic", r), zap.Stack("stack"))
			sentry.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("component", "monitor")
				sentry.CurrentHub().Recover(r)
			})
		}
	}()

	if _, err := w.RunOnce(ctx); err != nil {
		w.logger.Error("Monitor cycle failed", zap.Error(err))
		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("component", "monitor")
			sentry.CaptureException(err)
		})
	}
}

// RunOnce performs one cycle and returns the escalation it published, if any.
// Cancelling ctx does not abort a cycle that has started.
func (w *Worker) RunOnce(ctx context.Context) (*Escalation, error) {
	ctx = context.WithoutCancel(ctx)

	tc, err := w.provider.Context(ctx)
	if err != nil {
		cyclesTotal.WithLabelValues(resultContextError).Inc()
		return nil, fmt.Errorf("failed to gather threat context: %w", err)
	}

	predictions, err := w.predictor.PredictThreats(ctx, tc)
	if err != nil {
		cyclesTotal.WithLabelValues(resultPredictionError).Inc()
		return nil, fmt.Errorf("failed to predict threats: %w", err)
	}

	var high []prediction.ThreatPrediction
	for _, p := range predictions {
		if p.RiskLevel >= w.minLevel {
			high = append(high, p)
		}
	}
	if len(high) == 0 {
		cyclesTotal.WithLabelValues(resultQuiet).Inc()
		w.logger.Debug("Monitor cycle found no high-risk threats", zap.Int("predictions", len(predictions)))
		return nil, nil
	}

	escalation := &Escalation{
		ID:          w.newID(),
		DetectedAt:  w.now().UTC(),
		Location:    tc.Location,
		Predictions: high,
	}

	if err := w.sink.Publish(ctx, escalation); err != nil {
		w.logger.Warn("Failed to publish escalation",
			zap.String("escalation_id", escalation.ID),
			zap.Error(err),
		)
	}

	cyclesTotal.WithLabelValues(resultEscalated).Inc()
	escalationsTotal.Add(float64(len(high)))
	w.logger.Info("High-risk threats escalated",
		zap.String("escalation_id", escalation.ID),
		zap.Int("count", len(high)),
		zap.String("top_threat", string(high[0].ThreatType)),
	)
	return escalation, nil
}
