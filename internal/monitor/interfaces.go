package monitor

import (
	"context"

	"github.com/richxcame/threatwatch/internal/alerts"
	"github.com/richxcame/threatwatch/internal/features"
	"github.com/richxcame/threatwatch/internal/geo"
	"github.com/richxcame/threatwatch/internal/prediction"
)

// Predictor ranks threats for a context
type Predictor interface {
	PredictThreats(ctx context.Context, tc features.ThreatContext) ([]prediction.ThreatPrediction, error)
}

// ContextProvider gathers the current threat context
type ContextProvider interface {
	Context(ctx context.Context) (features.ThreatContext, error)
}

// Sink receives escalations. Delivery is fire-and-forget; errors are only logged.
type Sink interface {
	Publish(ctx context.Context, e *Escalation) error
}

// AlertFinder lists active alerts around a point
type AlertFinder interface {
	NearbyAlerts(ctx context.Context, center geo.Point, radiusKm float64) ([]*alerts.SafetyAlert, error)
}
