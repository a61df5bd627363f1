package monitor

import (
	"context"
	"time"

	"github.com/richxcame/threatwatch/internal/features"
	"github.com/richxcame/threatwatch/internal/geo"
	"go.uber.org/zap"
)

// CommunityContextProvider builds a threat context for a fixed point from the
// clock and the active community alerts around it. Device counters are not
// observable server-side and stay at zero.
type CommunityContextProvider struct {
	alerts   AlertFinder
	center   geo.Point
	radiusKm float64
	logger   *zap.Logger
	now      func() time.Time
}

// NewCommunityContextProvider creates a provider for center
func NewCommunityContextProvider(alerts AlertFinder, center geo.Point, radiusKm float64, logger *zap.Logger) *CommunityContextProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommunityContextProvider{
		alerts:   alerts,
		center:   center,
		radiusKm: radiusKm,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the clock
func (p *CommunityContextProvider) SetClock(now func() time.Time) {
	p.now = now
}

// Context returns the current context. An alert lookup failure leaves the
// community alerts empty.
func (p *CommunityContextProvider) Context(ctx context.Context) (features.ThreatContext, error) {
	tc := features.ContextAt(p.now())
	center := p.center
	tc.Location = &center

	nearby, err := p.alerts.NearbyAlerts(ctx, center, p.radiusKm)
	if err != nil {
		p.logger.Warn("Failed to load nearby alerts, continuing without them", zap.Error(err))
		return tc, nil
	}

	tc.CommunityAlerts = make([]string, 0, len(nearby))
	for _, a := range nearby {
		tc.CommunityAlerts = append(tc.CommunityAlerts, a.ID)
	}
	return tc, nil
}
