package resilience

import (
	"context"

	"github.com/richxcame/threatwatch/pkg/logger"
	"go.uber.org/zap"
)

// FallbackFunc handles a call rejected by an open or saturated breaker
type FallbackFunc func(ctx context.Context, err error) (interface{}, error)

// NoopFallback surfaces ErrCircuitOpen to the caller
func NoopFallback(ctx context.Context, err error) (interface{}, error) {
	return nil, ErrCircuitOpen
}

// GracefulDegradation logs the rejection for dependency and surfaces
// ErrCircuitOpen so the caller can degrade on its own terms
func GracefulDegradation(dependency string) FallbackFunc {
	return func(ctx context.Context, err error) (interface{}, error) {
		logger.WithContext(ctx).Warn("circuit breaker open, dependency degraded",
			zap.String("dependency", dependency),
			zap.Error(err),
		)
		return nil, ErrCircuitOpen
	}
}
