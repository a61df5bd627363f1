// Package ratelimit throttles anonymous submissions per reporter fingerprint
// with a fixed-window counter kept in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/richxcame/threatwatch/pkg/common"
	"github.com/richxcame/threatwatch/pkg/config"
	"github.com/richxcame/threatwatch/pkg/logger"
	"go.uber.org/zap"
)

// fixedWindowScript increments the window counter and sets its expiry on the
// first hit. KEYS[1] is the window key, ARGV[1] the window in milliseconds.
const fixedWindowScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`

// Result is the outcome of one Allow call
type Result struct {
	Allowed     bool
	Limit       int
	Remaining   int
	ResetAt     time.Time
	RetryAfter  time.Duration
	IdentityKey string
	EndpointKey string
}

// Limiter counts requests per endpoint and identity
type Limiter struct {
	client redis.Scripter
	cfg    config.RateLimitConfig
	script *redis.Script
	now    func() time.Time
}

// NewLimiter creates a limiter over client
func NewLimiter(client redis.Scripter, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		client: client,
		cfg:    cfg,
		script: redis.NewScript(fixedWindowScript),
		now:    time.Now,
	}
}

// WithNow overrides the time source
func (l *Limiter) WithNow(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Key returns the Redis key of the window containing at
func (l *Limiter) Key(endpoint, identity string, at time.Time) string {
	window := l.cfg.Window()
	start := at.Truncate(window).Unix()
	return fmt.Sprintf("%s:%s:%s:%d", l.cfg.RedisPrefix, endpoint, identity, start)
}

// Allow records one request and reports whether it fits the window. A
// disabled limiter or a non-positive limit always allows.
func (l *Limiter) Allow(ctx context.Context, endpoint, identity string) (Result, error) {
	result := Result{
		Allowed:     true,
		Limit:       l.cfg.Limit,
		Remaining:   l.cfg.Limit,
		IdentityKey: identity,
		EndpointKey: endpoint,
	}
	if !l.cfg.Enabled || l.cfg.Limit <= 0 {
		return result, nil
	}

	now := l.now()
	window := l.cfg.Window()
	result.ResetAt = now.Truncate(window).Add(window)

	count, err := l.script.Run(ctx, l.client, []string{l.Key(endpoint, identity, now)}, window.Milliseconds()).Int64()
	if err != nil {
		return result, fmt.Errorf("rate limit script failed: %w", err)
	}

	result.Remaining = int(math.Max(0, float64(int64(l.cfg.Limit)-count)))
	if count > int64(l.cfg.Limit) {
		result.Allowed = false
		result.RetryAfter = result.ResetAt.Sub(now)
	}
	return result, nil
}

// Middleware throttles a route by the identity returned from identify.
// Redis failures let the request through.
func Middleware(l *Limiter, endpoint string, identify func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := l.Allow(c.Request.Context(), endpoint, identify(c))
		if err != nil {
			logger.WithContext(c.Request.Context()).Warn("Rate limiter unavailable",
				zap.String("endpoint", endpoint),
				zap.Error(err),
			)
			c.Next()
			return
		}

		if result.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		}
		if !result.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds()))))
			common.ErrorResponse(c, http.StatusTooManyRequests, "too many submissions, try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}
