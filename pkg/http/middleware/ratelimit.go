package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	RPS   float64
	Burst int
	// IdleTTL evicts limiters for clients not seen for this long.
	IdleTTL time.Duration
	// Skip exempts requests, e.g. health probes.
	Skip func(echo.Context) bool
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPLimiter hands out one rate.Limiter per client key.
type IPLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
	cfg       RateLimitConfig
	now       func() time.Time
}

func NewIPLimiter(cfg RateLimitConfig) *IPLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	return &IPLimiter{visitors: make(map[string]*visitor), cfg: cfg, now: time.Now}
}

// Allow consumes one token for key.
func (l *IPLimiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(l.cfg.RPS), l.cfg.Burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now

	if now.Sub(l.lastSweep) >= l.cfg.IdleTTL {
		l.sweep(now)
	}
	return v.limiter.AllowN(now, 1)
}

// sweep drops visitors idle longer than IdleTTL. Callers hold mu.
func (l *IPLimiter) sweep(now time.Time) {
	for k, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.cfg.IdleTTL {
			delete(l.visitors, k)
		}
	}
	l.lastSweep = now
}

// RateLimit rejects requests over the per-IP budget with 429.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	limiter := NewIPLimiter(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skip != nil && cfg.Skip(c) {
				return next(c)
			}
			if !limiter.Allow(c.RealIP()) {
				c.Response().Header().Set("Retry-After", "1")
				return c.JSON(http.StatusTooManyRequests, rejection(http.StatusTooManyRequests, "ERR_RATE_LIMITED", "rate limit exceeded"))
			}
			return next(c)
		}
	}
}

// rejection mirrors the API error envelope for responses written before a
// handler runs.
func rejection(status int, code, msg string) map[string]interface{} {
	return map[string]interface{}{
		"status":  status,
		"message": http.StatusText(status),
		"data":    []map[string]interface{}{{"code": code, "message": msg}},
	}
}
