package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"macman/internal/config"
	"macman/internal/metrics"
)

// RateLimiter keeps one token bucket per client IP in an expiring LRU.
type RateLimiter struct {
	ips *expirable.LRU[string, *rate.Limiter]
	r   rate.Limit
	b   int
}

func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	size := cfg.CacheSize
	if size <= 0 {
		size = 5000
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &RateLimiter{
		ips: expirable.NewLRU[string, *rate.Limiter](size, nil, ttl),
		r:   rate.Limit(cfg.RequestsPerSecond),
		b:   burst,
	}
}

// GetLimiter returns the bucket for ip, creating it on first sight. Two
// concurrent first requests may each create one; the later Add wins.
func (rl *RateLimiter) GetLimiter(ip string) *rate.Limiter {
	if limiter, ok := rl.ips.Get(ip); ok {
		return limiter
	}

	limiter := rate.NewLimiter(rl.r, rl.b)
	rl.ips.Add(ip, limiter)
	return limiter
}

// RateLimitMiddleware rejects requests over the per-IP budget with 429 and a
// Retry-After header. Rejections are counted under scope when m is set.
func RateLimitMiddleware(scope string, cfg config.RateLimitConfig, m *metrics.Metrics) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	rl := NewRateLimiter(cfg)

	return func(c *gin.Context) {
		reservation := rl.GetLimiter(c.ClientIP()).Reserve()
		if !reservation.OK() {
			rejectRateLimited(c, scope, time.Second, m)
			return
		}
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			rejectRateLimited(c, scope, delay, m)
			return
		}

		c.Next()
	}
}

func rejectRateLimited(c *gin.Context, scope string, retryAfter time.Duration, m *metrics.Metrics) {
	if m != nil {
		m.RateLimited.WithLabelValues(scope).Inc()
	}
	slog.Warn("Rate limit exceeded", "scope", scope, "ip", c.ClientIP(), "path", c.FullPath())

	c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error": "Too many requests",
	})
}
