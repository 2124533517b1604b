package server

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// KeyFunc picks the rate limit bucket for a request
type KeyFunc func(echo.Context) string

// RealIPKey buckets requests by client address
func RealIPKey(c echo.Context) string {
	return c.RealIP()
}

// RateLimiter hands out one token bucket per key
type RateLimiter struct {
	limit rate.Limit
	burst int
	key   KeyFunc
	ttl   time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
	sweptAt time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perSecond requests per key with the given burst. A
// burst below one is raised to ceil(perSecond).
func NewRateLimiter(perSecond float64, burst int, key KeyFunc) *RateLimiter {
	if burst < 1 {
		burst = int(perSecond)
		if float64(burst) < perSecond || burst < 1 {
			burst++
		}
	}
	if key == nil {
		key = RealIPKey
	}
	return &RateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		key:     key,
		ttl:     10 * time.Minute,
		buckets: make(map[string]*bucket),
	}
}

// Allow consumes a token for key
func (l *RateLimiter) Allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.sweptAt) > l.ttl {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > l.ttl {
				delete(l.buckets, k)
			}
		}
		l.sweptAt = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Middleware rejects requests over the limit with 429
func (l *RateLimiter) Middleware() echo.MiddlewareFunc {
	retryAfter := "1"
	if l.limit > 0 {
		retryAfter = strconv.Itoa(max(1, int(math.Ceil(1/float64(l.limit)))))
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(l.key(c)) {
				c.Response().Header().Set("Retry-After", retryAfter)
				return ErrorResponse(c, http.StatusTooManyRequests, nil, "Rate limit exceeded")
			}
			return next(c)
		}
	}
}
