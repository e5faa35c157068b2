package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tradeloop/escrowgate/internal/metrics"
)

// ──────────────────────────────────────────────────────────────────────────────
// Settlement rate limiter
// ──────────────────────────────────────────────────────────────────────────────

// Idle buckets are evicted after bucketTTL, checked every sweepInterval.
const (
	bucketTTL     = 10 * time.Minute
	sweepInterval = 5 * time.Minute
)

// bucket is a token bucket for one caller.
type bucket struct {
	mu       sync.Mutex
	tokens   float64
	lastSeen time.Time
}

// limiter keeps one bucket per caller key.
type limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   float64
	now     func() time.Time
}

func newLimiter(perSecond int) *limiter {
	burst := math.Max(float64(perSecond), 10)
	return &limiter{
		buckets: make(map[string]*bucket),
		rate:    float64(perSecond),
		burst:   burst,
		now:     time.Now,
	}
}

// take deducts one token for key. When the bucket is empty it returns false
// and how long until the next token is available.
func (l *limiter) take(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.burst, lastSeen: now}
		l.buckets[key] = b
	}
	l.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens = math.Min(l.burst, b.tokens+now.Sub(b.lastSeen).Seconds()*l.rate)
	b.lastSeen = now
	if b.tokens < 1 {
		wait := time.Duration((1 - b.tokens) / l.rate * float64(time.Second))
		return false, wait
	}
	b.tokens--
	return true, 0
}

// sweep drops buckets idle since before cutoff.
func (l *limiter) sweep(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		b.mu.Lock()
		idle := b.lastSeen.Before(cutoff)
		b.mu.Unlock()
		if idle {
			delete(l.buckets, key)
		}
	}
}

// RateLimitMiddleware limits money-movement calls to perSecond per caller.
// Callers are keyed by the authenticated user id, or by client IP when the
// route is not behind JWTMiddleware. Rejected calls get 429 with a
// Retry-After header and are counted in escrowgate_api_rate_limited_total.
func RateLimitMiddleware(perSecond int) gin.HandlerFunc {
	l := newLimiter(perSecond)

	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			l.sweep(l.now().Add(-bucketTTL))
		}
	}()

	return func(c *gin.Context) {
		key := GetUserID(c)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		ok, wait := l.take(key)
		if !ok {
			metrics.RateLimited.WithLabelValues(c.FullPath()).Inc()
			secs := int(math.Ceil(wait.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "too many settlement requests",
				"code":    "ERR_RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
