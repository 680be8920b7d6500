package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// clientBuckets keeps one token bucket per client IP and forgets clients
// that have been quiet long enough for their bucket to refill anyway.
type clientBuckets struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
	rps     rate.Limit
	burst   int
}

type clientBucket struct {
	*rate.Limiter
	lastSeen time.Time
}

func newClientBuckets(rps rate.Limit, burst int) *clientBuckets {
	cb := &clientBuckets{
		buckets: make(map[string]*clientBucket),
		rps:     rps,
		burst:   burst,
	}
	go cb.evictStale()
	return cb
}

func (cb *clientBuckets) allow(ip string) bool {
	cb.mu.Lock()
	b, ok := cb.buckets[ip]
	if !ok {
		b = &clientBucket{Limiter: rate.NewLimiter(cb.rps, cb.burst)}
		cb.buckets[ip] = b
	}
	b.lastSeen = time.Now()
	cb.mu.Unlock()
	return b.Allow()
}

func (cb *clientBuckets) evictStale() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-10 * time.Minute)
		cb.mu.Lock()
		for ip, b := range cb.buckets {
			if b.lastSeen.Before(cutoff) {
				delete(cb.buckets, ip)
			}
		}
		cb.mu.Unlock()
	}
}

// RateLimit rejects clients exceeding rps sustained requests per second
// with a burst allowance, per client IP, with 429.
func RateLimit(rps rate.Limit, burst int) gin.HandlerFunc {
	cb := newClientBuckets(rps, burst)
	return func(c *gin.Context) {
		if !cb.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
