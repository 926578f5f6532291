// pkg/middleware/ratelimit.go
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter counts requests per client IP in fixed windows
type RateLimiter struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	windowStart time.Time
	requests    map[string]int
	now         func() time.Time
}

// NewRateLimiter allows limit requests per client per window. A limit below 1 disables limiting.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		window:   window,
		requests: make(map[string]int),
		now:      time.Now,
	}
}

// Allow records one request for key and reports whether it is within the limit
func (rl *RateLimiter) Allow(key string) bool {
	if rl.limit < 1 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.windowStart) >= rl.window {
		rl.windowStart = now
		rl.requests = make(map[string]int)
	}

	rl.requests[key]++
	return rl.requests[key] <= rl.limit
}

// Handler returns the gin middleware
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded",
				"code":  "rate_limited",
			})
			return
		}
		c.Next()
	}
}
