package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/naijaprep/cbt-backend/internal/response"
)

// RateLimiter caps requests per client IP inside a fixed window. It guards
// the auth endpoints against credential stuffing; it is not meant as a
// general traffic shaper.
type RateLimiter struct {
	mu     sync.Mutex
	counts map[string]*windowCount
	limit  int
	window time.Duration
}

type windowCount struct {
	n       int
	resetAt time.Time
}

// NewRateLimiter allows limit requests per window per IP. A background
// sweep drops IPs whose window has long expired.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		counts: make(map[string]*windowCount),
		limit:  limit,
		window: window,
	}
	go func() {
		for range time.Tick(window) {
			rl.sweep()
		}
	}()
	return rl
}

// Middleware rejects requests over the limit with 429 and the standard
// error envelope.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		rl.mu.Lock()
		w, ok := rl.counts[ip]
		if !ok || now.After(w.resetAt) {
			w = &windowCount{resetAt: now.Add(rl.window)}
			rl.counts[ip] = w
		}
		w.n++
		over := w.n > rl.limit
		rl.mu.Unlock()

		if over {
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) sweep() {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, w := range rl.counts {
		if now.Sub(w.resetAt) > rl.window {
			delete(rl.counts, ip)
		}
	}
}
