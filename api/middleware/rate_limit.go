package middleware

import (
	"math"
	"strconv"
	"sync"

	"postquery/api/response"
	"postquery/config"
	"postquery/pkg/errors"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter holds one token bucket per client IP.
type RateLimiter struct {
	limiters sync.Map
	rate     rate.Limit
	burst    int
}

func NewRateLimiter(r float64, burst int) *RateLimiter {
	return &RateLimiter{
		rate:  rate.Limit(r),
		burst: burst,
	}
}

func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	if limiter, ok := rl.limiters.Load(ip); ok {
		return limiter.(*rate.Limiter)
	}
	limiter, _ := rl.limiters.LoadOrStore(ip, rate.NewLimiter(rl.rate, rl.burst))
	return limiter.(*rate.Limiter)
}

// retryAfter is the whole seconds until one token is back.
func (rl *RateLimiter) retryAfter() string {
	if rl.rate <= 0 {
		return "1"
	}
	return strconv.Itoa(int(math.Ceil(1 / float64(rl.rate))))
}

// RateLimitMiddleware limits lookups per client IP. Health checks are exempt
// so an orchestrator never sees a throttled service as down.
func RateLimitMiddleware(cfg *config.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	limiter := NewRateLimiter(cfg.Rate, cfg.Burst)

	return func(c *gin.Context) {
		if isHealthCheck(route(c)) {
			c.Next()
			return
		}

		if !limiter.getLimiter(c.ClientIP()).Allow() {
			c.Header("Retry-After", limiter.retryAfter())
			response.HandleAppError(c, errors.New(errors.CodeTooManyRequest, "Too many requests, please try again later"))
			c.Abort()
			return
		}

		c.Next()
	}
}
