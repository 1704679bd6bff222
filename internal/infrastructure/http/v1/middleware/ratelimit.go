package middleware

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"

	"stockbridge/internal/core/apperror"
	"stockbridge/internal/infrastructure/ratelimit"
	"stockbridge/pkg/logger"
)

const (
	HeaderRateLimit     = "X-RateLimit-Limit"
	HeaderRateRemaining = "X-RateLimit-Remaining"
	HeaderRetryAfter    = "Retry-After"
)

// KeyFunc derives the rate limit key for a request.
type KeyFunc func(c *gin.Context) string

// ClientIPKey limits per client IP.
func ClientIPKey(c *gin.Context) string { return c.ClientIP() }

// RateLimit rejects requests over the limiter's ceiling with 429.
// A failing limiter backend lets the request through.
func RateLimit(limiter ratelimit.Limiter, key KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := limiter.Allow(c.Request.Context(), key(c))
		if err != nil {
			logger.Warn(c.Request.Context(), "rate limiter unavailable, request admitted", "error", err)
			c.Next()
			return
		}

		c.Header(HeaderRateLimit, strconv.Itoa(d.Limit))
		c.Header(HeaderRateRemaining, strconv.Itoa(d.Remaining))
		if !d.Allowed {
			c.Header(HeaderRetryAfter, strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
			_ = c.Error(apperror.NewRateLimited(d.Limit, limiter.Window()))
			c.Abort()
			return
		}
		c.Next()
	}
}
