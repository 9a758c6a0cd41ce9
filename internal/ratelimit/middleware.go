package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/PratikDhanave/pdv-lan-sync/internal/models"
)

// Middleware rejects requests over the limit with 429 and Retry-After.
// The key is the client IP as seen by the transport.
func Middleware(l *Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}

		d := l.Allow(ip)
		if !d.OK {
			log.Warn().Str("ip", ip).Int("retry_after", d.RetryAfterSeconds).Msg("rate limit exceeded")
			c.Header("Retry-After", strconv.Itoa(d.RetryAfterSeconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{OK: false, Error: "too many requests"})
			return
		}
		c.Next()
	}
}
