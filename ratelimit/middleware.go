package ratelimit

import (
	"HealthConnect/util"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PerIP throttles a route group by client IP. A limiter failure lets the request through.
func PerIP(l Limiter, scope string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		res, err := l.Allow(c.Request.Context(), scope+":"+ip)
		if err != nil {
			log.Warn("rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			log.Warn("rate limit exceeded", zap.String("ip", ip), zap.String("path", c.FullPath()))
			c.Header("Retry-After", strconv.Itoa(res.RetrySeconds()))
			appErr := util.ErrRateLimited.WithDetail("retryAfter", res.RetrySeconds())
			c.AbortWithStatusJSON(util.StatusFor(appErr), util.FailedResponse(appErr))
			return
		}
		c.Next()
	}
}
