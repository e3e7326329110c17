package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Middleware enforces the scope's rule per client, exposing the standard
// rate-limit headers. Retry-After is present only on denial.
func Middleware(reg *Registry, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := ClientKey(c.ClientIP(), c.GetString("user_id"))
		verdict := reg.Check(c.Request.Context(), scope, identifier)

		c.Header("X-RateLimit-Remaining", strconv.Itoa(verdict.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(verdict.ResetAt.Unix(), 10))

		if !verdict.Allowed {
			retryAfter := int(verdict.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": retryAfter,
			})
			return
		}
		c.Next()
	}
}
