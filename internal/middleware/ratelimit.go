package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimit returns per-client token bucket limiting. Clients are identified
// by their API key, or by IP address when authentication is off. A
// non-positive rps disables limiting.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	burst = max(burst, 1)
	retryAfter := strconv.Itoa(int(math.Ceil(1 / rps)))

	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	return func(c *gin.Context) {
		client := "ip:" + c.ClientIP()
		if key := c.GetString(APIKeyContextKey); key != "" {
			client = "key:" + key
		}

		mu.Lock()
		limiter, ok := limiters[client]
		if !ok {
			limiter = rate.NewLimiter(rate.Limit(rps), burst)
			limiters[client] = limiter
		}
		mu.Unlock()

		if !limiter.Allow() {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}

		c.Next()
	}
}
