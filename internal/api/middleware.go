// internal/api/middleware.go
package api

import (
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/Corphon/ScriptStudio/internal/utils"
)

const (
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
)

// RateLimiter keeps one token bucket per client key; idle buckets expire
type RateLimiter struct {
	visitors *cache.Cache
	limit    rate.Limit
	burst    int
}

// NewRateLimiter creates a limiter allowing perMinute requests per client
func NewRateLimiter(perMinute int, burst int) *RateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		visitors: cache.New(time.Hour, 10*time.Minute),
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
	}
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	if v, ok := rl.visitors.Get(key); ok {
		rl.visitors.SetDefault(key, v)
		return v.(*rate.Limiter)
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	// Add fails when a concurrent request created the bucket first
	if err := rl.visitors.Add(key, l, cache.DefaultExpiration); err != nil {
		if v, ok := rl.visitors.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return l
}

// Allow checks if a visitor is allowed to make a request
func (rl *RateLimiter) Allow(key string) bool {
	return rl.limiterFor(key).Allow()
}

// RateLimitMiddleware creates a rate limiting middleware
func RateLimitMiddleware(rl *RateLimiter, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(keyFunc(c)) {
			c.Header("Retry-After", fmt.Sprintf("%d", int(math.Ceil(1/float64(rl.limit)))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, &APIResponse{
				Success:   false,
				Error:     &APIError{Code: "RATE_LIMIT_EXCEEDED", Message: "Rate limit exceeded"},
				Timestamp: time.Now(),
				RequestID: c.GetString(requestIDKey),
			})
			return
		}
		c.Next()
	}
}

// GenerationRateLimit limits the endpoints that call the text-generation provider
func GenerationRateLimit(rl *RateLimiter) gin.HandlerFunc {
	return RateLimitMiddleware(rl, func(c *gin.Context) string {
		return c.ClientIP()
	})
}

// RequestIDMiddleware assigns a uuid to every request, reusing the caller's one when present
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestLogger writes one structured line per request
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health" || path == "/metrics" {
			c.Next()
			return
		}

		started := time.Now()
		c.Next()

		fields := map[string]interface{}{
			"method":      c.Request.Method,
			"path":        path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(started).Milliseconds(),
			"client_ip":   c.ClientIP(),
			"request_id":  c.GetString(requestIDKey),
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			utils.GetLogger().Error("http request", fields)
		case c.Writer.Status() >= http.StatusBadRequest:
			utils.GetLogger().Warn("http request", fields)
		default:
			utils.GetLogger().Info("http request", fields)
		}
	}
}

// corsMiddleware 实现跨域资源共享
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", requestIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
