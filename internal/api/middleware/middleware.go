package middleware

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/internal/infrastructure/metrics"
	"github.com/beampay-service/beampay_service/pkg/auth"
	"github.com/beampay-service/beampay_service/pkg/logger"
)

// APIKeyValidator checks a presented `id.secret` credential.
type APIKeyValidator interface {
	Validate(ctx context.Context, presented string) (*entities.APIKey, error)
}

const (
	// MaxRequestSize caps request bodies. Gateway payloads are small JSON
	// documents, anything bigger is garbage.
	MaxRequestSize = 1 << 20 // 1MB
)

// RequestID adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// RequestSizeLimit limits the size of incoming requests
func RequestSizeLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxRequestSize)
		c.Next()
	}
}

// Logger logs HTTP requests with structured logging
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery
		if raw != "" {
			path = path + "?" + raw
		}

		requestID := c.GetString("request_id")
		requestLogger := log.ForRequest(requestID, c.Request.Method, path)

		c.Set("logger", requestLogger)

		c.Next()

		latency := time.Since(start)

		requestLogger.Infow("HTTP Request",
			"status_code", c.Writer.Status(),
			"latency", latency,
			"client_ip", c.ClientIP(),
			"response_size", c.Writer.Size(),
		)
	}
}

// Metrics observes request latency per route pattern.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Recovery handles panics and returns 500 errors
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				requestID := c.GetString("request_id")
				requestLogger := log.ForRequest(requestID, c.Request.Method, c.Request.URL.Path)

				requestLogger.Errorw("Panic recovered",
					"error", err,
					"stack", string(debug.Stack()),
				)

				c.JSON(http.StatusInternalServerError, gin.H{
					"status":     false,
					"error":      "internal server error",
					"request_id": requestID,
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// CORS handles Cross-Origin Resource Sharing
func CORS(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			c.Header("Access-Control-Allow-Origin", origin)
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-API-Key, Idempotency-Key")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID")
		c.Header("Access-Control-Max-Age", "3600")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

// SecurityHeaders adds security headers to responses
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'self'")
		c.Next()
	}
}

// limiterPool hands out one token bucket per caller key.
type limiterPool struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

func newLimiterPool(perSecond int) *limiterPool {
	if perSecond < 1 {
		perSecond = 10
	}
	return &limiterPool{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(perSecond),
		burst:    perSecond,
	}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.RLock()
	limiter, exists := p.limiters[key]
	p.mu.RUnlock()
	if exists {
		return limiter
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if limiter, exists = p.limiters[key]; !exists {
		limiter = rate.NewLimiter(p.rate, p.burst)
		p.limiters[key] = limiter
	}
	return limiter
}

// RateLimit applies per-IP rate limiting to unauthenticated routes.
func RateLimit(perSecond int) gin.HandlerFunc {
	pool := newLimiterPool(perSecond)

	return func(c *gin.Context) {
		if !pool.get(c.ClientIP()).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"status":     false,
				"error":      "rate limit exceeded",
				"request_id": c.GetString("request_id"),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// APIKeyAuth authenticates X-API-Key credentials and throttles each key
// independently of the caller's IP.
func APIKeyAuth(keys APIKeyValidator, perKeyPerSecond int) gin.HandlerFunc {
	pool := newLimiterPool(perKeyPerSecond)

	return func(c *gin.Context) {
		presented := strings.TrimSpace(c.GetHeader("X-API-Key"))
		if presented == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status":     false,
				"error":      "API key required",
				"request_id": c.GetString("request_id"),
			})
			c.Abort()
			return
		}

		key, err := keys.Validate(c.Request.Context(), presented)
		if err != nil {
			status := http.StatusUnauthorized
			message := "invalid API key"
			if !errors.Is(err, entities.ErrInvalidCredentials) {
				status = http.StatusInternalServerError
				message = "internal server error"
			}
			c.JSON(status, gin.H{
				"status":     false,
				"error":      message,
				"request_id": c.GetString("request_id"),
			})
			c.Abort()
			return
		}

		if !pool.get(key.ID).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"status":     false,
				"error":      "rate limit exceeded",
				"request_id": c.GetString("request_id"),
			})
			c.Abort()
			return
		}

		c.Set("api_key_id", key.ID)
		c.Next()
	}
}

// AdminAuth guards dashboard endpoints with the admin JWT.
func AdminAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status":     false,
				"error":      "bearer token required",
				"request_id": c.GetString("request_id"),
			})
			c.Abort()
			return
		}

		claims, err := auth.ValidateToken(token, jwtSecret)
		if err != nil || claims.Role != "admin" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status":     false,
				"error":      "invalid token",
				"request_id": c.GetString("request_id"),
			})
			c.Abort()
			return
		}

		c.Set("admin_user", claims.Username)
		c.Next()
	}
}
