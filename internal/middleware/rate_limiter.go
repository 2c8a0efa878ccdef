package middleware

import (
	"context"
	_ "embed"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"user_manager/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

//go:embed rate_limiter.lua
var luaScript string

// RateLimiterConfig holds rate limiter configuration
type RateLimiterConfig struct {
	Capacity   int     // Maximum number of tokens (max requests)
	RefillRate float64 // Tokens refilled per second
}

// DefaultRateLimiterConfig returns default rate limiter settings
// 10 requests per second with burst capacity of 20
func DefaultRateLimiterConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		Capacity:   20,
		RefillRate: 10.0,
	}
}

// Limiter decides whether the bucket identified by key may spend a token.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter is a token bucket shared by every instance through Redis.
type RedisLimiter struct {
	client *redis.Client
	script *redis.Script
	config *RateLimiterConfig
}

func NewRedisLimiter(ctx context.Context, client *redis.Client, config *RateLimiterConfig) (*RedisLimiter, error) {
	script := redis.NewScript(luaScript)
	if err := script.Load(ctx, client).Err(); err != nil {
		return nil, fmt.Errorf("load rate limiter script: %w", err)
	}
	return &RedisLimiter{client: client, script: script, config: config}, nil
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := float64(time.Now().UnixMilli()) / 1000
	result, err := l.script.Run(ctx, l.client, []string{key},
		l.config.Capacity,
		l.config.RefillRate,
		now,
	).Int64()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

// maxLocalBuckets bounds LocalLimiter memory; the table is reset when exceeded.
const maxLocalBuckets = 10000

// LocalLimiter keeps one x/time/rate limiter per key in process memory.
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	config   *RateLimiterConfig
}

func NewLocalLimiter(config *RateLimiterConfig) *LocalLimiter {
	return &LocalLimiter{
		limiters: make(map[string]*rate.Limiter),
		config:   config,
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= maxLocalBuckets {
			l.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(rate.Limit(l.config.RefillRate), l.config.Capacity)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow(), nil
}

// RateLimiterMiddleware throttles requests per session.
func RateLimiterMiddleware(limiter Limiter, config *RateLimiterConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := auth.GetSessionIDFromContext(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized - session not found in context",
			})
			c.Abort()
			return
		}

		if !allow(c, limiter, sessionID) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"message":     fmt.Sprintf("Maximum %d requests per second allowed", int(config.RefillRate)),
				"retry_after": fmt.Sprintf("%.1f seconds", 1.0/config.RefillRate),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// RateLimitedMessage is the toast shown when a form submission is throttled.
const RateLimitedMessage = "Too many requests. Please wait a moment and try again."

// PageNotifier queues a message for the session's next rendered page.
type PageNotifier interface {
	Error(ctx context.Context, sessionID, message string)
}

// PageRateLimiterMiddleware throttles browser form submissions. A throttled
// submission is answered with an error toast and a redirect to redirectTo.
func PageRateLimiterMiddleware(limiter Limiter, config *RateLimiterConfig, notifier PageNotifier, redirectTo string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := auth.GetSessionIDFromContext(c)
		if err != nil {
			c.String(http.StatusUnauthorized, "Session required")
			c.Abort()
			return
		}

		if !allow(c, limiter, sessionID) {
			notifier.Error(c.Request.Context(), sessionID, RateLimitedMessage)
			c.Header("Retry-After", fmt.Sprintf("%d", int(math.Ceil(1.0/config.RefillRate))))
			c.Redirect(http.StatusSeeOther, redirectTo)
			c.Abort()
			return
		}

		c.Next()
	}
}

// allow reports whether the session may proceed. Limiter backend failures
// let the request through.
func allow(c *gin.Context, limiter Limiter, sessionID string) bool {
	allowed, err := limiter.Allow(c.Request.Context(), SessionRateLimiterKey(sessionID))
	if err != nil {
		logrus.WithError(err).Error("Failed to evaluate rate limiter")
		return true
	}
	return allowed
}

// Build cache key for session rate limiting
func SessionRateLimiterKey(sessionID string) string {
	return fmt.Sprintf("rate_limiter:session:%s", sessionID)
}
