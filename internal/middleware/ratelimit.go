// ratelimit.go enforces per-client rate limits, returning 429 responses when
// the configured requests-per-minute threshold is exceeded. When Redis is
// configured the limiter uses a GCRA shared across server instances; without
// Redis (or when Redis is unreachable) it degrades to a per-process token
// bucket so a cache outage never turns into an API outage.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// RequestsPerMinute is the maximum number of requests allowed per minute
	RequestsPerMinute int
	// BurstSize is the maximum burst of requests allowed
	BurstSize int
	// CleanupInterval is how often the in-memory limiter prunes idle entries
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig returns sensible defaults for authenticated API usage
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 120,
		BurstSize:         20,
		CleanupInterval:   5 * time.Minute,
	}
}

// AuthRateLimitConfig returns stricter limits for login endpoints
func AuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 10,
		BurstSize:         5,
		CleanupInterval:   5 * time.Minute,
	}
}

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	// Allow returns whether the request is allowed and how many requests
	// remain in the current window.
	Allow(ctx context.Context, key string) (allowed bool, remaining int, err error)
	// Limit returns the configured requests-per-minute ceiling.
	Limit() int
	// Stop releases any background resources.
	Stop()
}

// RedisLimiter enforces limits with a Redis-backed GCRA, shared across all
// server instances pointing at the same Redis.
type RedisLimiter struct {
	limiter  *redis_rate.Limiter
	limit    redis_rate.Limit
	fallback *MemoryLimiter
}

// NewRedisLimiter creates a Redis-backed limiter with an in-memory fallback
// used whenever Redis is unreachable.
func NewRedisLimiter(rdb *redis.Client, config RateLimitConfig) *RedisLimiter {
	return &RedisLimiter{
		limiter: redis_rate.NewLimiter(rdb),
		limit: redis_rate.Limit{
			Rate:   config.RequestsPerMinute,
			Burst:  config.BurstSize,
			Period: time.Minute,
		},
		fallback: NewMemoryLimiter(config),
	}
}

// Allow consults Redis; on a Redis error it falls back to the in-memory
// limiter rather than rejecting or waving the request through unmetered.
func (rl *RedisLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	res, err := rl.limiter.Allow(ctx, "ratelimit:"+key, rl.limit)
	if err != nil {
		slog.Warn("redis rate limiter unavailable, using in-memory fallback", "error", err)
		return rl.fallback.Allow(ctx, key)
	}
	return res.Allowed > 0, res.Remaining, nil
}

// Limit returns the configured requests-per-minute ceiling.
func (rl *RedisLimiter) Limit() int { return rl.limit.Rate }

// Stop releases the fallback limiter's cleanup goroutine.
func (rl *RedisLimiter) Stop() { rl.fallback.Stop() }

// memoryEntry tracks the token bucket for a single client
type memoryEntry struct {
	tokens     float64
	lastUpdate time.Time
}

// MemoryLimiter implements a per-process token bucket rate limiter.
type MemoryLimiter struct {
	config  RateLimitConfig
	entries map[string]*memoryEntry
	mu      sync.Mutex
	stopCh  chan struct{}
	once    sync.Once
}

// NewMemoryLimiter creates an in-memory limiter and starts its cleanup loop.
func NewMemoryLimiter(config RateLimitConfig) *MemoryLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	ml := &MemoryLimiter{
		config:  config,
		entries: make(map[string]*memoryEntry),
		stopCh:  make(chan struct{}),
	}
	go ml.cleanup()
	return ml
}

func (ml *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(ml.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ml.mu.Lock()
			now := time.Now()
			for key, entry := range ml.entries {
				if now.Sub(entry.lastUpdate) > 10*time.Minute {
					delete(ml.entries, key)
				}
			}
			ml.mu.Unlock()
		case <-ml.stopCh:
			return
		}
	}
}

// Allow refills the client's bucket based on elapsed time and spends a token.
func (ml *MemoryLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	now := time.Now()
	entry, exists := ml.entries[key]

	if !exists {
		// New client, give them full burst
		ml.entries[key] = &memoryEntry{
			tokens:     float64(ml.config.BurstSize) - 1,
			lastUpdate: now,
		}
		return true, ml.config.BurstSize - 1, nil
	}

	elapsed := now.Sub(entry.lastUpdate)
	tokensPerSecond := float64(ml.config.RequestsPerMinute) / 60.0
	entry.tokens = minFloat(float64(ml.config.BurstSize), entry.tokens+elapsed.Seconds()*tokensPerSecond)
	entry.lastUpdate = now

	if entry.tokens >= 1 {
		entry.tokens--
		return true, int(entry.tokens), nil
	}

	return false, 0, nil
}

// Limit returns the configured requests-per-minute ceiling.
func (ml *MemoryLimiter) Limit() int { return ml.config.RequestsPerMinute }

// Stop stops the cleanup goroutine.
func (ml *MemoryLimiter) Stop() {
	ml.once.Do(func() { close(ml.stopCh) })
}

// RateLimitMiddleware rejects requests over the limit with 429 and annotates
// every response with X-RateLimit headers.
func RateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rateLimitKey(c)

		allowed, remaining, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			// Limiter failure is not the client's fault; let the request through.
			slog.Error("rate limiter error", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": 60,
			})
			return
		}

		c.Next()
	}
}

// rateLimitKey identifies the client: authenticated user ID when available,
// else the client IP.
func rateLimitKey(c *gin.Context) string {
	if userID := c.GetString(UserIDKey); userID != "" {
		return "user:" + userID
	}

	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
