package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerWindow int           // Number of requests allowed per window
	Window            time.Duration // Time window for rate limiting
	KeyPrefix         string        // Redis key prefix
}

type fixedWindow struct {
	client *redis.Client
	config RateLimitConfig
	logger *zap.Logger
}

// hit counts one request against key and returns the count in the current
// window together with the time left until the window resets.
func (f *fixedWindow) hit(ctx context.Context, key string) (int64, time.Duration, error) {
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	if _, err := f.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.TTL(ctx, key)
		return nil
	}); err != nil {
		return 0, 0, err
	}

	left := ttl.Val()
	if left < 0 {
		// A counter without expiry starts a new window, also when an earlier EXPIRE got lost.
		if err := f.client.Expire(ctx, key, f.config.Window).Err(); err != nil {
			f.logger.Error("Failed to set rate limit expiry", zap.Error(err), zap.String("key", key))
		}
		left = f.config.Window
	}
	return incr.Val(), left, nil
}

// RateLimitMiddleware implements fixed-window rate limiting using Redis.
// Authenticated callers are counted by user ID, everyone else by client IP.
// Requests pass unthrottled while Redis is unreachable.
func RateLimitMiddleware(redisClient *redis.Client, config RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	limiter := &fixedWindow{client: redisClient, config: config, logger: logger}
	limit := strconv.Itoa(config.RequestsPerWindow)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := config.KeyPrefix + ":" + clientID(r)

			count, left, err := limiter.hit(r.Context(), key)
			if err != nil {
				logger.Error("Failed to count request for rate limit", zap.Error(err), zap.String("key", key))
				next.ServeHTTP(w, r)
				return
			}

			remaining := int64(config.RequestsPerWindow) - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set(HeaderRateLimitLimit, limit)
			w.Header().Set(HeaderRateLimitRemaining, strconv.FormatInt(remaining, 10))
			w.Header().Set(HeaderRateLimitReset, strconv.FormatInt(time.Now().Add(left).Unix(), 10))

			if count > int64(config.RequestsPerWindow) {
				logger.Warn("Rate limit exceeded",
					zap.String("key", key),
					zap.Int64("count", count),
					zap.Int("limit", config.RequestsPerWindow),
				)
				w.Header().Set(HeaderRetryAfter, strconv.Itoa(int(left.Round(time.Second).Seconds())))
				RespondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientID(r *http.Request) string {
	if caller, ok := CallerFromContext(r.Context()); ok {
		return "user:" + strconv.FormatInt(caller.ID, 10)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
