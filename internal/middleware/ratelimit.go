package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/dfelizola/internal-messenger-api/internal/config"
)

// RateLimit returns a Redis-backed token-bucket limiter for the credential
// endpoints.  The bucket state lives in a Redis hash updated by a Lua
// script, so refill and take are atomic across instances.  When the limiter
// is disabled, no client is available, or Redis errors mid-request, the
// middleware fails open: throttling is protection, not a dependency.
func RateLimit(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error { return next(c) }
		}
	}

	bucketScript := redis.NewScript(`
		local key = KEYS[1]
		local now_ms = tonumber(ARGV[1])
		local capacity = tonumber(ARGV[2])
		local refill_tokens = tonumber(ARGV[3])
		local interval_ms = tonumber(ARGV[4])
		local ttl_seconds = tonumber(ARGV[5])

		local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
		local tokens = tonumber(state[1])
		local last_refill = tonumber(state[2])

		if tokens == nil or last_refill == nil then
			tokens = capacity
			last_refill = now_ms
		end

		local intervals = math.floor(math.max(0, now_ms - last_refill) / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + (intervals * refill_tokens))
			last_refill = last_refill + (intervals * interval_ms)
		end

		local allowed = 0
		local retry_after_ms = 0
		if tokens > 0 then
			allowed = 1
			tokens = tokens - 1
		else
			retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
		end

		redis.call('HMSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
		redis.call('EXPIRE', key, ttl_seconds)

		return { allowed, retry_after_ms }
	`)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			res, err := bucketScript.Run(c.Request().Context(), rdb,
				[]string{bucketKey(cfg, c)},
				time.Now().UnixMilli(),
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				int64(cfg.TTL/time.Second),
			).Int64Slice()
			if err != nil || len(res) != 2 {
				return next(c)
			}
			if res[0] != 1 {
				retryAfter := (time.Duration(res[1]) * time.Millisecond).Round(time.Second)
				if retryAfter < time.Second {
					retryAfter = time.Second
				}
				c.Response().Header().Set("Retry-After",
					fmt.Sprintf("%d", int64(retryAfter/time.Second)))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"success": false,
					"error":   "Too many requests",
				})
			}
			return next(c)
		}
	}
}

// bucketKey identifies a bucket.  The default strategy scopes buckets per
// client IP and route, so hammering /login does not starve /register for
// the same address.
func bucketKey(cfg config.RateLimitConfig, c echo.Context) string {
	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, c.RealIP())
	default: // "ip_route"
		parts = append(parts, c.RealIP(), c.Path())
	}
	return strings.Join(parts, ":")
}
