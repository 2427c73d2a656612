// Package mw contains HTTP middleware: rate limiting, session and admin authentication.
package mw

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"

	"player-ticket-gateway/internal/redisx"
)

// KeyFunc derives the rate limit bucket of a request.
type KeyFunc func(c *fiber.Ctx) string

var incrScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then redis.call('PEXPIRE', KEYS[1], ARGV[1]) end
return current`)

// ConnectKey buckets connect attempts by client ip and game id.
func ConnectKey(c *fiber.Ctx) string {
	var probe struct {
		GameID string `json:"gameid" form:"gameid" query:"gameid"`
	}
	_ = c.BodyParser(&probe)
	game := lo.Ternary(probe.GameID != "", probe.GameID, c.Query("gameid"))
	return fmt.Sprintf("ip:%s|game:%s", c.IP(), game)
}

// RateLimit allows limit requests per window and key. It counts in Redis when rdb is set so the
// budget is shared by all replicas, and falls back to the in-process limiter otherwise. A
// non-positive limit or window disables limiting.
func RateLimit(rdb *redisx.Client, windowSec int, limit int, keyFn KeyFunc) fiber.Handler {
	if limit <= 0 || windowSec <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	if rdb == nil {
		return limiter.New(limiter.Config{
			Max:          limit,
			Expiration:   time.Duration(windowSec) * time.Second,
			KeyGenerator: func(c *fiber.Ctx) string { return keyFn(c) },
			LimitReached: func(_ *fiber.Ctx) error {
				return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded")
			},
		})
	}
	return func(c *fiber.Ctx) error {
		key := "rl:" + keyFn(c)
		ctx, cancel := context.WithTimeout(c.Context(), 200*time.Millisecond)
		defer cancel()
		ttlMs := int64(windowSec) * 1000
		n, err := incrScript.Run(ctx, rdb, []string{key}, ttlMs).Int64()
		if err != nil {
			return c.Next()
		}
		c.Set("X-RateLimit-Limit", fmt.Sprint(limit))
		c.Set("X-RateLimit-Remaining", fmt.Sprint(lo.Max([]int64{0, int64(limit) - n})))
		if n > int64(limit) {
			c.Set("Retry-After", fmt.Sprint(windowSec))
			return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded")
		}
		return c.Next()
	}
}
