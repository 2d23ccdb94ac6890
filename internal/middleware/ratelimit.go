package middleware

import (
	"context"
	"errors"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"microblogs/internal/observability"
)

// FailPolicy decides what a limiter does when Redis cannot be reached.
type FailPolicy int

const (
	FailOpen   FailPolicy = iota // let the request through
	FailClosed                   // answer 503
)

var errNoLimiterStore = errors.New("rate limit store not configured")

// rateLimitBypassed is true for local and test environments.
func rateLimitBypassed() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development":
		return true
	}
	return false
}

// CheckRateLimit records one hit for id on resource and reports whether it
// fits in the fixed window of length window.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	if rateLimitBypassed() {
		return true, nil
	}
	hits, _, err := hit(ctx, rdb, "rl:"+resource+":"+id, window)
	if err != nil {
		return false, err
	}
	return hits <= int64(limit), nil
}

// hit increments key and returns the new count with the time left in its window.
// The first hit of a window starts the expiry.
func hit(ctx context.Context, rdb *redis.Client, key string, window time.Duration) (int64, time.Duration, error) {
	if rdb == nil {
		return 0, 0, errNoLimiterStore
	}
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		ttl = p.TTL(ctx, key)
		return nil
	})
	if err != nil {
		observability.RedisErrors.WithLabelValues("rate_limit").Inc()
		return 0, 0, err
	}

	left := ttl.Val()
	if left < 0 {
		rdb.Expire(ctx, key, window)
		left = window
	}
	return incr.Val(), left, nil
}

// RateLimit allows limit requests per window for each user, or for each IP
// when the caller is anonymous. It fails open.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailOpen, name)
}

// RateLimitWithPolicy is RateLimit with an explicit FailPolicy. An empty name
// buckets by request path.
func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rateLimitBypassed() {
			return c.Next()
		}
		resource := name
		if resource == "" {
			resource = c.Path()
		}

		hits, left, err := hit(c.UserContext(), rdb, "rl:"+resource+":"+limitSubject(c), window)
		switch {
		case err != nil && policy == FailClosed:
			Logger.WarnContext(c.UserContext(), "rate limit store unavailable", "resource", resource, "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "rate limit unavailable"})
		case err != nil:
			return c.Next()
		case hits > int64(limit):
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(left.Seconds()))))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded"})
		}
		return c.Next()
	}
}

func limitSubject(c *fiber.Ctx) string {
	if uid, ok := c.Locals("userID").(uint); ok {
		return "user:" + strconv.FormatUint(uint64(uid), 10)
	}
	return "ip:" + c.IP()
}
