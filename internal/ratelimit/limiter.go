// Package ratelimit enforces fixed-window request budgets in Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/facezhuk/pkg/util/errorutil"
)

var (
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrRedisUnavailable = errors.New("rate limit store unavailable")
)

const keyPrefix = "facezhuk:rl:"

// Rule is a budget of Limit hits per Window.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Limiter counts hits per key in Redis.
type Limiter struct {
	redis  redis.UniversalClient
	logger *zap.Logger
}

// New creates a Limiter backed by the given Redis client.
func New(client redis.UniversalClient, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{redis: client, logger: logger}
}

// hitScript counts one hit and starts the window on the first hit. A key left
// without a TTL is given one so a subject can never be locked out for good.
var hitScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 or redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Allow records one hit for subject under rule and reports ErrRateLimited
// once the window's budget is spent.
func (l *Limiter) Allow(ctx context.Context, rule Rule, subject string) error {
	key := keyPrefix + rule.Name + ":" + subject
	count, err := hitScript.Run(ctx, l.redis, []string{key}, rule.Window.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count > int64(rule.Limit) {
		return ErrRateLimited
	}
	return nil
}

// KeyFunc picks the subject a request is counted against.
type KeyFunc func(c *fiber.Ctx) string

// ByIP counts requests per client address.
func ByIP(c *fiber.Ctx) string {
	return c.IP()
}

// Middleware rejects requests over budget with 429. When Redis is unreachable
// the request is let through and the failure logged.
func (l *Limiter) Middleware(rule Rule, key KeyFunc) fiber.Handler {
	if key == nil {
		key = ByIP
	}
	return func(c *fiber.Ctx) error {
		err := l.Allow(c.UserContext(), rule, key(c))
		switch {
		case errors.Is(err, ErrRateLimited):
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(rule.Window.Seconds())))
			return apperrors.NewTooManyRequests("too many requests")
		case err != nil:
			l.logger.Warn("rate limiter unavailable; allowing request",
				zap.String("rule", rule.Name), zap.Error(err))
		}
		return c.Next()
	}
}
