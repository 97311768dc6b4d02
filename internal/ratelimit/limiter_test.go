package ratelimit

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/facezhuk/pkg/util/errorutil"
)

func newTestLimiter(t *testing.T) (*miniredis.Miniredis, *Limiter) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return mr, New(client, nil)
}

func TestAllowFixedWindow(t *testing.T) {
	mr, l := newTestLimiter(t)
	ctx := context.Background()
	rule := Rule{Name: "register", Limit: 2, Window: time.Minute}

	require.NoError(t, l.Allow(ctx, rule, "1.2.3.4"))
	require.NoError(t, l.Allow(ctx, rule, "1.2.3.4"))
	assert.ErrorIs(t, l.Allow(ctx, rule, "1.2.3.4"), ErrRateLimited)
	assert.NoError(t, l.Allow(ctx, rule, "5.6.7.8"), "subjects are counted separately")

	ttl := mr.TTL(keyPrefix + "register:1.2.3.4")
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)

	mr.FastForward(time.Minute)
	assert.NoError(t, l.Allow(ctx, rule, "1.2.3.4"))
}

func TestAllowRestoresMissingExpiry(t *testing.T) {
	mr, l := newTestLimiter(t)
	ctx := context.Background()
	rule := Rule{Name: "notifications", Limit: 5, Window: time.Second}
	key := keyPrefix + "notifications:user:alice"

	// A counter over budget with no TTL, as left behind by an interrupted window.
	require.NoError(t, mr.Set(key, "50"))
	require.Zero(t, mr.TTL(key))

	assert.ErrorIs(t, l.Allow(ctx, rule, "user:alice"), ErrRateLimited)
	assert.Greater(t, mr.TTL(key), time.Duration(0))

	mr.FastForward(time.Second)
	assert.NoError(t, l.Allow(ctx, rule, "user:alice"))
}

func TestAllowRedisDown(t *testing.T) {
	mr, l := newTestLimiter(t)
	mr.Close()

	err := l.Allow(context.Background(), Rule{Name: "x", Limit: 1, Window: time.Second}, "k")
	assert.ErrorIs(t, err, ErrRedisUnavailable)
}

func newLimitedApp(l *Limiter, rule Rule) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).JSON(fiber.Map{"code": de.Code})
		},
	})
	app.Post("/register", l.Middleware(rule, nil), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})
	return app
}

func TestMiddleware(t *testing.T) {
	_, l := newTestLimiter(t)
	app := newLimitedApp(l, Rule{Name: "register", Limit: 1, Window: 10 * time.Second})

	resp, err := app.Test(httptest.NewRequest("POST", "/register", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("POST", "/register", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "10", resp.Header.Get(fiber.HeaderRetryAfter))
}

func TestMiddlewareFailsOpen(t *testing.T) {
	mr, l := newTestLimiter(t)
	mr.Close()
	app := newLimitedApp(l, Rule{Name: "register", Limit: 1, Window: time.Second})

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("POST", "/register", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	}
}
