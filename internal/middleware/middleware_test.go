package middleware

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/testutil"
	"github.com/example/storefront/internal/utils"
)

const testSecret = "jwt-secret"

func okHandler(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusOK)
}

func status(t *testing.T, app *fiber.App, authHeader string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set(fiber.HeaderAuthorization, authHeader)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	token, err := utils.GenerateToken(testSecret, uuid.New(), role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestIPRateLimit(t *testing.T) {
	app := fiber.New()
	app.Use(RateLimit(NewIPRateLimiter(rate.Every(time.Hour), 2)))
	app.Get("/", okHandler)

	assert.Equal(t, fiber.StatusOK, status(t, app, ""))
	assert.Equal(t, fiber.StatusOK, status(t, app, ""))
	assert.Equal(t, fiber.StatusTooManyRequests, status(t, app, ""))
}

func TestIPRateLimiterSeparatesIPs(t *testing.T) {
	l := NewIPRateLimiter(rate.Every(time.Hour), 1)
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "10.0.0.1")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "10.0.0.1")
	assert.False(t, ok)
	ok, _ = l.Allow(ctx, "10.0.0.2")
	assert.True(t, ok)
}

func TestRedisRateLimiter(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: testutil.RedisAddr(t)})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisRateLimiter(client, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	ttl, err := client.TTL(ctx, "ratelimit:checkout:10.0.0.1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestRequireAuth(t *testing.T) {
	app := fiber.New()
	app.Use(RequireAuth(testSecret))
	app.Get("/", func(c *fiber.Ctx) error {
		if _, ok := GetCurrentUserID(c); !ok {
			return c.SendStatus(fiber.StatusTeapot)
		}
		return c.SendStatus(fiber.StatusOK)
	})

	assert.Equal(t, fiber.StatusUnauthorized, status(t, app, ""))
	assert.Equal(t, fiber.StatusUnauthorized, status(t, app, "Basic abc"))
	assert.Equal(t, fiber.StatusUnauthorized, status(t, app, "Bearer nope"))
	assert.Equal(t, fiber.StatusOK, status(t, app, bearer(t, models.RoleCustomer)))
}

func TestOptionalAuth(t *testing.T) {
	app := fiber.New()
	app.Use(OptionalAuth(testSecret))
	app.Get("/", func(c *fiber.Ctx) error {
		if _, ok := GetCurrentUserID(c); ok {
			return c.SendStatus(fiber.StatusAccepted)
		}
		return c.SendStatus(fiber.StatusOK)
	})

	assert.Equal(t, fiber.StatusOK, status(t, app, ""))
	assert.Equal(t, fiber.StatusAccepted, status(t, app, bearer(t, models.RoleCustomer)))
	assert.Equal(t, fiber.StatusUnauthorized, status(t, app, "Bearer expired"))
}

func TestRequireAdmin(t *testing.T) {
	app := fiber.New()
	app.Use(RequireAuth(testSecret), RequireAdmin())
	app.Get("/", okHandler)

	assert.Equal(t, fiber.StatusForbidden, status(t, app, bearer(t, models.RoleCustomer)))
	assert.Equal(t, fiber.StatusOK, status(t, app, bearer(t, models.RoleAdmin)))
}
