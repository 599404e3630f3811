package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/sabjab/sabjab_api/internal/logging"
)

func limitedApp(t *testing.T, max int) (*fiber.App, func(time.Duration)) {
	t.Helper()
	cache, mr := newRedis(t)
	logger := logging.Discard()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	app.Post("/customer/request-otp", RateLimit(cache, RateLimitConfig{
		Prefix: "otp",
		Max:    max,
		Key:    func(c *fiber.Ctx) string { return c.Get("X-Phone") },
	}, logger), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app, mr.FastForward
}

func hit(t *testing.T, app *fiber.App, phone string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/customer/request-otp", strings.NewReader("{}"))
	req.Header.Set("X-Phone", phone)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode, resp.Header.Get(fiber.HeaderRetryAfter)
}

func TestRateLimitBlocksAfterMax(t *testing.T) {
	app, forward := limitedApp(t, 2)

	for i := 0; i < 2; i++ {
		status, _ := hit(t, app, "9000000000")
		require.Equal(t, fiber.StatusOK, status)
	}

	status, retryAfter := hit(t, app, "9000000000")
	require.Equal(t, fiber.StatusTooManyRequests, status)
	require.NotEmpty(t, retryAfter)

	// Other subjects are unaffected.
	status, _ = hit(t, app, "9000000001")
	require.Equal(t, fiber.StatusOK, status)

	forward(time.Minute + time.Second)
	status, _ = hit(t, app, "9000000000")
	require.Equal(t, fiber.StatusOK, status)
}

func TestRateLimitWithoutRedisIsNoop(t *testing.T) {
	app := fiber.New()
	app.Post("/delivery/login", RateLimit(nil, RateLimitConfig{Prefix: "login", Max: 1}, logging.Discard()), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/delivery/login", nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}

func TestRequestIDGeneratesAndEchoes(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/ping", func(c *fiber.Ctx) error {
		id, _ := c.Locals(requestIDHeader).(string)
		return c.SendString(id)
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ping", nil))
	require.NoError(t, err)
	require.Len(t, resp.Header.Get(requestIDHeader), 36)

	req := httptest.NewRequest(fiber.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "client-req-1")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, "client-req-1", resp.Header.Get(requestIDHeader))

	req = httptest.NewRequest(fiber.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, strings.Repeat("x", 100))
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Len(t, resp.Header.Get(requestIDHeader), 36)
}
