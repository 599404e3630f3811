package routes

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/sabjab/sabjab_api/internal/apperror"
	"github.com/sabjab/sabjab_api/internal/config"
	"github.com/sabjab/sabjab_api/internal/logging"
	"github.com/sabjab/sabjab_api/internal/middleware"
	"github.com/sabjab/sabjab_api/internal/notification"
)

type countingNotifier struct {
	mu   sync.Mutex
	sent []notification.Message
}

func (n *countingNotifier) Send(_ context.Context, m notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, m)
	return nil
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func testConfig() config.Config {
	return config.Config{
		AppName:                "SabJab",
		AppEnv:                 "test",
		IdempotencyTTL:         time.Minute,
		AccessTokenSecret:      strings.Repeat("a", 32),
		RefreshTokenSecret:     strings.Repeat("r", 32),
		AccessTokenTTL:         time.Hour,
		RefreshTokenTTL:        24 * time.Hour,
		OTPTTL:                 5 * time.Minute,
		OTPRequestsPerMinute:   3,
		LoginAttemptsPerMinute: 3,
		Notifier:               config.NotifierConfig{Timeout: time.Second},
	}
}

func setupApp(t *testing.T, withRedis bool) (*fiber.App, *countingNotifier) {
	t.Helper()
	logger := logging.Discard()
	d := Deps{Cfg: testConfig(), Logger: logger}
	if withRedis {
		mr := miniredis.RunT(t)
		d.Cache = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { d.Cache.Close() })
	}
	notifier := &countingNotifier{}
	d.Notifier = notifier

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(logger)})
	require.NoError(t, Setup(app, d))
	return app, notifier
}

func send(t *testing.T, app *fiber.App, method, path, body string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestSetupRequiresStoresOutsideDev(t *testing.T) {
	cfg := testConfig()
	cfg.AppEnv = "production"
	err := Setup(fiber.New(), Deps{Cfg: cfg, Logger: logging.Discard()})
	require.Error(t, err)
}

func TestHealthzWithoutStores(t *testing.T) {
	app, _ := setupApp(t, false)
	status, body := send(t, app, fiber.MethodGet, "/healthz", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "disabled", body["status"].(map[string]any)["postgres"])
}

func TestRouteTable(t *testing.T) {
	app, _ := setupApp(t, false)

	cases := []struct {
		method string
		path   string
		status int
	}{
		{fiber.MethodGet, "/api/customer/me", fiber.StatusUnauthorized},
		{fiber.MethodGet, "/api/user", fiber.StatusUnauthorized},
		{fiber.MethodPut, "/api/user/update", fiber.StatusUnauthorized},
		{fiber.MethodPost, "/api/logout", fiber.StatusUnauthorized},
		{fiber.MethodPost, "/api/refresh-token", fiber.StatusUnauthorized},
		{fiber.MethodPost, "/api/customer/refresh-token", fiber.StatusUnauthorized},
		{fiber.MethodPost, "/api/delivery/login", fiber.StatusBadRequest},
		{fiber.MethodPost, "/api/admin/login", fiber.StatusBadRequest},
		{fiber.MethodGet, "/api/unknown", fiber.StatusNotFound},
	}
	for _, tc := range cases {
		status, _ := send(t, app, tc.method, tc.path, "", nil)
		require.Equal(t, tc.status, status, "%s %s", tc.method, tc.path)
	}
}

func TestRequestOTPIdempotentReplay(t *testing.T) {
	app, notifier := setupApp(t, true)
	headers := map[string]string{"Idempotency-Key": "k-1"}
	body := `{"phone":9000000000,"email":"a@x.com"}`

	for i := 0; i < 2; i++ {
		status, resp := send(t, app, fiber.MethodPost, "/api/customer/request-otp", body, headers)
		require.Equal(t, fiber.StatusOK, status)
		require.Equal(t, "OTP sent to email", resp["message"])
	}
	require.Equal(t, 1, notifier.count())
}

func TestRequestOTPRateLimitedPerPhone(t *testing.T) {
	app, _ := setupApp(t, true)
	body := `{"phone":"9000000000","email":"a@x.com"}`

	for i := 0; i < 3; i++ {
		status, _ := send(t, app, fiber.MethodPost, "/api/customer/request-otp", body, nil)
		require.Equal(t, fiber.StatusOK, status)
	}
	status, resp := send(t, app, fiber.MethodPost, "/api/customer/request-otp", body, nil)
	require.Equal(t, fiber.StatusTooManyRequests, status)
	require.Equal(t, apperror.CodeRateLimited, resp["code"])

	status, _ = send(t, app, fiber.MethodPost, "/api/customer/request-otp", `{"phone":9000000001,"email":"b@x.com"}`, nil)
	require.Equal(t, fiber.StatusOK, status)
}

func TestVerifyOTPHasItsOwnRateBudget(t *testing.T) {
	app, _ := setupApp(t, true)
	request := `{"phone":9000000000,"email":"a@x.com"}`
	verify := `{"phone":9000000000,"otp":"0000"}`

	for i := 0; i < 3; i++ {
		status, _ := send(t, app, fiber.MethodPost, "/api/customer/request-otp", request, nil)
		require.Equal(t, fiber.StatusOK, status)
	}
	status, _ := send(t, app, fiber.MethodPost, "/api/customer/request-otp", request, nil)
	require.Equal(t, fiber.StatusTooManyRequests, status)

	// Exhausting request-otp leaves verify-otp reachable; a wrong code is not a rate limit.
	for i := 0; i < 3; i++ {
		status, body := send(t, app, fiber.MethodPost, "/api/customer/verify-otp", verify, nil)
		require.NotEqual(t, fiber.StatusTooManyRequests, status)
		require.NotEqual(t, apperror.CodeRateLimited, body["code"])
	}
	status, body := send(t, app, fiber.MethodPost, "/api/customer/verify-otp", verify, nil)
	require.Equal(t, fiber.StatusTooManyRequests, status)
	require.Equal(t, apperror.CodeRateLimited, body["code"])
}
