package identity

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/sabjab/sabjab_api/internal/apperror"
	"github.com/sabjab/sabjab_api/internal/logging"
	"github.com/sabjab/sabjab_api/internal/middleware"
)

func newTestApp(f *fixture) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(logging.Discard())})
	h := NewHandler(f.svc)
	app.Post("/customer/request-otp", h.RequestOTP)
	app.Post("/customer/verify-otp", h.VerifyOTP)
	app.Post("/delivery/login", h.DeliveryLogin)
	app.Post("/refresh-token", h.Refresh)

	protected := app.Group("", middleware.RequireAuth(f.issuer))
	protected.Get("/user", h.Me)
	protected.Put("/user/update", h.UpdateProfile)
	protected.Post("/logout", h.Logout)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body, token string) (int, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHandlerCustomerFlow(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f)

	// Phone may arrive as a numeric string.
	status, body := doJSON(t, app, fiber.MethodPost, "/customer/request-otp", `{"phone":"9000000000","email":"a@x.com"}`, "")
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "OTP sent to email", body["message"])

	status, body = doJSON(t, app, fiber.MethodPost, "/customer/verify-otp",
		`{"phone":9000000000,"otp":"`+f.notifier.lastCode(t)+`"}`, "")
	require.Equal(t, fiber.StatusOK, status)
	access, _ := body["accessToken"].(string)
	refresh, _ := body["refreshToken"].(string)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)
	customer := body["customer"].(map[string]any)
	require.Equal(t, true, customer["isActivated"])
	require.NotContains(t, customer, "otp")

	status, body = doJSON(t, app, fiber.MethodGet, "/user", "", access)
	require.Equal(t, fiber.StatusOK, status)
	user := body["user"].(map[string]any)
	require.Equal(t, "Customer", user["role"])
	require.Equal(t, float64(9000000000), user["phone"])

	status, body = doJSON(t, app, fiber.MethodPut, "/user/update", `{"name":"Asha","liveLocation":{"latitude":12.9,"longitude":77.5}}`, access)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "Asha", body["user"].(map[string]any)["name"])

	status, body = doJSON(t, app, fiber.MethodPost, "/refresh-token", `{"refreshToken":"`+refresh+`"}`, "")
	require.Equal(t, fiber.StatusOK, status)
	require.NotEmpty(t, body["accessToken"])
	require.NotEmpty(t, body["refreshToken"])

	status, _ = doJSON(t, app, fiber.MethodPost, "/logout", "", access)
	require.Equal(t, fiber.StatusOK, status)

	status, body = doJSON(t, app, fiber.MethodPost, "/refresh-token", `{"refreshToken":"`+refresh+`"}`, "")
	require.Equal(t, fiber.StatusForbidden, status)
	require.Equal(t, apperror.CodeInvalidToken, body["code"])
}

func TestHandlerErrors(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"malformed json", fiber.MethodPost, "/customer/request-otp", `{"phone":`, fiber.StatusBadRequest, apperror.CodeValidation},
		{"non numeric phone", fiber.MethodPost, "/customer/request-otp", `{"phone":"abc","email":"a@x.com"}`, fiber.StatusBadRequest, apperror.CodeValidation},
		{"missing email", fiber.MethodPost, "/customer/request-otp", `{"phone":9000000000}`, fiber.StatusBadRequest, apperror.CodeValidation},
		{"unknown phone", fiber.MethodPost, "/customer/verify-otp", `{"phone":9111111111,"otp":"1234"}`, fiber.StatusNotFound, apperror.CodeUserNotFound},
		{"unknown partner", fiber.MethodPost, "/delivery/login", `{"email":"x@x.com","password":"whatever1"}`, fiber.StatusNotFound, apperror.CodeUserNotFound},
		{"missing refresh token", fiber.MethodPost, "/refresh-token", "", fiber.StatusUnauthorized, apperror.CodeUnauthorized},
		{"bad refresh token", fiber.MethodPost, "/refresh-token", `{"refreshToken":"abc"}`, fiber.StatusForbidden, apperror.CodeInvalidToken},
		{"me without token", fiber.MethodGet, "/user", "", fiber.StatusUnauthorized, apperror.CodeUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := doJSON(t, app, tc.method, tc.path, tc.body, "")
			require.Equal(t, tc.status, status)
			require.Equal(t, tc.code, body["code"])
			require.NotEmpty(t, body["message"])
		})
	}
}

func TestHandlerDeliveryLogin(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f)
	seedPartner(t, f.repo, "rider@x.com", "s3cret-pass")

	status, body := doJSON(t, app, fiber.MethodPost, "/delivery/login", `{"email":"rider@x.com","password":"s3cret-pass"}`, "")
	require.Equal(t, fiber.StatusOK, status)
	partner := body["deliveryPartner"].(map[string]any)
	require.Equal(t, "DeliveryPartner", partner["role"])
	require.Equal(t, "branch-1", partner["branch"])
	require.NotContains(t, partner, "password")
	require.NotContains(t, partner, "passwordHash")

	status, body = doJSON(t, app, fiber.MethodPost, "/delivery/login", `{"email":"rider@x.com","password":"wrong-pass"}`, "")
	require.Equal(t, fiber.StatusBadRequest, status)
	require.Equal(t, apperror.CodeInvalidCredentials, body["code"])
}

func TestPhoneUnmarshal(t *testing.T) {
	cases := map[string]Phone{
		`9000000000`:   9000000000,
		`"9000000000"`: 9000000000,
		`" 42 "`:       42,
		`null`:         0,
		`""`:           0,
	}
	for in, want := range cases {
		var p Phone
		require.NoError(t, json.Unmarshal([]byte(in), &p), in)
		require.Equal(t, want, p, in)
	}
	for _, in := range []string{`"abc"`, `12.5`, `true`, `"9e9"`} {
		var p Phone
		require.Error(t, json.Unmarshal([]byte(in), &p), in)
	}
}
