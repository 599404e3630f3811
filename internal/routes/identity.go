package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sabjab/sabjab_api/internal/identity"
)

// IdentityRoutes bundles the handler and the middleware guarding it.
type IdentityRoutes struct {
	Handler       *identity.Handler
	Guard         fiber.Handler
	OTPLimiter    fiber.Handler
	VerifyLimiter fiber.Handler
	LoginLimiter  fiber.Handler
	Idempotency   fiber.Handler
}

// RegisterIdentityRoutes wires OTP, login, token and profile endpoints.
func RegisterIdentityRoutes(r fiber.Router, rt IdentityRoutes) {
	h := rt.Handler

	r.Post("/customer/request-otp", rt.OTPLimiter, rt.Idempotency, h.RequestOTP)
	r.Post("/customer/verify-otp", rt.VerifyLimiter, h.VerifyOTP)
	r.Post("/customer/refresh-token", h.Refresh)
	r.Post("/refresh-token", h.Refresh)

	r.Post("/delivery/login", rt.LoginLimiter, h.DeliveryLogin)
	r.Post("/admin/login", rt.LoginLimiter, h.AdminLogin)

	r.Get("/customer/me", rt.Guard, h.Me)
	r.Get("/user", rt.Guard, h.Me)
	r.Put("/user/update", rt.Guard, h.UpdateProfile)
	r.Post("/logout", rt.Guard, h.Logout)
}
