package identity

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/sabjab/sabjab_api/internal/apperror"
	"github.com/sabjab/sabjab_api/internal/auth"
)

// Handler exposes identity endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type requestOTPRequest struct {
	Phone Phone  `json:"phone"`
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Phone Phone  `json:"phone"`
	OTP   string `json:"otp"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type updateProfileRequest struct {
	Name         *string       `json:"name"`
	Address      *string       `json:"address"`
	LiveLocation *LiveLocation `json:"liveLocation"`
}

// RequestOTP handles POST /customer/request-otp.
func (h *Handler) RequestOTP(c *fiber.Ctx) error {
	var req requestOTPRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.service.RequestOTP(c.UserContext(), RequestOTPInput{Phone: int64(req.Phone), Email: req.Email}); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "OTP sent to email"})
}

// VerifyOTP handles POST /customer/verify-otp.
func (h *Handler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	session, err := h.service.VerifyOTP(c.UserContext(), VerifyOTPInput{Phone: int64(req.Phone), OTP: req.OTP})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message":      "Login successful",
		"accessToken":  session.Tokens.AccessToken,
		"refreshToken": session.Tokens.RefreshToken,
		"customer":     session.Account.Public(),
	})
}

// DeliveryLogin handles POST /delivery/login.
func (h *Handler) DeliveryLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	session, err := h.service.LoginDeliveryPartner(c.UserContext(), Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message":         "Login successful",
		"accessToken":     session.Tokens.AccessToken,
		"refreshToken":    session.Tokens.RefreshToken,
		"deliveryPartner": session.Account.Public(),
	})
}

// AdminLogin handles POST /admin/login.
func (h *Handler) AdminLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	session, err := h.service.LoginAdmin(c.UserContext(), Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message":      "Login successful",
		"accessToken":  session.Tokens.AccessToken,
		"refreshToken": session.Tokens.RefreshToken,
		"admin":        session.Account.Public(),
	})
}

// Refresh handles POST /refresh-token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	pair, err := h.service.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(pair)
}

// Me handles GET /customer/me and GET /user.
func (h *Handler) Me(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	acct, err := h.service.Me(c.UserContext(), p)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"user": acct.Public()})
}

// UpdateProfile handles PUT /user/update.
func (h *Handler) UpdateProfile(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req updateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	acct, err := h.service.UpdateProfile(c.UserContext(), p, ProfileUpdate{
		Name:         req.Name,
		Address:      req.Address,
		LiveLocation: req.LiveLocation,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "User profile updated",
		"user":    acct.Public(),
	})
}

// Logout handles POST /logout.
func (h *Handler) Logout(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.service.Logout(c.UserContext(), p); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "Logged out"})
}

// parseBody decodes a JSON body. An empty body decodes to the zero value so
// that required-field checks report the missing field.
func parseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return apperror.Validation("invalid request body").Wrap(err)
	}
	return nil
}

func principal(c *fiber.Ctx) (auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c.UserContext())
	if !ok {
		return auth.Principal{}, apperror.ErrUnauthorized
	}
	return p, nil
}
