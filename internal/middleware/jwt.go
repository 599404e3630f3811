package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/sabjab/sabjab_api/internal/apperror"
	"github.com/sabjab/sabjab_api/internal/auth"
)

const principalLocal = "principal"

// TokenVerifier decodes access tokens.
type TokenVerifier interface {
	VerifyAccess(token string) (auth.Principal, error)
}

// RequireAuth validates the bearer access token and attaches the decoded
// principal to the request. Verification does not touch storage.
func RequireAuth(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return apperror.ErrUnauthorized
		}
		p, err := verifier.VerifyAccess(token)
		if errors.Is(err, auth.ErrTokenExpired) {
			return apperror.ErrTokenExpired
		}
		if err != nil {
			return apperror.ErrForbidden
		}
		c.Locals(principalLocal, p)
		c.SetUserContext(auth.WithPrincipal(c.UserContext(), p))
		return c.Next()
	}
}

// RequireRole admits only principals holding one of roles. It must run after
// RequireAuth.
func RequireRole(roles ...auth.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := PrincipalFrom(c)
		if !ok {
			return apperror.ErrUnauthorized
		}
		for _, r := range roles {
			if p.Role == r {
				return c.Next()
			}
		}
		return apperror.ErrForbidden.WithMessage("insufficient role")
	}
}

// PrincipalFrom returns the principal attached by RequireAuth.
func PrincipalFrom(c *fiber.Ctx) (auth.Principal, bool) {
	p, ok := c.Locals(principalLocal).(auth.Principal)
	return p, ok
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.Contains(token, " ") {
		return "", false
	}
	return token, true
}
