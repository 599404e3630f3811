package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/sabjab/sabjab_api/internal/apperror"
)

// ErrorHandler renders every failure as {code, message}. Causes of 5xx
// errors are logged and never sent to the client.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(apperror.Body{Code: fiberCode(fe.Code), Message: fe.Message})
		}

		appErr := apperror.From(err)
		if appErr.Status >= http.StatusInternalServerError {
			requestID, _ := c.Locals(requestIDHeader).(string)
			logger.Error("request failed",
				slog.String("code", appErr.Code),
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.String("request_id", requestID),
				slog.Any("error", err),
			)
		}
		return c.Status(appErr.Status).JSON(appErr.Body())
	}
}

// StatusOf returns the status an error will be rendered with.
func StatusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return apperror.From(err).Status
}

func fiberCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusUnauthorized:
		return apperror.CodeUnauthorized
	case http.StatusForbidden:
		return apperror.CodeForbidden
	case http.StatusTooManyRequests:
		return apperror.CodeRateLimited
	}
	if status >= http.StatusInternalServerError {
		return apperror.CodeInternal
	}
	return apperror.CodeValidation
}
