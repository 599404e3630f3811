// Package apperror defines the error taxonomy returned by the identity
// service. Every error carries a stable machine-readable code, the HTTP status
// it maps to and a client-safe message. Causes are kept for server-side logs
// only and are never rendered to the client.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable error codes exposed to clients.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeEmailAlreadyLinked = "EMAIL_ALREADY_LINKED"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeInvalidOTP         = "INVALID_OTP"
	CodeOTPExpired         = "OTP_EXPIRED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeForbidden          = "FORBIDDEN"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeRateLimited        = "RATE_LIMITED"
	CodeConflict           = "CONFLICT"
	CodeNotifierFailure    = "NOTIFIER_FAILURE"
	CodeStorageFailure     = "STORAGE_FAILURE"
	CodeInternal           = "INTERNAL_ERROR"
)

// Error is a classified failure.
type Error struct {
	Code    string
	Status  int
	Message string
	Err     error
}

// New builds an Error.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same code, so sentinels keep working
// after Wrap, WithStatus or WithMessage produced a copy.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

// WithStatus returns a copy of e mapped to a different HTTP status.
func (e *Error) WithStatus(status int) *Error {
	cp := *e
	cp.Status = status
	return &cp
}

// WithMessage returns a copy of e with a different client message.
func (e *Error) WithMessage(message string) *Error {
	cp := *e
	cp.Message = message
	return &cp
}

// Sentinels for every outcome the service reports.
var (
	ErrValidation         = New(CodeValidation, http.StatusBadRequest, "invalid request")
	ErrEmailAlreadyLinked = New(CodeEmailAlreadyLinked, http.StatusBadRequest, "email is already linked to another phone number")
	ErrUserNotFound       = New(CodeUserNotFound, http.StatusNotFound, "user not found")
	ErrInvalidOTP         = New(CodeInvalidOTP, http.StatusBadRequest, "invalid otp")
	ErrOTPExpired         = New(CodeOTPExpired, http.StatusBadRequest, "otp has expired")
	ErrInvalidCredentials = New(CodeInvalidCredentials, http.StatusBadRequest, "invalid credentials")
	ErrUnauthorized       = New(CodeUnauthorized, http.StatusUnauthorized, "access token required")
	ErrTokenExpired       = New(CodeTokenExpired, http.StatusUnauthorized, "token expired")
	ErrForbidden          = New(CodeForbidden, http.StatusForbidden, "invalid or tampered token")
	ErrInvalidToken       = New(CodeInvalidToken, http.StatusForbidden, "invalid refresh token")
	ErrRateLimited        = New(CodeRateLimited, http.StatusTooManyRequests, "too many requests, try again later")
	ErrConflict           = New(CodeConflict, http.StatusConflict, "duplicate request currently processing")
	ErrNotifierFailure    = New(CodeNotifierFailure, http.StatusInternalServerError, "failed to deliver verification code, request a new one")
	ErrStorageFailure     = New(CodeStorageFailure, http.StatusInternalServerError, "internal server error")
	ErrInternal           = New(CodeInternal, http.StatusInternalServerError, "internal server error")
)

// Validation returns a validation error with a specific message.
func Validation(message string) *Error {
	return ErrValidation.WithMessage(message)
}

// From classifies err. Unclassified errors become ErrInternal wrapping err.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal.Wrap(err)
}

// Body is the JSON shape of every failed response.
type Body struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Body renders the client-visible part of e.
func (e *Error) Body() Body {
	return Body{Code: e.Code, Message: e.Message}
}
