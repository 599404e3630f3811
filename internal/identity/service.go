package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sabjab/sabjab_api/internal/apperror"
	"github.com/sabjab/sabjab_api/internal/auth"
	"github.com/sabjab/sabjab_api/internal/notification"
	"github.com/sabjab/sabjab_api/internal/password"
)

const (
	defaultOTPTTL        = 5 * time.Minute
	defaultNotifyTimeout = 10 * time.Second
	otpSubject           = "Your SabJab verification code"
)

// Service owns the customer activation lifecycle and token issuance.
type Service struct {
	repo          Repository
	tokens        *auth.Issuer
	notifier      notification.Notifier
	logger        *slog.Logger
	now           func() time.Time
	otpTTL        time.Duration
	notifyTimeout time.Duration
	otp           OTPGenerator
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithOTPTTL sets how long an issued OTP stays valid.
func WithOTPTTL(ttl time.Duration) Option {
	return func(s *Service) { s.otpTTL = ttl }
}

// WithNotifyTimeout bounds each notifier call.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) { s.notifyTimeout = d }
}

// NewService creates a new identity service.
func NewService(repo Repository, tokens *auth.Issuer, notifier notification.Notifier, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:          repo,
		tokens:        tokens,
		notifier:      notifier,
		logger:        logger,
		now:           time.Now,
		otpTTL:        defaultOTPTTL,
		notifyTimeout: defaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.otp = NewOTPGenerator(s.otpTTL, s.now)
	return s
}

// RequestOTPInput is the body of an OTP request.
type RequestOTPInput struct {
	Phone int64
	Email string
}

// VerifyOTPInput is the body of an OTP verification.
type VerifyOTPInput struct {
	Phone int64
	OTP   string
}

// NormalizeEmail is the single email normalization used for customer lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RequestOTP binds email to phone in a pending state and sends a fresh code.
// The code is stored before delivery is attempted, so a notifier failure
// leaves a usable pending record behind.
func (s *Service) RequestOTP(ctx context.Context, in RequestOTPInput) error {
	email := NormalizeEmail(in.Email)
	if in.Phone <= 0 {
		return apperror.Validation("phone must be a positive integer")
	}
	if email == "" || !strings.Contains(email, "@") {
		return apperror.Validation("a valid email is required")
	}

	bound, err := s.repo.FindCustomerByEmail(ctx, email)
	switch {
	case err == nil && bound.Phone != in.Phone:
		return apperror.ErrEmailAlreadyLinked
	case err != nil && !errors.Is(err, ErrNotFound):
		return apperror.ErrStorageFailure.Wrap(fmt.Errorf("find customer by email: %w", err))
	}

	code, expiresAt, err := s.otp.Next()
	if err != nil {
		return apperror.ErrInternal.Wrap(err)
	}

	customer, err := s.repo.UpsertPendingCustomer(ctx, PendingCustomer{
		ID:           uuid.NewString(),
		Phone:        in.Phone,
		Email:        email,
		OTPCode:      code,
		OTPExpiresAt: expiresAt,
		Now:          s.now().UTC(),
	})
	if errors.Is(err, ErrDuplicateKey) {
		return apperror.ErrEmailAlreadyLinked
	}
	if err != nil {
		return apperror.ErrStorageFailure.Wrap(fmt.Errorf("upsert pending customer: %w", err))
	}

	notifyCtx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()
	err = s.notifier.Send(notifyCtx, notification.Message{
		Kind:        notification.KindOTP,
		Destination: email,
		Subject:     otpSubject,
		Body:        otpBody(code, s.otpTTL),
	})
	if err != nil {
		s.logger.Warn("otp delivery failed",
			slog.String("customer_id", customer.ID),
			slog.Any("error", err),
		)
		return apperror.ErrNotifierFailure.Wrap(err)
	}

	s.logger.Info("otp issued",
		slog.String("customer_id", customer.ID),
		slog.Time("expires_at", expiresAt),
	)
	return nil
}

// VerifyOTP consumes a pending code, activates the customer and mints tokens.
func (s *Service) VerifyOTP(ctx context.Context, in VerifyOTPInput) (Session, error) {
	if in.Phone <= 0 {
		return Session{}, apperror.Validation("phone must be a positive integer")
	}
	if in.OTP == "" {
		return Session{}, apperror.Validation("otp is required")
	}

	customer, err := s.repo.FindCustomerByPhone(ctx, in.Phone)
	if errors.Is(err, ErrNotFound) {
		return Session{}, apperror.ErrUserNotFound
	}
	if err != nil {
		return Session{}, apperror.ErrStorageFailure.Wrap(fmt.Errorf("find customer by phone: %w", err))
	}

	if customer.OTPCode == nil || *customer.OTPCode != in.OTP {
		s.logger.Info("otp rejected", slog.String("customer_id", customer.ID), slog.String("reason", "mismatch"))
		return Session{}, apperror.ErrInvalidOTP
	}
	if customer.OTPExpiresAt == nil || !customer.OTPExpiresAt.After(s.now()) {
		s.logger.Info("otp rejected", slog.String("customer_id", customer.ID), slog.String("reason", "expired"))
		return Session{}, apperror.ErrOTPExpired
	}

	activated, err := s.repo.ActivateCustomer(ctx, customer.ID, in.OTP, s.now())
	if errors.Is(err, ErrNotFound) {
		// A concurrent verify or a new request-otp changed the code first.
		return Session{}, apperror.ErrInvalidOTP
	}
	if err != nil {
		return Session{}, apperror.ErrStorageFailure.Wrap(fmt.Errorf("activate customer: %w", err))
	}

	return s.issue(&activated)
}

// LoginDeliveryPartner authenticates a provisioned delivery partner.
func (s *Service) LoginDeliveryPartner(ctx context.Context, creds Credentials) (Session, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if creds.Email == "" || creds.Password == "" {
		return Session{}, apperror.Validation("email and password are required")
	}
	partner, err := s.repo.FindDeliveryPartnerByEmail(ctx, creds.Email)
	if errors.Is(err, ErrNotFound) {
		return Session{}, apperror.ErrUserNotFound.WithMessage("delivery partner not found")
	}
	if err != nil {
		return Session{}, apperror.ErrStorageFailure.Wrap(fmt.Errorf("find delivery partner: %w", err))
	}
	if err := s.checkPassword(creds.Password, partner.PasswordHash, partner.ID); err != nil {
		return Session{}, err
	}
	return s.issue(&partner)
}

// LoginAdmin authenticates a provisioned back-office operator.
func (s *Service) LoginAdmin(ctx context.Context, creds Credentials) (Session, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if creds.Email == "" || creds.Password == "" {
		return Session{}, apperror.Validation("email and password are required")
	}
	admin, err := s.repo.FindAdminByEmail(ctx, creds.Email)
	if errors.Is(err, ErrNotFound) {
		return Session{}, apperror.ErrUserNotFound.WithMessage("admin not found")
	}
	if err != nil {
		return Session{}, apperror.ErrStorageFailure.Wrap(fmt.Errorf("find admin: %w", err))
	}
	if err := s.checkPassword(creds.Password, admin.PasswordHash, admin.ID); err != nil {
		return Session{}, err
	}
	return s.issue(&admin)
}

// Refresh exchanges a valid refresh token for a new pair. The presented
// token stays valid until it expires unless the account logs out.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	if refreshToken == "" {
		return auth.TokenPair{}, apperror.ErrUnauthorized.WithMessage("refresh token required")
	}
	principal, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return auth.TokenPair{}, apperror.ErrInvalidToken.Wrap(err)
	}

	acct, err := s.repo.FindByID(ctx, principal.Role, principal.SubjectID)
	if errors.Is(err, ErrNotFound) {
		return auth.TokenPair{}, apperror.ErrUserNotFound.WithStatus(http.StatusForbidden)
	}
	if err != nil {
		return auth.TokenPair{}, apperror.ErrStorageFailure.Wrap(fmt.Errorf("find %s: %w", principal.Role, err))
	}

	id := IdentityOf(acct)
	if id.TokenVersion != principal.Version {
		return auth.TokenPair{}, apperror.ErrInvalidToken.WithMessage("refresh token has been revoked")
	}

	pair, err := s.tokens.Mint(auth.Principal{SubjectID: id.ID, Role: id.Role, Version: id.TokenVersion})
	if err != nil {
		return auth.TokenPair{}, apperror.ErrInternal.Wrap(err)
	}
	return pair, nil
}

// Me returns the sanitized account behind a verified principal.
func (s *Service) Me(ctx context.Context, p auth.Principal) (Account, error) {
	acct, err := s.repo.FindByID(ctx, p.Role, p.SubjectID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.ErrUserNotFound
	}
	if err != nil {
		return nil, apperror.ErrStorageFailure.Wrap(fmt.Errorf("find %s: %w", p.Role, err))
	}
	return acct, nil
}

// UpdateProfile applies self-service profile and live-location changes.
func (s *Service) UpdateProfile(ctx context.Context, p auth.Principal, u ProfileUpdate) (Account, error) {
	if p.Role != auth.RoleCustomer && p.Role != auth.RoleDeliveryPartner {
		return nil, apperror.ErrForbidden.WithMessage("profile updates are limited to customers and delivery partners")
	}
	if u.Name == nil && u.Address == nil && u.LiveLocation == nil {
		return nil, apperror.Validation("nothing to update")
	}
	if loc := u.LiveLocation; loc != nil {
		if !validCoordinate(loc.Latitude, 90) || !validCoordinate(loc.Longitude, 180) {
			return nil, apperror.Validation("liveLocation is out of range")
		}
	}
	if u.Name != nil {
		trimmed := strings.TrimSpace(*u.Name)
		u.Name = &trimmed
	}

	u.Now = s.now().UTC()
	acct, err := s.repo.UpdateProfile(ctx, p.Role, p.SubjectID, u)
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.ErrUserNotFound
	}
	if err != nil {
		return nil, apperror.ErrStorageFailure.Wrap(fmt.Errorf("update profile: %w", err))
	}
	return acct, nil
}

// Logout revokes every refresh token issued to the principal's account.
func (s *Service) Logout(ctx context.Context, p auth.Principal) error {
	err := s.repo.BumpTokenVersion(ctx, p.Role, p.SubjectID)
	if errors.Is(err, ErrNotFound) {
		return apperror.ErrUserNotFound
	}
	if err != nil {
		return apperror.ErrStorageFailure.Wrap(fmt.Errorf("bump token version: %w", err))
	}
	s.logger.Info("logout", slog.String("subject_id", p.SubjectID), slog.String("role", p.Role.String()))
	return nil
}

func (s *Service) issue(acct Account) (Session, error) {
	id := IdentityOf(acct)
	pair, err := s.tokens.Mint(auth.Principal{SubjectID: id.ID, Role: id.Role, Version: id.TokenVersion})
	if err != nil {
		return Session{}, apperror.ErrInternal.Wrap(err)
	}
	s.logger.Info("session issued", slog.String("subject_id", id.ID), slog.String("role", id.Role.String()))
	return Session{Tokens: pair, Account: acct}, nil
}

func (s *Service) checkPassword(plain, hash, subjectID string) error {
	ok, err := password.Verify(plain, hash)
	if err != nil {
		s.logger.Error("stored credential unreadable", slog.String("subject_id", subjectID), slog.Any("error", err))
		return apperror.ErrInvalidCredentials
	}
	if !ok {
		return apperror.ErrInvalidCredentials
	}
	return nil
}

func otpBody(code string, ttl time.Duration) string {
	return fmt.Sprintf("Your SabJab verification code is %s. It expires in %d minutes.", code, int(math.Ceil(ttl.Minutes())))
}

func validCoordinate(v, limit float64) bool {
	return !math.IsNaN(v) && v >= -limit && v <= limit
}
