package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenExpired is returned for a well-formed, correctly signed token
	// whose exp is in the past.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers every other verification failure.
	ErrTokenInvalid = errors.New("token invalid")
)

// TokenPair is the credential set handed to clients.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// IssuerConfig configures signing keys and lifetimes.
type IssuerConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

type claims struct {
	Role    Role `json:"role"`
	Version int  `json:"ver"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies HS256 access and refresh tokens. Tokens are not
// persisted; verification depends only on the token and the signing key.
type Issuer struct {
	cfg IssuerConfig
	now func() time.Time
}

// IssuerOption customizes an Issuer.
type IssuerOption func(*Issuer)

// WithIssuerClock replaces time.Now for both signing and expiry checks.
func WithIssuerClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer builds an Issuer.
func NewIssuer(cfg IssuerConfig, opts ...IssuerOption) *Issuer {
	i := &Issuer{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Mint signs a fresh access/refresh pair for p.
func (i *Issuer) Mint(p Principal) (TokenPair, error) {
	if p.SubjectID == "" || !p.Role.Valid() {
		return TokenPair{}, fmt.Errorf("mint token: invalid principal %q/%q", p.SubjectID, p.Role)
	}
	access, err := i.sign(p, i.cfg.AccessSecret, i.cfg.AccessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := i.sign(p, i.cfg.RefreshSecret, i.cfg.RefreshTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccess decodes an access token.
func (i *Issuer) VerifyAccess(token string) (Principal, error) {
	return i.verify(token, i.cfg.AccessSecret)
}

// VerifyRefresh decodes a refresh token.
func (i *Issuer) VerifyRefresh(token string) (Principal, error) {
	return i.verify(token, i.cfg.RefreshSecret)
}

func (i *Issuer) sign(p Principal, secret string, ttl time.Duration) (string, error) {
	now := i.now().UTC()
	c := claims{
		Role:    p.Role,
		Version: p.Version,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.SubjectID,
			Issuer:    i.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}

func (i *Issuer) verify(token, secret string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrTokenInvalid
	}
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, ErrTokenExpired
		}
		return Principal{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if c.Subject == "" || !c.Role.Valid() {
		return Principal{}, ErrTokenInvalid
	}
	return Principal{SubjectID: c.Subject, Role: c.Role, Version: c.Version}, nil
}
