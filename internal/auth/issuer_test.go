package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func newTestIssuer() *Issuer {
	return NewIssuer(IssuerConfig{
		AccessSecret:  strings.Repeat("a", 32),
		RefreshSecret: strings.Repeat("r", 32),
		AccessTTL:     24 * time.Hour,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "sabjab-test",
	})
}

func TestMintAndVerifyRoundTrip(t *testing.T) {
	iss := newTestIssuer()
	p := Principal{SubjectID: "c-1", Role: RoleCustomer, Version: 2}

	pair, err := iss.Mint(p)
	require.NoError(t, err)
	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	got, err := iss.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, p, got)
	require.Equal(t, got.SubjectID, got.ID())

	got, err = iss.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, RoleCustomer, got.Role)
}

func TestTokensAreNotInterchangeable(t *testing.T) {
	iss := newTestIssuer()
	pair, err := iss.Mint(Principal{SubjectID: "d-1", Role: RoleDeliveryPartner})
	require.NoError(t, err)

	_, err = iss.VerifyAccess(pair.RefreshToken)
	require.ErrorIs(t, err, ErrTokenInvalid)
	_, err = iss.VerifyRefresh(pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyExpired(t *testing.T) {
	iss := newTestIssuer()
	iss.now = func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) }
	pair, err := iss.Mint(Principal{SubjectID: "c-1", Role: RoleCustomer})
	require.NoError(t, err)

	iss.now = time.Now
	_, err = iss.VerifyAccess(pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenExpired)
	_, err = iss.VerifyRefresh(pair.RefreshToken)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyRejectsTampering(t *testing.T) {
	iss := newTestIssuer()
	pair, err := iss.Mint(Principal{SubjectID: "c-1", Role: RoleCustomer})
	require.NoError(t, err)

	parts := strings.Split(pair.AccessToken, ".")
	require.Len(t, parts, 3)
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "c-1",
		"role": "Admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("some-other-secret-that-is-long-enough"))
	require.NoError(t, err)

	cases := map[string]string{
		"empty":          "",
		"garbage":        "not-a-token",
		"bad signature":  parts[0] + "." + parts[1] + ".AAAA",
		"foreign secret": forged,
		"alg none":       noneToken(t),
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := iss.VerifyAccess(tok)
			require.ErrorIs(t, err, ErrTokenInvalid)
			require.False(t, errors.Is(err, ErrTokenExpired))
		})
	}
}

func TestVerifyRejectsUnknownRole(t *testing.T) {
	iss := newTestIssuer()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "x-1",
		"role": "Superuser",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(strings.Repeat("a", 32)))
	require.NoError(t, err)

	_, err = iss.VerifyAccess(tok)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestMintRejectsIncompletePrincipal(t *testing.T) {
	iss := newTestIssuer()
	_, err := iss.Mint(Principal{Role: RoleCustomer})
	require.Error(t, err)
	_, err = iss.Mint(Principal{SubjectID: "x", Role: "Guest"})
	require.Error(t, err)
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	require.False(t, ok)

	p := Principal{SubjectID: "a-1", Role: RoleAdmin}
	got, ok := PrincipalFromContext(WithPrincipal(context.Background(), p))
	require.True(t, ok)
	require.Equal(t, p, got)
}

func noneToken(t *testing.T) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub":  "c-1",
		"role": "Customer",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return tok
}
