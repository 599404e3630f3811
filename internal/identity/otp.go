package identity

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	otpMin = 1000
	otpMax = 9999
)

// OTPGenerator draws 4-digit codes and stamps their expiry.
type OTPGenerator struct {
	ttl time.Duration
	now func() time.Time
}

// NewOTPGenerator builds a generator whose codes live for ttl.
func NewOTPGenerator(ttl time.Duration, now func() time.Time) OTPGenerator {
	if now == nil {
		now = time.Now
	}
	return OTPGenerator{ttl: ttl, now: now}
}

// Next returns a code uniformly drawn from 1000..9999 and its expiry.
func (g OTPGenerator) Next() (string, time.Time, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("draw otp: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+otpMin), g.now().Add(g.ttl).UTC(), nil
}
