package auth

import (
	"context"
	"fmt"
)

// Role tags which kind of account a token or record belongs to. The set is
// closed: Customer, DeliveryPartner and Admin.
type Role string

const (
	RoleCustomer        Role = "Customer"
	RoleDeliveryPartner Role = "DeliveryPartner"
	RoleAdmin           Role = "Admin"
)

// ParseRole validates a role string decoded from a token or request.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleDeliveryPartner, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// Principal is the identity decoded from a verified token.
type Principal struct {
	SubjectID string `json:"sub"`
	Role      Role   `json:"role"`
	Version   int    `json:"ver"`
}

// ID is an alias for SubjectID.
func (p Principal) ID() string { return p.SubjectID }

type principalKey struct{}

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal placed on ctx by the auth guard.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
