package identity

import (
	"time"

	"github.com/sabjab/sabjab_api/internal/auth"
)

// Identity holds the fields shared by every account kind.
type Identity struct {
	ID           string
	Name         string
	Role         auth.Role
	IsActivated  bool
	TokenVersion int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LiveLocation is the last reported position of a user.
type LiveLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Customer is a self-registered shopper identified by phone number.
// OTPCode and OTPExpiresAt are both set during a pending verification window
// and both nil otherwise.
type Customer struct {
	Identity
	Phone        int64
	Email        string
	OTPCode      *string
	OTPExpiresAt *time.Time
	Address      string
	LiveLocation *LiveLocation
}

// DeliveryPartner is a rider provisioned out of band.
type DeliveryPartner struct {
	Identity
	Email        string
	PasswordHash string
	Phone        int64
	BranchID     string
	Address      string
	LiveLocation *LiveLocation
}

// Admin is a back-office operator provisioned out of band.
type Admin struct {
	Identity
	Email        string
	PasswordHash string
}

// Account is one of *Customer, *DeliveryPartner or *Admin.
type Account interface {
	identity() *Identity
	// Public returns a JSON-ready view with secret fields removed.
	Public() any
}

func (c *Customer) identity() *Identity        { return &c.Identity }
func (d *DeliveryPartner) identity() *Identity { return &d.Identity }
func (a *Admin) identity() *Identity           { return &a.Identity }

// IdentityOf returns the shared fields of acct.
func IdentityOf(acct Account) Identity {
	return *acct.identity()
}

// CustomerView is the sanitized customer representation.
type CustomerView struct {
	ID           string        `json:"id"`
	Name         string        `json:"name,omitempty"`
	Role         auth.Role     `json:"role"`
	IsActivated  bool          `json:"isActivated"`
	Phone        int64         `json:"phone"`
	Email        string        `json:"email,omitempty"`
	Address      string        `json:"address,omitempty"`
	LiveLocation *LiveLocation `json:"liveLocation,omitempty"`
}

// DeliveryPartnerView is the sanitized delivery partner representation.
type DeliveryPartnerView struct {
	ID           string        `json:"id"`
	Name         string        `json:"name,omitempty"`
	Role         auth.Role     `json:"role"`
	IsActivated  bool          `json:"isActivated"`
	Email        string        `json:"email"`
	Phone        int64         `json:"phone"`
	BranchID     string        `json:"branch,omitempty"`
	Address      string        `json:"address,omitempty"`
	LiveLocation *LiveLocation `json:"liveLocation,omitempty"`
}

// AdminView is the sanitized admin representation.
type AdminView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	Role        auth.Role `json:"role"`
	IsActivated bool      `json:"isActivated"`
	Email       string    `json:"email"`
}

// Public returns the customer as a CustomerView, without the pending OTP.
func (c *Customer) Public() any {
	return CustomerView{
		ID:           c.ID,
		Name:         c.Name,
		Role:         c.Role,
		IsActivated:  c.IsActivated,
		Phone:        c.Phone,
		Email:        c.Email,
		Address:      c.Address,
		LiveLocation: c.LiveLocation,
	}
}

// Public returns the partner as a DeliveryPartnerView, without the password hash.
func (d *DeliveryPartner) Public() any {
	return DeliveryPartnerView{
		ID:           d.ID,
		Name:         d.Name,
		Role:         d.Role,
		IsActivated:  d.IsActivated,
		Email:        d.Email,
		Phone:        d.Phone,
		BranchID:     d.BranchID,
		Address:      d.Address,
		LiveLocation: d.LiveLocation,
	}
}

// Public returns the admin as an AdminView, without the password hash.
func (a *Admin) Public() any {
	return AdminView{
		ID:          a.ID,
		Name:        a.Name,
		Role:        a.Role,
		IsActivated: a.IsActivated,
		Email:       a.Email,
	}
}

// PendingCustomer is the write set of an OTP request.
type PendingCustomer struct {
	ID           string
	Phone        int64
	Email        string
	OTPCode      string
	OTPExpiresAt time.Time
	Now          time.Time
}

// ProfileUpdate lists the self-service writable fields. Nil means unchanged.
type ProfileUpdate struct {
	Name         *string
	Address      *string
	LiveLocation *LiveLocation
	// Now stamps updated_at.
	Now time.Time
}

// Credentials is the email/password pair of operator logins.
type Credentials struct {
	Email    string
	Password string
}

// Session is returned by every successful login.
type Session struct {
	Tokens  auth.TokenPair
	Account Account
}
