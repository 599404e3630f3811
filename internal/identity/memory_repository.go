package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sabjab/sabjab_api/internal/auth"
)

type memoryRepository struct {
	mu        sync.RWMutex
	customers map[string]Customer
	partners  map[string]DeliveryPartner
	admins    map[string]Admin
}

// NewMemoryRepository builds an in-memory store for tests and local
// development. It enforces the same unique keys as the Postgres schema.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		customers: make(map[string]Customer),
		partners:  make(map[string]DeliveryPartner),
		admins:    make(map[string]Admin),
	}
}

func (r *memoryRepository) FindByID(_ context.Context, role auth.Role, id string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch role {
	case auth.RoleCustomer:
		if c, ok := r.customers[id]; ok {
			return &c, nil
		}
	case auth.RoleDeliveryPartner:
		if d, ok := r.partners[id]; ok {
			return &d, nil
		}
	case auth.RoleAdmin:
		if a, ok := r.admins[id]; ok {
			return &a, nil
		}
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}
	return nil, ErrNotFound
}

func (r *memoryRepository) FindCustomerByPhone(_ context.Context, phone int64) (Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.customerByPhone(phone); ok {
		return c, nil
	}
	return Customer{}, ErrNotFound
}

func (r *memoryRepository) FindCustomerByEmail(_ context.Context, email string) (Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.customers {
		if c.Email != "" && c.Email == email {
			return c, nil
		}
	}
	return Customer{}, ErrNotFound
}

func (r *memoryRepository) UpsertPendingCustomer(_ context.Context, p PendingCustomer) (Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, exists := r.customerByPhone(p.Phone)
	for id, other := range r.customers {
		if other.Email == p.Email && (!exists || id != c.ID) {
			return Customer{}, fmt.Errorf("%w: customers_email_key", ErrDuplicateKey)
		}
	}
	if !exists {
		c = Customer{
			Identity: Identity{ID: p.ID, Role: auth.RoleCustomer, CreatedAt: p.Now.UTC()},
			Phone:    p.Phone,
		}
	}
	code, expires := p.OTPCode, p.OTPExpiresAt.UTC()
	c.Email = p.Email
	c.OTPCode = &code
	c.OTPExpiresAt = &expires
	c.UpdatedAt = p.Now.UTC()
	r.customers[c.ID] = c
	return c, nil
}

func (r *memoryRepository) ActivateCustomer(_ context.Context, id, otp string, now time.Time) (Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.customers[id]
	if !ok || c.OTPCode == nil || *c.OTPCode != otp {
		return Customer{}, ErrNotFound
	}
	c.OTPCode = nil
	c.OTPExpiresAt = nil
	c.IsActivated = true
	c.UpdatedAt = now.UTC()
	r.customers[id] = c
	return c, nil
}

func (r *memoryRepository) DeleteCustomer(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.customers[id]; !ok {
		return ErrNotFound
	}
	delete(r.customers, id)
	return nil
}

func (r *memoryRepository) FindDeliveryPartnerByEmail(_ context.Context, email string) (DeliveryPartner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.partners {
		if d.Email == email {
			return d, nil
		}
	}
	return DeliveryPartner{}, ErrNotFound
}

func (r *memoryRepository) CreateDeliveryPartner(_ context.Context, d DeliveryPartner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.partners {
		if other.Email == d.Email {
			return fmt.Errorf("%w: delivery_partners_email_key", ErrDuplicateKey)
		}
	}
	d.Role = auth.RoleDeliveryPartner
	r.partners[d.ID] = d
	return nil
}

func (r *memoryRepository) FindAdminByEmail(_ context.Context, email string) (Admin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.admins {
		if a.Email == email {
			return a, nil
		}
	}
	return Admin{}, ErrNotFound
}

func (r *memoryRepository) CreateAdmin(_ context.Context, a Admin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.admins {
		if other.Email == a.Email {
			return fmt.Errorf("%w: admins_email_key", ErrDuplicateKey)
		}
	}
	a.Role = auth.RoleAdmin
	r.admins[a.ID] = a
	return nil
}

func (r *memoryRepository) UpdateProfile(_ context.Context, role auth.Role, id string, u ProfileUpdate) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := u.Now.UTC()
	switch role {
	case auth.RoleCustomer:
		c, ok := r.customers[id]
		if !ok {
			return nil, ErrNotFound
		}
		applyProfile(&c.Name, &c.Address, &c.LiveLocation, u)
		c.UpdatedAt = now
		r.customers[id] = c
		return &c, nil
	case auth.RoleDeliveryPartner:
		d, ok := r.partners[id]
		if !ok {
			return nil, ErrNotFound
		}
		applyProfile(&d.Name, &d.Address, &d.LiveLocation, u)
		d.UpdatedAt = now
		r.partners[id] = d
		return &d, nil
	}
	return nil, fmt.Errorf("role %q has no self-service profile", role)
}

func (r *memoryRepository) BumpTokenVersion(_ context.Context, role auth.Role, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch role {
	case auth.RoleCustomer:
		if c, ok := r.customers[id]; ok {
			c.TokenVersion++
			r.customers[id] = c
			return nil
		}
	case auth.RoleDeliveryPartner:
		if d, ok := r.partners[id]; ok {
			d.TokenVersion++
			r.partners[id] = d
			return nil
		}
	case auth.RoleAdmin:
		if a, ok := r.admins[id]; ok {
			a.TokenVersion++
			r.admins[id] = a
			return nil
		}
	default:
		return fmt.Errorf("unknown role %q", role)
	}
	return ErrNotFound
}

func (r *memoryRepository) customerByPhone(phone int64) (Customer, bool) {
	for _, c := range r.customers {
		if c.Phone == phone {
			return c, true
		}
	}
	return Customer{}, false
}

func applyProfile(name, address *string, loc **LiveLocation, u ProfileUpdate) {
	if u.Name != nil {
		*name = *u.Name
	}
	if u.Address != nil {
		*address = *u.Address
	}
	if u.LiveLocation != nil {
		l := *u.LiveLocation
		*loc = &l
	}
}
