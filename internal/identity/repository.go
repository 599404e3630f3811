package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sabjab/sabjab_api/internal/auth"
)

var (
	// ErrNotFound is returned when no record matches.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateKey is returned when a write violates a unique index.
	ErrDuplicateKey = errors.New("duplicate key")
)

// Repository persists customers, delivery partners and admins. Business
// invariants are enforced by Service; the store only guarantees uniqueness of
// customer phone, customer email and operator email.
type Repository interface {
	FindByID(ctx context.Context, role auth.Role, id string) (Account, error)
	FindCustomerByPhone(ctx context.Context, phone int64) (Customer, error)
	FindCustomerByEmail(ctx context.Context, email string) (Customer, error)
	// UpsertPendingCustomer atomically creates or overwrites the pending OTP
	// state of the customer keyed by phone.
	UpsertPendingCustomer(ctx context.Context, p PendingCustomer) (Customer, error)
	// ActivateCustomer clears the OTP fields and marks the customer activated,
	// provided the stored code still equals otp. Otherwise ErrNotFound.
	ActivateCustomer(ctx context.Context, id, otp string, now time.Time) (Customer, error)
	DeleteCustomer(ctx context.Context, id string) error
	FindDeliveryPartnerByEmail(ctx context.Context, email string) (DeliveryPartner, error)
	CreateDeliveryPartner(ctx context.Context, partner DeliveryPartner) error
	FindAdminByEmail(ctx context.Context, email string) (Admin, error)
	CreateAdmin(ctx context.Context, admin Admin) error
	UpdateProfile(ctx context.Context, role auth.Role, id string, update ProfileUpdate) (Account, error)
	BumpTokenVersion(ctx context.Context, role auth.Role, id string) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const (
	customerColumns = `id::text, name, is_activated, token_version, phone, email, otp_code, otp_expires_at,
        address, live_lat, live_lng, created_at, updated_at`
	partnerColumns = `id::text, name, is_activated, token_version, email, password_hash, phone, branch_id,
        address, live_lat, live_lng, created_at, updated_at`
	adminColumns = `id::text, name, is_activated, token_version, email, password_hash, created_at, updated_at`
)

// tableFor maps a role to the table holding its accounts.
func tableFor(role auth.Role) (string, error) {
	switch role {
	case auth.RoleCustomer:
		return "customers", nil
	case auth.RoleDeliveryPartner:
		return "delivery_partners", nil
	case auth.RoleAdmin:
		return "admins", nil
	}
	return "", fmt.Errorf("unknown role %q", role)
}

// FindByID fetches an account of the given role.
func (r *PostgresRepository) FindByID(ctx context.Context, role auth.Role, id string) (Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	switch role {
	case auth.RoleCustomer:
		c, err := scanCustomer(r.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
		if err != nil {
			return nil, err
		}
		return &c, nil
	case auth.RoleDeliveryPartner:
		d, err := scanPartner(r.db.QueryRow(ctx, `SELECT `+partnerColumns+` FROM delivery_partners WHERE id = $1`, id))
		if err != nil {
			return nil, err
		}
		return &d, nil
	case auth.RoleAdmin:
		a, err := scanAdmin(r.db.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE id = $1`, id))
		if err != nil {
			return nil, err
		}
		return &a, nil
	}
	return nil, fmt.Errorf("unknown role %q", role)
}

// FindCustomerByPhone fetches a customer by phone number.
func (r *PostgresRepository) FindCustomerByPhone(ctx context.Context, phone int64) (Customer, error) {
	return scanCustomer(r.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE phone = $1`, phone))
}

// FindCustomerByEmail fetches a customer by normalized email.
func (r *PostgresRepository) FindCustomerByEmail(ctx context.Context, email string) (Customer, error) {
	return scanCustomer(r.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE email = $1`, email))
}

// UpsertPendingCustomer relies on the phone unique index for the conflict
// target and on the email unique index to reject a concurrent binding.
func (r *PostgresRepository) UpsertPendingCustomer(ctx context.Context, p PendingCustomer) (Customer, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO customers (id, phone, email, otp_code, otp_expires_at, is_activated, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, false, $6, $6)
        ON CONFLICT (phone) DO UPDATE SET
            email = EXCLUDED.email,
            otp_code = EXCLUDED.otp_code,
            otp_expires_at = EXCLUDED.otp_expires_at,
            updated_at = EXCLUDED.updated_at
        RETURNING `+customerColumns,
		p.ID, p.Phone, p.Email, p.OTPCode, p.OTPExpiresAt.UTC(), p.Now.UTC())
	c, err := scanCustomer(row)
	if err != nil {
		return Customer{}, translate(err)
	}
	return c, nil
}

// ActivateCustomer consumes the OTP in a single conditional update.
func (r *PostgresRepository) ActivateCustomer(ctx context.Context, id, otp string, now time.Time) (Customer, error) {
	row := r.db.QueryRow(ctx, `UPDATE customers
        SET otp_code = NULL, otp_expires_at = NULL, is_activated = true, updated_at = $3
        WHERE id = $1 AND otp_code = $2
        RETURNING `+customerColumns, id, otp, now.UTC())
	return scanCustomer(row)
}

// DeleteCustomer removes a customer.
func (r *PostgresRepository) DeleteCustomer(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindDeliveryPartnerByEmail matches the stored email exactly.
func (r *PostgresRepository) FindDeliveryPartnerByEmail(ctx context.Context, email string) (DeliveryPartner, error) {
	return scanPartner(r.db.QueryRow(ctx, `SELECT `+partnerColumns+` FROM delivery_partners WHERE email = $1`, email))
}

// CreateDeliveryPartner inserts a provisioned delivery partner.
func (r *PostgresRepository) CreateDeliveryPartner(ctx context.Context, d DeliveryPartner) error {
	_, err := r.db.Exec(ctx, `INSERT INTO delivery_partners (id, name, is_activated, email, password_hash, phone, branch_id, address, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		d.ID, d.Name, d.IsActivated, d.Email, d.PasswordHash, d.Phone, nullString(d.BranchID), d.Address, d.CreatedAt.UTC())
	return translate(err)
}

// FindAdminByEmail matches the stored email exactly.
func (r *PostgresRepository) FindAdminByEmail(ctx context.Context, email string) (Admin, error) {
	return scanAdmin(r.db.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE email = $1`, email))
}

// CreateAdmin inserts a provisioned admin.
func (r *PostgresRepository) CreateAdmin(ctx context.Context, a Admin) error {
	_, err := r.db.Exec(ctx, `INSERT INTO admins (id, name, is_activated, email, password_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		a.ID, a.Name, a.IsActivated, a.Email, a.PasswordHash, a.CreatedAt.UTC())
	return translate(err)
}

// UpdateProfile writes the self-service fields of a customer or delivery partner.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, role auth.Role, id string, u ProfileUpdate) (Account, error) {
	if role == auth.RoleAdmin {
		return nil, fmt.Errorf("admins have no self-service profile")
	}
	table, err := tableFor(role)
	if err != nil {
		return nil, err
	}
	var lat, lng *float64
	if u.LiveLocation != nil {
		lat, lng = &u.LiveLocation.Latitude, &u.LiveLocation.Longitude
	}
	cmd, err := r.db.Exec(ctx, `UPDATE `+table+` SET
            name = COALESCE($2, name),
            address = COALESCE($3, address),
            live_lat = COALESCE($4, live_lat),
            live_lng = COALESCE($5, live_lng),
            updated_at = $6
        WHERE id = $1`, id, u.Name, u.Address, lat, lng, u.Now.UTC())
	if err != nil {
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.FindByID(ctx, role, id)
}

// BumpTokenVersion invalidates outstanding refresh tokens of an account.
func (r *PostgresRepository) BumpTokenVersion(ctx context.Context, role auth.Role, id string) error {
	table, err := tableFor(role)
	if err != nil {
		return err
	}
	cmd, err := r.db.Exec(ctx, `UPDATE `+table+` SET token_version = token_version + 1, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCustomer(row pgx.Row) (Customer, error) {
	var (
		c        Customer
		name     *string
		email    *string
		address  *string
		lat, lng *float64
	)
	err := row.Scan(&c.ID, &name, &c.IsActivated, &c.TokenVersion, &c.Phone, &email, &c.OTPCode, &c.OTPExpiresAt,
		&address, &lat, &lng, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Customer{}, notFound(err)
	}
	c.Role = auth.RoleCustomer
	c.Name, c.Email, c.Address = deref(name), deref(email), deref(address)
	c.LiveLocation = location(lat, lng)
	if c.OTPExpiresAt != nil {
		t := c.OTPExpiresAt.UTC()
		c.OTPExpiresAt = &t
	}
	return c, nil
}

func scanPartner(row pgx.Row) (DeliveryPartner, error) {
	var (
		d        DeliveryPartner
		name     *string
		phone    *int64
		branch   *string
		address  *string
		lat, lng *float64
	)
	err := row.Scan(&d.ID, &name, &d.IsActivated, &d.TokenVersion, &d.Email, &d.PasswordHash, &phone, &branch,
		&address, &lat, &lng, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return DeliveryPartner{}, notFound(err)
	}
	d.Role = auth.RoleDeliveryPartner
	d.Name, d.BranchID, d.Address = deref(name), deref(branch), deref(address)
	if phone != nil {
		d.Phone = *phone
	}
	d.LiveLocation = location(lat, lng)
	return d, nil
}

func scanAdmin(row pgx.Row) (Admin, error) {
	var (
		a    Admin
		name *string
	)
	err := row.Scan(&a.ID, &name, &a.IsActivated, &a.TokenVersion, &a.Email, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Admin{}, notFound(err)
	}
	a.Role = auth.RoleAdmin
	a.Name = deref(name)
	return a, nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// translate maps unique violations (SQLSTATE 23505) to ErrDuplicateKey.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, pgErr.ConstraintName)
	}
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func location(lat, lng *float64) *LiveLocation {
	if lat == nil || lng == nil {
		return nil
	}
	return &LiveLocation{Latitude: *lat, Longitude: *lng}
}

var _ Repository = (*PostgresRepository)(nil)
