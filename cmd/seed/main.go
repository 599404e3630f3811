// Command seed provisions delivery partners and admins, which cannot
// self-register.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/sabjab/sabjab_api/internal/auth"
	"github.com/sabjab/sabjab_api/internal/identity"
	"github.com/sabjab/sabjab_api/internal/infra"
	"github.com/sabjab/sabjab_api/internal/logging"
	"github.com/sabjab/sabjab_api/internal/password"
)

type options struct {
	databaseURL string
	role        string
	email       string
	password    string
	name        string
	phone       int64
	branch      string
}

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "postgres connection string")
	flag.StringVar(&opts.role, "role", string(auth.RoleDeliveryPartner), "DeliveryPartner or Admin")
	flag.StringVar(&opts.email, "email", "", "login email")
	flag.StringVar(&opts.password, "password", "", "login password")
	flag.StringVar(&opts.name, "name", "", "display name")
	flag.Int64Var(&opts.phone, "phone", 0, "phone number (delivery partners)")
	flag.StringVar(&opts.branch, "branch", "", "branch id (delivery partners)")
	flag.Parse()

	logger := logging.New("info", "sabjab-seed")
	if err := run(context.Background(), opts); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
	logger.Info("account provisioned", "role", opts.role, "email", opts.email)
}

func run(ctx context.Context, opts options) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	db, err := infra.NewPostgresPool(ctx, opts.databaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := infra.Migrate(ctx, db); err != nil {
		return err
	}
	return provision(ctx, identity.NewPostgresRepository(db), opts, time.Now().UTC())
}

func provision(ctx context.Context, repo identity.Repository, opts options, now time.Time) error {
	role, err := auth.ParseRole(opts.role)
	if err != nil {
		return err
	}
	email := strings.TrimSpace(opts.email)
	if email == "" {
		return fmt.Errorf("-email is required")
	}
	hash, err := password.Hash(opts.password)
	if err != nil {
		return err
	}
	id := identity.Identity{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(opts.name),
		IsActivated: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	switch role {
	case auth.RoleDeliveryPartner:
		err = repo.CreateDeliveryPartner(ctx, identity.DeliveryPartner{
			Identity:     id,
			Email:        email,
			PasswordHash: hash,
			Phone:        opts.phone,
			BranchID:     opts.branch,
		})
	case auth.RoleAdmin:
		err = repo.CreateAdmin(ctx, identity.Admin{Identity: id, Email: email, PasswordHash: hash})
	default:
		return fmt.Errorf("customers register through request-otp, not seed")
	}
	if errors.Is(err, identity.ErrDuplicateKey) {
		return fmt.Errorf("an account with email %s already exists", email)
	}
	return err
}
