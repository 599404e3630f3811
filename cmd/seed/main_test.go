package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sabjab/sabjab_api/internal/auth"
	"github.com/sabjab/sabjab_api/internal/identity"
	"github.com/sabjab/sabjab_api/internal/password"
)

func TestProvisionDeliveryPartner(t *testing.T) {
	ctx := context.Background()
	repo := identity.NewMemoryRepository()
	opts := options{role: "DeliveryPartner", email: " rider@x.com ", password: "s3cret-pass", name: "Ravi", phone: 9800000000, branch: "b-1"}

	require.NoError(t, provision(ctx, repo, opts, time.Now()))

	d, err := repo.FindDeliveryPartnerByEmail(ctx, "rider@x.com")
	require.NoError(t, err)
	require.Equal(t, auth.RoleDeliveryPartner, d.Role)
	require.Equal(t, "b-1", d.BranchID)
	require.True(t, d.IsActivated)
	ok, err := password.Verify("s3cret-pass", d.PasswordHash)
	require.NoError(t, err)
	require.True(t, ok)

	err = provision(ctx, repo, opts, time.Now())
	require.ErrorContains(t, err, "already exists")
}

func TestProvisionRejects(t *testing.T) {
	ctx := context.Background()
	repo := identity.NewMemoryRepository()

	require.Error(t, provision(ctx, repo, options{role: "Customer", email: "c@x.com", password: "s3cret-pass"}, time.Now()))
	require.Error(t, provision(ctx, repo, options{role: "Root", email: "c@x.com", password: "s3cret-pass"}, time.Now()))
	require.Error(t, provision(ctx, repo, options{role: "Admin", password: "s3cret-pass"}, time.Now()))
	require.Error(t, provision(ctx, repo, options{role: "Admin", email: "ops@x.com", password: "short"}, time.Now()))

	require.NoError(t, provision(ctx, repo, options{role: "Admin", email: "ops@x.com", password: "s3cret-pass"}, time.Now()))
	_, err := repo.FindAdminByEmail(ctx, "ops@x.com")
	require.NoError(t, err)
}
