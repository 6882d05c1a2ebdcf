package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apiplatform/backend/internal/domain/identity"
	"github.com/apiplatform/backend/internal/domain/shared"
)

func TestGormUserRepository_SaveAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormUserRepository(db)
	ctx := context.Background()

	user, err := identity.NewUser("Client@Example.com", "$2a$10$hash", identity.RoleClient)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, user))

	t.Run("finds by id", func(t *testing.T) {
		found, err := repo.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
		assert.Equal(t, identity.RoleClient, found.Role)
		assert.True(t, found.IsActive)
	})

	t.Run("email lookup is case insensitive", func(t *testing.T) {
		found, err := repo.FindByEmail(ctx, "CLIENT@example.COM")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
		assert.Equal(t, "client@example.com", found.Email)
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		dup, err := identity.NewUser("client@example.com", "$2a$10$other", identity.RoleClient)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Save(ctx, dup), shared.ErrAlreadyExists)
	})

	t.Run("unknown id returns not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormUserRepository_Update(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormUserRepository(db)
	ctx := context.Background()

	user, err := identity.NewUser("admin@example.com", "$2a$10$hash", identity.RoleAdmin)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, user))

	user.Suspend()
	require.NoError(t, repo.Update(ctx, user))

	found, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, found.IsActive)

	t.Run("updating a missing user returns not found", func(t *testing.T) {
		ghost, err := identity.NewUser("ghost@example.com", "$2a$10$hash", identity.RoleClient)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Update(ctx, ghost), shared.ErrNotFound)
	})
}

func TestGormUserRepository_FindAll(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormUserRepository(db)
	ctx := context.Background()

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		user, err := identity.NewUser(email, "$2a$10$hash", identity.RoleClient)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, user))
	}

	users, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 3)
}
