package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestService(t *testing.T) *Service {
	repo, err := NewFileRepository(t.TempDir())
	require.NoError(t, err)
	return NewService(repo)
}

func TestCreateUser(t *testing.T) {
	service := setupTestService(t)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		created, err := service.CreateUser(ctx, CreateUserRequest{
			Username: "alice",
			Email:    "alice@example.com",
			Name:     "Alice",
			Password: "secret-password",
		})
		require.NoError(t, err)

		assert.Equal(t, "alice", created.Username)
		assert.False(t, created.Active)
		assert.NotEmpty(t, created.PasswordHash)
		assert.NotEqual(t, "secret-password", created.PasswordHash)
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		_, err := service.CreateUser(ctx, CreateUserRequest{Username: "alice", Email: "other@example.com"})
		assert.ErrorIs(t, err, ErrUsernameTaken)
	})
}

func TestGetUserByUsername(t *testing.T) {
	service := setupTestService(t)
	ctx := context.Background()

	created, err := service.CreateUser(ctx, CreateUserRequest{Username: "bob", Email: "bob@example.com"})
	require.NoError(t, err)

	found, err := service.GetUserByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = service.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestActivateUser(t *testing.T) {
	service := setupTestService(t)
	ctx := context.Background()

	created, err := service.CreateUser(ctx, CreateUserRequest{Username: "carol", Email: "carol@example.com"})
	require.NoError(t, err)
	require.False(t, created.Active)

	require.NoError(t, service.ActivateUser(ctx, created.ID))

	activated, err := service.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, activated.Active)

	// Activating twice is harmless
	require.NoError(t, service.ActivateUser(ctx, created.ID))
	again, err := service.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, again.Active)
}

func TestVerifyPassword(t *testing.T) {
	service := setupTestService(t)
	ctx := context.Background()

	created, err := service.CreateUser(ctx, CreateUserRequest{
		Username: "dave",
		Email:    "dave@example.com",
		Password: "correct-password",
	})
	require.NoError(t, err)

	assert.NoError(t, service.VerifyPassword(ctx, created.ID, "correct-password"))
	assert.ErrorIs(t, service.VerifyPassword(ctx, created.ID, "wrong-password"), ErrInvalidPassword)
}
