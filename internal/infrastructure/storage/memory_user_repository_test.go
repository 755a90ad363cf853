package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"thermal-vision/internal/domain/entity"
)

func TestMemoryUserRepository_GetCreatesSignedOut(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	user, err := repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateSignedOut, user.State)
	require.Equal(t, int64(10), user.ChatID)
}

func TestMemoryUserRepository_SaveIsolatesCopies(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	user, err := repo.Get(ctx, 1, 10)
	require.NoError(t, err)

	// изменения без Save не видны хранилищу
	user.SetState(entity.StateProcessing)
	stored, err := repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateSignedOut, stored.State)

	require.NoError(t, repo.Save(ctx, user))
	stored, err = repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateProcessing, stored.State)
}

func TestMemoryUserRepository_CountByState(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	for chat := int64(1); chat <= 3; chat++ {
		u, err := repo.Get(ctx, chat, chat)
		require.NoError(t, err)
		if chat != 2 {
			u.SetState(entity.StateProcessing)
			require.NoError(t, repo.Save(ctx, u))
		}
	}

	n, err := repo.CountByState(ctx, entity.StateProcessing)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = repo.CountByState(ctx, entity.StateSignedOut)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
