package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketsync/backend/internal/domain/integration"
)

func TestGormConnectionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormConnectionRepository(newTestDatabase(t).DB)

	alice, bob := uuid.New(), uuid.New()
	taobao := &integration.PlatformConnection{
		UserID:       alice,
		PlatformType: integration.PlatformTaobao,
		Name:         "淘宝旗舰店",
		IsActive:     true,
		Credentials:  map[string]string{"app_key": "k", "app_secret": "s", "session_key": "t"},
	}
	douyin := &integration.PlatformConnection{UserID: alice, PlatformType: integration.PlatformDouyin, IsActive: true}
	disabled := &integration.PlatformConnection{UserID: bob, PlatformType: integration.PlatformKuaishou, IsActive: false}

	for _, c := range []*integration.PlatformConnection{taobao, douyin, disabled} {
		require.NoError(t, repo.Save(ctx, c))
		assert.NotEqual(t, uuid.Nil, c.ID)
	}

	t.Run("FindByID round-trips credentials", func(t *testing.T) {
		found, err := repo.FindByID(ctx, taobao.ID)
		require.NoError(t, err)
		assert.Equal(t, alice, found.UserID)
		assert.Equal(t, "t", found.Credential("session_key"))
		assert.Equal(t, "淘宝旗舰店", found.Name)
	})

	t.Run("inactive connection is stored inactive", func(t *testing.T) {
		found, err := repo.FindByID(ctx, disabled.ID)
		require.NoError(t, err)
		assert.False(t, found.IsActive)
	})

	t.Run("FindByID not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, integration.ErrConnectionNotFound)
	})

	t.Run("ListActiveByUser skips inactive", func(t *testing.T) {
		conns, err := repo.ListActiveByUser(ctx, alice)
		require.NoError(t, err)
		assert.Len(t, conns, 2)

		conns, err = repo.ListActiveByUser(ctx, bob)
		require.NoError(t, err)
		assert.Empty(t, conns)
	})

	t.Run("ListUsersWithActiveConnections is distinct", func(t *testing.T) {
		users, err := repo.ListUsersWithActiveConnections(ctx)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{alice}, users)
	})

	t.Run("Save updates an existing connection", func(t *testing.T) {
		douyin.IsActive = false
		require.NoError(t, repo.Save(ctx, douyin))

		conns, err := repo.ListActiveByUser(ctx, alice)
		require.NoError(t, err)
		require.Len(t, conns, 1)
		assert.Equal(t, taobao.ID, conns[0].ID)

		found, err := repo.FindByID(ctx, douyin.ID)
		require.NoError(t, err)
		assert.False(t, found.IsActive)

		douyin.IsActive = true
		require.NoError(t, repo.Save(ctx, douyin))
		conns, err = repo.ListActiveByUser(ctx, alice)
		require.NoError(t, err)
		assert.Len(t, conns, 2, "reactivated")
	})

	t.Run("Save rejects invalid platform", func(t *testing.T) {
		err := repo.Save(ctx, &integration.PlatformConnection{UserID: alice, PlatformType: "EBAY"})
		assert.ErrorIs(t, err, integration.ErrInvalidPlatformType)
	})
}
