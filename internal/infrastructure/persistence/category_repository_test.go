package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketsync/backend/internal/domain/integration"
	"github.com/marketsync/backend/internal/infrastructure/persistence/models"
)

func category(userID uuid.UUID, id, parent, name string, level int) *integration.CanonicalCategory {
	c := &integration.CanonicalCategory{
		UserID:             userID,
		PlatformType:       integration.PlatformDouyin,
		PlatformCategoryID: id,
		Name:               name,
		Level:              level,
	}
	if parent != "" {
		c.ParentPlatformCategoryID = &parent
	}
	return c
}

func parentsOf(t *testing.T, repo *GormCategoryRepository, userID uuid.UUID) map[string]string {
	t.Helper()
	stored, err := repo.ListByUser(context.Background(), userID, integration.PlatformDouyin)
	require.NoError(t, err)
	out := make(map[string]string, len(stored))
	for _, c := range stored {
		out[c.PlatformCategoryID] = c.ParentID()
	}
	return out
}

func TestGormCategoryRepository_UpsertBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("links children delivered before their parents", func(t *testing.T) {
		repo := NewGormCategoryRepository(newTestDatabase(t).DB)
		userID := uuid.New()

		// Leaf first, root last
		batch := []*integration.CanonicalCategory{
			category(userID, "111", "11", "蓝牙耳机", 3),
			category(userID, "11", "1", "耳机", 2),
			category(userID, "1", "", "数码", 1),
		}
		result, err := repo.UpsertBatch(ctx, userID, integration.PlatformDouyin, batch)
		require.NoError(t, err)
		assert.Empty(t, result.Errors)
		assert.Equal(t, 3, result.Inserted)
		assert.Equal(t, 2, result.Linked)
		assert.Equal(t, 3, result.Stored())

		assert.Equal(t, map[string]string{"1": "", "11": "1", "111": "11"}, parentsOf(t, repo, userID))
	})

	t.Run("second identical batch changes nothing", func(t *testing.T) {
		repo := NewGormCategoryRepository(newTestDatabase(t).DB)
		userID := uuid.New()
		build := func() []*integration.CanonicalCategory {
			return []*integration.CanonicalCategory{
				category(userID, "2", "1", "服饰", 2),
				category(userID, "1", "", "全部", 1),
			}
		}

		_, err := repo.UpsertBatch(ctx, userID, integration.PlatformDouyin, build())
		require.NoError(t, err)
		result, err := repo.UpsertBatch(ctx, userID, integration.PlatformDouyin, build())
		require.NoError(t, err)

		assert.Zero(t, result.Inserted)
		assert.Zero(t, result.Updated)
		assert.Zero(t, result.Linked)
		assert.Equal(t, 2, result.Unchanged)

		count, err := repo.CountByUser(ctx, userID, integration.PlatformDouyin)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("renamed node is updated", func(t *testing.T) {
		repo := NewGormCategoryRepository(newTestDatabase(t).DB)
		userID := uuid.New()

		_, err := repo.UpsertBatch(ctx, userID, integration.PlatformDouyin, []*integration.CanonicalCategory{category(userID, "1", "", "old", 1)})
		require.NoError(t, err)
		result, err := repo.UpsertBatch(ctx, userID, integration.PlatformDouyin, []*integration.CanonicalCategory{category(userID, "1", "", "new", 1)})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Updated)

		stored, err := repo.ListByUser(ctx, userID, integration.PlatformDouyin)
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, "new", stored[0].Name)
	})

	t.Run("resolves parents stored by an earlier batch", func(t *testing.T) {
		repo := NewGormCategoryRepository(newTestDatabase(t).DB)
		userID := uuid.New()

		_, err := repo.UpsertBatch(ctx, userID, integration.PlatformDouyin, []*integration.CanonicalCategory{category(userID, "1", "", "root", 1)})
		require.NoError(t, err)
		result, err := repo.UpsertBatch(ctx, userID, integration.PlatformDouyin, []*integration.CanonicalCategory{category(userID, "5", "1", "child", 2)})
		require.NoError(t, err)
		assert.Empty(t, result.Errors)
		assert.Equal(t, 1, result.Linked)
		assert.Equal(t, "1", parentsOf(t, repo, userID)["5"])
	})

	t.Run("missing parent is reported and node stays unlinked", func(t *testing.T) {
		repo := NewGormCategoryRepository(newTestDatabase(t).DB)
		userID := uuid.New()

		result, err := repo.UpsertBatch(ctx, userID, integration.PlatformDouyin, []*integration.CanonicalCategory{
			category(userID, "1", "", "root", 1),
			category(userID, "7", "404", "orphan", 2),
		})
		require.NoError(t, err)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "7", result.Errors[0].ItemID)
		assert.Equal(t, "persistence", result.Errors[0].Kind)
		assert.Equal(t, 1, result.Inserted)
		assert.Equal(t, 1, result.Unresolved)
		assert.Equal(t, 1, result.Stored())

		parents := parentsOf(t, repo, userID)
		require.Contains(t, parents, "7")
		assert.Equal(t, "", parents["7"])
	})

	t.Run("orphan keeps its declared parent and is not a root", func(t *testing.T) {
		repo := NewGormCategoryRepository(newTestDatabase(t).DB)
		userID := uuid.New()

		_, err := repo.UpsertBatch(ctx, userID, integration.PlatformDouyin, []*integration.CanonicalCategory{
			category(userID, "1", "", "root", 1),
			category(userID, "7", "404", "orphan", 2),
		})
		require.NoError(t, err)

		stored, err := repo.ListByUser(ctx, userID, integration.PlatformDouyin)
		require.NoError(t, err)
		require.Len(t, stored, 2)
		root, orphan := stored[0], stored[1]
		assert.True(t, root.IsRoot())
		assert.False(t, root.IsOrphan())
		assert.False(t, orphan.IsRoot())
		assert.True(t, orphan.IsOrphan())
		assert.Nil(t, orphan.ParentPlatformCategoryID)
		require.NotNil(t, orphan.DeclaredParent())
		assert.Equal(t, "404", *orphan.DeclaredParent())
	})

	t.Run("unchanged orphan stays out of the stored count", func(t *testing.T) {
		repo := NewGormCategoryRepository(newTestDatabase(t).DB)
		userID := uuid.New()
		build := func() []*integration.CanonicalCategory {
			return []*integration.CanonicalCategory{category(userID, "7", "404", "orphan", 2)}
		}

		_, err := repo.UpsertBatch(ctx, userID, integration.PlatformDouyin, build())
		require.NoError(t, err)
		result, err := repo.UpsertBatch(ctx, userID, integration.PlatformDouyin, build())
		require.NoError(t, err)
		assert.Zero(t, result.Unchanged)
		assert.Zero(t, result.Stored())
		assert.Equal(t, 1, result.Unresolved)
		assert.Len(t, result.Errors, 1)
	})

	t.Run("cycles are reported", func(t *testing.T) {
		repo := NewGormCategoryRepository(newTestDatabase(t).DB)
		userID := uuid.New()

		result, err := repo.UpsertBatch(ctx, userID, integration.PlatformDouyin, []*integration.CanonicalCategory{
			category(userID, "a", "b", "A", 1),
			category(userID, "b", "a", "B", 1),
		})
		require.NoError(t, err)
		assert.Len(t, result.Errors, 2)
		assert.Zero(t, result.Linked)
		assert.Equal(t, 2, result.Unresolved)
		assert.Zero(t, result.Stored())
	})

	t.Run("invalid nodes are item errors", func(t *testing.T) {
		repo := NewGormCategoryRepository(newTestDatabase(t).DB)
		userID := uuid.New()

		result, err := repo.UpsertBatch(ctx, userID, integration.PlatformDouyin, []*integration.CanonicalCategory{
			category(userID, "", "", "no id", 1),
			category(uuid.New(), "9", "", "foreign", 1),
			category(userID, "8", "", "ok", 1),
		})
		require.NoError(t, err)
		assert.Len(t, result.Errors, 2)
		assert.Equal(t, 1, result.Inserted)
	})

	t.Run("rejects nil user", func(t *testing.T) {
		repo := NewGormCategoryRepository(newTestDatabase(t).DB)
		_, err := repo.UpsertBatch(ctx, uuid.Nil, integration.PlatformDouyin, nil)
		assert.ErrorIs(t, err, integration.ErrInvalidUserID)
	})
}

func TestLinkOrder(t *testing.T) {
	userID := uuid.New()
	batch := map[string]*models.CategoryModel{}
	for _, c := range []*integration.CanonicalCategory{
		category(userID, "c", "b", "C", 3),
		category(userID, "b", "a", "B", 2),
		category(userID, "a", "", "A", 1),
		category(userID, "x", "stored", "X", 2),
	} {
		batch[c.PlatformCategoryID] = models.CategoryModelFromDomain(c)
	}

	assert.Equal(t, []string{"a", "x", "b", "c"}, linkOrder(batch))
}
