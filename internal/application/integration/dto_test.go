package integration

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/marketsync/backend/internal/domain/integration"
)

func TestToCategoryDTO(t *testing.T) {
	declared := "404"
	linked := "1"

	orphan := ToCategoryDTO(&integration.CanonicalCategory{
		ID: uuid.New(), PlatformType: integration.PlatformTaobao, PlatformCategoryID: "7", DeclaredParentID: &declared,
	})
	assert.Equal(t, "404", orphan.ParentCategoryID)
	assert.True(t, orphan.ParentUnresolved)

	child := ToCategoryDTO(&integration.CanonicalCategory{
		ID: uuid.New(), PlatformType: integration.PlatformTaobao, PlatformCategoryID: "11",
		ParentPlatformCategoryID: &linked, DeclaredParentID: &linked,
	})
	assert.Equal(t, "1", child.ParentCategoryID)
	assert.False(t, child.ParentUnresolved)

	root := ToCategoryDTO(&integration.CanonicalCategory{ID: uuid.New(), PlatformCategoryID: "1"})
	assert.Empty(t, root.ParentCategoryID)
	assert.False(t, root.ParentUnresolved)
}
