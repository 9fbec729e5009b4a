package persistence

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marketsync/backend/internal/domain/integration"
	"github.com/marketsync/backend/internal/infrastructure/persistence/models"
)

// GormCategoryRepository implements integration.CategoryRepository using GORM
type GormCategoryRepository struct {
	db *gorm.DB
}

// NewGormCategoryRepository creates a new GormCategoryRepository
func NewGormCategoryRepository(db *gorm.DB) *GormCategoryRepository {
	return &GormCategoryRepository{db: db}
}

// UpsertBatch stores a category tree in two passes. The first pass writes
// every node without touching parent links, so nodes may arrive in any
// order. The second pass links each node to its parent, parents first,
// resolving against the batch and the nodes already stored for the user
// and platform.
func (r *GormCategoryRepository) UpsertBatch(ctx context.Context, userID uuid.UUID, platform integration.PlatformType, categories []*integration.CanonicalCategory) (*integration.CategoryBatchResult, error) {
	if userID == uuid.Nil {
		return nil, integration.ErrInvalidUserID
	}
	if !platform.IsValid() {
		return nil, integration.ErrInvalidPlatformType
	}

	result := &integration.CategoryBatchResult{}
	outcomes := make(map[string]integration.UpsertOutcome, len(categories))
	batch := make(map[string]*models.CategoryModel, len(categories))
	order := make([]string, 0, len(categories))

	for _, c := range categories {
		if c == nil {
			continue
		}
		if c.UserID != userID || c.PlatformType != platform {
			err := integration.NewPersistenceError(c.PlatformCategoryID, "category belongs to another user or platform", nil)
			result.Errors = append(result.Errors, integration.NewItemError(c.PlatformCategoryID, err))
			continue
		}
		if err := c.Validate(); err != nil {
			result.Errors = append(result.Errors, integration.NewItemError(c.PlatformCategoryID, err))
			continue
		}
		if _, dup := batch[c.PlatformCategoryID]; !dup {
			order = append(order, c.PlatformCategoryID)
		}
		batch[c.PlatformCategoryID] = models.CategoryModelFromDomain(c)
	}

	// Pass 1: nodes
	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		outcome, err := r.upsertNode(ctx, batch[id])
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			perr := integration.NewPersistenceError(id, "upsert category", err)
			result.Errors = append(result.Errors, integration.NewItemError(id, perr))
			delete(batch, id)
			continue
		}
		outcomes[id] = outcome
		switch outcome {
		case integration.UpsertInserted:
			result.Inserted++
		case integration.UpsertUpdated:
			result.Updated++
		default:
			result.Unchanged++
		}
	}

	// Pass 2: parent links
	stored, err := r.storedParents(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	for _, id := range linkOrder(batch) {
		node := batch[id]
		want, linkErr := resolveParent(node, batch, stored)
		if linkErr != nil {
			result.Errors = append(result.Errors, integration.NewItemError(id, linkErr))
			result.Unresolve(outcomes[id])
		}

		current, known := stored[id]
		if known && models.SameID(current, want) {
			continue
		}
		if err := r.db.WithContext(ctx).Model(&models.CategoryModel{}).
			Where("id = ?", node.ID).
			Update("parent_platform_category_id", want).Error; err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			perr := integration.NewPersistenceError(id, "link category parent", err)
			result.Errors = append(result.Errors, integration.NewItemError(id, perr))
			if linkErr == nil {
				result.Unresolve(outcomes[id])
			}
			continue
		}
		stored[id] = want
		if want != nil {
			result.Linked++
		}
	}
	return result, nil
}

// upsertNode writes the node's own fields, including the declared parent.
// New nodes start without a parent link.
func (r *GormCategoryRepository) upsertNode(ctx context.Context, node *models.CategoryModel) (integration.UpsertOutcome, error) {
	var outcome integration.UpsertOutcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.CategoryModel
		err := tx.Where("user_id = ? AND platform_type = ? AND platform_category_id = ?",
			node.UserID, node.PlatformType, node.PlatformCategoryID).
			Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			insert := *node
			insert.ParentPlatformCategoryID = nil
			if err := tx.Create(&insert).Error; err != nil {
				return err
			}
			node.ID = insert.ID
			outcome = integration.UpsertInserted
			return nil
		}
		if err != nil {
			return err
		}

		node.ID = existing.ID
		if existing.SameFields(node) {
			outcome = integration.UpsertUnchanged
			return nil
		}
		if err := tx.Model(&models.CategoryModel{}).Where("id = ?", existing.ID).Updates(map[string]any{
			"name":               node.Name,
			"level":              node.Level,
			"is_leaf":            node.IsLeaf,
			"declared_parent_id": node.DeclaredParentID,
			"updated_at":         time.Now().UTC(),
		}).Error; err != nil {
			return err
		}
		outcome = integration.UpsertUpdated
		return nil
	})
	return outcome, err
}

// storedParents maps every stored category id of the user and platform to
// its current parent link
func (r *GormCategoryRepository) storedParents(ctx context.Context, userID uuid.UUID, platform integration.PlatformType) (map[string]*string, error) {
	var rows []struct {
		PlatformCategoryID       string
		ParentPlatformCategoryID *string
	}
	if err := r.db.WithContext(ctx).Model(&models.CategoryModel{}).
		Select("platform_category_id, parent_platform_category_id").
		Where("user_id = ? AND platform_type = ?", userID, platform).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]*string, len(rows))
	for _, row := range rows {
		out[row.PlatformCategoryID] = row.ParentPlatformCategoryID
	}
	return out, nil
}

// resolveParent returns the parent link to store for node. A parent that is
// neither in the batch nor stored leaves the node unlinked and is reported.
func resolveParent(node *models.CategoryModel, batch map[string]*models.CategoryModel, stored map[string]*string) (*string, error) {
	parent := node.ParentPlatformCategoryID
	if parent == nil {
		return nil, nil
	}
	if _, ok := batch[*parent]; ok {
		if inCycle(node.PlatformCategoryID, batch) {
			return nil, integration.NewPersistenceError(node.PlatformCategoryID, "category parent chain forms a cycle", nil)
		}
		return parent, nil
	}
	if _, ok := stored[*parent]; ok {
		return parent, nil
	}
	return nil, integration.NewPersistenceError(node.PlatformCategoryID, "parent category "+*parent+" not found", nil)
}

// inCycle reports whether following parent links inside the batch from id
// returns to id
func inCycle(id string, batch map[string]*models.CategoryModel) bool {
	seen := map[string]bool{}
	cur := id
	for {
		node, ok := batch[cur]
		if !ok || node.ParentPlatformCategoryID == nil {
			return false
		}
		cur = *node.ParentPlatformCategoryID
		if cur == id {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
	}
}

// linkOrder sorts batch ids by depth within the batch so parents are linked
// before their children
func linkOrder(batch map[string]*models.CategoryModel) []string {
	depth := make(map[string]int, len(batch))
	var depthOf func(id string, guard int) int
	depthOf = func(id string, guard int) int {
		if d, ok := depth[id]; ok {
			return d
		}
		node, ok := batch[id]
		if !ok || node.ParentPlatformCategoryID == nil || guard > len(batch) {
			return 0
		}
		d := depthOf(*node.ParentPlatformCategoryID, guard+1)
		if _, inBatch := batch[*node.ParentPlatformCategoryID]; inBatch {
			d++
		}
		depth[id] = d
		return d
	}

	ids := make([]string, 0, len(batch))
	for id := range batch {
		depthOf(id, 0)
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if depth[ids[i]] != depth[ids[j]] {
			return depth[ids[i]] < depth[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}

// ListByUser returns the stored categories of a user, optionally filtered by platform
func (r *GormCategoryRepository) ListByUser(ctx context.Context, userID uuid.UUID, platform integration.PlatformType) ([]*integration.CanonicalCategory, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if platform != "" {
		query = query.Where("platform_type = ?", platform)
	}

	var categoryModels []models.CategoryModel
	if err := query.Order("platform_type ASC, level ASC, platform_category_id ASC").Find(&categoryModels).Error; err != nil {
		return nil, err
	}

	categories := make([]*integration.CanonicalCategory, len(categoryModels))
	for i := range categoryModels {
		categories[i] = categoryModels[i].ToDomain()
	}
	return categories, nil
}

// CountByUser counts the stored categories of a user and platform
func (r *GormCategoryRepository) CountByUser(ctx context.Context, userID uuid.UUID, platform integration.PlatformType) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.CategoryModel{}).Where("user_id = ?", userID)
	if platform != "" {
		query = query.Where("platform_type = ?", platform)
	}
	err := query.Count(&count).Error
	return count, err
}

// Ensure GormCategoryRepository implements integration.CategoryRepository
var _ integration.CategoryRepository = (*GormCategoryRepository)(nil)
