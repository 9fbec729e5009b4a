package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marketsync/backend/internal/domain/integration"
	"github.com/marketsync/backend/internal/infrastructure/persistence/models"
)

// GormOrderRepository implements integration.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

var orderKeyColumns = []clause.Column{{Name: "user_id"}, {Name: "platform_type"}, {Name: "platform_order_number"}}

// Upsert stores the order under its natural key in a single transaction.
// An existing order whose mutable fields hash identically is left alone.
func (r *GormOrderRepository) Upsert(ctx context.Context, order *integration.CanonicalOrder) (integration.UpsertOutcome, error) {
	if err := order.Validate(); err != nil {
		return "", err
	}
	itemID := order.Key().String()

	model, err := models.OrderModelFromDomain(order)
	if err != nil {
		return "", integration.NewPersistenceError(itemID, "encode order", err)
	}

	var outcome integration.UpsertOutcome
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.OrderModel
		err := whereOrderKey(tx, order.Key()).Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			res := tx.Clauses(clause.OnConflict{Columns: orderKeyColumns, DoNothing: true}).Create(model)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				outcome = integration.UpsertInserted
				return nil
			}
			// A concurrent sync inserted the same order first
			if err := whereOrderKey(tx, order.Key()).Take(&existing).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		}

		model.ID = existing.ID
		model.CreatedAt = existing.CreatedAt
		if existing.ContentHash == model.ContentHash {
			model.UpdatedAt = existing.UpdatedAt
			outcome = integration.UpsertUnchanged
			return nil
		}

		model.UpdatedAt = time.Now().UTC()
		if err := tx.Model(&models.OrderModel{}).
			Where("id = ?", existing.ID).
			Updates(model.MutableColumns()).Error; err != nil {
			return err
		}
		outcome = integration.UpsertUpdated
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", integration.NewPersistenceError(itemID, "upsert order", err)
	}

	order.ID = model.ID
	order.CreatedAt = model.CreatedAt
	order.UpdatedAt = model.UpdatedAt
	return outcome, nil
}

// FindByKey finds an order by its natural key
func (r *GormOrderRepository) FindByKey(ctx context.Context, key integration.OrderKey) (*integration.CanonicalOrder, error) {
	var model models.OrderModel
	if err := whereOrderKey(r.db.WithContext(ctx), key).Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// CountByUser counts the orders owned by a user
func (r *GormOrderRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.OrderModel{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// ListByUser returns the user's most recent orders, optionally filtered by platform
func (r *GormOrderRepository) ListByUser(ctx context.Context, userID uuid.UUID, platform integration.PlatformType, limit int) ([]*integration.CanonicalOrder, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if platform != "" {
		query = query.Where("platform_type = ?", platform)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var orderModels []models.OrderModel
	if err := query.Order("placed_at DESC, platform_order_number ASC").Find(&orderModels).Error; err != nil {
		return nil, err
	}

	orders := make([]*integration.CanonicalOrder, 0, len(orderModels))
	for i := range orderModels {
		o, err := orderModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func whereOrderKey(db *gorm.DB, key integration.OrderKey) *gorm.DB {
	return db.Where("user_id = ? AND platform_type = ? AND platform_order_number = ?",
		key.UserID, key.PlatformType, key.PlatformOrderNumber)
}

// Ensure GormOrderRepository implements integration.OrderRepository
var _ integration.OrderRepository = (*GormOrderRepository)(nil)
