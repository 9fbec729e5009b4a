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

// GormConnectionRepository implements integration.ConnectionRepository using GORM
type GormConnectionRepository struct {
	db *gorm.DB
}

// NewGormConnectionRepository creates a new GormConnectionRepository
func NewGormConnectionRepository(db *gorm.DB) *GormConnectionRepository {
	return &GormConnectionRepository{db: db}
}

// FindByID finds a connection by its ID
func (r *GormConnectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.PlatformConnection, error) {
	var model models.ConnectionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrConnectionNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// ListActiveByUser returns the user's active connections, oldest first
func (r *GormConnectionRepository) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*integration.PlatformConnection, error) {
	var connModels []models.ConnectionModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at ASC, id ASC").
		Find(&connModels).Error; err != nil {
		return nil, err
	}

	conns := make([]*integration.PlatformConnection, 0, len(connModels))
	for i := range connModels {
		c, err := connModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		conns = append(conns, c)
	}
	return conns, nil
}

// ListUsersWithActiveConnections returns every user owning at least one
// active connection
func (r *GormConnectionRepository) ListUsersWithActiveConnections(ctx context.Context) ([]uuid.UUID, error) {
	var userIDs []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.ConnectionModel{}).
		Where("is_active = ?", true).
		Distinct().
		Order("user_id ASC").
		Pluck("user_id", &userIDs).Error
	return userIDs, err
}

// Save inserts or updates a connection
func (r *GormConnectionRepository) Save(ctx context.Context, conn *integration.PlatformConnection) error {
	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}
	if err := conn.Validate(); err != nil {
		return err
	}
	var model models.ConnectionModel
	if err := model.FromDomain(conn); err != nil {
		return err
	}
	model.UpdatedAt = time.Now().UTC()
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "platform_type", "name", "is_active", "credentials", "updated_at"}),
	}).Create(&model).Error; err != nil {
		return err
	}
	conn.ID = model.ID
	conn.CreatedAt = model.CreatedAt
	conn.UpdatedAt = model.UpdatedAt
	return nil
}

// Ensure GormConnectionRepository implements integration.ConnectionRepository
var _ integration.ConnectionRepository = (*GormConnectionRepository)(nil)
