package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/marketsync/backend/internal/domain/integration"
)

// ConnectionModel is a user's authorized link to one marketplace shop.
// IsActive carries no gorm default: GORM omits zero values of defaulted
// fields on insert, which would store a disabled connection as active.
type ConnectionModel struct {
	BaseModel
	UserID       uuid.UUID                `gorm:"type:uuid;not null;index:idx_connections_user_active,priority:1"`
	PlatformType integration.PlatformType `gorm:"type:varchar(20);not null;index"`
	Name         string                   `gorm:"type:varchar(100)"`
	IsActive     bool                     `gorm:"not null;index:idx_connections_user_active,priority:2"`
	Credentials  datatypes.JSON
}

// TableName returns the table name for GORM
func (ConnectionModel) TableName() string {
	return "platform_connections"
}

// ToDomain converts the persistence model to a domain PlatformConnection
func (m *ConnectionModel) ToDomain() (*integration.PlatformConnection, error) {
	conn := &integration.PlatformConnection{
		ID:           m.ID,
		UserID:       m.UserID,
		PlatformType: m.PlatformType,
		Name:         m.Name,
		IsActive:     m.IsActive,
		Credentials:  map[string]string{},
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if len(m.Credentials) > 0 {
		if err := json.Unmarshal(m.Credentials, &conn.Credentials); err != nil {
			return nil, fmt.Errorf("connection %s: decode credentials: %w", m.ID, err)
		}
	}
	return conn, nil
}

// FromDomain populates the persistence model from a domain PlatformConnection
func (m *ConnectionModel) FromDomain(c *integration.PlatformConnection) error {
	creds := c.Credentials
	if creds == nil {
		creds = map[string]string{}
	}
	raw, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	m.ID = c.ID
	m.UserID = c.UserID
	m.PlatformType = c.PlatformType
	m.Name = c.Name
	m.IsActive = c.IsActive
	m.Credentials = datatypes.JSON(raw)
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.UpdatedAt
	m.ensureID()
	return nil
}
