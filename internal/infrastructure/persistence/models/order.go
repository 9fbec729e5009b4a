package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/marketsync/backend/internal/domain/integration"
)

// OrderModel is the persistence model for a canonical order. The natural
// key (user_id, platform_type, platform_order_number) carries a unique
// index so concurrent upserts of the same order cannot create duplicates.
type OrderModel struct {
	BaseModel
	UserID              uuid.UUID                `gorm:"type:uuid;not null;uniqueIndex:idx_orders_natural_key,priority:1"`
	PlatformType        integration.PlatformType `gorm:"type:varchar(20);not null;uniqueIndex:idx_orders_natural_key,priority:2"`
	PlatformOrderNumber string                   `gorm:"type:varchar(128);not null;uniqueIndex:idx_orders_natural_key,priority:3"`
	ConnectionID        uuid.UUID                `gorm:"type:uuid;not null;index"`
	Status              integration.OrderStatus  `gorm:"type:varchar(20);not null;index"`
	RawStatus           string                   `gorm:"type:varchar(64)"`
	CustomerName        string                   `gorm:"type:varchar(255)"`
	CustomerEmail       string                   `gorm:"type:varchar(255)"`
	CustomerPhone       string                   `gorm:"type:varchar(64)"`
	CustomerAddress     string                   `gorm:"type:text"`
	Items               datatypes.JSON           `gorm:"not null"`
	TotalAmount         decimal.Decimal          `gorm:"type:decimal(18,4);not null"`
	Currency            string                   `gorm:"type:varchar(8);not null"`
	PlacedAt            time.Time                `gorm:"not null;index"`
	StatusChangedAt     time.Time                `gorm:"not null"`
	ContentHash         string                   `gorm:"type:varchar(64);not null"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "platform_orders"
}

// ToDomain converts the persistence model to a domain CanonicalOrder
func (m *OrderModel) ToDomain() (*integration.CanonicalOrder, error) {
	order := &integration.CanonicalOrder{
		ID:                  m.ID,
		UserID:              m.UserID,
		ConnectionID:        m.ConnectionID,
		PlatformType:        m.PlatformType,
		PlatformOrderNumber: m.PlatformOrderNumber,
		Status:              m.Status,
		RawStatus:           m.RawStatus,
		Customer: integration.CustomerInfo{
			Name:    m.CustomerName,
			Email:   m.CustomerEmail,
			Phone:   m.CustomerPhone,
			Address: m.CustomerAddress,
		},
		Items:           []integration.LineItem{},
		TotalAmount:     m.TotalAmount,
		Currency:        m.Currency,
		PlacedAt:        m.PlacedAt.UTC(),
		StatusChangedAt: m.StatusChangedAt.UTC(),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if len(m.Items) > 0 {
		if err := json.Unmarshal(m.Items, &order.Items); err != nil {
			return nil, fmt.Errorf("order %s: decode items: %w", m.ID, err)
		}
	}
	return order, nil
}

// FromDomain populates the persistence model from a domain CanonicalOrder
func (m *OrderModel) FromDomain(o *integration.CanonicalOrder) error {
	items := o.Items
	if items == nil {
		items = []integration.LineItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}

	m.ID = o.ID
	m.UserID = o.UserID
	m.ConnectionID = o.ConnectionID
	m.PlatformType = o.PlatformType
	m.PlatformOrderNumber = o.PlatformOrderNumber
	m.Status = o.Status
	m.RawStatus = o.RawStatus
	m.CustomerName = o.Customer.Name
	m.CustomerEmail = o.Customer.Email
	m.CustomerPhone = o.Customer.Phone
	m.CustomerAddress = o.Customer.Address
	m.Items = datatypes.JSON(raw)
	m.TotalAmount = o.TotalAmount
	m.Currency = o.Currency
	m.PlacedAt = o.PlacedAt.UTC()
	m.StatusChangedAt = o.StatusChangedAt.UTC()
	m.ContentHash = o.ContentHash()
	m.CreatedAt = o.CreatedAt
	m.UpdatedAt = o.UpdatedAt
	m.ensureID()
	return nil
}

// MutableColumns returns the columns an upsert may overwrite on an
// existing row. Key columns, id and created_at are never among them.
func (m *OrderModel) MutableColumns() map[string]any {
	return map[string]any{
		"connection_id":     m.ConnectionID,
		"status":            m.Status,
		"raw_status":        m.RawStatus,
		"customer_name":     m.CustomerName,
		"customer_email":    m.CustomerEmail,
		"customer_phone":    m.CustomerPhone,
		"customer_address":  m.CustomerAddress,
		"items":             m.Items,
		"total_amount":      m.TotalAmount,
		"currency":          m.Currency,
		"placed_at":         m.PlacedAt,
		"status_changed_at": m.StatusChangedAt,
		"content_hash":      m.ContentHash,
		"updated_at":        m.UpdatedAt,
	}
}

// OrderModelFromDomain creates a new persistence model from a domain CanonicalOrder
func OrderModelFromDomain(o *integration.CanonicalOrder) (*OrderModel, error) {
	m := &OrderModel{}
	if err := m.FromDomain(o); err != nil {
		return nil, err
	}
	return m, nil
}
