package integration

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketsync/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Order sync DTOs
// ---------------------------------------------------------------------------

// OrdersSummary is the aggregated outcome of one order sync run
type OrdersSummary struct {
	Success     bool              `json:"success"`
	Message     string            `json:"message"`
	SyncedCount int               `json:"synced_count"`
	ErrorCount  int               `json:"error_count"`
	Platforms   []PlatformSummary `json:"platforms"`
}

// PlatformSummary is the outcome of one connection within a run
type PlatformSummary struct {
	PlatformType        integration.PlatformType `json:"platform_type"`
	ConnectionID        uuid.UUID                `json:"connection_id"`
	Status              integration.SyncState    `json:"status"`
	SyncedCount         int                      `json:"synced_count"`
	UnchangedCount      int                      `json:"unchanged_count"`
	UnmappedStatusCount int                      `json:"unmapped_status_count"`
	ErrorCount          int                      `json:"error_count"`
	Error               string                   `json:"error,omitempty"`
	ErrorKind           string                   `json:"error_kind,omitempty"`
	Errors              []integration.ItemError  `json:"errors,omitempty"`
	DurationMs          int64                    `json:"duration_ms"`
}

// ---------------------------------------------------------------------------
// Stored order DTOs
// ---------------------------------------------------------------------------

// OrderList is one page of the user's stored orders. UserTotal counts the
// user's orders on every platform.
type OrderList struct {
	Orders    []OrderDTO `json:"orders"`
	Count     int        `json:"count"`
	UserTotal int64      `json:"user_total"`
}

// OrderDTO is a stored canonical order
type OrderDTO struct {
	ID                  uuid.UUID                `json:"id"`
	ConnectionID        uuid.UUID                `json:"connection_id"`
	PlatformType        integration.PlatformType `json:"platform_type"`
	PlatformOrderNumber string                   `json:"platform_order_number"`
	Status              integration.OrderStatus  `json:"status"`
	RawStatus           string                   `json:"raw_status,omitempty"`
	Customer            integration.CustomerInfo `json:"customer"`
	Items               []integration.LineItem   `json:"items"`
	TotalAmount         decimal.Decimal          `json:"total_amount"`
	Currency            string                   `json:"currency"`
	PlacedAt            time.Time                `json:"placed_at"`
	StatusChangedAt     time.Time                `json:"status_changed_at"`
	UpdatedAt           time.Time                `json:"updated_at"`
}

// ---------------------------------------------------------------------------
// Category sync DTOs
// ---------------------------------------------------------------------------

// SyncCategoriesRequest selects the connection whose taxonomy is synced.
// A nil ConnectionID picks the user's first active connection of the
// platform.
type SyncCategoriesRequest struct {
	PlatformType integration.PlatformType
	UserID       uuid.UUID
	ConnectionID uuid.UUID
	ForceRefresh bool
}

// CategorySyncSummary is the outcome of a category sync
type CategorySyncSummary struct {
	Success         bool          `json:"success"`
	Message         string        `json:"message"`
	CategoriesCount int           `json:"categories_count"`
	Categories      []CategoryDTO `json:"categories"`
	// FromStore is true when the stored taxonomy was fresh and no platform
	// call was made
	FromStore  bool                    `json:"from_store"`
	ErrorCount int                     `json:"error_count"`
	Errors     []integration.ItemError `json:"errors,omitempty"`
}

// CategoryDTO is a stored category node
type CategoryDTO struct {
	ID                 uuid.UUID                `json:"id"`
	PlatformType       integration.PlatformType `json:"platform_type"`
	PlatformCategoryID string                   `json:"platform_category_id"`
	ParentCategoryID   string                   `json:"parent_category_id,omitempty"`
	// ParentUnresolved marks a node whose parent was never stored
	ParentUnresolved bool      `json:"parent_unresolved,omitempty"`
	Name             string    `json:"name"`
	Level            int       `json:"level"`
	IsLeaf           bool      `json:"is_leaf"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ---------------------------------------------------------------------------
// Conversion functions
// ---------------------------------------------------------------------------

// ToOrderDTO converts a canonical order to its DTO
func ToOrderDTO(o *integration.CanonicalOrder) OrderDTO {
	items := o.Items
	if items == nil {
		items = []integration.LineItem{}
	}
	return OrderDTO{
		ID:                  o.ID,
		ConnectionID:        o.ConnectionID,
		PlatformType:        o.PlatformType,
		PlatformOrderNumber: o.PlatformOrderNumber,
		Status:              o.Status,
		RawStatus:           o.RawStatus,
		Customer:            o.Customer,
		Items:               items,
		TotalAmount:         o.TotalAmount,
		Currency:            o.Currency,
		PlacedAt:            o.PlacedAt,
		StatusChangedAt:     o.StatusChangedAt,
		UpdatedAt:           o.UpdatedAt,
	}
}

// ToOrderDTOs converts a slice of canonical orders
func ToOrderDTOs(orders []*integration.CanonicalOrder) []OrderDTO {
	dtos := make([]OrderDTO, len(orders))
	for i, o := range orders {
		dtos[i] = ToOrderDTO(o)
	}
	return dtos
}

// ToCategoryDTO converts a canonical category to its DTO
func ToCategoryDTO(c *integration.CanonicalCategory) CategoryDTO {
	parent := ""
	if p := c.DeclaredParent(); p != nil {
		parent = *p
	}
	return CategoryDTO{
		ID:                 c.ID,
		PlatformType:       c.PlatformType,
		PlatformCategoryID: c.PlatformCategoryID,
		ParentCategoryID:   parent,
		ParentUnresolved:   c.IsOrphan(),
		Name:               c.Name,
		Level:              c.Level,
		IsLeaf:             c.IsLeaf,
		UpdatedAt:          c.UpdatedAt,
	}
}

// ToCategoryDTOs converts a slice of canonical categories
func ToCategoryDTOs(categories []*integration.CanonicalCategory) []CategoryDTO {
	dtos := make([]CategoryDTO, len(categories))
	for i, c := range categories {
		dtos[i] = ToCategoryDTO(c)
	}
	return dtos
}
