package integration

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// OrderStatus is the canonical order status
// ---------------------------------------------------------------------------

// OrderStatus is the canonical order status shared by every platform
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRefunding OrderStatus = "REFUNDING"
	OrderStatusRefunded  OrderStatus = "REFUNDED"
	OrderStatusClosed    OrderStatus = "CLOSED"
	// OrderStatusUnknown is assigned to raw statuses missing from the
	// platform's mapping table
	OrderStatusUnknown OrderStatus = "UNKNOWN"
)

// AllOrderStatuses returns every canonical status
func AllOrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered,
		OrderStatusCompleted, OrderStatusCancelled, OrderStatusRefunding, OrderStatusRefunded,
		OrderStatusClosed, OrderStatusUnknown,
	}
}

// IsValid returns true if the status is a canonical value
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered,
		OrderStatusCompleted, OrderStatusCancelled, OrderStatusRefunding, OrderStatusRefunded,
		OrderStatusClosed, OrderStatusUnknown:
		return true
	default:
		return false
	}
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// CanonicalOrder
// ---------------------------------------------------------------------------

// OrderKey is the natural key of an order
type OrderKey struct {
	UserID              uuid.UUID
	PlatformType        PlatformType
	PlatformOrderNumber string
}

// String renders the key for logs and item error reports
func (k OrderKey) String() string {
	return string(k.PlatformType) + ":" + k.PlatformOrderNumber
}

// LineItem is one product line of an order
type LineItem struct {
	ProductRef  string          `json:"product_ref"`
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// CustomerInfo holds the buyer and shipping details
type CustomerInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// CanonicalOrder is the platform independent order
type CanonicalOrder struct {
	ID                  uuid.UUID
	UserID              uuid.UUID
	ConnectionID        uuid.UUID
	PlatformType        PlatformType
	PlatformOrderNumber string
	Status              OrderStatus
	// RawStatus is kept for diagnostics, never used for business logic
	RawStatus       string
	Customer        CustomerInfo
	Items           []LineItem
	TotalAmount     decimal.Decimal
	Currency        string
	PlacedAt        time.Time
	StatusChangedAt time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Key returns the natural key
func (o *CanonicalOrder) Key() OrderKey {
	return OrderKey{UserID: o.UserID, PlatformType: o.PlatformType, PlatformOrderNumber: o.PlatformOrderNumber}
}

// ContentHash fingerprints the mutable fields. Two syncs of unchanged
// marketplace data produce the same hash, which lets the store skip writes.
func (o *CanonicalOrder) ContentHash() string {
	var b strings.Builder
	write := func(parts ...string) {
		for _, p := range parts {
			b.WriteString(p)
			b.WriteByte(0x1f)
		}
	}
	write(string(o.Status), o.RawStatus,
		o.Customer.Name, o.Customer.Email, o.Customer.Phone, o.Customer.Address,
		o.TotalAmount.String(), o.Currency,
		o.PlacedAt.UTC().Format(time.RFC3339Nano), o.StatusChangedAt.UTC().Format(time.RFC3339Nano))
	for _, it := range o.Items {
		write(it.ProductRef, it.ProductName, it.SKU, strconv.Itoa(it.Quantity), it.UnitPrice.String())
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Validate checks the fields the store requires
func (o *CanonicalOrder) Validate() error {
	id := o.Key().String()
	switch {
	case o.UserID == uuid.Nil:
		return NewPersistenceError(id, "owning user id is required", nil)
	case !o.PlatformType.IsValid():
		return NewPersistenceError(id, "platform type is required", nil)
	case strings.TrimSpace(o.PlatformOrderNumber) == "":
		return NewPersistenceError(id, "platform order number is required", nil)
	case !o.Status.IsValid():
		return NewPersistenceError(id, "status is not canonical: "+string(o.Status), nil)
	case o.Currency == "":
		return NewPersistenceError(id, "currency is required", nil)
	}
	return nil
}
