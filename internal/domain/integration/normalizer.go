package integration

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Defaults written into canonical records when the raw record lacks a value
const (
	DefaultUnknownName = "Unknown"
	DefaultQuantity    = 1
)

// DefaultTimestamp is used when a record carries no parsable timestamp at
// all. It is fixed so that re-normalizing the same payload is stable.
var DefaultTimestamp = time.Unix(0, 0).UTC()

// Normalizer converts raw platform records into canonical records using one
// mapping table per platform. It performs no I/O.
type Normalizer struct {
	tables map[PlatformType]*MappingTable
}

// NewNormalizer creates a normalizer. A nil map selects DefaultMappingTables.
func NewNormalizer(tables map[PlatformType]*MappingTable) *Normalizer {
	if tables == nil {
		tables = DefaultMappingTables()
	}
	return &Normalizer{tables: tables}
}

// Table returns the mapping table of a platform
func (n *Normalizer) Table(platform PlatformType) (*MappingTable, bool) {
	t, ok := n.tables[platform]
	return t, ok
}

// NormalizeOrder maps a raw order. userID is the owning user and must be
// passed explicitly; platform payloads do not carry it.
func (n *Normalizer) NormalizeOrder(platform PlatformType, raw RawRecord, userID uuid.UUID) (*CanonicalOrder, error) {
	t, ok := n.tables[platform]
	if !ok {
		return nil, NewMappingError(platform, "", "", "no mapping table for platform")
	}
	f := t.Fields

	orderNumber, _, found := raw.FirstString(f.OrderNumber)
	if !found {
		return nil, NewMappingError(platform, fallbackRawID(raw), "order_number", "no order number in any of "+strings.Join(f.OrderNumber, ", "))
	}
	if userID == uuid.Nil {
		return nil, NewMappingError(platform, orderNumber, "user_id", "owning user id is required")
	}

	rawStatus, _, _ := raw.FirstString(f.Status)
	status, _ := t.MapStatus(rawStatus)

	total, err := n.amount(t, raw, f.TotalAmount)
	if err != nil {
		return nil, NewMappingError(platform, orderNumber, "total_amount", err.Error())
	}

	currency := t.DefaultCurrency
	if c, _, ok := raw.FirstString(f.Currency); ok {
		currency = strings.ToUpper(c)
	}

	items, err := n.lineItems(t, raw, orderNumber)
	if err != nil {
		return nil, err
	}

	placedAt, hasPlaced := n.timestamp(t, raw, f.PlacedAt)
	changedAt, hasChanged := n.timestamp(t, raw, f.StatusChangedAt)
	switch {
	case !hasPlaced && hasChanged:
		placedAt = changedAt
	case hasPlaced && !hasChanged:
		changedAt = placedAt
	case !hasPlaced && !hasChanged:
		placedAt, changedAt = DefaultTimestamp, DefaultTimestamp
	}

	customer := CustomerInfo{
		Name:    firstOr(raw, f.CustomerName, DefaultUnknownName),
		Email:   firstOr(raw, f.CustomerEmail, ""),
		Phone:   firstOr(raw, f.CustomerPhone, ""),
		Address: joinPresent(raw, f.AddressParts),
	}

	return &CanonicalOrder{
		UserID:              userID,
		PlatformType:        platform,
		PlatformOrderNumber: orderNumber,
		Status:              status,
		RawStatus:           rawStatus,
		Customer:            customer,
		Items:               items,
		TotalAmount:         total,
		Currency:            currency,
		PlacedAt:            placedAt,
		StatusChangedAt:     changedAt,
	}, nil
}

// NormalizeCategory maps a raw category node for the owning user
func (n *Normalizer) NormalizeCategory(platform PlatformType, raw RawRecord, userID uuid.UUID) (*CanonicalCategory, error) {
	t, ok := n.tables[platform]
	if !ok {
		return nil, NewMappingError(platform, "", "", "no mapping table for platform")
	}
	f := t.Fields

	id, _, found := raw.FirstString(f.CategoryID)
	if !found {
		return nil, NewMappingError(platform, fallbackRawID(raw), "category_id", "no category id in any of "+strings.Join(f.CategoryID, ", "))
	}
	if userID == uuid.Nil {
		return nil, NewMappingError(platform, id, "user_id", "owning user id is required")
	}

	var parent *string
	if p, _, ok := raw.FirstString(f.CategoryParentID); ok && !t.IsRootParent(p) {
		if p == id {
			return nil, NewMappingError(platform, id, "parent_id", "category references itself as parent")
		}
		parent = &p
	}

	level := 0
	for _, path := range f.CategoryLevel {
		v, ok, err := raw.Int(path)
		if err != nil {
			return nil, NewMappingError(platform, id, "level", err.Error())
		}
		if ok {
			level = int(v)
			break
		}
	}

	isLeaf := false
	if b, ok := firstBool(raw, f.CategoryIsLeaf); ok {
		isLeaf = b
	} else if b, ok := firstBool(raw, f.CategoryIsParent); ok {
		isLeaf = !b
	}

	return &CanonicalCategory{
		UserID:                   userID,
		PlatformType:             platform,
		PlatformCategoryID:       id,
		ParentPlatformCategoryID: parent,
		Name:                     firstOr(raw, f.CategoryName, DefaultUnknownName),
		Level:                    level,
		IsLeaf:                   isLeaf,
	}, nil
}

func (n *Normalizer) lineItems(t *MappingTable, raw RawRecord, orderNumber string) ([]LineItem, error) {
	f := t.Fields
	rawItems := raw.Records(f.Items)
	items := make([]LineItem, 0, len(rawItems))
	for i, ri := range rawItems {
		qty := DefaultQuantity
		for _, path := range f.ItemQuantity {
			v, ok, err := ri.Int(path)
			if err != nil {
				return nil, NewMappingError(t.Platform, orderNumber, "items["+strconv.Itoa(i)+"].quantity", err.Error())
			}
			if ok {
				if v < 0 {
					return nil, NewMappingError(t.Platform, orderNumber, "items["+strconv.Itoa(i)+"].quantity", "negative quantity")
				}
				qty = int(v)
				break
			}
		}
		price, err := n.amount(t, ri, f.ItemUnitPrice)
		if err != nil {
			return nil, NewMappingError(t.Platform, orderNumber, "items["+strconv.Itoa(i)+"].unit_price", err.Error())
		}
		items = append(items, LineItem{
			ProductRef:  firstOr(ri, f.ItemProductRef, ""),
			ProductName: firstOr(ri, f.ItemProductName, DefaultUnknownName),
			SKU:         firstOr(ri, f.ItemSKU, ""),
			Quantity:    qty,
			UnitPrice:   price,
		})
	}
	return items, nil
}

// amount reads the first present amount and applies the table's scale.
// Missing amounts are zero; present but malformed or negative amounts are
// an error.
func (n *Normalizer) amount(t *MappingTable, raw RawRecord, paths []string) (decimal.Decimal, error) {
	for _, path := range paths {
		d, ok, err := raw.Decimal(path)
		if err != nil {
			return decimal.Zero, err
		}
		if !ok {
			continue
		}
		if d.IsNegative() {
			return decimal.Zero, errNegativeAmount
		}
		if t.AmountScale > 0 {
			d = d.Shift(-t.AmountScale)
		}
		return d, nil
	}
	return decimal.Zero, nil
}

// timestamp returns the first parsable timestamp among paths
func (n *Normalizer) timestamp(t *MappingTable, raw RawRecord, paths []string) (time.Time, bool) {
	for _, path := range paths {
		s, ok := raw.String(path)
		if !ok {
			continue
		}
		if ts, ok := parseTimestamp(t, s); ok {
			return ts, true
		}
	}
	return time.Time{}, false
}

func parseTimestamp(t *MappingTable, s string) (time.Time, bool) {
	switch t.TimeFormat {
	case TimeFormatUnixSeconds, TimeFormatUnixMillis:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v <= 0 {
			return time.Time{}, false
		}
		if t.TimeFormat == TimeFormatUnixMillis {
			return time.UnixMilli(v).UTC(), true
		}
		return time.Unix(v, 0).UTC(), true
	default:
		loc := t.TimeZone
		if loc == nil {
			loc = time.UTC
		}
		ts, err := time.ParseInLocation(t.TimeLayout, s, loc)
		if err != nil {
			if ts, err = time.Parse(time.RFC3339, s); err != nil {
				return time.Time{}, false
			}
		}
		return ts.UTC(), true
	}
}

var errNegativeAmount = errors.New("negative amount")

func firstOr(raw RawRecord, paths []string, def string) string {
	if s, _, ok := raw.FirstString(paths); ok {
		return s
	}
	return def
}

func firstBool(raw RawRecord, paths []string) (bool, bool) {
	for _, path := range paths {
		v, ok := raw.Lookup(path)
		if !ok {
			continue
		}
		switch b := v.(type) {
		case bool:
			return b, true
		default:
			s, _ := raw.String(path)
			if parsed, err := strconv.ParseBool(s); err == nil {
				return parsed, true
			}
		}
	}
	return false, false
}

func joinPresent(raw RawRecord, paths []string) string {
	parts := make([]string, 0, len(paths))
	for _, p := range paths {
		if s, ok := raw.String(p); ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// fallbackRawID picks something to identify an unmappable record by
func fallbackRawID(raw RawRecord) string {
	for _, k := range []string{"id", "order_id", "orderId", "oid", "tid", "cid", "categoryId"} {
		if s, ok := raw.String(k); ok {
			return s
		}
	}
	return ""
}
