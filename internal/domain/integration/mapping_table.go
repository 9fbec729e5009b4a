package integration

import (
	"strings"
	"time"
)

// TimeFormat tells the normalizer how a platform encodes timestamps
type TimeFormat int

const (
	// TimeFormatLayout parses strings with MappingTable.TimeLayout
	TimeFormatLayout TimeFormat = iota
	// TimeFormatUnixSeconds parses integer seconds since the epoch
	TimeFormatUnixSeconds
	// TimeFormatUnixMillis parses integer milliseconds since the epoch
	TimeFormatUnixMillis
)

// FieldPrecedence lists, per canonical field, the raw paths to try in order.
// The first path holding a non-empty value wins.
type FieldPrecedence struct {
	OrderNumber     []string
	Status          []string
	CustomerName    []string
	CustomerEmail   []string
	CustomerPhone   []string
	AddressParts    []string // every present part is joined with a space
	TotalAmount     []string
	Currency        []string
	PlacedAt        []string
	StatusChangedAt []string

	Items           string // path of the line item list
	ItemProductRef  []string
	ItemProductName []string
	ItemSKU         []string
	ItemQuantity    []string
	ItemUnitPrice   []string

	CategoryID       []string
	CategoryParentID []string
	CategoryName     []string
	CategoryLevel    []string
	CategoryIsLeaf   []string
	CategoryIsParent []string // inverse of IsLeaf, used when IsLeaf is absent
}

// MappingTable is the versioned raw to canonical mapping of one platform.
// Bump Version whenever an entry changes so stored records can be traced
// back to the table that produced them.
type MappingTable struct {
	Platform PlatformType
	Version  string
	// Statuses maps raw status values (compared after trimming, then
	// case-insensitively) to canonical statuses
	Statuses map[string]OrderStatus
	Fields   FieldPrecedence
	// AmountScale is the number of decimal places amounts are shifted by,
	// 2 for platforms reporting cents
	AmountScale     int32
	TimeFormat      TimeFormat
	TimeLayout      string
	TimeZone        *time.Location
	DefaultCurrency string
	// RootParentIDs are parent id values meaning "no parent"
	RootParentIDs []string
}

// MapStatus maps a raw status to its canonical value. The second result is
// false when the raw value is not in the table, in which case the status is
// OrderStatusUnknown.
func (t *MappingTable) MapStatus(raw string) (OrderStatus, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return OrderStatusUnknown, false
	}
	if s, ok := t.Statuses[raw]; ok {
		return s, true
	}
	for k, s := range t.Statuses {
		if strings.EqualFold(k, raw) {
			return s, true
		}
	}
	return OrderStatusUnknown, false
}

// IsRootParent reports whether a raw parent id denotes a root node
func (t *MappingTable) IsRootParent(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return true
	}
	for _, r := range t.RootParentIDs {
		if id == r {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Platform tables
// ---------------------------------------------------------------------------

var chinaTimeZone = time.FixedZone("CST", 8*60*60)

// TaobaoMappingTable covers taobao.trades.sold.get and taobao.itemcats.get
func TaobaoMappingTable() *MappingTable {
	return &MappingTable{
		Platform: PlatformTaobao,
		Version:  "taobao-v3",
		Statuses: map[string]OrderStatus{
			"TRADE_NO_CREATE_PAY":      OrderStatusPending,
			"WAIT_BUYER_PAY":           OrderStatusPending,
			"PAY_PENDING":              OrderStatusPending,
			"WAIT_PRE_AUTH_CONFIRM":    OrderStatusPending,
			"WAIT_SELLER_SEND_GOODS":   OrderStatusPaid,
			"SELLER_CONSIGNED_PART":    OrderStatusShipped,
			"WAIT_BUYER_CONFIRM_GOODS": OrderStatusShipped,
			"TRADE_BUYER_SIGNED":       OrderStatusDelivered,
			"TRADE_FINISHED":           OrderStatusCompleted,
			"TRADE_CLOSED":             OrderStatusClosed,
			"TRADE_CLOSED_BY_TAOBAO":   OrderStatusCancelled,
		},
		Fields: FieldPrecedence{
			OrderNumber:     []string{"tid_str", "tid"},
			Status:          []string{"status"},
			CustomerName:    []string{"receiver_name", "buyer_nick"},
			CustomerEmail:   []string{"buyer_email"},
			CustomerPhone:   []string{"receiver_mobile", "receiver_phone"},
			AddressParts:    []string{"receiver_state", "receiver_city", "receiver_district", "receiver_address"},
			TotalAmount:     []string{"payment", "total_fee"},
			Currency:        []string{"currency"},
			PlacedAt:        []string{"created", "pay_time"},
			StatusChangedAt: []string{"modified", "end_time", "consign_time"},

			Items:           "orders.order",
			ItemProductRef:  []string{"num_iid", "outer_iid"},
			ItemProductName: []string{"title"},
			ItemSKU:         []string{"outer_sku_id", "sku_id"},
			ItemQuantity:    []string{"num"},
			ItemUnitPrice:   []string{"price"},

			CategoryID:       []string{"cid"},
			CategoryParentID: []string{"parent_cid"},
			CategoryName:     []string{"name"},
			CategoryIsParent: []string{"is_parent"},
		},
		AmountScale:     0,
		TimeFormat:      TimeFormatLayout,
		TimeLayout:      "2006-01-02 15:04:05",
		TimeZone:        chinaTimeZone,
		DefaultCurrency: "CNY",
		RootParentIDs:   []string{"0"},
	}
}

// DouyinMappingTable covers order.searchList and shop.getShopCategory
func DouyinMappingTable() *MappingTable {
	return &MappingTable{
		Platform: PlatformDouyin,
		Version:  "douyin-v2",
		Statuses: map[string]OrderStatus{
			"1":   OrderStatusPending,
			"2":   OrderStatusPaid,
			"105": OrderStatusPaid,
			"3":   OrderStatusShipped,
			"101": OrderStatusShipped,
			"4":   OrderStatusCompleted,
			"5":   OrderStatusCancelled,
			"6":   OrderStatusRefunding,
			"7":   OrderStatusRefunded,
		},
		Fields: FieldPrecedence{
			OrderNumber:     []string{"order_id", "shop_order_id", "id"},
			Status:          []string{"order_status"},
			CustomerName:    []string{"post_receiver.name", "buyer_nick"},
			CustomerEmail:   []string{"buyer_email"},
			CustomerPhone:   []string{"post_receiver.phone", "post_receiver.encrypt_phone"},
			AddressParts:    []string{"post_receiver.province", "post_receiver.city", "post_receiver.town", "post_receiver.street", "post_receiver.detail"},
			TotalAmount:     []string{"pay_amount", "order_amount"},
			Currency:        []string{"currency"},
			PlacedAt:        []string{"create_time", "pay_time"},
			StatusChangedAt: []string{"update_time", "finish_time"},

			Items:           "sku_order_list",
			ItemProductRef:  []string{"product_id", "out_product_id"},
			ItemProductName: []string{"product_name"},
			ItemSKU:         []string{"code", "out_sku_id", "sku_id"},
			ItemQuantity:    []string{"item_num"},
			ItemUnitPrice:   []string{"price", "origin_amount"},

			CategoryID:       []string{"id", "category_id"},
			CategoryParentID: []string{"parent_id"},
			CategoryName:     []string{"name"},
			CategoryLevel:    []string{"level"},
			CategoryIsLeaf:   []string{"is_leaf"},
		},
		AmountScale:     2,
		TimeFormat:      TimeFormatUnixSeconds,
		DefaultCurrency: "CNY",
		RootParentIDs:   []string{"0"},
	}
}

// KuaishouMappingTable covers open.order.cursor.list and open.item.category
func KuaishouMappingTable() *MappingTable {
	return &MappingTable{
		Platform: PlatformKuaishou,
		Version:  "kuaishou-v1",
		Statuses: map[string]OrderStatus{
			"10": OrderStatusPending,
			"30": OrderStatusPaid,
			"40": OrderStatusShipped,
			"50": OrderStatusDelivered,
			"70": OrderStatusCompleted,
			"80": OrderStatusClosed,
		},
		Fields: FieldPrecedence{
			OrderNumber:     []string{"orderBaseInfo.oid", "oid", "orderId", "id"},
			Status:          []string{"orderBaseInfo.status", "status"},
			CustomerName:    []string{"orderAddress.consignee", "orderBaseInfo.buyerNick"},
			CustomerEmail:   []string{"orderBaseInfo.buyerEmail"},
			CustomerPhone:   []string{"orderAddress.mobile"},
			AddressParts:    []string{"orderAddress.provinceName", "orderAddress.cityName", "orderAddress.districtName", "orderAddress.address"},
			TotalAmount:     []string{"orderBaseInfo.totalFee", "totalFee"},
			Currency:        []string{"orderBaseInfo.currency"},
			PlacedAt:        []string{"orderBaseInfo.createTime", "orderBaseInfo.payTime"},
			StatusChangedAt: []string{"orderBaseInfo.updateTime"},

			Items:           "orderItemInfoList",
			ItemProductRef:  []string{"itemId", "relItemId"},
			ItemProductName: []string{"itemTitle"},
			ItemSKU:         []string{"skuNick", "skuId"},
			ItemQuantity:    []string{"num"},
			ItemUnitPrice:   []string{"price", "originalPrice"},

			CategoryID:       []string{"categoryId"},
			CategoryParentID: []string{"parentId"},
			CategoryName:     []string{"categoryName"},
			CategoryLevel:    []string{"level"},
			CategoryIsLeaf:   []string{"leaf"},
		},
		AmountScale:     2,
		TimeFormat:      TimeFormatUnixMillis,
		DefaultCurrency: "CNY",
		RootParentIDs:   []string{"0"},
	}
}

// DefaultMappingTables returns a fresh table per supported platform
func DefaultMappingTables() map[PlatformType]*MappingTable {
	return map[PlatformType]*MappingTable{
		PlatformTaobao:   TaobaoMappingTable(),
		PlatformDouyin:   DouyinMappingTable(),
		PlatformKuaishou: KuaishouMappingTable(),
	}
}
