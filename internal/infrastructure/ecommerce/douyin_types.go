package ecommerce

import (
	"encoding/json"
)

// ---------------------------------------------------------------------------
// Common Douyin API Response Types
// ---------------------------------------------------------------------------

// DouyinResponse is the base response wrapper for all Douyin API calls
type DouyinResponse struct {
	// ErrNo is the error code (0 for success)
	ErrNo int `json:"err_no"`
	// Message is the error message
	Message string `json:"message"`
	// LogID is the request trace ID for debugging
	LogID string `json:"log_id,omitempty"`
}

// IsSuccess returns true if the response indicates success
func (r *DouyinResponse) IsSuccess() bool {
	return r.ErrNo == 0
}

// Douyin error numbers the adapter reacts to
const (
	douyinErrAccessTokenInvalid = 30001
	douyinErrAccessTokenExpired = 30002
	douyinErrNoPermission       = 30005
	douyinErrRateLimited        = 40004
	// Errors in [douyinErrServiceMin, douyinErrServiceMax] are service side
	douyinErrServiceMin = 50000
	douyinErrServiceMax = 59999
)

// ---------------------------------------------------------------------------
// Order listing
// ---------------------------------------------------------------------------

// DouyinOrderListResponse is the response for order.searchList API
type DouyinOrderListResponse struct {
	DouyinResponse
	Data *DouyinOrderListData `json:"data,omitempty"`
}

// DouyinOrderListData contains one 0-indexed page of shop orders, kept raw
type DouyinOrderListData struct {
	Total         int64           `json:"total"`
	Page          int             `json:"page"`
	Size          int             `json:"size"`
	ShopOrderList json.RawMessage `json:"shop_order_list,omitempty"`
}

// DouyinOrderListRequest holds the param_json of order.searchList
type DouyinOrderListRequest struct {
	Page            int    `json:"page"`
	Size            int    `json:"size"`
	CreateTimeStart int64  `json:"create_time_start,omitempty"`
	CreateTimeEnd   int64  `json:"create_time_end,omitempty"`
	OrderBy         string `json:"order_by"`
	OrderAsc        bool   `json:"order_asc"`
}

// ---------------------------------------------------------------------------
// Category listing
// ---------------------------------------------------------------------------

// DouyinShopCategoryResponse is the response for shop.getShopCategory, which
// returns the direct children of one category
type DouyinShopCategoryResponse struct {
	DouyinResponse
	Data json.RawMessage `json:"data,omitempty"`
}

// DouyinShopCategoryRequest holds the param_json of shop.getShopCategory
type DouyinShopCategoryRequest struct {
	Cid int64 `json:"cid"`
}
