package ecommerce

import (
	"encoding/json"
	"strings"
)

// ---------------------------------------------------------------------------
// Common Taobao API Response Types
// ---------------------------------------------------------------------------

// TaobaoResponse is the base response wrapper for all Taobao API calls
type TaobaoResponse struct {
	ErrorResponse *TaobaoErrorResponse `json:"error_response,omitempty"`
}

// TaobaoErrorResponse represents an error response from Taobao API
type TaobaoErrorResponse struct {
	Code      json.Number `json:"code"`
	Msg       string      `json:"msg"`
	SubCode   string      `json:"sub_code,omitempty"`
	SubMsg    string      `json:"sub_msg,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// IsSuccess returns true if the response indicates success
func (r *TaobaoResponse) IsSuccess() bool {
	return r.ErrorResponse == nil
}

// Top-level gateway error codes
const (
	taobaoCodeAppCallLimited   = "7"
	taobaoCodeInvalidSession   = "27"
	taobaoCodeMissingSession   = "26"
	taobaoCodeInsufficientPerm = "11"
	taobaoCodeInvalidAppKey    = "29"
	taobaoCodeServiceError     = "15"
)

// isAuthFailure reports whether the error concerns the seller's session
func (e *TaobaoErrorResponse) isAuthFailure() bool {
	switch e.Code.String() {
	case taobaoCodeInvalidSession, taobaoCodeMissingSession, taobaoCodeInsufficientPerm, taobaoCodeInvalidAppKey:
		return true
	}
	return strings.Contains(e.SubCode, "session-expired") || strings.Contains(e.SubCode, "invalid-session")
}

// isRateLimited reports whether the gateway throttled the call
func (e *TaobaoErrorResponse) isRateLimited() bool {
	return e.Code.String() == taobaoCodeAppCallLimited || strings.Contains(e.SubCode, "call-limited")
}

// isTransient reports platform-side failures worth retrying
func (e *TaobaoErrorResponse) isTransient() bool {
	return strings.HasPrefix(e.SubCode, "isp.") || (e.Code.String() == taobaoCodeServiceError && e.SubCode == "")
}

// ---------------------------------------------------------------------------
// Order listing
// ---------------------------------------------------------------------------

// TaobaoTradesGetResponse is the response for taobao.trades.sold.get API
type TaobaoTradesGetResponse struct {
	TaobaoResponse
	TradesSoldGetResponse *TradesSoldGetResponse `json:"trades_sold_get_response,omitempty"`
}

// TradesSoldGetResponse contains the trades data. Trades are kept raw and
// handed to the normalizer as is.
type TradesSoldGetResponse struct {
	TotalResults int64 `json:"total_results"`
	HasNext      bool  `json:"has_next"`
	Trades       *struct {
		Trade json.RawMessage `json:"trade"`
	} `json:"trades,omitempty"`
	RequestID string `json:"request_id"`
}

// taobaoTradeFields lists the fields requested from taobao.trades.sold.get
var taobaoTradeFields = strings.Join([]string{
	"tid", "tid_str", "status", "buyer_nick", "buyer_email", "created", "modified", "pay_time",
	"consign_time", "end_time", "payment", "total_fee", "receiver_name", "receiver_state",
	"receiver_city", "receiver_district", "receiver_address", "receiver_mobile", "receiver_phone",
	"orders.num_iid", "orders.outer_iid", "orders.title", "orders.sku_id", "orders.outer_sku_id",
	"orders.num", "orders.price",
}, ",")

// ---------------------------------------------------------------------------
// Category listing
// ---------------------------------------------------------------------------

// TaobaoItemcatsAuthorizeGetResponse is the response for
// taobao.itemcats.authorize.get, which returns the seller's authorized
// categories as one flat list
type TaobaoItemcatsAuthorizeGetResponse struct {
	TaobaoResponse
	ItemcatsAuthorizeGetResponse *struct {
		SellerAuthorize *struct {
			ItemCats *struct {
				ItemCat json.RawMessage `json:"item_cat"`
			} `json:"item_cats,omitempty"`
		} `json:"seller_authorize,omitempty"`
	} `json:"itemcats_authorize_get_response,omitempty"`
}
