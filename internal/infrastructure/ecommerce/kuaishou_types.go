package ecommerce

import "encoding/json"

// KuaishouResponse is the base response wrapper for Kuaishou open API calls
type KuaishouResponse struct {
	// Result is 1 on success
	Result   int    `json:"result"`
	Code     string `json:"code,omitempty"`
	ErrorMsg string `json:"error_msg,omitempty"`
	SubCode  string `json:"sub_code,omitempty"`
	SubMsg   string `json:"sub_msg,omitempty"`
}

// IsSuccess returns true if the response indicates success
func (r *KuaishouResponse) IsSuccess() bool {
	return r.Result == 1
}

// Kuaishou result codes the adapter reacts to
const (
	kuaishouResultTokenInvalid = 24
	kuaishouResultTokenExpired = 28
	kuaishouResultNoPermission = 25
	kuaishouResultRateLimited  = 802
	kuaishouResultServiceBusy  = 803
)

// kuaishouNoMoreCursor marks the end of a cursor listing
const kuaishouNoMoreCursor = "nomore"

// KuaishouOrderListResponse is the response for open.order.cursor.list
type KuaishouOrderListResponse struct {
	KuaishouResponse
	Data *struct {
		PCursor   string          `json:"pcursor"`
		OrderList json.RawMessage `json:"orderList,omitempty"`
	} `json:"data,omitempty"`
}

// KuaishouOrderListRequest holds the param of open.order.cursor.list
type KuaishouOrderListRequest struct {
	OrderViewStatus int    `json:"orderViewStatus"`
	PageSize        int    `json:"pageSize"`
	Sort            int    `json:"sort"`
	QueryType       int    `json:"queryType"`
	BeginTime       int64  `json:"beginTime,omitempty"`
	EndTime         int64  `json:"endTime,omitempty"`
	PCursor         string `json:"pcursor"`
}

// KuaishouCategoryResponse is the response for open.item.category, which
// returns every category of the shop in one flat list
type KuaishouCategoryResponse struct {
	KuaishouResponse
	Data json.RawMessage `json:"data,omitempty"`
}
