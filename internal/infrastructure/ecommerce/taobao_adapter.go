package ecommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/marketsync/backend/internal/domain/integration"
)

const taobaoTimeLayout = "2006-01-02 15:04:05"

// TaobaoAdapter implements PlatformAdapter for Taobao/Tmall. Orders are
// listed with 1-indexed page numbers; the continuation token is the next
// page number.
type TaobaoAdapter struct {
	client *platformClient
	creds  *TaobaoCredentials
	now    func() time.Time
}

// newTaobaoAdapter creates a Taobao adapter bound to a platform client
func newTaobaoAdapter(client *platformClient) *TaobaoAdapter {
	return &TaobaoAdapter{client: client, now: time.Now}
}

// PlatformType returns the platform this adapter handles
func (a *TaobaoAdapter) PlatformType() integration.PlatformType {
	return integration.PlatformTaobao
}

// Initialize loads and checks the connection's credentials
func (a *TaobaoAdapter) Initialize(ctx context.Context, conn *integration.PlatformConnection) error {
	creds := TaobaoCredentialsFromConnection(conn)
	if err := creds.Validate(); err != nil {
		return integration.NewAuthError(integration.PlatformTaobao, "invalid credentials", err)
	}
	expired, err := credentialsExpired(conn, a.now())
	if err != nil {
		return integration.NewAuthError(integration.PlatformTaobao, "invalid credentials", err)
	}
	if expired {
		return integration.NewAuthError(integration.PlatformTaobao, "session key expired", nil)
	}
	a.creds = creds
	return nil
}

// FetchOrders returns one page of trades from taobao.trades.sold.get
func (a *TaobaoAdapter) FetchOrders(ctx context.Context, params integration.PageParams) (*integration.OrderPage, error) {
	if a.creds == nil {
		return nil, integration.ErrAdapterNotInitialized
	}
	params.Normalize()

	pageNo, err := parsePageNumber(integration.PlatformTaobao, params.Token, 1)
	if err != nil {
		return nil, err
	}

	apiParams := map[string]string{
		"method":       "taobao.trades.sold.get",
		"fields":       taobaoTradeFields,
		"page_no":      strconv.Itoa(pageNo),
		"page_size":    strconv.Itoa(params.PageSize),
		"use_has_next": "true",
	}
	if !params.StartTime.IsZero() {
		apiParams["start_created"] = params.StartTime.In(integrationTimeZone).Format(taobaoTimeLayout)
	}
	if !params.EndTime.IsZero() {
		apiParams["end_created"] = params.EndTime.In(integrationTimeZone).Format(taobaoTimeLayout)
	}

	body, err := a.doRequest(ctx, apiParams)
	if err != nil {
		return nil, err
	}

	var resp TaobaoTradesGetResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, integration.NewFatalAPIError(integration.PlatformTaobao, 0, "invalid_response", err.Error())
	}
	if !resp.IsSuccess() {
		return nil, a.classifyError(resp.ErrorResponse)
	}
	if resp.TradesSoldGetResponse == nil {
		return nil, integration.NewFatalAPIError(integration.PlatformTaobao, 0, "invalid_response", "missing trades_sold_get_response")
	}

	page := &integration.OrderPage{TotalCount: resp.TradesSoldGetResponse.TotalResults}
	if resp.TradesSoldGetResponse.Trades != nil {
		records, err := integration.DecodeRawRecords(resp.TradesSoldGetResponse.Trades.Trade)
		if err != nil {
			return nil, integration.NewFatalAPIError(integration.PlatformTaobao, 0, "invalid_response", err.Error())
		}
		page.Records = records
	}
	if resp.TradesSoldGetResponse.HasNext && len(page.Records) > 0 {
		page.NextToken = strconv.Itoa(pageNo + 1)
	}
	return page, nil
}

// FetchCategories returns the seller's authorized categories, which Taobao
// delivers as a single flat list
func (a *TaobaoAdapter) FetchCategories(ctx context.Context) ([]integration.RawRecord, error) {
	if a.creds == nil {
		return nil, integration.ErrAdapterNotInitialized
	}

	body, err := a.doRequest(ctx, map[string]string{
		"method": "taobao.itemcats.authorize.get",
		"fields": "item_cat.cid,item_cat.parent_cid,item_cat.name,item_cat.is_parent",
	})
	if err != nil {
		return nil, err
	}

	var resp TaobaoItemcatsAuthorizeGetResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, integration.NewFatalAPIError(integration.PlatformTaobao, 0, "invalid_response", err.Error())
	}
	if !resp.IsSuccess() {
		return nil, a.classifyError(resp.ErrorResponse)
	}

	r := resp.ItemcatsAuthorizeGetResponse
	if r == nil || r.SellerAuthorize == nil || r.SellerAuthorize.ItemCats == nil {
		return nil, nil
	}
	records, err := integration.DecodeRawRecords(r.SellerAuthorize.ItemCats.ItemCat)
	if err != nil {
		return nil, integration.NewFatalAPIError(integration.PlatformTaobao, 0, "invalid_response", err.Error())
	}
	return records, nil
}

// doRequest signs and posts a gateway request
func (a *TaobaoAdapter) doRequest(ctx context.Context, params map[string]string) ([]byte, error) {
	params["app_key"] = a.creds.AppKey
	params["session"] = a.creds.SessionKey
	params["timestamp"] = a.now().In(integrationTimeZone).Format(taobaoTimeLayout)
	params["format"] = "json"
	params["v"] = "2.0"
	params["sign_method"] = a.creds.SignMethod
	params["sign"] = a.creds.Sign(params)

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.client.baseURL, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, fmt.Errorf("taobao: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return a.client.do(ctx, req)
}

// classifyError maps a gateway error response onto the error taxonomy
func (a *TaobaoAdapter) classifyError(e *TaobaoErrorResponse) error {
	msg := e.Msg
	if e.SubMsg != "" {
		msg = e.SubMsg
	}
	code := e.Code.String()
	if e.SubCode != "" {
		code = e.SubCode
	}
	switch {
	case e.isAuthFailure():
		return integration.NewAuthError(integration.PlatformTaobao, msg, nil)
	case e.isRateLimited():
		return integration.NewRateLimitError(integration.PlatformTaobao, fmt.Errorf("%s: %s", code, msg))
	case e.isTransient():
		return integration.NewTransientNetworkError(integration.PlatformTaobao, 0, fmt.Errorf("%s: %s", code, msg))
	default:
		return integration.NewFatalAPIError(integration.PlatformTaobao, 0, code, msg)
	}
}

// integrationTimeZone is the time zone the Chinese marketplaces expect
// request timestamps in
var integrationTimeZone = time.FixedZone("CST", 8*60*60)

// Ensure TaobaoAdapter implements PlatformAdapter
var _ integration.PlatformAdapter = (*TaobaoAdapter)(nil)
