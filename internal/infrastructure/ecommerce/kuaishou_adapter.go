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

// KuaishouAdapter implements PlatformAdapter for Kuaishou shops. Orders are
// listed with an opaque pcursor; the listing ends when the platform returns
// the "nomore" cursor.
type KuaishouAdapter struct {
	client *platformClient
	creds  *KuaishouCredentials
	now    func() time.Time
}

func newKuaishouAdapter(client *platformClient) *KuaishouAdapter {
	return &KuaishouAdapter{client: client, now: time.Now}
}

// PlatformType returns the platform this adapter handles
func (a *KuaishouAdapter) PlatformType() integration.PlatformType {
	return integration.PlatformKuaishou
}

// Initialize loads and checks the connection's credentials
func (a *KuaishouAdapter) Initialize(ctx context.Context, conn *integration.PlatformConnection) error {
	creds := KuaishouCredentialsFromConnection(conn)
	if err := creds.Validate(); err != nil {
		return integration.NewAuthError(integration.PlatformKuaishou, "invalid credentials", err)
	}
	expired, err := credentialsExpired(conn, a.now())
	if err != nil {
		return integration.NewAuthError(integration.PlatformKuaishou, "invalid credentials", err)
	}
	if expired {
		return integration.NewAuthError(integration.PlatformKuaishou, "access token expired", nil)
	}
	a.creds = creds
	return nil
}

// FetchOrders returns one page from open.order.cursor.list
func (a *KuaishouAdapter) FetchOrders(ctx context.Context, params integration.PageParams) (*integration.OrderPage, error) {
	if a.creds == nil {
		return nil, integration.ErrAdapterNotInitialized
	}
	params.Normalize()

	req := KuaishouOrderListRequest{
		OrderViewStatus: 1, // all orders
		PageSize:        params.PageSize,
		Sort:            1,
		QueryType:       1,
		PCursor:         params.Token,
	}
	if !params.StartTime.IsZero() {
		req.BeginTime = params.StartTime.UnixMilli()
	}
	if !params.EndTime.IsZero() {
		req.EndTime = params.EndTime.UnixMilli()
	}

	body, err := a.doRequest(ctx, "open.order.cursor.list", req)
	if err != nil {
		return nil, err
	}

	var resp KuaishouOrderListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, integration.NewFatalAPIError(integration.PlatformKuaishou, 0, "invalid_response", err.Error())
	}
	if !resp.IsSuccess() {
		return nil, a.classifyError(&resp.KuaishouResponse)
	}
	if resp.Data == nil {
		return &integration.OrderPage{}, nil
	}

	records, err := integration.DecodeRawRecords(resp.Data.OrderList)
	if err != nil {
		return nil, integration.NewFatalAPIError(integration.PlatformKuaishou, 0, "invalid_response", err.Error())
	}

	page := &integration.OrderPage{Records: records}
	next := strings.TrimSpace(resp.Data.PCursor)
	// A cursor equal to the one we sent would loop forever
	if next != "" && next != kuaishouNoMoreCursor && next != params.Token {
		page.NextToken = next
	}
	return page, nil
}

// FetchCategories returns every category of the shop
func (a *KuaishouAdapter) FetchCategories(ctx context.Context) ([]integration.RawRecord, error) {
	if a.creds == nil {
		return nil, integration.ErrAdapterNotInitialized
	}

	body, err := a.doRequest(ctx, "open.item.category", struct{}{})
	if err != nil {
		return nil, err
	}

	var resp KuaishouCategoryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, integration.NewFatalAPIError(integration.PlatformKuaishou, 0, "invalid_response", err.Error())
	}
	if !resp.IsSuccess() {
		return nil, a.classifyError(&resp.KuaishouResponse)
	}
	records, err := integration.DecodeRawRecords(resp.Data)
	if err != nil {
		return nil, integration.NewFatalAPIError(integration.PlatformKuaishou, 0, "invalid_response", err.Error())
	}
	return records, nil
}

// doRequest signs and sends a Kuaishou open API call as a GET with the
// method name mapped onto the URL path
func (a *KuaishouAdapter) doRequest(ctx context.Context, method string, param any) ([]byte, error) {
	paramJSON, err := json.Marshal(param)
	if err != nil {
		return nil, fmt.Errorf("kuaishou: failed to marshal params: %w", err)
	}

	values := url.Values{}
	values.Set("appkey", a.creds.AppKey)
	values.Set("access_token", a.creds.AccessToken)
	values.Set("method", method)
	values.Set("version", "1")
	values.Set("param", string(paramJSON))
	values.Set("timestamp", strconv.FormatInt(a.now().UnixMilli(), 10))
	values.Set("signMethod", "HMAC_SHA256")
	values.Set("sign", a.creds.Sign(values))

	endpoint := strings.TrimRight(a.client.baseURL, "/") + "/" + strings.ReplaceAll(method, ".", "/") + "?" + values.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("kuaishou: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	return a.client.do(ctx, req)
}

// classifyError maps a Kuaishou result code onto the error taxonomy
func (a *KuaishouAdapter) classifyError(r *KuaishouResponse) error {
	msg := r.ErrorMsg
	if r.SubMsg != "" {
		msg = r.SubMsg
	}
	code := strconv.Itoa(r.Result)
	if r.SubCode != "" {
		code = r.SubCode
	}
	switch r.Result {
	case kuaishouResultTokenInvalid, kuaishouResultTokenExpired, kuaishouResultNoPermission:
		return integration.NewAuthError(integration.PlatformKuaishou, msg, nil)
	case kuaishouResultRateLimited:
		return integration.NewRateLimitError(integration.PlatformKuaishou, fmt.Errorf("%s: %s", code, msg))
	case kuaishouResultServiceBusy:
		return integration.NewTransientNetworkError(integration.PlatformKuaishou, 0, fmt.Errorf("%s: %s", code, msg))
	default:
		return integration.NewFatalAPIError(integration.PlatformKuaishou, 0, code, msg)
	}
}

// Ensure KuaishouAdapter implements PlatformAdapter
var _ integration.PlatformAdapter = (*KuaishouAdapter)(nil)
