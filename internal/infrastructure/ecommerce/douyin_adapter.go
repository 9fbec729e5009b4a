package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/marketsync/backend/internal/domain/integration"
)

const douyinAPIVersion = "2"

// DouyinAdapter implements PlatformAdapter for Douyin shops. Orders are
// listed with 0-indexed pages; categories come back one level at a time and
// are walked breadth first.
type DouyinAdapter struct {
	client   *platformClient
	creds    *DouyinCredentials
	maxDepth int
	now      func() time.Time
}

func newDouyinAdapter(client *platformClient, maxDepth int) *DouyinAdapter {
	return &DouyinAdapter{client: client, maxDepth: maxDepth, now: time.Now}
}

// PlatformType returns the platform this adapter handles
func (a *DouyinAdapter) PlatformType() integration.PlatformType {
	return integration.PlatformDouyin
}

// Initialize loads and checks the connection's credentials
func (a *DouyinAdapter) Initialize(ctx context.Context, conn *integration.PlatformConnection) error {
	creds := DouyinCredentialsFromConnection(conn)
	if err := creds.Validate(); err != nil {
		return integration.NewAuthError(integration.PlatformDouyin, "invalid credentials", err)
	}
	expired, err := credentialsExpired(conn, a.now())
	if err != nil {
		return integration.NewAuthError(integration.PlatformDouyin, "invalid credentials", err)
	}
	if expired {
		return integration.NewAuthError(integration.PlatformDouyin, "access token expired", nil)
	}
	a.creds = creds
	return nil
}

// FetchOrders returns one page from order.searchList. The token is the next
// 0-indexed page number.
func (a *DouyinAdapter) FetchOrders(ctx context.Context, params integration.PageParams) (*integration.OrderPage, error) {
	if a.creds == nil {
		return nil, integration.ErrAdapterNotInitialized
	}
	params.Normalize()

	page, err := parsePageNumber(integration.PlatformDouyin, params.Token, 0)
	if err != nil {
		return nil, err
	}

	req := DouyinOrderListRequest{
		Page:     page,
		Size:     params.PageSize,
		OrderBy:  "create_time",
		OrderAsc: true,
	}
	if !params.StartTime.IsZero() {
		req.CreateTimeStart = params.StartTime.Unix()
	}
	if !params.EndTime.IsZero() {
		req.CreateTimeEnd = params.EndTime.Unix()
	}

	body, err := a.doRequest(ctx, "order.searchList", req)
	if err != nil {
		return nil, err
	}

	var resp DouyinOrderListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, integration.NewFatalAPIError(integration.PlatformDouyin, 0, "invalid_response", err.Error())
	}
	if !resp.IsSuccess() {
		return nil, a.classifyError(&resp.DouyinResponse)
	}
	if resp.Data == nil {
		return &integration.OrderPage{}, nil
	}

	records, err := integration.DecodeRawRecords(resp.Data.ShopOrderList)
	if err != nil {
		return nil, integration.NewFatalAPIError(integration.PlatformDouyin, 0, "invalid_response", err.Error())
	}

	result := &integration.OrderPage{Records: records, TotalCount: resp.Data.Total}
	if len(records) > 0 && int64(page+1)*int64(params.PageSize) < resp.Data.Total {
		result.NextToken = strconv.Itoa(page + 1)
	}
	return result, nil
}

// FetchCategories walks the shop category tree from the root
func (a *DouyinAdapter) FetchCategories(ctx context.Context) ([]integration.RawRecord, error) {
	if a.creds == nil {
		return nil, integration.ErrAdapterNotInitialized
	}

	type node struct {
		cid   int64
		depth int
	}
	queue := []node{{cid: 0, depth: 1}}
	seen := make(map[string]bool)
	var all []integration.RawRecord

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := queue[0]
		queue = queue[1:]

		children, err := a.fetchChildren(ctx, cur.cid)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			id, ok := child.String("id")
			if !ok || seen[id] {
				continue
			}
			seen[id] = true
			if _, has := child.Lookup("parent_id"); !has && cur.cid != 0 {
				child["parent_id"] = strconv.FormatInt(cur.cid, 10)
			}
			all = append(all, child)

			if isLeafCategory(child) || cur.depth >= a.maxDepth {
				continue
			}
			cid, err := strconv.ParseInt(id, 10, 64)
			if err != nil {
				continue
			}
			queue = append(queue, node{cid: cid, depth: cur.depth + 1})
		}
	}
	return all, nil
}

func (a *DouyinAdapter) fetchChildren(ctx context.Context, cid int64) ([]integration.RawRecord, error) {
	body, err := a.doRequest(ctx, "shop.getShopCategory", DouyinShopCategoryRequest{Cid: cid})
	if err != nil {
		return nil, err
	}
	var resp DouyinShopCategoryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, integration.NewFatalAPIError(integration.PlatformDouyin, 0, "invalid_response", err.Error())
	}
	if !resp.IsSuccess() {
		return nil, a.classifyError(&resp.DouyinResponse)
	}
	records, err := integration.DecodeRawRecords(resp.Data)
	if err != nil {
		return nil, integration.NewFatalAPIError(integration.PlatformDouyin, 0, "invalid_response", err.Error())
	}
	return records, nil
}

func isLeafCategory(r integration.RawRecord) bool {
	v, ok := r.Lookup("is_leaf")
	if !ok {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	s, _ := r.String("is_leaf")
	b, _ := strconv.ParseBool(s)
	return b
}

// doRequest signs and posts a Douyin open API call. The method name
// doubles as the URL path, with dots replaced by slashes.
func (a *DouyinAdapter) doRequest(ctx context.Context, method string, params any) ([]byte, error) {
	paramJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("douyin: failed to marshal params: %w", err)
	}

	timestamp := strconv.FormatInt(a.now().Unix(), 10)
	requestBody := map[string]any{
		"app_key":      a.creds.AppKey,
		"access_token": a.creds.AccessToken,
		"shop_id":      a.creds.ShopID,
		"method":       method,
		"param_json":   string(paramJSON),
		"timestamp":    timestamp,
		"v":            douyinAPIVersion,
		"sign":         a.creds.Sign(method, string(paramJSON), timestamp, douyinAPIVersion),
		"sign_method":  "hmac-sha256",
	}
	bodyBytes, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("douyin: failed to marshal request: %w", err)
	}

	endpoint := strings.TrimRight(a.client.baseURL, "/") + "/" + strings.ReplaceAll(method, ".", "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("douyin: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return a.client.do(ctx, req)
}

// classifyError maps a Douyin business error onto the error taxonomy
func (a *DouyinAdapter) classifyError(r *DouyinResponse) error {
	code := strconv.Itoa(r.ErrNo)
	switch {
	case r.ErrNo == douyinErrAccessTokenInvalid || r.ErrNo == douyinErrAccessTokenExpired || r.ErrNo == douyinErrNoPermission:
		return integration.NewAuthError(integration.PlatformDouyin, r.Message, nil)
	case r.ErrNo == douyinErrRateLimited:
		return integration.NewRateLimitError(integration.PlatformDouyin, fmt.Errorf("%s: %s", code, r.Message))
	case r.ErrNo >= douyinErrServiceMin && r.ErrNo <= douyinErrServiceMax:
		return integration.NewTransientNetworkError(integration.PlatformDouyin, 0, fmt.Errorf("%s: %s", code, r.Message))
	default:
		return integration.NewFatalAPIError(integration.PlatformDouyin, 0, code, r.Message)
	}
}

// Ensure DouyinAdapter implements PlatformAdapter
var _ integration.PlatformAdapter = (*DouyinAdapter)(nil)
