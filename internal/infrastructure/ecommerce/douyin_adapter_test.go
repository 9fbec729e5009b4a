package ecommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketsync/backend/internal/domain/integration"
)

func douyinTestCredentials() map[string]string {
	return map[string]string{
		CredentialAppKey:      "dy_key",
		CredentialAppSecret:   "dy_secret",
		CredentialAccessToken: "dy_token",
		CredentialShopID:      "10086",
	}
}

func createInitializedDouyinAdapter(t *testing.T, serverURL string) integration.PlatformAdapter {
	t.Helper()
	adapter := createTestAdapter(t, integration.PlatformDouyin, serverURL)
	require.NoError(t, adapter.Initialize(context.Background(), testConnection(integration.PlatformDouyin, douyinTestCredentials())))
	return adapter
}

// decodeDouyinParams returns the param_json of a Douyin request
func decodeDouyinParams(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var envelope map[string]any
	require.NoError(t, json.Unmarshal(body, &envelope))
	assert.Equal(t, "dy_token", envelope["access_token"])
	assert.NotEmpty(t, envelope["sign"])

	var params map[string]any
	require.NoError(t, json.Unmarshal([]byte(envelope["param_json"].(string)), &params))
	return params
}

func TestDouyinCredentials_Validate(t *testing.T) {
	c := DouyinCredentialsFromConnection(testConnection(integration.PlatformDouyin, douyinTestCredentials()))
	assert.NoError(t, c.Validate())

	c.ShopID = ""
	assert.ErrorIs(t, c.Validate(), ErrDouyinMissingShopID)

	err := createTestAdapter(t, integration.PlatformDouyin, "http://unused").
		Initialize(context.Background(), testConnection(integration.PlatformDouyin, nil))
	assert.ErrorIs(t, err, integration.ErrAuth)
}

func TestDouyinAdapter_FetchOrders_ZeroIndexedPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/order/searchList", r.URL.Path)
		params := decodeDouyinParams(t, r)
		page := int(params["page"].(float64))
		switch page {
		case 0:
			_, _ = w.Write([]byte(`{"err_no": 0, "data": {"total": 3, "page": 0, "size": 2,
				"shop_order_list": [{"order_id": "A1", "order_status": 2}, {"order_id": "A2", "order_status": 3}]}}`))
		case 1:
			_, _ = w.Write([]byte(`{"err_no": 0, "data": {"total": 3, "page": 1, "size": 2,
				"shop_order_list": [{"order_id": "A3", "order_status": 4}]}}`))
		default:
			t.Errorf("unexpected page %d", page)
		}
	}))
	defer server.Close()

	adapter := createInitializedDouyinAdapter(t, server.URL)

	var ids []string
	token := ""
	for i := 0; i < 5; i++ {
		page, err := adapter.FetchOrders(context.Background(), integration.PageParams{PageSize: 2, Token: token})
		require.NoError(t, err)
		for _, r := range page.Records {
			id, _ := r.String("order_id")
			ids = append(ids, id)
		}
		if !page.HasMore() {
			break
		}
		token = page.NextToken
	}
	assert.Equal(t, []string{"A1", "A2", "A3"}, ids)
}

func TestDouyinAdapter_FetchOrders_InvalidToken(t *testing.T) {
	adapter := createInitializedDouyinAdapter(t, "http://unused")

	for _, token := range []string{"next", "-1"} {
		_, err := adapter.FetchOrders(context.Background(), integration.PageParams{Token: token})
		var fe *integration.FatalAPIError
		require.ErrorAs(t, err, &fe, token)
		assert.Equal(t, CodeInvalidPageToken, fe.Code)
		assert.Equal(t, "fatal_api", integration.ErrorKind(err))
	}
}

func TestParsePageNumber(t *testing.T) {
	n, err := parsePageNumber(integration.PlatformDouyin, "", 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = parsePageNumber(integration.PlatformTaobao, "", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = parsePageNumber(integration.PlatformTaobao, "4", 1)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = parsePageNumber(integration.PlatformTaobao, "0", 1)
	assert.ErrorIs(t, err, integration.ErrFatalAPI)
}

func TestDouyinAdapter_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		errNo     int
		wantClass error
	}{
		{"token expired", douyinErrAccessTokenExpired, integration.ErrAuth},
		{"rate limited", douyinErrRateLimited, integration.ErrTransientNetwork},
		{"service error", 50002, integration.ErrTransientNetwork},
		{"bad param", 40001, integration.ErrFatalAPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = fmt.Fprintf(w, `{"err_no": %d, "message": "boom"}`, tt.errNo)
			}))
			defer server.Close()

			_, err := createInitializedDouyinAdapter(t, server.URL).FetchOrders(context.Background(), integration.PageParams{})
			assert.ErrorIs(t, err, tt.wantClass)
		})
	}
}

func TestDouyinAdapter_FetchCategories_WalksTree(t *testing.T) {
	tree := map[int64]string{
		0:   `[{"id": 1, "name": "数码", "level": 1, "parent_id": 0, "is_leaf": false}, {"id": 2, "name": "服饰", "level": 1, "parent_id": 0, "is_leaf": true}]`,
		1:   `[{"id": 11, "name": "耳机", "level": 2, "parent_id": 1, "is_leaf": false}]`,
		11:  `[{"id": 111, "name": "蓝牙耳机", "level": 3, "is_leaf": true}]`,
		111: `[]`,
	}
	var requested []int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/shop/getShopCategory", r.URL.Path)
		cid := int64(decodeDouyinParams(t, r)["cid"].(float64))
		requested = append(requested, cid)
		_, _ = fmt.Fprintf(w, `{"err_no": 0, "data": %s}`, tree[cid])
	}))
	defer server.Close()

	records, err := createInitializedDouyinAdapter(t, server.URL).FetchCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []int64{0, 1, 11}, requested, "leaves are not expanded")

	parent, ok := records[3].String("parent_id")
	assert.True(t, ok, "missing parent_id is filled from the traversal")
	assert.Equal(t, "11", parent)
}
