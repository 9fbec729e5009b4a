package ecommerce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/marketsync/backend/internal/domain/integration"
)

const (
	// DouyinProductionAPIURL is the production API endpoint
	DouyinProductionAPIURL = "https://openapi-fxg.jinritemai.com"
	// DouyinSandboxAPIURL is the sandbox API endpoint
	DouyinSandboxAPIURL = "https://openapi-sandbox.jinritemai.com"
)

// Errors for Douyin credentials
var (
	ErrDouyinMissingAppKey      = errors.New("douyin: app key is required")
	ErrDouyinMissingAppSecret   = errors.New("douyin: app secret is required")
	ErrDouyinMissingAccessToken = errors.New("douyin: access token is required")
	ErrDouyinMissingShopID      = errors.New("douyin: shop ID is required")
)

// DouyinCredentials are the per-connection Douyin shop credentials
type DouyinCredentials struct {
	AppKey      string
	AppSecret   string
	AccessToken string
	ShopID      string
}

// DouyinCredentialsFromConnection reads the credential blob of a connection
func DouyinCredentialsFromConnection(conn *integration.PlatformConnection) *DouyinCredentials {
	return &DouyinCredentials{
		AppKey:      conn.Credential(CredentialAppKey),
		AppSecret:   conn.Credential(CredentialAppSecret),
		AccessToken: conn.Credential(CredentialAccessToken),
		ShopID:      conn.Credential(CredentialShopID),
	}
}

// Validate validates the Douyin credentials
func (c *DouyinCredentials) Validate() error {
	if c.AppKey == "" {
		return ErrDouyinMissingAppKey
	}
	if c.AppSecret == "" {
		return ErrDouyinMissingAppSecret
	}
	if c.AccessToken == "" {
		return ErrDouyinMissingAccessToken
	}
	if c.ShopID == "" {
		return ErrDouyinMissingShopID
	}
	return nil
}

// Sign generates the HMAC-SHA256 signature of a Douyin request over
// app_secret + app_key + method + param_json + timestamp + v + app_secret
func (c *DouyinCredentials) Sign(method, paramJSON, timestamp, v string) string {
	var builder strings.Builder
	builder.WriteString(c.AppSecret)
	builder.WriteString("app_key")
	builder.WriteString(c.AppKey)
	builder.WriteString("method")
	builder.WriteString(method)
	builder.WriteString("param_json")
	builder.WriteString(paramJSON)
	builder.WriteString("timestamp")
	builder.WriteString(timestamp)
	builder.WriteString("v")
	builder.WriteString(v)
	builder.WriteString(c.AppSecret)

	h := hmac.New(sha256.New, []byte(c.AppSecret))
	h.Write([]byte(builder.String()))
	return hex.EncodeToString(h.Sum(nil))
}
