package ecommerce

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"sort"
	"strings"

	"github.com/marketsync/backend/internal/domain/integration"
)

const (
	// TaobaoProductionAPIURL is the production API endpoint
	TaobaoProductionAPIURL = "https://gw.api.taobao.com/router/rest"
	// TaobaoSandboxAPIURL is the sandbox API endpoint
	TaobaoSandboxAPIURL = "https://gw.api.tbsandbox.com/router/rest"
)

// Errors for Taobao credentials
var (
	ErrTaobaoMissingAppKey     = errors.New("taobao: app key is required")
	ErrTaobaoMissingAppSecret  = errors.New("taobao: app secret is required")
	ErrTaobaoMissingSessionKey = errors.New("taobao: session key is required")
)

// TaobaoCredentials are the per-connection Taobao credentials
type TaobaoCredentials struct {
	// AppKey is the application key from Taobao open platform
	AppKey string
	// AppSecret is the application secret from Taobao open platform
	AppSecret string
	// SessionKey is the seller's access token
	SessionKey string
	// SignMethod is "md5" (default) or "hmac"
	SignMethod string
}

// TaobaoCredentialsFromConnection reads the credential blob of a connection
func TaobaoCredentialsFromConnection(conn *integration.PlatformConnection) *TaobaoCredentials {
	session := conn.Credential("session_key")
	if session == "" {
		session = conn.Credential(CredentialAccessToken)
	}
	return &TaobaoCredentials{
		AppKey:     conn.Credential(CredentialAppKey),
		AppSecret:  conn.Credential(CredentialAppSecret),
		SessionKey: session,
		SignMethod: strings.ToLower(conn.Credential(CredentialSignMethod)),
	}
}

// Validate validates the Taobao credentials
func (c *TaobaoCredentials) Validate() error {
	if c.AppKey == "" {
		return ErrTaobaoMissingAppKey
	}
	if c.AppSecret == "" {
		return ErrTaobaoMissingAppSecret
	}
	if c.SessionKey == "" {
		return ErrTaobaoMissingSessionKey
	}
	if c.SignMethod == "" {
		c.SignMethod = "md5"
	}
	return nil
}

// Sign signs a request with the configured sign method
func (c *TaobaoCredentials) Sign(params map[string]string) string {
	if c.SignMethod == "hmac" {
		return c.SignHMAC(params)
	}
	return c.SignMD5(params)
}

// SignMD5 generates the signature for a Taobao API request.
// Taobao's legacy gateway requires MD5(secret + sorted_params + secret).
func (c *TaobaoCredentials) SignMD5(params map[string]string) string {
	var builder strings.Builder
	builder.WriteString(c.AppSecret)
	builder.WriteString(sortedParamString(params))
	builder.WriteString(c.AppSecret)

	hash := md5.Sum([]byte(builder.String()))
	return strings.ToUpper(hex.EncodeToString(hash[:]))
}

// SignHMAC generates the HMAC-MD5 signature for a Taobao API request
func (c *TaobaoCredentials) SignHMAC(params map[string]string) string {
	h := hmac.New(md5.New, []byte(c.AppSecret))
	h.Write([]byte(sortedParamString(params)))
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil)))
}

// sortedParamString concatenates key1value1key2value2... in key order,
// skipping the sign itself
func sortedParamString(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "sign" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var builder strings.Builder
	for _, k := range keys {
		builder.WriteString(k)
		builder.WriteString(params[k])
	}
	return builder.String()
}
