package ecommerce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/url"
	"sort"
	"strings"

	"github.com/marketsync/backend/internal/domain/integration"
)

const (
	// KuaishouProductionAPIURL is the production API endpoint
	KuaishouProductionAPIURL = "https://openapi.kwaixiaodian.com"
	// KuaishouSandboxAPIURL is the sandbox API endpoint
	KuaishouSandboxAPIURL = "https://openapi-sandbox.kwaixiaodian.com"
)

// Errors for Kuaishou credentials
var (
	ErrKuaishouMissingAppKey      = errors.New("kuaishou: app key is required")
	ErrKuaishouMissingSignSecret  = errors.New("kuaishou: sign secret is required")
	ErrKuaishouMissingAccessToken = errors.New("kuaishou: access token is required")
)

// KuaishouCredentials are the per-connection Kuaishou shop credentials
type KuaishouCredentials struct {
	AppKey string
	// SignSecret signs requests; Kuaishou issues it separately from the
	// app secret
	SignSecret  string
	AccessToken string
}

// KuaishouCredentialsFromConnection reads the credential blob of a connection
func KuaishouCredentialsFromConnection(conn *integration.PlatformConnection) *KuaishouCredentials {
	secret := conn.Credential("sign_secret")
	if secret == "" {
		secret = conn.Credential(CredentialAppSecret)
	}
	return &KuaishouCredentials{
		AppKey:      conn.Credential(CredentialAppKey),
		SignSecret:  secret,
		AccessToken: conn.Credential(CredentialAccessToken),
	}
}

// Validate validates the Kuaishou credentials
func (c *KuaishouCredentials) Validate() error {
	if c.AppKey == "" {
		return ErrKuaishouMissingAppKey
	}
	if c.SignSecret == "" {
		return ErrKuaishouMissingSignSecret
	}
	if c.AccessToken == "" {
		return ErrKuaishouMissingAccessToken
	}
	return nil
}

// Sign computes the HMAC_SHA256 signature over the query string of the
// sorted parameters followed by &signSecret=<secret>
func (c *KuaishouCredentials) Sign(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "sign" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		parts = append(parts, k+"="+params.Get(k))
	}
	parts = append(parts, "signSecret="+c.SignSecret)

	h := hmac.New(sha256.New, []byte(c.SignSecret))
	h.Write([]byte(strings.Join(parts, "&")))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
