package ecommerce

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/marketsync/backend/internal/domain/integration"
)

// maxResponseSize is the maximum allowed response size from a platform API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// PlatformSettings holds the process-wide settings of one marketplace API.
// Per-connection credentials come from the connection itself.
type PlatformSettings struct {
	// APIBaseURL is the gateway endpoint (production or sandbox)
	APIBaseURL string
	// IsSandbox selects the sandbox endpoint when APIBaseURL is empty
	IsSandbox bool
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
	// RateLimitQPS is the sustained request rate shared by every
	// connection of this platform
	RateLimitQPS float64
	// RateLimitBurst is the token bucket size
	RateLimitBurst int
	// CategoryMaxDepth bounds tree traversal for platforms that return
	// categories level by level
	CategoryMaxDepth int
}

// withDefaults fills unset values
func (s PlatformSettings) withDefaults(production, sandbox string) PlatformSettings {
	if s.APIBaseURL == "" {
		if s.IsSandbox {
			s.APIBaseURL = sandbox
		} else {
			s.APIBaseURL = production
		}
	}
	if s.TimeoutSeconds <= 0 {
		s.TimeoutSeconds = 30
	}
	if s.RateLimitQPS <= 0 {
		s.RateLimitQPS = 10
	}
	if s.RateLimitBurst <= 0 {
		s.RateLimitBurst = 1
	}
	if s.CategoryMaxDepth <= 0 {
		s.CategoryMaxDepth = 6
	}
	return s
}

// platformClient sends requests to one marketplace gateway. It waits on the
// platform's token bucket before every call and turns transport and HTTP
// failures into the sync error taxonomy.
type platformClient struct {
	platform   integration.PlatformType
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

func newPlatformClient(platform integration.PlatformType, settings PlatformSettings, httpClient *http.Client, limiter *rate.Limiter, logger *zap.Logger) *platformClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(settings.TimeoutSeconds) * time.Second}
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(settings.RateLimitQPS), settings.RateLimitBurst)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &platformClient{
		platform:   platform,
		baseURL:    settings.APIBaseURL,
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger,
	}
}

// do executes req and returns the response body of a 2xx/3xx response.
func (c *platformClient) do(ctx context.Context, req *http.Request) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// The wait would exceed the context deadline
		return nil, integration.NewTransientNetworkError(c.platform, 0, err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, ctxErr
		}
		return nil, integration.NewTransientNetworkError(c.platform, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, integration.NewTransientNetworkError(c.platform, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%s: failed to read response: %w", c.platform, err)
	}

	c.logger.Debug("platform request completed",
		zap.String("platform", c.platform.String()),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if err := c.classifyStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// classifyStatus maps HTTP status codes onto the error taxonomy
func (c *platformClient) classifyStatus(status int, body []byte) error {
	switch {
	case status < 400:
		return nil
	case status == http.StatusTooManyRequests:
		return integration.NewRateLimitError(c.platform, fmt.Errorf("HTTP %d", status))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return integration.NewAuthError(c.platform, fmt.Sprintf("HTTP %d", status), nil)
	case status == http.StatusRequestTimeout || status >= 500:
		return integration.NewTransientNetworkError(c.platform, status, fmt.Errorf("HTTP %d", status))
	default:
		return integration.NewFatalAPIError(c.platform, status, http.StatusText(status), truncate(string(body), 256))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// CodeInvalidPageToken is the FatalAPIError code for a page token the
// adapter never issued
const CodeInvalidPageToken = "invalid_page_token"

// parsePageNumber reads a numeric page token. An empty token is page first;
// anything else below first is rejected.
func parsePageNumber(platform integration.PlatformType, token string, first int) (int, error) {
	if token == "" {
		return first, nil
	}
	n, err := strconv.Atoi(token)
	if err != nil || n < first {
		return 0, integration.NewFatalAPIError(platform, 0, CodeInvalidPageToken,
			fmt.Sprintf("invalid page token %q", token))
	}
	return n, nil
}

// credentialsExpired reports whether an optional RFC3339 expires_at
// credential lies in the past.
func credentialsExpired(conn *integration.PlatformConnection, now time.Time) (bool, error) {
	raw := conn.Credential(CredentialExpiresAt)
	if raw == "" {
		return false, nil
	}
	exp, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", CredentialExpiresAt, err)
	}
	return !now.Before(exp), nil
}

// Credential keys shared by every adapter
const (
	CredentialAppKey      = "app_key"
	CredentialAppSecret   = "app_secret"
	CredentialAccessToken = "access_token"
	CredentialShopID      = "shop_id"
	CredentialExpiresAt   = "expires_at"
	CredentialSignMethod  = "sign_method"
)
