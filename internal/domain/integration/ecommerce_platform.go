package integration

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// PlatformType represents a supported marketplace
// ---------------------------------------------------------------------------

// PlatformType represents a supported marketplace
type PlatformType string

const (
	// PlatformTaobao represents Taobao/Tmall
	PlatformTaobao PlatformType = "TAOBAO"
	// PlatformDouyin represents Douyin shop
	PlatformDouyin PlatformType = "DOUYIN"
	// PlatformKuaishou represents Kuaishou shop
	PlatformKuaishou PlatformType = "KUAISHOU"
)

// AllPlatformTypes returns every supported platform type
func AllPlatformTypes() []PlatformType {
	return []PlatformType{PlatformTaobao, PlatformDouyin, PlatformKuaishou}
}

// IsValid returns true if the platform type is supported
func (p PlatformType) IsValid() bool {
	switch p {
	case PlatformTaobao, PlatformDouyin, PlatformKuaishou:
		return true
	default:
		return false
	}
}

// String returns the string representation of PlatformType
func (p PlatformType) String() string {
	return string(p)
}

// DisplayName returns a human-readable name for the platform
func (p PlatformType) DisplayName() string {
	switch p {
	case PlatformTaobao:
		return "淘宝/天猫"
	case PlatformDouyin:
		return "抖音"
	case PlatformKuaishou:
		return "快手"
	default:
		return string(p)
	}
}

// ParsePlatformType parses a platform type case-insensitively
func ParsePlatformType(s string) (PlatformType, error) {
	p := PlatformType(strings.ToUpper(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", ErrInvalidPlatformType
	}
	return p, nil
}

// ---------------------------------------------------------------------------
// PlatformConnection
// ---------------------------------------------------------------------------

// PlatformConnection is one user's credentials for one marketplace. The sync
// engine only reads connections; they are managed elsewhere.
type PlatformConnection struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	PlatformType PlatformType
	Name         string
	IsActive     bool
	// Credentials is an adapter-specific key/value blob (app keys, tokens,
	// shop ids, optional expires_at).
	Credentials map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Credential returns a trimmed credential value or "" if absent
func (c *PlatformConnection) Credential(key string) string {
	if c == nil || c.Credentials == nil {
		return ""
	}
	return strings.TrimSpace(c.Credentials[key])
}

// Validate checks the connection can be handed to an adapter
func (c *PlatformConnection) Validate() error {
	if c.ID == uuid.Nil {
		return ErrInvalidConnectionID
	}
	if c.UserID == uuid.Nil {
		return ErrInvalidUserID
	}
	if !c.PlatformType.IsValid() {
		return ErrInvalidPlatformType
	}
	return nil
}

// ---------------------------------------------------------------------------
// PlatformAdapter port
// ---------------------------------------------------------------------------

// PageParams selects one page of orders. Token is the continuation token
// returned by the previous page; empty means the first page.
type PageParams struct {
	Token     string
	PageSize  int
	StartTime time.Time
	EndTime   time.Time
}

const (
	// DefaultPageSize is used when PageParams.PageSize is not set
	DefaultPageSize = 50
	// MaxPageSize caps PageParams.PageSize
	MaxPageSize = 100
)

// Normalize applies page size defaults and caps
func (p *PageParams) Normalize() {
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
}

// OrderPage is one page of raw orders. An empty NextToken means the listing
// is exhausted.
type OrderPage struct {
	Records   []RawRecord
	NextToken string
	// TotalCount is the platform-reported total, 0 when unknown
	TotalCount int64
}

// HasMore reports whether another page follows
func (p *OrderPage) HasMore() bool {
	return p.NextToken != ""
}

// PlatformAdapter fetches raw data from one marketplace for one connection.
// Implementations hold no state beyond what Initialize obtains.
type PlatformAdapter interface {
	// PlatformType returns the marketplace this adapter talks to
	PlatformType() PlatformType

	// Initialize loads the connection's credentials. It returns an
	// AuthError when they are missing, invalid or expired.
	Initialize(ctx context.Context, conn *PlatformConnection) error

	// FetchOrders returns one page of raw orders. It returns a
	// TransientNetworkError on timeouts, 5xx and rate limiting, and a
	// FatalAPIError on other client errors.
	FetchOrders(ctx context.Context, params PageParams) (*OrderPage, error)

	// FetchCategories returns the full raw category list, walking any
	// pagination or tree traversal the platform requires.
	FetchCategories(ctx context.Context) ([]RawRecord, error)
}

// AdapterFactory builds a fresh adapter for a platform type
type AdapterFactory interface {
	NewAdapter(platform PlatformType) (PlatformAdapter, error)
	SupportedPlatforms() []PlatformType
}
