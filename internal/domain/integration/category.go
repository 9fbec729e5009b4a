package integration

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CategoryKey is the natural key of a category
type CategoryKey struct {
	UserID             uuid.UUID
	PlatformType       PlatformType
	PlatformCategoryID string
}

// CategoryScope is the set of categories stored for one user and platform.
// Every connection the user has on that platform reads and writes it.
type CategoryScope struct {
	UserID       uuid.UUID
	PlatformType PlatformType
}

// String renders the scope as "<user id>:<platform>"
func (s CategoryScope) String() string {
	return s.UserID.String() + ":" + string(s.PlatformType)
}

// CanonicalCategory is one node of a platform's category tree
type CanonicalCategory struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	PlatformType       PlatformType
	PlatformCategoryID string
	// ParentPlatformCategoryID is nil for root nodes. On nodes read back
	// from the store it is the resolved link and is nil when the declared
	// parent was never stored.
	ParentPlatformCategoryID *string
	// DeclaredParentID is the parent the platform reported. The store keeps
	// it even when the link cannot be resolved. Nil means the same as
	// ParentPlatformCategoryID.
	DeclaredParentID *string
	Name             string
	Level            int
	IsLeaf           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Key returns the natural key
func (c *CanonicalCategory) Key() CategoryKey {
	return CategoryKey{UserID: c.UserID, PlatformType: c.PlatformType, PlatformCategoryID: c.PlatformCategoryID}
}

// DeclaredParent returns the parent id the platform reported, nil for roots
func (c *CanonicalCategory) DeclaredParent() *string {
	if c.DeclaredParentID != nil {
		return c.DeclaredParentID
	}
	return c.ParentPlatformCategoryID
}

// IsRoot returns true when the platform reported no parent
func (c *CanonicalCategory) IsRoot() bool {
	return c.DeclaredParent() == nil
}

// IsOrphan returns true when the node declares a parent that is not linked
func (c *CanonicalCategory) IsOrphan() bool {
	return c.DeclaredParent() != nil && c.ParentPlatformCategoryID == nil
}

// ParentID returns the parent id or "" for roots
func (c *CanonicalCategory) ParentID() string {
	if c.ParentPlatformCategoryID == nil {
		return ""
	}
	return *c.ParentPlatformCategoryID
}

// Validate checks the fields the store requires
func (c *CanonicalCategory) Validate() error {
	id := string(c.PlatformType) + ":" + c.PlatformCategoryID
	switch {
	case c.UserID == uuid.Nil:
		return NewPersistenceError(id, "owning user id is required", nil)
	case !c.PlatformType.IsValid():
		return NewPersistenceError(id, "platform type is required", nil)
	case strings.TrimSpace(c.PlatformCategoryID) == "":
		return NewPersistenceError(id, "platform category id is required", nil)
	case c.ParentPlatformCategoryID != nil && *c.ParentPlatformCategoryID == c.PlatformCategoryID:
		return NewPersistenceError(id, "category cannot be its own parent", nil)
	}
	return nil
}
