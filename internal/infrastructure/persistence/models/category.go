package models

import (
	"github.com/google/uuid"

	"github.com/marketsync/backend/internal/domain/integration"
)

// CategoryModel is one node of a platform category tree. The parent is
// referenced by platform category id, not by row id, so nodes can be
// stored in any order and linked afterwards.
type CategoryModel struct {
	BaseModel
	UserID                   uuid.UUID                `gorm:"type:uuid;not null;uniqueIndex:idx_categories_natural_key,priority:1"`
	PlatformType             integration.PlatformType `gorm:"type:varchar(20);not null;uniqueIndex:idx_categories_natural_key,priority:2"`
	PlatformCategoryID       string                   `gorm:"type:varchar(64);not null;uniqueIndex:idx_categories_natural_key,priority:3"`
	ParentPlatformCategoryID *string                  `gorm:"type:varchar(64);index"`
	// DeclaredParentID is the parent reported by the platform, kept when
	// ParentPlatformCategoryID cannot be linked
	DeclaredParentID *string `gorm:"type:varchar(64)"`
	Name                     string                   `gorm:"type:varchar(255);not null"`
	Level                    int                      `gorm:"not null;default:0"`
	IsLeaf                   bool                     `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (CategoryModel) TableName() string {
	return "platform_categories"
}

// ToDomain converts the persistence model to a domain CanonicalCategory
func (m *CategoryModel) ToDomain() *integration.CanonicalCategory {
	c := &integration.CanonicalCategory{
		ID:                 m.ID,
		UserID:             m.UserID,
		PlatformType:       m.PlatformType,
		PlatformCategoryID: m.PlatformCategoryID,
		Name:               m.Name,
		Level:              m.Level,
		IsLeaf:             m.IsLeaf,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
	c.ParentPlatformCategoryID = copyID(m.ParentPlatformCategoryID)
	c.DeclaredParentID = copyID(m.DeclaredParentID)
	return c
}

// FromDomain populates the persistence model from a domain CanonicalCategory
func (m *CategoryModel) FromDomain(c *integration.CanonicalCategory) {
	m.ID = c.ID
	m.UserID = c.UserID
	m.PlatformType = c.PlatformType
	m.PlatformCategoryID = c.PlatformCategoryID
	m.Name = c.Name
	m.Level = c.Level
	m.IsLeaf = c.IsLeaf
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.UpdatedAt
	m.ParentPlatformCategoryID = copyID(c.DeclaredParent())
	m.DeclaredParentID = copyID(c.DeclaredParent())
	m.ensureID()
}

// SameFields reports whether two nodes carry the same name, level, leaf
// flag and declared parent. Parent links are compared separately.
func (m *CategoryModel) SameFields(other *CategoryModel) bool {
	return m.Name == other.Name && m.Level == other.Level && m.IsLeaf == other.IsLeaf &&
		SameID(m.DeclaredParentID, other.DeclaredParentID)
}

// SameID compares two optional platform ids
func SameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyID(id *string) *string {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// CategoryModelFromDomain creates a new persistence model from a domain CanonicalCategory
func CategoryModelFromDomain(c *integration.CanonicalCategory) *CategoryModel {
	m := &CategoryModel{}
	m.FromDomain(c)
	return m
}
