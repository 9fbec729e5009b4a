// Package models holds the GORM rows behind the sync repositories. Domain
// types in internal/domain/integration carry no ORM tags; each model has
// ToDomain/FromDomain mappers and the repositories only persist models.
//
// Every table is scoped by user id and platform, and the natural key
// indexes (idx_orders_natural_key, idx_categories_natural_key) back the
// upserts.
package models
