package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UpsertOutcome tells what an upsert did to the stored record
type UpsertOutcome string

const (
	UpsertInserted  UpsertOutcome = "INSERTED"
	UpsertUpdated   UpsertOutcome = "UPDATED"
	UpsertUnchanged UpsertOutcome = "UNCHANGED"
)

// OrderRepository stores canonical orders keyed by their natural key
type OrderRepository interface {
	// Upsert inserts the order or updates the mutable fields of the stored
	// order with the same natural key, atomically. Key, internal id and
	// creation time of an existing order are never changed.
	Upsert(ctx context.Context, order *CanonicalOrder) (UpsertOutcome, error)
	FindByKey(ctx context.Context, key OrderKey) (*CanonicalOrder, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID, platform PlatformType, limit int) ([]*CanonicalOrder, error)
}

// CategoryBatchResult reports the outcome of a category batch upsert.
// Inserted, Updated and Unchanged count nodes that ended up attached to
// the tree. A node whose declared parent could not be linked is counted in
// Unresolved instead, and its cause is listed in Errors.
type CategoryBatchResult struct {
	Inserted  int
	Updated   int
	Unchanged int
	// Linked counts nodes whose parent was resolved in the second pass
	Linked int
	// Unresolved counts nodes stored without their declared parent link
	Unresolved int
	Errors     []ItemError
}

// Stored returns the number of nodes written or confirmed in the tree.
// Unresolved nodes are not included.
func (r *CategoryBatchResult) Stored() int {
	return r.Inserted + r.Updated + r.Unchanged
}

// Unresolve moves one node with the given write outcome out of the stored
// counts and into Unresolved
func (r *CategoryBatchResult) Unresolve(outcome UpsertOutcome) {
	switch outcome {
	case UpsertInserted:
		r.Inserted--
	case UpsertUpdated:
		r.Updated--
	default:
		r.Unchanged--
	}
	r.Unresolved++
}

// CategoryRepository stores canonical categories for one user and platform
type CategoryRepository interface {
	// UpsertBatch stores every node, then resolves parent links against the
	// batch and already stored nodes. Nodes whose parent is still missing
	// are reported in CategoryBatchResult.Errors.
	UpsertBatch(ctx context.Context, userID uuid.UUID, platform PlatformType, categories []*CanonicalCategory) (*CategoryBatchResult, error)
	ListByUser(ctx context.Context, userID uuid.UUID, platform PlatformType) ([]*CanonicalCategory, error)
	CountByUser(ctx context.Context, userID uuid.UUID, platform PlatformType) (int64, error)
}

// ConnectionRepository reads platform connections
type ConnectionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*PlatformConnection, error)
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*PlatformConnection, error)
	// ListUsersWithActiveConnections returns distinct owners of active
	// connections, used by the periodic trigger
	ListUsersWithActiveConnections(ctx context.Context) ([]uuid.UUID, error)
	Save(ctx context.Context, conn *PlatformConnection) error
}

// CategoryFreshnessStore remembers when the categories of a scope were
// last synced
type CategoryFreshnessStore interface {
	LastSynced(ctx context.Context, scope CategoryScope) (time.Time, bool, error)
	MarkSynced(ctx context.Context, scope CategoryScope, at time.Time) error
	Invalidate(ctx context.Context, scope CategoryScope) error
}
