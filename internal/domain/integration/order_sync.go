package integration

import (
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// SyncState is the per-connection sync state machine
// ---------------------------------------------------------------------------

// SyncState represents where a connection's sync currently is
type SyncState string

const (
	SyncStateIdle         SyncState = "IDLE"
	SyncStateFetching     SyncState = "FETCHING"
	SyncStateTransforming SyncState = "TRANSFORMING"
	SyncStatePersisting   SyncState = "PERSISTING"
	SyncStateCompleted    SyncState = "COMPLETED"
	SyncStateFailed       SyncState = "FAILED"
)

// IsTerminal returns true for COMPLETED and FAILED
func (s SyncState) IsTerminal() bool {
	return s == SyncStateCompleted || s == SyncStateFailed
}

// String returns the string representation of SyncState
func (s SyncState) String() string {
	return string(s)
}

// CanTransitionTo reports whether next is a legal successor of s. Any
// non-terminal state may fail; PERSISTING loops back to FETCHING for the
// next page.
func (s SyncState) CanTransitionTo(next SyncState) bool {
	if s.IsTerminal() {
		return false
	}
	if next == SyncStateFailed {
		return true
	}
	switch s {
	case SyncStateIdle:
		return next == SyncStateFetching
	case SyncStateFetching:
		return next == SyncStateTransforming || next == SyncStateCompleted
	case SyncStateTransforming:
		return next == SyncStatePersisting
	case SyncStatePersisting:
		return next == SyncStateFetching || next == SyncStateCompleted
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// SyncResult
// ---------------------------------------------------------------------------

// ItemError is one record that could not be synced
type ItemError struct {
	ItemID  string `json:"item_id"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// SyncResult is the outcome of syncing one connection. It lives only for
// the duration of a run and is never persisted.
type SyncResult struct {
	ConnectionID uuid.UUID
	PlatformType PlatformType
	State        SyncState
	SyncedCount  int
	// UnchangedCount counts records that were already stored identically.
	// They are included in SyncedCount.
	UnchangedCount int
	// UnmappedStatusCount counts orders stored with OrderStatusUnknown
	UnmappedStatusCount int
	Errors              []ItemError
	// ConnectionError is set when the connection as a whole failed
	ConnectionError error
	StartedAt       time.Time
	FinishedAt      time.Time
}

// NewSyncResult creates an IDLE result for a connection
func NewSyncResult(conn *PlatformConnection) *SyncResult {
	return &SyncResult{
		ConnectionID: conn.ID,
		PlatformType: conn.PlatformType,
		State:        SyncStateIdle,
	}
}

// Transition moves the state machine forward
func (r *SyncResult) Transition(next SyncState) error {
	if !r.State.CanTransitionTo(next) {
		return ErrInvalidStateTransition
	}
	r.State = next
	return nil
}

// NewItemError describes one failed record
func NewItemError(itemID string, err error) ItemError {
	return ItemError{ItemID: itemID, Kind: ErrorKind(err), Message: err.Error()}
}

// AddItemError records an item-level failure
func (r *SyncResult) AddItemError(itemID string, err error) {
	r.Errors = append(r.Errors, NewItemError(itemID, err))
}

// Fail marks the connection FAILED with a connection-level error. Failing a
// terminal result is a no-op.
func (r *SyncResult) Fail(err error) {
	if r.State.IsTerminal() {
		return
	}
	r.State = SyncStateFailed
	r.ConnectionError = err
}

// ErrorCount returns the number of item-level errors
func (r *SyncResult) ErrorCount() int {
	return len(r.Errors)
}

// Failed returns true when the connection failed as a whole
func (r *SyncResult) Failed() bool {
	return r.State == SyncStateFailed
}

// Duration returns how long the sync ran
func (r *SyncResult) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
