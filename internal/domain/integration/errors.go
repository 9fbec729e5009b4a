package integration

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Error classes
// ---------------------------------------------------------------------------

// Sentinels identify the class of a sync error. Every typed error below
// reports its class through errors.Is, so callers can branch on the class
// without caring about the detail.
var (
	ErrAuth             = errors.New("integration: authentication failed")
	ErrTransientNetwork = errors.New("integration: transient network failure")
	ErrFatalAPI         = errors.New("integration: fatal platform API error")
	ErrMapping          = errors.New("integration: record mapping failed")
	ErrPersistence      = errors.New("integration: record persistence failed")
	ErrTimeout          = errors.New("integration: connection sync timed out")
)

// Input and configuration errors
var (
	ErrInvalidUserID          = errors.New("integration: invalid user ID")
	ErrInvalidPlatformType    = errors.New("integration: invalid platform type")
	ErrInvalidConnectionID    = errors.New("integration: invalid connection ID")
	ErrConnectionNotFound     = errors.New("integration: platform connection not found")
	ErrOrderNotFound          = errors.New("integration: order not found")
	ErrConnectionInactive     = errors.New("integration: platform connection is inactive")
	ErrConnectionMismatch     = errors.New("integration: connection does not belong to user or platform")
	ErrNoActiveConnections    = errors.New("integration: no platform connections configured")
	ErrAdapterNotRegistered   = errors.New("integration: no adapter registered for platform")
	ErrAdapterNotInitialized  = errors.New("integration: adapter not initialized")
	ErrInvalidStateTransition = errors.New("integration: invalid sync state transition")
)

// ---------------------------------------------------------------------------
// AuthError
// ---------------------------------------------------------------------------

// AuthError means the connection's credentials are missing, invalid or
// expired. It is fatal for the connection and is surfaced to the user as
// "reconnect this platform".
type AuthError struct {
	Platform PlatformType
	Reason   string
	Err      error
}

func (e *AuthError) Error() string {
	msg := fmt.Sprintf("integration: %s authentication failed: %s", e.Platform, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is reports the error class.
func (e *AuthError) Is(target error) bool { return target == ErrAuth }

// NewAuthError creates an AuthError
func NewAuthError(platform PlatformType, reason string, err error) *AuthError {
	return &AuthError{Platform: platform, Reason: reason, Err: err}
}

// ---------------------------------------------------------------------------
// TransientNetworkError
// ---------------------------------------------------------------------------

// TransientNetworkError covers timeouts, transport failures, 5xx responses
// and rate limiting. It is retried with backoff.
type TransientNetworkError struct {
	Platform   PlatformType
	StatusCode int
	RateLimit  bool
	Err        error
}

func (e *TransientNetworkError) Error() string {
	switch {
	case e.RateLimit:
		return fmt.Sprintf("integration: %s rate limited: %v", e.Platform, e.Err)
	case e.StatusCode > 0:
		return fmt.Sprintf("integration: %s returned HTTP %d: %v", e.Platform, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("integration: %s network failure: %v", e.Platform, e.Err)
	}
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// Is reports the error class.
func (e *TransientNetworkError) Is(target error) bool { return target == ErrTransientNetwork }

// NewTransientNetworkError creates a TransientNetworkError
func NewTransientNetworkError(platform PlatformType, statusCode int, err error) *TransientNetworkError {
	return &TransientNetworkError{Platform: platform, StatusCode: statusCode, Err: err}
}

// NewRateLimitError creates a TransientNetworkError flagged as rate limiting
func NewRateLimitError(platform PlatformType, err error) *TransientNetworkError {
	return &TransientNetworkError{Platform: platform, StatusCode: 429, RateLimit: true, Err: err}
}

// ---------------------------------------------------------------------------
// FatalAPIError
// ---------------------------------------------------------------------------

// FatalAPIError is a non-retryable API response: a 4xx other than rate
// limiting, or a business error code returned by the platform.
type FatalAPIError struct {
	Platform   PlatformType
	StatusCode int
	Code       string
	Message    string
}

func (e *FatalAPIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("integration: %s API error (HTTP %d): [%s] %s", e.Platform, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("integration: %s API error: [%s] %s", e.Platform, e.Code, e.Message)
}

// Is reports the error class.
func (e *FatalAPIError) Is(target error) bool { return target == ErrFatalAPI }

// NewFatalAPIError creates a FatalAPIError
func NewFatalAPIError(platform PlatformType, statusCode int, code, message string) *FatalAPIError {
	return &FatalAPIError{Platform: platform, StatusCode: statusCode, Code: code, Message: message}
}

// ---------------------------------------------------------------------------
// MappingError
// ---------------------------------------------------------------------------

// MappingError means a single raw record could not be normalized. ItemID is
// the best raw identifier available, possibly empty.
type MappingError struct {
	Platform PlatformType
	ItemID   string
	Field    string
	Reason   string
}

func (e *MappingError) Error() string {
	id := e.ItemID
	if id == "" {
		id = "<unidentified>"
	}
	if e.Field != "" {
		return fmt.Sprintf("integration: cannot map %s record %s: field %q: %s", e.Platform, id, e.Field, e.Reason)
	}
	return fmt.Sprintf("integration: cannot map %s record %s: %s", e.Platform, id, e.Reason)
}

// Is reports the error class.
func (e *MappingError) Is(target error) bool { return target == ErrMapping }

// NewMappingError creates a MappingError
func NewMappingError(platform PlatformType, itemID, field, reason string) *MappingError {
	return &MappingError{Platform: platform, ItemID: itemID, Field: field, Reason: reason}
}

// ---------------------------------------------------------------------------
// PersistenceError
// ---------------------------------------------------------------------------

// PersistenceError rejects one record at the storage boundary, either
// because a required field is missing or because the store refused it.
type PersistenceError struct {
	ItemID string
	Reason string
	Err    error
}

func (e *PersistenceError) Error() string {
	msg := fmt.Sprintf("integration: cannot persist %s: %s", e.ItemID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is reports the error class.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// NewPersistenceError creates a PersistenceError
func NewPersistenceError(itemID, reason string, err error) *PersistenceError {
	return &PersistenceError{ItemID: itemID, Reason: reason, Err: err}
}

// ---------------------------------------------------------------------------
// TimeoutError
// ---------------------------------------------------------------------------

// TimeoutError marks a connection whose sync exceeded its time budget.
type TimeoutError struct {
	ConnectionID string
	Limit        string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("integration: sync of connection %s exceeded %s", e.ConnectionID, e.Limit)
}

// Is reports the error class.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// ---------------------------------------------------------------------------
// Classification helpers
// ---------------------------------------------------------------------------

// IsRetryable reports whether err should be retried with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientNetwork)
}

// IsRateLimited reports whether err is a rate limiting response.
func IsRateLimited(err error) bool {
	var te *TransientNetworkError
	return errors.As(err, &te) && te.RateLimit
}

// IsItemLevel reports whether err concerns a single record and must not stop
// the rest of the connection's sync. API errors always fail the page
// request, and with it the connection.
func IsItemLevel(err error) bool {
	return errors.Is(err, ErrMapping) || errors.Is(err, ErrPersistence)
}

// ErrorKind returns a short, stable label for the error class, used in
// metrics and API responses.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrTransientNetwork):
		return "transient"
	case errors.Is(err, ErrFatalAPI):
		return "fatal_api"
	case errors.Is(err, ErrMapping):
		return "mapping"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "internal"
	}
}
