package errors

import "fmt"

// domainError is a typed sentinel for business-rule failures. The string is
// the public message shown to the caller.
type domainError string

func (e domainError) Error() string { return string(e) }

const (
	// ErrAuthenticationRequired is returned when no authenticated user is
	// attached to the request.
	ErrAuthenticationRequired domainError = "sign-in required"

	// ErrSelfInteraction is returned when a user likes or provisions a
	// conversation with themselves.
	ErrSelfInteraction domainError = "cannot interact with yourself"

	// ErrBlockedInteraction is returned when either user has blocked the
	// other. Both directions count.
	ErrBlockedInteraction domainError = "interaction not allowed between these users"

	// ErrNotMatched is returned when conversation provisioning is attempted
	// without an active match. This is an authorization gate: a channel in
	// the chat transport grants send capability.
	ErrNotMatched domainError = "users are not matched"
)

// ValidationError reports malformed input, e.g. a missing or non-numeric id.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validation builds a ValidationError.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// StorageError wraps a failed query or mutation against the relational store.
// Callers must treat it as fatal to the enclosing operation; falling back to
// an empty result would leak users that should be invisible.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError. Returns nil for a nil err.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// TransportError wraps a chat-transport failure other than the idempotent
// "already exists" response, which is absorbed at the call site.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport: %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// Transport wraps err as a TransportError. Returns nil for a nil err.
func Transport(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Err: err}
}
