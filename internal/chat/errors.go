package chat

import "errors"

var (
	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("session not found")
	// ErrForbidden is returned when a session belongs to another owner.
	ErrForbidden = errors.New("session owned by another user")
	// ErrInvalidID is returned by read paths for malformed session
	// identifiers. Resolve never returns it; it substitutes a fresh
	// identifier instead.
	ErrInvalidID = errors.New("invalid session id")
)
