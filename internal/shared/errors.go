package shared

import "errors"

// Sentinels for the cross-cutting plumbing that has no domain package of its
// own; domain packages declare their own error sets.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidCredentials is the single login failure: unknown address,
	// wrong password and deactivated account are indistinguishable.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrCSRFTokenMissing indicates the request carried no CSRF token.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch indicates the CSRF token failed verification.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
