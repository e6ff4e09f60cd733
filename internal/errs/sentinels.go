// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Sync-core taxonomy: every operation of the client core fails with exactly
// one of these (possibly wrapped), so callers branch with errors.Is.
var (
	// ErrRemoteUnavailable indicates a transient transport/service failure.
	// Eligible for caller-initiated retry.
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrRemoteRejected indicates the store refused the request (permission,
	// quota, bad input). Not retryable without changing the input.
	ErrRemoteRejected = errors.New("remote rejected")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrProvision indicates namespace setup failed. The session stays valid;
	// data access is degraded until an explicit retry succeeds.
	ErrProvision = errors.New("provisioning failed")

	// ErrOperationInProgress indicates a second mutation was issued for an id
	// that already has one in flight.
	ErrOperationInProgress = errors.New("operation in progress")

	// ErrValidation indicates an empty/negative field caught at the boundary
	// before any remote call.
	ErrValidation = errors.New("validation failed")

	// ErrNoSession indicates an operation that requires an authenticated
	// session was issued without one.
	ErrNoSession = errors.New("no active session")
)

// Server-side sentinels.
var (
	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")
)
