package registry

import "errors"

// Failure taxonomy of the ledger registries. Every failure wraps one of
// these sentinels together with the specific invariant that was violated,
// so callers can branch with errors.Is and still surface a precise message.
var (
	// ErrNotFound signals an absent ownership or grant record.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource key or duplicate grant.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidArgument signals a null or self grantee, a malformed
	// identifier, or an empty key payload.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnauthorized signals that the caller lacks the required
	// relationship to the resource.
	ErrUnauthorized = errors.New("unauthorized")
)
