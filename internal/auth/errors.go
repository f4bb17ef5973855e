package auth

import "errors"

var (
	// ErrUnauthenticated covers a missing, malformed, expired or otherwise
	// invalid credential. The underlying cause is logged, never returned.
	ErrUnauthenticated = errors.New("auth: unauthenticated")

	// ErrForbidden means the identity is valid but its role does not satisfy
	// the declared requirement.
	ErrForbidden = errors.New("auth: forbidden")

	// ErrNotFound means the referenced record does not exist (e.g. the token
	// subject was deleted after issuance).
	ErrNotFound = errors.New("auth: not found")

	// ErrMisconfigured means a route guard references a permission code that
	// is absent from the reference data. Operator-facing defect, not a denial.
	ErrMisconfigured = errors.New("auth: permission catalog misconfigured")

	ErrInvalidInput = errors.New("auth: invalid input")
	ErrConflict     = errors.New("auth: already exists")
)
