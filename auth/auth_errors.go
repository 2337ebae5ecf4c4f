package auth

import "github.com/jrsteele09/oamanage-auth/internal/errors"

var (
	// ErrUnauthorized means no identity could be resolved.
	ErrUnauthorized = errors.ErrUnauthorized
	// ErrForbidden means an identity was resolved but lacks the admin role.
	ErrForbidden = errors.ErrForbidden
)
