// Package auth resolves the identity subject a request acts on behalf of from a bearer token.
//
// Token issuance and key management belong to the identity provider. This package only reads
// the "sub" claim, either without verification (the token was checked upstream) or after
// verifying an HMAC signature.
package auth

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnauthorized is matched by every error this package returns.
var ErrUnauthorized = errors.New("unauthorized")

const bearerScheme = "bearer"

func unauthorized(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, fmt.Sprintf(format, args...))
}

// ParseBearer extracts the token from an Authorization header value of the form "Bearer <token>".
// A bare token without scheme is accepted as well.
func ParseBearer(header string) (string, error) {
	parts := strings.Fields(header)
	switch {
	case len(parts) == 0:
		return "", unauthorized("authorization header is expected")
	case len(parts) == 1 && !strings.EqualFold(parts[0], bearerScheme):
		return parts[0], nil
	case len(parts) == 1:
		return "", unauthorized("token not found")
	case len(parts) > 2:
		return "", unauthorized("authorization header must be bearer token")
	case !strings.EqualFold(parts[0], bearerScheme):
		return "", unauthorized("authorization header must start with Bearer")
	default:
		return parts[1], nil
	}
}
