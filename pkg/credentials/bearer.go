package credentials

import (
	"golang.org/x/net/http/httpguts"

	"github.com/WhileEndless/corehttp/pkg/errors"
)

const bearerScheme = "Bearer"

// Bearer is an OAuth2-style bearer token credential. The token is
// validated against RFC 9110's field-value grammar at construction time,
// so a Bearer value is always safe to place directly into a header line.
type Bearer struct {
	token string
}

// NewBearer validates token and wraps it as a Bearer credential. It
// rejects tokens containing bytes that cannot appear in an HTTP header
// field value (control characters other than horizontal tab).
func NewBearer(token string) (Bearer, error) {
	if token == "" {
		return Bearer{}, errors.NewValidationError("bearer credential: empty token")
	}
	if !isValidFieldValue(token) {
		return Bearer{}, errors.NewValidationError("bearer credential: token is not a valid header value")
	}
	return Bearer{token: token}, nil
}

// ParseBearer decodes a "Bearer <token>" Authorization header value.
func ParseBearer(value string) (Bearer, error) {
	if len(value) <= len(bearerScheme)+1 {
		return Bearer{}, errors.NewValidationError("bearer credential: value too short")
	}
	if value[:len(bearerScheme)] != bearerScheme {
		return Bearer{}, errors.NewValidationError("bearer credential: wrong scheme")
	}
	return NewBearer(value[len(bearerScheme)+1:])
}

// Token returns the bearer token.
func (b Bearer) Token() string { return b.token }

// HeaderValue renders the "Bearer <token>" Authorization header value.
func (b Bearer) HeaderValue() string { return bearerScheme + " " + b.token }

func (b Bearer) String() string { return b.HeaderValue() }

// isValidFieldValue defers to golang.org/x/net/http/httpguts, the same
// header-value grammar pkg/h1wire validates against, so a bearer token is
// always safe to place directly into a header line.
func isValidFieldValue(s string) bool {
	return httpguts.ValidHeaderFieldValue(s)
}
