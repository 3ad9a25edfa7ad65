// Package credentials implements the Authorization/Proxy-Authorization
// header values the proxy connector pipeline negotiates with upstream
// proxies and origins: HTTP Basic and Bearer schemes.
package credentials

import (
	"encoding/base64"
	"strings"

	"github.com/WhileEndless/corehttp/pkg/errors"
)

const basicScheme = "Basic"

// Basic is an HTTP Basic credential. It round-trips losslessly: a Basic
// value decoded from a header keeps the original decoded string and the
// position of its colon separator, so re-encoding it reproduces the exact
// same header value even if the original contained multiple colons.
type Basic struct {
	decoded  string
	colonPos int
}

// NewBasic builds a Basic credential from a username and password.
func NewBasic(username, password string) Basic {
	decoded := username + ":" + password
	return Basic{decoded: decoded, colonPos: len(username)}
}

// NewBasicUnprotected builds a Basic credential with a username only (an
// empty password).
func NewBasicUnprotected(username string) Basic {
	return Basic{decoded: username + ":", colonPos: len(username)}
}

// ParseBasic decodes a "Basic <base64>" Authorization/Proxy-Authorization
// header value. The scheme match is case-insensitive; any amount of
// whitespace between the scheme and the base64 payload is accepted.
func ParseBasic(value string) (Basic, error) {
	if len(value) <= len(basicScheme)+1 {
		return Basic{}, errors.NewValidationError("basic credential: value too short")
	}
	if !strings.EqualFold(value[:len(basicScheme)], basicScheme) {
		return Basic{}, errors.NewValidationError("basic credential: wrong scheme")
	}

	if c := value[len(basicScheme)]; c != ' ' && c != '\t' {
		return Basic{}, errors.NewValidationError("basic credential: wrong scheme")
	}
	rest := value[len(basicScheme)+1:]
	rest = strings.TrimLeft(rest, " \t")
	if rest == "" {
		return Basic{}, errors.NewValidationError("basic credential: missing base64 payload")
	}

	raw, err := base64.StdEncoding.DecodeString(rest)
	if err != nil {
		return Basic{}, errors.NewValidationError("basic credential: invalid base64: " + err.Error())
	}

	decoded := string(raw)
	colonPos := strings.IndexByte(decoded, ':')
	if colonPos < 0 {
		return Basic{}, errors.NewValidationError("basic credential: missing colon separator")
	}

	return Basic{decoded: decoded, colonPos: colonPos}, nil
}

// Username returns the decoded username.
func (b Basic) Username() string { return b.decoded[:b.colonPos] }

// Password returns the decoded password.
func (b Basic) Password() string { return b.decoded[b.colonPos+1:] }

// HeaderValue renders the "Basic <base64>" Authorization header value.
func (b Basic) HeaderValue() string {
	return basicScheme + " " + base64.StdEncoding.EncodeToString([]byte(b.decoded))
}

func (b Basic) String() string { return b.HeaderValue() }
