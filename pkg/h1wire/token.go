package h1wire

import (
	"golang.org/x/net/http/httpguts"
)

// MaxHeaderNameLen and MaxURILen are explicit caps beyond a bare RFC 9112
// reading, guarding against unbounded allocation on adversarial input.
const (
	MaxHeaderNameLen = 65535
	MaxURILen        = 65534
)

// isCompleteFast is a cheap pre-check for end-of-headers before invoking
// the full parser. prevLen is the buffer length at the last failed parse
// attempt (callers pass a negative prevLen on the first attempt and skip
// this pre-check); the scan starts 3 bytes earlier to tolerate a
// terminator that was split across reads.
func isCompleteFast(buf []byte, prevLen int) bool {
	start := prevLen - 3
	if start < 0 {
		start = 0
	}
	b := buf[start:]
	for i := 0; i < len(b); i++ {
		switch b[i] {
		case '\r':
			if i+3 <= len(b) && b[i+1] == '\n' && b[i+2] == '\r' {
				if i+4 <= len(b) && b[i+3] == '\n' {
					return true
				}
			}
		case '\n':
			if i+1 < len(b) && b[i+1] == '\n' {
				return true
			}
		}
	}
	return false
}

// validMethodToken reports whether b is a syntactically valid HTTP method
// token (RFC 9110 S9: a "token").
func validMethodToken(b []byte) bool {
	return len(b) > 0 && httpguts.ValidHeaderFieldName(string(b))
}

// validHeaderName reports whether b is a syntactically valid header field
// name, deferring to golang.org/x/net/http/httpguts (the same token
// grammar net/http itself validates against).
func validHeaderName(b []byte) bool {
	return httpguts.ValidHeaderFieldName(string(b))
}

// validHeaderValue reports whether b is a syntactically valid header
// field value per RFC 9110 field-content (no bare CR/LF/NUL).
func validHeaderValue(b []byte) bool {
	return httpguts.ValidHeaderFieldValue(string(b))
}
