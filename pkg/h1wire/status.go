package h1wire

import "net/http"

// canonicalReason returns the canonical reason phrase for code, or "" if
// code is not a registered status. Grounded on the standard library's own
// status table (net/http.StatusText) rather than hand-rolling one: no
// example in the pack maintains an independent status-code registry, and
// duplicating net/http's table would only risk drifting from the IANA
// registry it already tracks.
func canonicalReason(code int) string {
	return http.StatusText(code)
}
