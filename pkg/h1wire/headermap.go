package h1wire

import "github.com/intuitivelabs/bytescase"

// HeaderField is one (name, value) pair as it appeared on the wire, or as
// the caller wants it emitted. Name keeps whatever casing it was
// constructed with; Go's ordered slice already gives us both the
// insertion-order multimap and the original-case sidecar kept as two
// parallel structures in the Rust original this traces back to — a
// single ordered slice of fields collapses them into one.
type HeaderField struct {
	Name  []byte
	Value []byte
}

// HeaderMap is an insertion-order-preserving, case-insensitive multimap
// from header name to header value.
type HeaderMap struct {
	fields []HeaderField
}

// Append adds a (name, value) pair, preserving the casing of name.
func (h *HeaderMap) Append(name, value []byte) {
	h.fields = append(h.fields, HeaderField{Name: name, Value: value})
}

// Len reports the number of fields, counting repeated names separately.
func (h *HeaderMap) Len() int {
	return len(h.fields)
}

// Get returns the first value stored under name (case-insensitive), and
// whether it was found.
func (h *HeaderMap) Get(name string) ([]byte, bool) {
	nb := []byte(name)
	for _, f := range h.fields {
		if bytescase.CmpEq(f.Name, nb) {
			return f.Value, true
		}
	}
	return nil, false
}

// GetAll returns every value stored under name, in insertion order.
func (h *HeaderMap) GetAll(name string) [][]byte {
	nb := []byte(name)
	var out [][]byte
	for _, f := range h.fields {
		if bytescase.CmpEq(f.Name, nb) {
			out = append(out, f.Value)
		}
	}
	return out
}

// Has reports whether any field is stored under name.
func (h *HeaderMap) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// Remove deletes every field stored under name, preserving the relative
// order of the fields that remain. Because Go's append-based slice IS the
// sidecar, removing from the map removes the casing record at the same
// index automatically.
func (h *HeaderMap) Remove(name string) {
	nb := []byte(name)
	out := h.fields[:0]
	for _, f := range h.fields {
		if !bytescase.CmpEq(f.Name, nb) {
			out = append(out, f)
		}
	}
	h.fields = out
}

// Each calls fn for every field in insertion (wire) order.
func (h *HeaderMap) Each(fn func(name, value []byte)) {
	for _, f := range h.fields {
		fn(f.Name, f.Value)
	}
}

// Fields returns the underlying ordered slice. Callers must not mutate it.
func (h *HeaderMap) Fields() []HeaderField {
	return h.fields
}

// valueHasToken reports whether value, split on commas and trimmed, has a
// token equal (case-insensitively) to target. Used for Connection:
// close/keep-alive and Transfer-Encoding: ...,chunked matching.
func valueHasToken(value []byte, target string) bool {
	tb := []byte(target)
	start := 0
	for i := 0; i <= len(value); i++ {
		if i == len(value) || value[i] == ',' {
			tok := trimOWS(value[start:i])
			if bytescase.CmpEq(tok, tb) {
				return true
			}
			start = i + 1
		}
	}
	return false
}

// lastToken returns the final comma-separated, OWS-trimmed token in value.
func lastToken(value []byte) []byte {
	start := 0
	last := value
	for i := 0; i <= len(value); i++ {
		if i == len(value) || value[i] == ',' {
			last = trimOWS(value[start:i])
			start = i + 1
		}
	}
	return last
}

// trimOWS trims leading/trailing optional whitespace (SP / HTAB) per
// RFC 9110 field-value grammar.
func trimOWS(b []byte) []byte {
	i, j := 0, len(b)
	for i < j && (b[i] == ' ' || b[i] == '\t') {
		i++
	}
	for j > i && (b[j-1] == ' ' || b[j-1] == '\t') {
		j--
	}
	return b[i:j]
}
