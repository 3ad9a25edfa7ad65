package h1wire

import "bytes"

// ParseContext carries the tunables groups together as
// "h1_parser_config, max_headers, allow_h09_responses, ...".
type ParseContext struct {
	// MaxHeaders caps how many header fields a single message may carry.
	// Zero means DefaultMaxHeaders.
	MaxHeaders int

	// AllowH09Responses permits ParseResponse to accept a headerless
	// HTTP/0.9 response (client role only).
	AllowH09Responses bool

	// ObsoleteMultilineHeadersAllowed enables obs-fold unfolding on
	// ParseResponse, per RFC 9112 appendix A /
	ObsoleteMultilineHeadersAllowed bool

	// OnInformational, if set, is invoked by ParseResponse for every 1xx
	// (other than 101) response consumed and discarded.
	OnInformational func(code int, headers *HeaderMap)

	// Debugf is an optional debug-level log hook (nil means no-op). No
	// parse or encode path in this package calls it; the encode-side
	// coercion of unsupported versions down to HTTP/1.1 is silent.
	Debugf func(format string, args ...any)
}

// DefaultMaxHeaders is the stack-sized default header count, chosen to
// match the teacher corpus's pipelining-throughput-oriented default.
const DefaultMaxHeaders = 100

func (c ParseContext) maxHeaders() int {
	if c.MaxHeaders <= 0 {
		return DefaultMaxHeaders
	}
	return c.MaxHeaders
}

func (c ParseContext) debugf(format string, args ...any) {
	if c.Debugf != nil {
		c.Debugf(format, args...)
	}
}

// rawField is a still-uninterpreted (name, value) pair, held as subslices
// of the shared buffer, before header-specific parsing.
type rawField struct {
	Name  []byte
	Value []byte
}

// scanHead finds the first line and the header block terminated by a
// blank line, within buf. It returns the first line (without its line
// terminator), the raw header fields in wire order, and the total number
// of bytes consumed (including the terminating blank line). needMore is
// true when buf does not yet contain a complete head.
func scanHead(buf []byte, maxHeaders int) (firstLine []byte, fields []rawField, headLen int, needMore bool, err error) {
	pos := 0
	line, n, ok := nextLine(buf[pos:])
	if !ok {
		return nil, nil, 0, true, nil
	}
	firstLine = line
	pos += n

	for {
		line, n, ok := nextLine(buf[pos:])
		if !ok {
			return nil, nil, 0, true, nil
		}
		pos += n
		if len(line) == 0 {
			headLen = pos
			return firstLine, fields, headLen, false, nil
		}
		if len(fields) >= maxHeaders {
			return nil, nil, 0, false, parseErr(ErrTooLarge)
		}
		name, value, ok := splitHeaderLine(line)
		if !ok {
			return nil, nil, 0, false, parseErr(ErrHeader)
		}
		if len(name) > MaxHeaderNameLen {
			return nil, nil, 0, false, parseErr(ErrTooLarge)
		}
		fields = append(fields, rawField{Name: name, Value: value})
	}
}

// nextLine scans a single CRLF- or lenient-LF-terminated line starting at
// the front of buf. ok is false if no terminator has arrived yet.
func nextLine(buf []byte) (line []byte, consumed int, ok bool) {
	idx := bytes.IndexByte(buf, '\n')
	if idx < 0 {
		return nil, 0, false
	}
	end := idx
	if end > 0 && buf[end-1] == '\r' {
		end--
	}
	return buf[:end], idx + 1, true
}

// headerResult is the interpreted view over a header block shared between
// ParseRequest and ParseResponse steps 2-6.
type headerResult struct {
	Headers        HeaderMap
	IsTE           bool
	FinalTEChunked bool
	HasCL          bool
	CLValue        uint64
	CLConflict     bool
	Connection     []byte // raw Connection header value, nil if absent
	ExpectContinue bool
	WantsUpgrade11 bool // Upgrade header present (version gating done by caller)
}

// interpretHeaders runs steps 1-6. isHTTP10 gates the
// Transfer-Encoding-on-HTTP/1.0 fatal check (step 2); the Upgrade
// version gate (step 6) is applied by the caller, since CONNECT's
// implicit upgrade is role-specific.
func interpretHeaders(fields []rawField, isHTTP10 bool) (headerResult, error) {
	var hr headerResult
	clSeen := false

	for _, f := range fields {
		if !validHeaderName(f.Name) || !validHeaderValue(f.Value) {
			return hr, parseErr(ErrHeader)
		}
		hr.Headers.Append(f.Name, f.Value)

		switch {
		case bytesEqualFold(f.Name, "Transfer-Encoding"):
			if isHTTP10 {
				return hr, parseErr(ErrTransferEncodingUnexpected)
			}
			hr.IsTE = true
			hr.FinalTEChunked = bytesEqualFold(lastToken(f.Value), "chunked")
		case bytesEqualFold(f.Name, "Content-Length"):
			if hr.IsTE {
				continue // Transfer-Encoding present: Content-Length ignored (step 3)
			}
			v, err := parseContentLength(f.Value)
			if err != nil {
				return hr, parseErrf(ErrContentLengthInvalid, "content-length %q: %w", f.Value, err)
			}
			if !clSeen {
				hr.CLValue = v
				clSeen = true
				hr.HasCL = true
			} else if v != hr.CLValue {
				hr.CLConflict = true
			}
		case bytesEqualFold(f.Name, "Connection"):
			hr.Connection = f.Value
		case bytesEqualFold(f.Name, "Expect"):
			hr.ExpectContinue = bytesEqualFold(trimOWS(f.Value), "100-continue")
		case bytesEqualFold(f.Name, "Upgrade"):
			hr.WantsUpgrade11 = true
		}
	}

	if hr.CLConflict {
		return hr, parseErr(ErrContentLengthInvalid)
	}

	return hr, nil
}

func bytesEqualFold(a []byte, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// parseContentLength parses a base-10 unsigned integer, rejecting a
// leading '+' and any whitespace between digits.
func parseContentLength(b []byte) (uint64, error) {
	if len(b) == 0 {
		return 0, errEmptyContentLength
	}
	if b[0] == '+' {
		return 0, errLeadingPlus
	}
	var v uint64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, errNonDigit
		}
		v = v*10 + uint64(c-'0')
	}
	return v, nil
}
