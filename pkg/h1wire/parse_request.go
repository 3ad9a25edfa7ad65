package h1wire

import "bytes"

// ParseRequest implements the Server role's parse.
//
// buf holds the unparsed bytes of the connection so far. prevLen, if
// non-negative, is the buffer length at the previous failed attempt and
// gates the fast completeness pre-check ; pass -1 on the
// first attempt for a given buffer.
//
// On a complete parse, msg.HeadLen bytes must be split off buf by the
// caller before the next call.
func ParseRequest(buf []byte, prevLen int, ctx ParseContext) (msg *ParsedMessage, needMore bool, err error) {
	if len(buf) == 0 {
		return nil, true, nil
	}
	if prevLen >= 0 && !isCompleteFast(buf, prevLen) {
		return nil, true, nil
	}

	firstLine, fields, headLen, needMore, err := scanHead(buf, ctx.maxHeaders())
	if err != nil {
		return nil, false, err
	}
	if needMore {
		return nil, true, nil
	}

	method, uri, version, err := parseRequestLine(firstLine)
	if err != nil {
		return nil, false, err
	}

	isHTTP11 := version == HTTP11
	if len(uri) > MaxURILen {
		return nil, false, parseErr(ErrURITooLong)
	}

	hr, err := interpretHeaders(fields, version == HTTP10)
	if err != nil {
		return nil, false, err
	}
	// Post-loop check, request-only: Transfer-Encoding present but final
	// coding isn't chunked is fatal for a request (4.1.2). A response
	// with the same shape instead falls back to close-delimited framing
	// (4.1.3 step 4); that precedence lives in parse_response.go, not
	// here.
	if hr.IsTE && !hr.FinalTEChunked {
		return nil, false, parseErr(ErrTransferEncodingInvalid)
	}

	flags := Flags{}

	// Connection / keep-alive defaults.2 step 4.
	if isHTTP11 {
		flags.KeepAlive = true
		if hr.Connection != nil && valueHasToken(hr.Connection, "close") {
			flags.KeepAlive = false
		}
	} else {
		flags.KeepAlive = false
		if hr.Connection != nil && valueHasToken(hr.Connection, "keep-alive") {
			flags.KeepAlive = true
		}
	}

	flags.ExpectContinue = hr.ExpectContinue

	// Upgrade only takes effect on HTTP/1.1; CONNECT also implies it,
	// step 6.
	isConnect := bytesEqualFold(method, "CONNECT")
	flags.WantsUpgrade = (isHTTP11 && hr.WantsUpgrade11) || isConnect

	decoder := BodyDecoder{Kind: DecoderZero}
	if hr.IsTE {
		decoder = BodyDecoder{Kind: DecoderChunked}
	} else if hr.HasCL {
		decoder = BodyDecoder{Kind: DecoderLength, Length: hr.CLValue}
	}

	msg = &ParsedMessage{
		Version: version,
		Request: &RequestLine{Method: method, URI: uri},
		Headers: hr.Headers,
		Decoder: decoder,
		Flags:   flags,
		HeadLen: headLen,
	}
	return msg, false, nil
}

// parseRequestLine parses "METHOD SP request-target SP HTTP/x.y": a
// malformed line maps to Method if the method token itself is
// absent/invalid, else Uri.
func parseRequestLine(line []byte) (method, uri []byte, version Version, err error) {
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 {
		return nil, nil, 0, parseErr(ErrMethod)
	}
	method = line[:sp1]
	if !validMethodToken(method) {
		return nil, nil, 0, parseErr(ErrMethod)
	}

	rest := line[sp1+1:]
	sp2 := bytes.IndexByte(rest, ' ')
	if sp2 <= 0 {
		return nil, nil, 0, parseErr(ErrURI)
	}
	uri = rest[:sp2]
	if len(uri) == 0 {
		return nil, nil, 0, parseErr(ErrURI)
	}

	versionToken := rest[sp2+1:]
	version, ok := parseVersionToken(versionToken)
	if !ok {
		return nil, nil, 0, parseErr(ErrVersion)
	}

	return method, uri, version, nil
}

func parseVersionToken(b []byte) (Version, bool) {
	switch string(b) {
	case "HTTP/1.1":
		return HTTP11, true
	case "HTTP/1.0":
		return HTTP10, true
	case "HTTP/0.9":
		return HTTP09, true
	default:
		return 0, false
	}
}
