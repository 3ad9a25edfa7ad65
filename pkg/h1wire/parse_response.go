package h1wire

import "bytes"

// ParseResponse implements the Client role's parse. It
// loops internally so that 1xx informational responses (other than 101)
// are consumed, reported via ctx.OnInformational, and discarded, before
// re-entering on the remaining buffer.
//
// requestMethod is the method of the request this response answers (used
// for the HEAD/CONNECT decoder precedence rules); pass nil/empty if
// unknown.
func ParseResponse(buf []byte, prevLen int, requestMethod []byte, ctx ParseContext) (msg *ParsedMessage, needMore bool, err error) {
	consumed := 0
	for {
		m, more, err := parseOneResponse(buf[consumed:], prevLen, requestMethod, ctx)
		if err != nil {
			return nil, false, err
		}
		if more || m == nil {
			return nil, true, nil
		}
		if m.informational {
			if ctx.OnInformational != nil {
				ctx.OnInformational(m.Status.Code, &m.Headers)
			}
			consumed += m.HeadLen
			prevLen = -1
			continue
		}
		m.HeadLen += consumed
		return m.ParsedMessage, false, nil
	}
}

// parsedResponseWrapper extends ParsedMessage with the internal informational
// flag the ParseResponse loop consumes.
type parsedResponseWrapper struct {
	*ParsedMessage
	informational bool
}

func parseOneResponse(buf []byte, prevLen int, requestMethod []byte, ctx ParseContext) (msg *parsedResponseWrapper, needMore bool, err error) {
	if len(buf) == 0 {
		return nil, true, nil
	}
	if prevLen >= 0 && !isCompleteFast(buf, prevLen) {
		return nil, true, nil
	}

	if ctx.AllowH09Responses && looksLikeH09(buf) {
		return &parsedResponseWrapper{ParsedMessage: &ParsedMessage{
			Version: HTTP09,
			Status:  &StatusLine{Code: 200},
			Decoder: BodyDecoder{Kind: DecoderCloseDelimited},
			HeadLen: 0,
		}}, false, nil
	}

	var firstLine []byte
	var fields []rawField
	var headLen int

	if ctx.ObsoleteMultilineHeadersAllowed {
		firstLine, fields, headLen, needMore, err = scanHeadObsFold(buf, ctx.maxHeaders())
	} else {
		firstLine, fields, headLen, needMore, err = scanHead(buf, ctx.maxHeaders())
	}
	if err != nil {
		return nil, false, err
	}
	if needMore {
		return nil, true, nil
	}

	code, reason, version, err := parseStatusLine(firstLine)
	if err != nil {
		return nil, false, err
	}

	hr, err := interpretHeaders(fields, version == HTTP10)
	if err != nil {
		return nil, false, err
	}

	flags := Flags{}
	if version == HTTP11 {
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

	isHead := bytesEqualFold(requestMethod, "HEAD")
	isConnect := bytesEqualFold(requestMethod, "CONNECT")

	var decoder BodyDecoder
	informational := false

	switch {
	case isHead:
		decoder = BodyDecoder{Kind: DecoderZero}
	case code == 101:
		decoder = BodyDecoder{Kind: DecoderZero}
		flags.WantsUpgrade = true
	case code == 100 || (code >= 102 && code <= 199):
		informational = true
	case code == 204 || code == 304:
		decoder = BodyDecoder{Kind: DecoderZero}
	case isConnect && code >= 200 && code < 300:
		decoder = BodyDecoder{Kind: DecoderZero}
		flags.WantsUpgrade = true
		flags.KeepAlive = false
	case hr.IsTE:
		if hr.FinalTEChunked {
			decoder = BodyDecoder{Kind: DecoderChunked}
		} else {
			decoder = BodyDecoder{Kind: DecoderCloseDelimited}
		}
	case hr.HasCL:
		decoder = BodyDecoder{Kind: DecoderLength, Length: hr.CLValue}
	default:
		decoder = BodyDecoder{Kind: DecoderCloseDelimited}
	}

	msg = &parsedResponseWrapper{
		ParsedMessage: &ParsedMessage{
			Version: version,
			Status:  &StatusLine{Code: code, Reason: reason},
			Headers: hr.Headers,
			Decoder: decoder,
			Flags:   flags,
			HeadLen: headLen,
		},
		informational: informational,
	}
	return msg, false, nil
}

// looksLikeH09 is a crude heuristic: a response buffer that doesn't begin
// with "HTTP/" is treated as a headerless HTTP/0.9 reply whose entire
// buffer is the body.
func looksLikeH09(buf []byte) bool {
	return !bytes.HasPrefix(buf, []byte("HTTP/"))
}

func parseStatusLine(line []byte) (code int, reason []byte, version Version, err error) {
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 {
		return 0, nil, 0, parseErr(ErrVersion)
	}
	version, ok := parseVersionToken(line[:sp1])
	if !ok {
		return 0, nil, 0, parseErr(ErrVersion)
	}

	rest := line[sp1+1:]
	sp2 := bytes.IndexByte(rest, ' ')
	var codeBytes []byte
	if sp2 < 0 {
		codeBytes = rest
		reason = nil
	} else {
		codeBytes = rest[:sp2]
		reason = rest[sp2+1:]
	}
	if len(codeBytes) != 3 {
		return 0, nil, 0, parseErr(ErrHeader)
	}
	code = 0
	for _, c := range codeBytes {
		if c < '0' || c > '9' {
			return 0, nil, 0, parseErr(ErrHeader)
		}
		code = code*10 + int(c-'0')
	}
	return code, reason, version, nil
}

// scanHeadObsFold is scanHead with RFC 9112 Appendix A obs-fold unfolding:
// a continuation line (leading SP/HTAB) is joined to the previous field's
// value with a single space
func scanHeadObsFold(buf []byte, maxHeaders int) (firstLine []byte, fields []rawField, headLen int, needMore bool, err error) {
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
		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
			if len(fields) == 0 {
				return nil, nil, 0, false, parseErr(ErrHeader)
			}
			last := &fields[len(fields)-1]
			joined := make([]byte, 0, len(last.Value)+1+len(line))
			joined = append(joined, last.Value...)
			joined = append(joined, ' ')
			joined = append(joined, trimOWS(line)...)
			last.Value = joined
			continue
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
