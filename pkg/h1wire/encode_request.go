package h1wire

// RequestHead is what a client hands the codec to encode a request.
type RequestHead struct {
	Version Version
	Method  []byte
	URI     []byte

	// Headers are the caller-supplied headers, in the order the caller
	// wants them emitted. Content-Length/Transfer-Encoding are inspected
	// and may be synthesised or repaired if absent/malformed.
	Headers HeaderMap

	Body BodyLength
}

// EncodeRequestHead implements the Client role's encode, symmetric with
// EncodeResponseHead. On success it returns the Encoder
// the caller must use to write the body. On a fatal encode error the
// bytes already written to buf during this call are rewound.
func EncodeRequestHead(buf *Buffer, head RequestHead, opts EncodeOptions) (Encoder, error) {
	start := buf.Len()
	enc, err := encodeRequestHead(buf, head, opts)
	if err != nil {
		buf.Truncate(start)
		return Encoder{}, err
	}
	return enc, nil
}

func encodeRequestHead(buf *Buffer, head RequestHead, opts EncodeOptions) (Encoder, error) {
	version := head.Version
	if version != HTTP10 && version != HTTP11 {
		// HTTP/2+ requests are coerced down to HTTP/1.1 for the wire, the
		// same coercion EncodeResponseHead applies on the status side.
		version = HTTP11
	}

	if !validMethodToken(head.Method) {
		return Encoder{}, &EncodeError{Kind: ErrUserHeader}
	}

	method := head.Method
	isBodyless := bytesEqualFold(method, "GET") || bytesEqualFold(method, "HEAD") || bytesEqualFold(method, "CONNECT")

	clHeader, hasCL := head.Headers.Get("Content-Length")
	teHeader, hasTE := head.Headers.Get("Transfer-Encoding")

	var enc Encoder
	var repairedTE []byte

	switch {
	case hasCL:
		declared, perr := parseContentLength(clHeader)
		if perr != nil {
			return Encoder{}, encodeErrf(ErrUserHeader, "invalid content-length %q: %w", clHeader, perr)
		}
		enc = Encoder{Kind: EncoderLength, Length: declared}
	case hasTE:
		if !bytesEqualFold(lastToken(teHeader), "chunked") {
			// A Transfer-Encoding that doesn't end in "chunked" is
			// repaired by appending ", chunked" .
			repaired := make([]byte, 0, len(teHeader)+len(", chunked"))
			repaired = append(repaired, teHeader...)
			repaired = append(repaired, ", chunked"...)
			repairedTE = repaired
		}
		enc = Encoder{Kind: EncoderChunked}
	case head.Body.Known:
		enc = Encoder{Kind: EncoderLength, Length: head.Body.Len}
	default:
		if isBodyless {
			enc = Encoder{Kind: EncoderLength, Length: 0}
		} else {
			enc = Encoder{Kind: EncoderChunked}
		}
	}

	writeRequestLine(buf, method, head.URI, version)

	var extra []HeaderField
	if repairedTE != nil {
		extra = append(extra, HeaderField{Name: []byte("Transfer-Encoding"), Value: repairedTE})
	} else {
		extra = synthesizedHeaders(enc, hasCL, hasTE)
	}
	writeUserHeadersExcept(buf, head.Headers, opts, extra, repairedTE != nil)

	buf.Write([]byte("\r\n"))
	return enc, nil
}

// writeUserHeadersExcept writes the caller's headers, optionally skipping
// the stored Transfer-Encoding field when it is about to be replaced by a
// repaired value supplied via extra.
func writeUserHeadersExcept(buf *Buffer, headers HeaderMap, opts EncodeOptions, extra []HeaderField, skipTE bool) {
	headers.Each(func(name, value []byte) {
		if skipTE && bytesEqualFold(name, "Transfer-Encoding") {
			return
		}
		writeHeaderField(buf, name, value, opts.TitleCaseHeaders)
	})
	for _, f := range extra {
		writeHeaderField(buf, f.Name, f.Value, opts.TitleCaseHeaders)
	}
}
