package h1wire

import "strconv"

// BodyLength is the service's hint about how much body it intends to
// write: either a known byte count or "I don't know yet".
type BodyLength struct {
	Known bool
	Len   uint64
}

// KnownLength returns a BodyLength advertising exactly n bytes.
func KnownLength(n uint64) BodyLength { return BodyLength{Known: true, Len: n} }

// UnknownLength is a BodyLength the service cannot predict in advance.
var UnknownLength = BodyLength{}

// ResponseHead is what a service hands the codec to encode a response.
type ResponseHead struct {
	Version Version
	Status  int
	Reason  []byte // custom reason phrase; empty uses the canonical one

	// Headers are the service-supplied headers, in the order the service
	// wants them emitted. Content-Length/Transfer-Encoding/Connection/
	// Trailer/Date are inspected and may be synthesised if absent.
	Headers HeaderMap

	Body BodyLength

	// RequestMethod/RequestWantsTrailers describe the request this
	// response answers, needed for the HEAD/CONNECT body suppression and
	// the TE: trailers trailer gate.
	RequestMethod        []byte
	RequestIsConnect     bool
	RequestWantsTrailers bool
}

// EncodeResponseHead implements the Server role's encode.
// On success it returns the Encoder the caller must use to write the
// body (and, for chunked framing, trailers). On a fatal encode error the
// bytes already written to buf during this call are rewound.
func EncodeResponseHead(buf *Buffer, head ResponseHead, opts EncodeOptions) (Encoder, error) {
	start := buf.Len()
	enc, err := encodeResponseHead(buf, head, opts)
	if err != nil {
		buf.Truncate(start)
		return Encoder{}, err
	}
	return enc, nil
}

func encodeResponseHead(buf *Buffer, head ResponseHead, opts EncodeOptions) (Encoder, error) {
	version := head.Version
	if version != HTTP10 && version != HTTP11 {
		// HTTP/2+ (or HTTP/0.9 responses, which are never encoded) are
		// coerced down to HTTP/1.1 silently: no log line is emitted and
		// no error is returned.
		version = HTTP11
	}

	isHead := bytesEqualFold(head.RequestMethod, "HEAD")
	code := head.Status

	if code >= 100 && code < 200 && code != 101 {
		// The codec has no side channel for emitting an informational
		// response from the service's single return value: the call
		// fails with ErrUserUnsupportedStatusCode and writes nothing to
		// buf; no 500 head is written in its place.
		return Encoder{}, &EncodeError{Kind: ErrUserUnsupportedStatusCode}
	}

	isConnectSuccess := head.RequestIsConnect && code >= 200 && code < 300

	var enc Encoder

	switch {
	case code == 101 || isConnectSuccess:
		writeStatusLine(buf, version, code, head.Reason)
		writeUserHeaders(buf, head.Headers, opts, nil)
		buf.Write([]byte("\r\n"))
		return Encoder{Kind: EncoderCloseDelimited, IsLast: true}, nil
	}

	clHeader, hasCL := head.Headers.Get("Content-Length")
	_, hasTE := head.Headers.Get("Transfer-Encoding")
	forbidsBody := isHead || code == 204 || code == 304
	suppressSynthesis := false

	switch {
	case hasCL:
		declared, perr := parseContentLength(clHeader)
		if perr != nil {
			return Encoder{}, encodeErrf(ErrUserHeader, "invalid content-length %q: %w", clHeader, perr)
		}
		if head.Body.Known && head.Body.Len != declared && !forbidsBody {
			// A declared Content-Length that differs from the known body
			// length is not reported; the declared value frames the body.
		}
		enc = Encoder{Kind: EncoderLength, Length: declared}
	case hasTE:
		enc = Encoder{Kind: EncoderChunked}
	case head.Body.Known:
		if forbidsBody {
			enc = Encoder{Kind: EncoderLength, Length: 0}
			suppressSynthesis = true
		} else {
			enc = Encoder{Kind: EncoderLength, Length: head.Body.Len}
		}
	default:
		if forbidsBody {
			enc = Encoder{Kind: EncoderLength, Length: 0}
			suppressSynthesis = true
		} else if version == HTTP11 {
			enc = Encoder{Kind: EncoderChunked}
		} else {
			enc = Encoder{Kind: EncoderCloseDelimited, IsLast: true}
		}
	}

	if conn, ok := head.Headers.Get("Connection"); ok && valueHasToken(conn, "close") {
		enc.IsLast = true
	}

	if enc.Kind == EncoderChunked {
		if trailer, ok := head.Headers.Get("Trailer"); ok {
			enc.TrailerFields = splitTrailerNames(trailer)
		}
		enc.trailersAllowed = head.RequestWantsTrailers
	}

	var extra []HeaderField
	if !suppressSynthesis {
		extra = synthesizedHeaders(enc, hasCL, hasTE)
	}

	writeStatusLine(buf, version, code, head.Reason)
	writeUserHeaders(buf, head.Headers, opts, extra)

	if opts.DateHeader {
		if _, ok := head.Headers.Get("Date"); !ok {
			writeHeaderField(buf, []byte("Date"), currentDate(), opts.TitleCaseHeaders)
		}
	}

	buf.Write([]byte("\r\n"))
	return enc, nil
}

// synthesizedHeaders returns the Content-Length / Transfer-Encoding
// header the codec itself decided to add, if the service didn't already
// supply one.
func synthesizedHeaders(enc Encoder, hasCL, hasTE bool) []HeaderField {
	if hasCL || hasTE {
		return nil
	}
	switch enc.Kind {
	case EncoderLength:
		return []HeaderField{{Name: []byte("Content-Length"), Value: []byte(strconv.FormatUint(enc.Length, 10))}}
	case EncoderChunked:
		return []HeaderField{{Name: []byte("Transfer-Encoding"), Value: []byte("chunked")}}
	default:
		return nil
	}
}

func writeUserHeaders(buf *Buffer, headers HeaderMap, opts EncodeOptions, extra []HeaderField) {
	headers.Each(func(name, value []byte) {
		writeHeaderField(buf, name, value, opts.TitleCaseHeaders)
	})
	for _, f := range extra {
		writeHeaderField(buf, f.Name, f.Value, opts.TitleCaseHeaders)
	}
}

func splitTrailerNames(value []byte) []string {
	var names []string
	start := 0
	for i := 0; i <= len(value); i++ {
		if i == len(value) || value[i] == ',' {
			tok := trimOWS(value[start:i])
			if len(tok) > 0 {
				names = append(names, string(tok))
			}
			start = i + 1
		}
	}
	return names
}
