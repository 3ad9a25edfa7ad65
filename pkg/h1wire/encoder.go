package h1wire

import (
	"strconv"
	"sync"
	"time"
)

// EncoderKind mirrors DecoderKind on the write side. Trailers are only
// carried by EncoderChunked.
type EncoderKind int

const (
	EncoderLength EncoderKind = iota
	EncoderChunked
	EncoderCloseDelimited
)

// Encoder is the symmetric write-side counterpart of BodyDecoder: the
// framing choice made while encoding a message head, plus whether the
// connection must close once the body (and any trailers) are written.
type Encoder struct {
	Kind            EncoderKind
	Length          uint64
	IsLast          bool
	TrailerFields   []string // permitted trailer field names, Kind == EncoderChunked only
	trailersAllowed bool     // gated on request TE: trailers
}

// TrailersAllowed reports whether the encoder is permitted to emit a
// trailer block at the end of the body (chunked framing AND the request
// advertised TE: trailers AND the service declared Trailer: fields).
func (e Encoder) TrailersAllowed() bool {
	return e.Kind == EncoderChunked && e.trailersAllowed && len(e.TrailerFields) > 0
}

// EncodeOptions controls cosmetic/optional encode behavior.
type EncodeOptions struct {
	// TitleCaseHeaders re-capitalises header names in hyphen-delimited
	// PascalCase on write, instead of using the stored casing verbatim.
	TitleCaseHeaders bool
	// DateHeader auto-inserts a Date header on responses unless the
	// service already supplied one. The zero value leaves it off;
	// NewEncodeOptions turns it on.
	DateHeader bool
}

// NewEncodeOptions returns EncodeOptions with DateHeader enabled, the
// default
func NewEncodeOptions() EncodeOptions {
	return EncodeOptions{DateHeader: true}
}

func writeStatusLine(buf *Buffer, version Version, code int, reason []byte) {
	buf.Write([]byte(version.String()))
	buf.Write([]byte(" "))
	buf.Write([]byte(strconv.Itoa(code)))
	buf.Write([]byte(" "))
	if len(reason) > 0 {
		buf.Write(reason)
	} else if canonical := canonicalReason(code); canonical != "" {
		buf.Write([]byte(canonical))
	} else {
		buf.Write([]byte("<none>"))
	}
	buf.Write([]byte("\r\n"))
}

func writeRequestLine(buf *Buffer, method, uri []byte, version Version) {
	buf.Write(method)
	buf.Write([]byte(" "))
	buf.Write(uri)
	buf.Write([]byte(" "))
	buf.Write([]byte(version.String()))
	buf.Write([]byte("\r\n"))
}

func writeHeaderField(buf *Buffer, name, value []byte, titleCase bool) {
	if titleCase {
		buf.Write(titleCaseName(name))
	} else {
		buf.Write(name)
	}
	buf.Write([]byte(": "))
	buf.Write(value)
	buf.Write([]byte("\r\n"))
}

func titleCaseName(name []byte) []byte {
	out := make([]byte, len(name))
	upperNext := true
	for i, c := range name {
		switch {
		case c == '-':
			out[i] = '-'
			upperNext = true
		case upperNext:
			if 'a' <= c && c <= 'z' {
				c -= 'a' - 'A'
			}
			out[i] = c
			upperNext = false
		default:
			if 'A' <= c && c <= 'Z' {
				c += 'a' - 'A'
			}
			out[i] = c
		}
	}
	return out
}

// dateCache implements's "single per-process mutable byte slot":
// a cached IMF-fixdate string re-rendered only when the wall-clock second
// advances.
type dateCache struct {
	mu      sync.Mutex
	second  int64
	encoded []byte
}

var globalDateCache dateCache

// currentDate returns the RFC 7231 IMF-fixdate for "now", regenerating the
// cached string at most once per second.
func currentDate() []byte {
	return globalDateCache.get(time.Now())
}

func (d *dateCache) get(now time.Time) []byte {
	sec := now.Unix()
	d.mu.Lock()
	defer d.mu.Unlock()
	if sec != d.second || d.encoded == nil {
		d.second = sec
		d.encoded = []byte(now.UTC().Format(http1Date))
	}
	out := make([]byte, len(d.encoded))
	copy(out, d.encoded)
	return out
}

const http1Date = "Mon, 02 Jan 2006 15:04:05 GMT"

// writeChunk writes one chunk to buf: "<hex-size>\r\n<data>\r\n".
// A zero-length call therefore writes "0\r\n\r\n", a terminator with no
// trailers; writeLastChunk writes the terminator together with trailers.
func writeChunk(buf *Buffer, data []byte) {
	buf.Write([]byte(strconv.FormatInt(int64(len(data)), 16)))
	buf.Write([]byte("\r\n"))
	buf.Write(data)
	buf.Write([]byte("\r\n"))
}

// writeLastChunk writes the terminating zero-size chunk, any permitted
// trailer fields present in trailers, and the final CRLF.
func writeLastChunk(buf *Buffer, enc Encoder, trailers *HeaderMap) {
	buf.Write([]byte("0\r\n"))
	if enc.TrailersAllowed() && trailers != nil {
		for _, name := range enc.TrailerFields {
			if v, ok := trailers.Get(name); ok {
				writeHeaderField(buf, []byte(name), v, false)
			}
		}
	}
	buf.Write([]byte("\r\n"))
}
