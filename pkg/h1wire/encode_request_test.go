package h1wire

import (
	"strings"
	"testing"
)

func TestEncodeRequestHeadGETDefaultsToLengthZero(t *testing.T) {
	buf := NewBuffer()
	defer buf.Release()

	enc, err := EncodeRequestHead(buf, RequestHead{
		Version: HTTP11,
		Method:  []byte("GET"),
		URI:     []byte("/"),
		Body:    UnknownLength,
	}, EncodeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enc.Kind != EncoderLength || enc.Length != 0 {
		t.Fatalf("encoder = %+v, want Length(0)", enc)
	}
	out := string(buf.Bytes())
	if !strings.HasPrefix(out, "GET / HTTP/1.1\r\n") {
		t.Fatalf("request line wrong: %q", out)
	}
	if !strings.Contains(out, "Content-Length: 0\r\n") {
		t.Fatalf("missing synthesised Content-Length: %q", out)
	}
}

func TestEncodeRequestHeadPOSTDefaultsToChunked(t *testing.T) {
	buf := NewBuffer()
	defer buf.Release()

	enc, err := EncodeRequestHead(buf, RequestHead{
		Version: HTTP11,
		Method:  []byte("POST"),
		URI:     []byte("/submit"),
		Body:    UnknownLength,
	}, EncodeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enc.Kind != EncoderChunked {
		t.Fatalf("encoder = %+v, want chunked", enc)
	}
	if !strings.Contains(string(buf.Bytes()), "Transfer-Encoding: chunked\r\n") {
		t.Fatalf("missing synthesised Transfer-Encoding: %q", buf.Bytes())
	}
}

func TestEncodeRequestHeadConnectDefaultsToLengthZero(t *testing.T) {
	buf := NewBuffer()
	defer buf.Release()

	enc, err := EncodeRequestHead(buf, RequestHead{
		Version: HTTP11,
		Method:  []byte("CONNECT"),
		URI:     []byte("example.com:443"),
		Body:    UnknownLength,
	}, EncodeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enc.Kind != EncoderLength || enc.Length != 0 {
		t.Fatalf("encoder = %+v, want Length(0)", enc)
	}
}

func TestEncodeRequestHeadKnownLength(t *testing.T) {
	buf := NewBuffer()
	defer buf.Release()

	enc, err := EncodeRequestHead(buf, RequestHead{
		Version: HTTP11,
		Method:  []byte("PUT"),
		URI:     []byte("/file"),
		Body:    KnownLength(4),
	}, EncodeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enc.Kind != EncoderLength || enc.Length != 4 {
		t.Fatalf("encoder = %+v, want Length(4)", enc)
	}
}

// A user-supplied Transfer-Encoding that doesn't end in "chunked" is
// repaired by appending ", chunked"
func TestEncodeRequestHeadRepairsTransferEncoding(t *testing.T) {
	buf := NewBuffer()
	defer buf.Release()

	var headers HeaderMap
	headers.Append([]byte("Transfer-Encoding"), []byte("gzip"))

	enc, err := EncodeRequestHead(buf, RequestHead{
		Version: HTTP11,
		Method:  []byte("POST"),
		URI:     []byte("/"),
		Headers: headers,
		Body:    UnknownLength,
	}, EncodeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enc.Kind != EncoderChunked {
		t.Fatalf("encoder = %+v, want chunked", enc)
	}
	out := string(buf.Bytes())
	if !strings.Contains(out, "Transfer-Encoding: gzip, chunked\r\n") {
		t.Fatalf("Transfer-Encoding not repaired: %q", out)
	}
	if strings.Count(out, "Transfer-Encoding:") != 1 {
		t.Fatalf("Transfer-Encoding must appear exactly once: %q", out)
	}
}

func TestEncodeRequestHeadAlreadyChunkedIsUntouched(t *testing.T) {
	buf := NewBuffer()
	defer buf.Release()

	var headers HeaderMap
	headers.Append([]byte("Transfer-Encoding"), []byte("gzip, chunked"))

	_, err := EncodeRequestHead(buf, RequestHead{
		Version: HTTP11,
		Method:  []byte("POST"),
		URI:     []byte("/"),
		Headers: headers,
		Body:    UnknownLength,
	}, EncodeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := string(buf.Bytes())
	if !strings.Contains(out, "Transfer-Encoding: gzip, chunked\r\n") {
		t.Fatalf("Transfer-Encoding altered: %q", out)
	}
}

func TestEncodeRequestHeadInvalidMethodIsFatal(t *testing.T) {
	buf := NewBuffer()
	defer buf.Release()

	_, err := EncodeRequestHead(buf, RequestHead{
		Version: HTTP11,
		Method:  []byte("G E T"),
		URI:     []byte("/"),
	}, EncodeOptions{})
	if err == nil {
		t.Fatalf("expected an error for an invalid method token")
	}
	if buf.Len() != 0 {
		t.Fatalf("buffer must be rewound on a fatal encode error, got %d bytes", buf.Len())
	}
}
