package h1wire

import (
	"bufio"
	"fmt"
	"io"
)

// DecoderKind distinguishes the four body-framing strategies a parse can
// select
type DecoderKind int

const (
	// DecoderZero means no body follows (HEAD responses, 204/304, 101,
	// 2xx-to-CONNECT, informational).
	DecoderZero DecoderKind = iota
	// DecoderLength means exactly N bytes of body follow.
	DecoderLength
	// DecoderChunked means standard RFC 7230 chunked framing, optionally
	// followed by a trailer header block.
	DecoderChunked
	// DecoderCloseDelimited means the body runs until the connection
	// closes (no length information available).
	DecoderCloseDelimited
)

func (k DecoderKind) String() string {
	switch k {
	case DecoderZero:
		return "zero"
	case DecoderLength:
		return "length"
	case DecoderChunked:
		return "chunked"
	case DecoderCloseDelimited:
		return "close-delimited"
	default:
		return "unknown"
	}
}

// BodyDecoder is the write-once choice the parser makes about how to read
// the body of the message it just parsed.
type BodyDecoder struct {
	Kind   DecoderKind
	Length uint64 // valid when Kind == DecoderLength
}

// ZeroBodyReader returns a reader that reports an immediate EOF. Used for
// DecoderZero-framed messages (no body on the wire).
func ZeroBodyReader() io.Reader {
	return io.LimitReader(nil, 0)
}

// NewBodyReader wraps r (the connection's raw byte stream, already
// positioned after the head) according to the chosen decoder, exposing
// trailers (for DecoderChunked) once the returned reader hits EOF.
func NewBodyReader(r *bufio.Reader, d BodyDecoder) BodyReader {
	switch d.Kind {
	case DecoderZero:
		return &lengthBodyReader{r: r, remaining: 0}
	case DecoderLength:
		return &lengthBodyReader{r: r, remaining: d.Length}
	case DecoderChunked:
		return &chunkedBodyReader{r: r, state: chunkStateSize}
	case DecoderCloseDelimited:
		return &closeDelimitedBodyReader{r: r}
	default:
		return &lengthBodyReader{r: r, remaining: 0}
	}
}

// BodyReader reads body bytes and, for chunked framing, exposes the
// trailer header block once the body is fully consumed.
type BodyReader interface {
	io.Reader
	// Trailers returns the trailer HeaderMap. It is only meaningful (and
	// only populated) after Read has returned io.EOF for a chunked body.
	Trailers() *HeaderMap
}

type lengthBodyReader struct {
	r         *bufio.Reader
	remaining uint64
}

func (b *lengthBodyReader) Read(p []byte) (int, error) {
	if b.remaining == 0 {
		return 0, io.EOF
	}
	if uint64(len(p)) > b.remaining {
		p = p[:b.remaining]
	}
	n, err := b.r.Read(p)
	b.remaining -= uint64(n)
	if err == nil && b.remaining == 0 {
		err = io.EOF
	}
	if err == io.EOF && b.remaining > 0 {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

func (b *lengthBodyReader) Trailers() *HeaderMap { return nil }

type closeDelimitedBodyReader struct {
	r *bufio.Reader
}

func (b *closeDelimitedBodyReader) Read(p []byte) (int, error) { return b.r.Read(p) }
func (b *closeDelimitedBodyReader) Trailers() *HeaderMap        { return nil }

type chunkState int

const (
	chunkStateSize chunkState = iota
	chunkStateData
	chunkStateDataCRLF
	chunkStateTrailer
	chunkStateDone
)

// chunkedBodyReader implements RFC 9112 S7.1 chunked transfer decoding:
// <hex-size>\r\n<data>\r\n ... 0\r\n[trailers]\r\n.
type chunkedBodyReader struct {
	r        *bufio.Reader
	state    chunkState
	size     uint64
	trailers HeaderMap
}

func (c *chunkedBodyReader) Read(p []byte) (int, error) {
	for {
		switch c.state {
		case chunkStateSize:
			line, err := readCRLFLine(c.r)
			if err != nil {
				return 0, err
			}
			// Strip chunk extensions (";ext=value").
			if idx := indexByte(line, ';'); idx >= 0 {
				line = line[:idx]
			}
			size, err := parseHexUint(line)
			if err != nil {
				return 0, fmt.Errorf("h1wire: invalid chunk size: %w", err)
			}
			c.size = size
			if size == 0 {
				c.state = chunkStateTrailer
			} else {
				c.state = chunkStateData
			}
		case chunkStateData:
			if c.size == 0 {
				c.state = chunkStateDataCRLF
				continue
			}
			if uint64(len(p)) > c.size {
				p = p[:c.size]
			}
			n, err := c.r.Read(p)
			c.size -= uint64(n)
			if err != nil {
				return n, err
			}
			if c.size == 0 {
				c.state = chunkStateDataCRLF
			}
			return n, nil
		case chunkStateDataCRLF:
			if _, err := readCRLFLine(c.r); err != nil {
				return 0, err
			}
			c.state = chunkStateSize
		case chunkStateTrailer:
			line, err := readCRLFLine(c.r)
			if err != nil {
				return 0, err
			}
			if len(line) == 0 {
				c.state = chunkStateDone
				return 0, io.EOF
			}
			name, value, ok := splitHeaderLine(line)
			if !ok {
				return 0, parseErr(ErrHeader)
			}
			c.trailers.Append(name, value)
		case chunkStateDone:
			return 0, io.EOF
		}
	}
}

func (c *chunkedBodyReader) Trailers() *HeaderMap { return &c.trailers }

func readCRLFLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadSlice('\n')
	if err != nil {
		return nil, err
	}
	line = line[:len(line)-1]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line, nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func parseHexUint(b []byte) (uint64, error) {
	if len(b) == 0 {
		return 0, fmt.Errorf("empty chunk size")
	}
	var v uint64
	for _, c := range b {
		var d uint64
		switch {
		case c >= '0' && c <= '9':
			d = uint64(c - '0')
		case c >= 'a' && c <= 'f':
			d = uint64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			d = uint64(c-'A') + 10
		default:
			return 0, fmt.Errorf("invalid hex digit %q", c)
		}
		v = v<<4 | d
	}
	return v, nil
}

func splitHeaderLine(line []byte) (name, value []byte, ok bool) {
	idx := indexByte(line, ':')
	if idx < 0 {
		return nil, nil, false
	}
	return line[:idx], trimOWS(line[idx+1:]), true
}
