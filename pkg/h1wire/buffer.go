// Package h1wire implements the HTTP/1 wire codec: parsing request and
// response heads from a byte buffer, encoding heads back to bytes, and the
// body-framing decoders/encoders that determine how a message body is
// delimited on the wire.
package h1wire

import (
	"github.com/valyala/bytebufferpool"
)

var bufferPool bytebufferpool.Pool

// Buffer is a growable byte container with split-off semantics. SplitTo
// removes and returns the first n bytes as an immutable slice that shares
// the underlying allocation with no copy; the remaining bytes stay in the
// Buffer for the next parse attempt.
//
// Backing storage is drawn from a bytebufferpool.Pool so that a driver
// running many connections amortises the allocation across pipelined
// requests. The parser's header scratch space is not pooled; it is
// allocated on each parse.
type Buffer struct {
	bb *bytebufferpool.ByteBuffer
}

// NewBuffer returns an empty, pool-backed Buffer.
func NewBuffer() *Buffer {
	return &Buffer{bb: bufferPool.Get()}
}

// Write appends p to the buffer. It never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	return b.bb.Write(p)
}

// Bytes returns the unparsed bytes currently held by the buffer. The slice
// is only valid until the next Write or SplitTo call.
func (b *Buffer) Bytes() []byte {
	return b.bb.B
}

// Len reports the number of unparsed bytes currently held.
func (b *Buffer) Len() int {
	return len(b.bb.B)
}

// SplitTo removes the first n bytes from the buffer and returns them as an
// immutable slice. The returned slice's capacity is pinned to n (a
// three-index slice) so that later appends to the caller's copy, if any,
// cannot alias into the Buffer's own subsequent writes.
func (b *Buffer) SplitTo(n int) []byte {
	if n > len(b.bb.B) {
		n = len(b.bb.B)
	}
	out := b.bb.B[:n:n]
	b.bb.B = b.bb.B[n:]
	return out
}

// Truncate discards everything written past the first n bytes. Used to
// rewind a partially-written encode on a fatal encode-time error.
func (b *Buffer) Truncate(n int) {
	if n < len(b.bb.B) {
		b.bb.B = b.bb.B[:n]
	}
}

// Release returns the backing storage to the pool. The Buffer must not be
// used afterwards.
func (b *Buffer) Release() {
	if b.bb != nil {
		bufferPool.Put(b.bb)
		b.bb = nil
	}
}
