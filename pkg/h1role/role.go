// Package h1role implements the Server/Client transaction-role policies
// layered on top of pkg/h1wire: how parse errors become automatic
// responses, which method/status combinations may carry a body, and how
// the outgoing side negotiates body-length headers.
package h1role

import (
	"github.com/WhileEndless/corehttp/pkg/h1wire"
)

// Server parses requests and derives the response head (if any) an
// automatic error reply should carry.
type Server struct {
	Ctx h1wire.ParseContext
}

// Parse wraps h1wire.ParseRequest with the role's configured context.
func (s Server) Parse(buf []byte, prevLen int) (*h1wire.ParsedMessage, bool, error) {
	return h1wire.ParseRequest(buf, prevLen, s.Ctx)
}

// OnError maps a parse error to an automatic response head, or nil if the
// connection must simply be closed without a reply.
func (s Server) OnError(err error) *h1wire.ResponseHead {
	perr, ok := err.(*h1wire.ParseError)
	if !ok {
		return nil
	}
	var status int
	switch perr.Kind {
	case h1wire.ErrMethod, h1wire.ErrHeader, h1wire.ErrURI, h1wire.ErrVersion:
		status = 400
	case h1wire.ErrTooLarge:
		status = 431
	case h1wire.ErrURITooLong:
		status = 414
	default:
		return nil
	}
	return &h1wire.ResponseHead{
		Version: h1wire.HTTP11,
		Status:  status,
		Headers: headerWithConnectionClose(),
	}
}

func headerWithConnectionClose() h1wire.HeaderMap {
	var h h1wire.HeaderMap
	h.Append([]byte("Connection"), []byte("close"))
	return h
}

// CanHaveBody reports whether a response to method with the given status
// may carry a body
func CanHaveBody(method []byte, status int) bool {
	if bytesEqualFoldASCII(method, "HEAD") {
		return false
	}
	if bytesEqualFoldASCII(method, "CONNECT") && status >= 200 && status < 300 {
		return false
	}
	if status >= 100 && status < 200 {
		return false
	}
	if status == 204 || status == 304 {
		return false
	}
	return true
}

// CanChunked and CanHaveContentLength follow the same rule as
// CanHaveBody.
func (s Server) CanChunked(method []byte, status int) bool           { return CanHaveBody(method, status) }
func (s Server) CanHaveContentLength(method []byte, status int) bool { return CanHaveBody(method, status) }

// Client parses responses against the request they answer, and prepares
// outgoing request heads.
type Client struct {
	Ctx h1wire.ParseContext
}

// Parse wraps h1wire.ParseResponse with the role's configured context.
func (c Client) Parse(buf []byte, prevLen int, requestMethod []byte) (*h1wire.ParsedMessage, bool, error) {
	return h1wire.ParseResponse(buf, prevLen, requestMethod, c.Ctx)
}

// OnError always returns nil: a client has no peer to answer with an
// automatic response when a server's reply fails to parse.
func (c Client) OnError(err error) *h1wire.ResponseHead { return nil }

// SetLength prepares the body-length headers for an outgoing request
// (Transfer-Encoding repair, Content-Length synthesis), delegating to
// h1wire.EncodeRequestHead.
func (c Client) SetLength(buf *h1wire.Buffer, head h1wire.RequestHead, opts h1wire.EncodeOptions) (h1wire.Encoder, error) {
	return h1wire.EncodeRequestHead(buf, head, opts)
}

func bytesEqualFoldASCII(b []byte, s string) bool {
	if len(b) != len(s) {
		return false
	}
	for i := range b {
		c1, c2 := b[i], s[i]
		if 'A' <= c1 && c1 <= 'Z' {
			c1 += 'a' - 'A'
		}
		if 'A' <= c2 && c2 <= 'Z' {
			c2 += 'a' - 'A'
		}
		if c1 != c2 {
			return false
		}
	}
	return true
}
