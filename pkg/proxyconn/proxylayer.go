package proxyconn

import (
	"bufio"
	"context"
	"net"
	"strconv"

	"github.com/WhileEndless/corehttp/pkg/errors"
	"github.com/WhileEndless/corehttp/pkg/h1role"
	"github.com/WhileEndless/corehttp/pkg/h1wire"
	netproxy "golang.org/x/net/proxy"
)

// negotiateProxyLayer runs the proxy-protocol-specific handshake over an
// already-dialed (and, for an HTTPS proxy, already-TLS-wrapped) conn to
// the proxy
//
// For an HTTP/HTTPS proxy asked to reach a non-TLS origin, no handshake is
// required at the connection level: the caller instead sends each request
// in absolute-form with Proxy-Authorization injected (see
// rawhttp.Client.Do), so this is a no-op in that case.
func negotiateProxyLayer(ctx context.Context, conn net.Conn, cfg Config) (net.Conn, error) {
	p := cfg.Proxy
	switch p.Kind {
	case ProxyHTTP, ProxyHTTPS:
		if !cfg.Secure {
			return conn, nil
		}
		return connectHTTPProxy(ctx, conn, p, cfg.Host, cfg.Port)
	case ProxySOCKS4:
		return nil, errors.NewValidationError("proxyconn: SOCKS4 is not supported by the proxy layer (use SOCKS5)")
	case ProxySOCKS5:
		return connectSOCKS5Proxy(ctx, conn, p, cfg.Host, cfg.Port)
	default:
		return nil, errors.NewValidationError("proxyconn: unknown proxy kind " + string(p.Kind))
	}
}

// connectHTTPProxy performs the HTTP CONNECT handshake :
// encode a CONNECT request via h1wire/h1role, send it, parse the
// response's status line via the Client role, and treat any 2xx as
// success (the connection becomes a raw byte stream from that point on).
func connectHTTPProxy(ctx context.Context, conn net.Conn, p *Proxy, targetHost string, targetPort int) (net.Conn, error) {
	targetAddr := net.JoinHostPort(targetHost, strconv.Itoa(targetPort))

	var headers h1wire.HeaderMap
	headers.Append([]byte("Host"), []byte(targetAddr))
	headers.Append([]byte("Connection"), []byte("keep-alive"))
	for k, v := range p.Headers {
		headers.Append([]byte(k), []byte(v))
	}
	if p.Credentials != nil {
		headers.Append([]byte("Proxy-Authorization"), []byte(p.Credentials.HeaderValue()))
	}

	buf := h1wire.NewBuffer()
	defer buf.Release()

	client := h1role.Client{}
	_, err := client.SetLength(buf, h1wire.RequestHead{
		Version: h1wire.HTTP11,
		Method:  []byte("CONNECT"),
		URI:     []byte(targetAddr),
		Headers: headers,
		Body:    h1wire.KnownLength(0),
	}, h1wire.EncodeOptions{})
	if err != nil {
		return nil, errors.NewProxyError(string(p.Kind), p.addr(), "connect", err)
	}

	if _, err := conn.Write(buf.Bytes()); err != nil {
		return nil, errors.NewProxyError(string(p.Kind), p.addr(), "connect", err)
	}

	reader := bufio.NewReader(conn)
	msg, leftover, err := readCONNECTResponse(reader)
	if err != nil {
		return nil, errors.NewProxyError(string(p.Kind), p.addr(), "connect", err)
	}
	if msg.Status.Code < 200 || msg.Status.Code >= 300 {
		return nil, errors.NewProxyError(string(p.Kind), p.addr(), "connect",
			errors.NewValidationError("CONNECT rejected with status "+strconv.Itoa(msg.Status.Code)))
	}

	return &prebufferedConn{Conn: conn, r: reader, leftover: leftover}, nil
}

// readCONNECTResponse accumulates bytes read directly off r until the
// Client role parses a complete status line + headers. Any bytes read
// past the head are tunnel payload that already left the wire and must be
// replayed to the caller before further reads.
func readCONNECTResponse(r *bufio.Reader) (*h1wire.ParsedMessage, []byte, error) {
	var acc []byte
	prevLen := -1
	client := h1role.Client{}
	chunk := make([]byte, 4096)
	for {
		n, rerr := r.Read(chunk)
		if n > 0 {
			acc = append(acc, chunk[:n]...)
			msg, needMore, perr := client.Parse(acc, prevLen, []byte("CONNECT"))
			if perr != nil {
				return nil, nil, perr
			}
			if !needMore {
				return msg, acc[msg.HeadLen:], nil
			}
			prevLen = len(acc)
		}
		if rerr != nil {
			return nil, nil, rerr
		}
	}
}

// prebufferedConn satisfies net.Conn while first draining the tunnel
// bytes already pulled off the wire during CONNECT response parsing.
type prebufferedConn struct {
	net.Conn
	r        *bufio.Reader
	leftover []byte
}

func (c *prebufferedConn) Read(p []byte) (int, error) {
	if len(c.leftover) > 0 {
		n := copy(p, c.leftover)
		c.leftover = c.leftover[n:]
		return n, nil
	}
	return c.r.Read(p)
}

// connectSOCKS5Proxy delegates to golang.org/x/net/proxy, the same
// dependency the teacher uses for SOCKS5 (transport.go's
// connectViaSOCKS5Proxy): a hand-rolled SOCKS5 state machine would only
// duplicate a well-tested RFC 1928 implementation already in the stack.
func connectSOCKS5Proxy(ctx context.Context, conn net.Conn, p *Proxy, targetHost string, targetPort int) (net.Conn, error) {
	var auth *netproxy.Auth
	if basic, ok := p.Credentials.(interface{ Username() string; Password() string }); ok {
		auth = &netproxy.Auth{User: basic.Username(), Password: basic.Password()}
	}

	dialer, err := netproxy.SOCKS5("tcp", p.addr(), auth, &reuseDialer{conn: conn})
	if err != nil {
		return nil, errors.NewProxyError(string(p.Kind), p.addr(), "handshake", err)
	}

	targetAddr := net.JoinHostPort(targetHost, strconv.Itoa(targetPort))
	tunnelled, err := dialer.Dial("tcp", targetAddr)
	if err != nil {
		return nil, errors.NewProxyError(string(p.Kind), p.addr(), "connect", err)
	}
	return tunnelled, nil
}

// reuseDialer adapts an already-established net.Conn to the
// proxy.Dialer interface golang.org/x/net/proxy.SOCKS5 requires, so the
// already-dialed (and possibly already-TLS-wrapped) conn to the proxy is
// reused instead of dialing a second TCP connection.
type reuseDialer struct {
	conn net.Conn
	used bool
}

func (d *reuseDialer) Dial(network, addr string) (net.Conn, error) {
	if d.used {
		return nil, errors.NewValidationError("proxyconn: reuseDialer can only dial once")
	}
	d.used = true
	return d.conn, nil
}
