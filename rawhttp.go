// Package rawhttp wires the H1 wire codec, transaction roles, proxy
// connector pipeline, and CIDR address generator into a single client
// facade: Client.Do establishes a connection (optionally through an
// upstream proxy, with an optional CIDR-selected source address),
// encodes a request head with the Client role, and parses the response
// head and body with the same role.
package rawhttp

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/WhileEndless/corehttp/pkg/buffer"
	"github.com/WhileEndless/corehttp/pkg/cidraddr"
	"github.com/WhileEndless/corehttp/pkg/errors"
	"github.com/WhileEndless/corehttp/pkg/h1role"
	"github.com/WhileEndless/corehttp/pkg/h1wire"
	"github.com/WhileEndless/corehttp/pkg/proxyconn"
	"github.com/WhileEndless/corehttp/pkg/timing"
	"github.com/WhileEndless/corehttp/pkg/tlsconfig"
)

// Version is the current version of the corehttp library.
const Version = "3.0.0"

// Re-export the core types so callers don't need to import every
// sub-package directly, the same convenience re-export the teacher's
// rawhttp.go provided for its own Options/Response/Buffer/Error family.
type (
	// HeaderMap is the insertion-ordered, case-insensitive header
	// multi-map with an original-case sidecar (pkg/h1wire).
	HeaderMap = h1wire.HeaderMap

	// Buffer provides memory-efficient response body storage with disk
	// spilling past a configurable threshold (pkg/buffer).
	Buffer = buffer.Buffer

	// Metrics captures DNS/TCP/TLS/TTFB timing for one request (pkg/timing).
	Metrics = timing.Metrics

	// Error is the structured transport/parse/encode error type (pkg/errors).
	Error = errors.Error

	// Proxy describes an upstream HTTP-CONNECT or SOCKS5 proxy (pkg/proxyconn).
	Proxy = proxyconn.Proxy

	// Extension selects deterministic or random CIDR source-IP generation
	// (pkg/cidraddr).
	Extension = cidraddr.Extension
)

// Re-export error type constants for convenience.
const (
	ErrorTypeDNS        = errors.ErrorTypeDNS
	ErrorTypeConnection = errors.ErrorTypeConnection
	ErrorTypeTLS        = errors.ErrorTypeTLS
	ErrorTypeTimeout    = errors.ErrorTypeTimeout
	ErrorTypeProtocol   = errors.ErrorTypeProtocol
	ErrorTypeIO         = errors.ErrorTypeIO
	ErrorTypeValidation = errors.ErrorTypeValidation
	ErrorTypeProxy      = errors.ErrorTypeProxy
	ErrorTypeParse      = errors.ErrorTypeParse
	ErrorTypeEncode     = errors.ErrorTypeEncode
)

// ParseProxyURL parses a proxy URL string ("http://", "https://" or
// "socks5://", optionally with "user:pass@") into a Proxy.
func ParseProxyURL(proxyURL string) (*Proxy, error) {
	return proxyconn.ParseProxyURL(proxyURL)
}

// Options controls how Client.Do establishes the connection and
// encodes/decodes the request/response, composing h1role/proxyconn/
// cidraddr configuration the way the teacher's Options composed
// transport.Config.
type Options struct {
	Scheme string // "http" or "https"
	Host   string
	Port   int

	// TLS-to-origin settings, applied when Scheme == "https".
	TLSConfig         *tls.Config
	InsecureTLS       bool
	SNI               string
	DisableSNI        bool
	TLSVersionProfile *tlsconfig.VersionProfile

	ConnTimeout       time.Duration
	HeaderReadTimeout time.Duration

	// Proxy, if set, routes the connection through an upstream HTTP or
	// SOCKS5 proxy.
	Proxy *Proxy

	// SourceCIDR, if set, binds the outgoing connection's local address
	// to an IP selected within the block by cidraddr.Generate.
	SourceCIDR    *net.IPNet
	CIDRRangeLen  int
	CIDRExtension Extension

	MaxHeaders                      int
	TitleCaseHeaders                bool
	AllowH09Responses               bool
	ObsoleteMultilineHeadersAllowed bool

	Resolver  proxyconn.Resolver
	TLSDialer proxyconn.TLSDialer
}

// Response represents a parsed HTTP response.
type Response struct {
	Version    h1wire.Version
	StatusCode int
	Reason     string
	Headers    HeaderMap
	Trailers   HeaderMap
	Body       *Buffer

	Metrics   Metrics
	Metadata  *proxyconn.Metadata
	KeepAlive bool
}

// Client executes requests by driving the proxy connector pipeline and
// the H1 Client role directly over the resulting net.Conn.
type Client struct{}

// NewClient returns a ready-to-use Client.
func NewClient() *Client { return &Client{} }

// Do sends method/path/headers/body to opts.Host:opts.Port (optionally
// through opts.Proxy, optionally over TLS, optionally from a CIDR-chosen
// source address) and returns the parsed response.
func (c *Client) Do(ctx context.Context, method, path string, headers HeaderMap, body []byte, opts Options) (*Response, error) {
	timer := timing.NewTimer()

	cfg := proxyconn.Config{
		Host:        opts.Host,
		Port:        opts.Port,
		Secure:      opts.Scheme == "https",
		SNI:         opts.SNI,
		DisableSNI:  opts.DisableSNI,
		InsecureTLS: opts.InsecureTLS,
		TLSConfig:   opts.TLSConfig,
		Proxy:       opts.Proxy,
		ConnTimeout: opts.ConnTimeout,
		Resolver:    opts.Resolver,
		TLSDialer:   opts.TLSDialer,
	}

	if opts.TLSVersionProfile != nil {
		tlsCfg := cfg.TLSConfig
		if tlsCfg == nil {
			tlsCfg = &tls.Config{}
		} else {
			tlsCfg = tlsCfg.Clone()
		}
		tlsconfig.ApplyVersionProfile(tlsCfg, *opts.TLSVersionProfile)
		tlsconfig.ApplyCipherSuites(tlsCfg, opts.TLSVersionProfile.Min)
		cfg.TLSConfig = tlsCfg
	}

	if opts.SourceCIDR != nil {
		ip, err := cidraddr.Generate(opts.SourceCIDR, opts.CIDRRangeLen, opts.CIDRExtension)
		if err != nil {
			return nil, errors.NewValidationError("rawhttp: generating CIDR source address: " + err.Error())
		}
		cfg.SourceIP = ip
	}

	req := proxyconn.RequestHead{
		Scheme:  opts.Scheme,
		Host:    opts.Host,
		Port:    opts.Port,
		Version: int(h1wire.HTTP11),
	}

	timer.StartTCP()
	est, err := proxyconn.Connect(ctx, req, cfg)
	timer.EndTCP()
	if err != nil {
		return nil, err
	}
	conn := est.Conn
	// Every Do call owns and closes its own connection; connection
	// pooling is out of scope here.
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	role := h1role.Client{Ctx: h1wire.ParseContext{
		MaxHeaders:                      opts.MaxHeaders,
		AllowH09Responses:               opts.AllowH09Responses,
		ObsoleteMultilineHeadersAllowed: opts.ObsoleteMultilineHeadersAllowed,
	}}

	uri := path
	if uri == "" {
		uri = "/"
	}
	// A plain-http origin behind an HTTP/HTTPS proxy is not tunnelled: the
	// request goes out in absolute-form and carries Proxy-Authorization.
	if p := opts.Proxy; p != nil && !cfg.Secure && (p.Kind == proxyconn.ProxyHTTP || p.Kind == proxyconn.ProxyHTTPS) {
		uri = "http://" + net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)) + uri
		if p.Credentials != nil {
			headers.Append([]byte("Proxy-Authorization"), []byte(p.Credentials.HeaderValue()))
		}
	}

	buf := h1wire.NewBuffer()
	defer buf.Release()

	reqHead := h1wire.RequestHead{
		Version: h1wire.HTTP11,
		Method:  []byte(method),
		URI:     []byte(uri),
		Headers: headers,
		Body:    h1wire.KnownLength(uint64(len(body))),
	}
	enc, err := role.SetLength(buf, reqHead, h1wire.EncodeOptions{TitleCaseHeaders: opts.TitleCaseHeaders})
	if err != nil {
		return nil, errors.NewEncodeError("user_header", err)
	}

	if _, err := conn.Write(buf.Bytes()); err != nil {
		return nil, errors.NewIOError("write-request-head", err)
	}
	if err := writeRequestBody(conn, enc, body); err != nil {
		return nil, errors.NewIOError("write-request-body", err)
	}

	reader := bufio.NewReader(conn)
	timer.StartTTFB()
	msg, reader, err := readResponseHead(reader, role, []byte(method), opts.HeaderReadTimeout, conn)
	timer.EndTTFB()
	if err != nil {
		return nil, errors.NewParseError("response", err)
	}

	bodyReader := h1wire.NewBodyReader(reader, msg.Decoder)
	respBody := buffer.New(buffer.DefaultMemoryLimit)
	if _, err := io.Copy(respBody, bodyReader); err != nil && err != io.EOF {
		return nil, errors.NewIOError("read-response-body", err)
	}

	resp := &Response{
		Version:    msg.Version,
		StatusCode: msg.Status.Code,
		Reason:     string(msg.Status.Reason),
		Headers:    msg.Headers,
		Body:       respBody,
		Metrics:    timer.GetMetrics(),
		Metadata:   est.Metadata,
		KeepAlive:  msg.Flags.KeepAlive,
	}
	if t := bodyReader.Trailers(); t != nil {
		resp.Trailers = *t
	}

	// Resp.KeepAlive tells a caller whether this connection could be
	// pooled; connection pooling is out of scope, so Do always closes
	// its own connection regardless.
	return resp, nil
}

// readResponseHead accumulates bytes off r until the Client role parses a
// complete status line + headers, applying headerReadTimeout (if set) as
// the wall-clock bound from the first read until end-of-headers.
// Any bytes read past the head are already off the wire and
// belong to the body; they are spliced back in front of the returned
// reader so the BodyReader picks up exactly where head parsing left off
// (the same leftover-replay the proxy connector's CONNECT handshake uses,
// see pkg/proxyconn/proxylayer.go's prebufferedConn).
func readResponseHead(r *bufio.Reader, role h1role.Client, requestMethod []byte, headerReadTimeout time.Duration, conn net.Conn) (*h1wire.ParsedMessage, *bufio.Reader, error) {
	if headerReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(headerReadTimeout))
		defer conn.SetReadDeadline(time.Time{})
	}

	var acc []byte
	prevLen := -1
	peekBuf := make([]byte, 4096)
	for {
		n, err := r.Read(peekBuf)
		if n > 0 {
			acc = append(acc, peekBuf[:n]...)
			msg, needMore, perr := role.Parse(acc, prevLen, requestMethod)
			if perr != nil {
				return nil, nil, perr
			}
			if !needMore {
				leftover := acc[msg.HeadLen:]
				if len(leftover) > 0 {
					r = bufio.NewReader(io.MultiReader(bytes.NewReader(leftover), r))
				}
				return msg, r, nil
			}
			prevLen = len(acc)
		}
		if err != nil {
			return nil, nil, err
		}
	}
}

// writeRequestBody writes body according to the Encoder the Client role's
// SetLength chose. A request body handed to Do is always fully buffered
// in memory, so chunked framing here is a single chunk followed by the
// terminator rather than the streaming writer the codec's body-reader
// side implements for unbounded sources.
func writeRequestBody(w io.Writer, enc h1wire.Encoder, body []byte) error {
	switch enc.Kind {
	case h1wire.EncoderChunked:
		if len(body) > 0 {
			if _, err := io.WriteString(w, strconv.FormatInt(int64(len(body)), 16)+"\r\n"); err != nil {
				return err
			}
			if _, err := w.Write(body); err != nil {
				return err
			}
			if _, err := io.WriteString(w, "\r\n"); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "0\r\n\r\n")
		return err
	default:
		if len(body) == 0 {
			return nil
		}
		_, err := w.Write(body)
		return err
	}
}
