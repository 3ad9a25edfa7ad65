// Package proxyconn implements the connector pipeline that turns a target
// host/port (and an optional upstream proxy) into an established
// net.Conn: HTTP inspectors, TLS-to-origin, the HTTP-CONNECT/SOCKS5 proxy
// layer, TLS-to-proxy, and the TCP dial with optional CIDR source-IP
// selection. Grounded on the teacher's pkg/transport.Transport.Connect
// staging and connectViaProxy family, generalised to the h1wire/h1role
// codec and the credentials package instead of hand-rolled string
// building.
package proxyconn

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"time"
)

// ProxyKind identifies the upstream proxy protocol.
type ProxyKind string

const (
	ProxyHTTP   ProxyKind = "http"
	ProxyHTTPS  ProxyKind = "https"
	ProxySOCKS4 ProxyKind = "socks4"
	ProxySOCKS5 ProxyKind = "socks5"
)

// Proxy describes an upstream proxy to route the connection through.
type Proxy struct {
	Kind ProxyKind
	Host string
	Port int

	// Credentials, if non-nil, is encoded as Proxy-Authorization: either a
	// credentials.Basic or credentials.Bearer (see pkg/credentials).
	Credentials Credential

	// TLSConfig configures the TLS-to-proxy handshake when Kind is
	// ProxyHTTPS. A nil value uses a default config with ServerName set
	// to Host.
	TLSConfig *tls.Config

	// Headers are extra header fields injected into the CONNECT request
	// (HTTP proxies only).
	Headers map[string]string

	// ResolveDNSViaProxy, when true and Kind is ProxySOCKS5, has the proxy
	// resolve the target hostname instead of resolving it locally.
	ResolveDNSViaProxy bool
}

func (p *Proxy) addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// Credential is implemented by credentials.Basic and credentials.Bearer.
type Credential interface {
	HeaderValue() string
}

// Config is the full set of inputs to Dial.
type Config struct {
	// Host/Port is the origin target.
	Host string
	Port int

	// Secure requests a TLS-to-origin handshake after any proxy layer
	// completes (e.g. the target URL scheme is https, or the target is
	// being reached through an HTTP-CONNECT tunnel).
	Secure bool

	// ConnectIP overrides DNS resolution for the first hop that is
	// dialed: the origin when no proxy is set, otherwise the proxy.
	ConnectIP net.IP

	// SourceIP, if set, binds the outgoing TCP connection's local
	// address (e.g. a CIDR-selected egress address from pkg/cidraddr).
	SourceIP net.IP

	SNI         string
	DisableSNI  bool
	InsecureTLS bool
	TLSConfig   *tls.Config

	Proxy *Proxy

	ConnTimeout time.Duration
	DNSTimeout  time.Duration

	Resolver  Resolver
	TLSDialer TLSDialer
}

// Resolver resolves a hostname to an IP address. The default
// implementation wraps net.DefaultResolver; tests substitute a fake.
type Resolver interface {
	ResolveIPAddr(ctx context.Context, host string) (net.IP, error)
}

type netResolver struct{}

func (netResolver) ResolveIPAddr(ctx context.Context, host string) (net.IP, error) {
	ipaddr, err := net.DefaultResolver.ResolveIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	return ipaddr.IP, nil
}

// DefaultResolver is the net.DefaultResolver-backed Resolver used when a
// Config does not supply one.
var DefaultResolver Resolver = netResolver{}

// TLSDialer performs a TLS client handshake over an established conn. The
// default implementation wraps crypto/tls.Client; tests substitute a fake
// to avoid a real handshake.
type TLSDialer interface {
	Handshake(ctx context.Context, conn net.Conn, cfg *tls.Config) (net.Conn, *tls.ConnectionState, error)
}

type stdTLSDialer struct{}

func (stdTLSDialer) Handshake(ctx context.Context, conn net.Conn, cfg *tls.Config) (net.Conn, *tls.ConnectionState, error) {
	tlsConn := tls.Client(conn, cfg)
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, nil, err
	}
	state := tlsConn.ConnectionState()
	return tlsConn, &state, nil
}

// DefaultTLSDialer is the crypto/tls-backed TLSDialer used when a Config
// does not supply one.
var DefaultTLSDialer TLSDialer = stdTLSDialer{}

// Metadata reports what the pipeline actually did, for callers that want
// to surface connection diagnostics (mirrors the teacher's
// transport.ConnectionMetadata).
type Metadata struct {
	ResolvedIP       string
	UsedProxy        bool
	ProxyAddr        string
	TLSToProxy       bool
	TLSToOrigin      bool
	TLSVersion       string
	CipherSuite      string
	NegotiatedProto  string
	SourceIP         string
}

