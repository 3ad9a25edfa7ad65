package proxyconn

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/WhileEndless/corehttp/pkg/credentials"
	"github.com/WhileEndless/corehttp/pkg/errors"
)

// ParseProxyURL parses a proxy URL string into a Proxy, grounded on the
// teacher's client.ParseProxyURL. SOCKS4 has a ProxyKind value but the
// proxy layer only covers HTTP-CONNECT and SOCKS5, so socks4 URLs are
// rejected here with a clear error instead of silently downgrading.
//
// Supported schemes: http, https, socks5. Default ports: 8080, 443, 1080.
func ParseProxyURL(proxyURL string) (*Proxy, error) {
	if proxyURL == "" {
		return nil, errors.NewValidationError("proxy URL cannot be empty")
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, errors.NewValidationError("invalid proxy URL: " + err.Error())
	}

	var kind ProxyKind
	switch u.Scheme {
	case "http":
		kind = ProxyHTTP
	case "https":
		kind = ProxyHTTPS
	case "socks5":
		kind = ProxySOCKS5
	case "":
		return nil, errors.NewValidationError("proxy URL must include a scheme (http://, https://, or socks5://)")
	default:
		return nil, errors.NewValidationError(fmt.Sprintf("unsupported proxy scheme: %s (must be http, https, or socks5)", u.Scheme))
	}

	host := u.Hostname()
	if host == "" {
		return nil, errors.NewValidationError("proxy URL must include a host")
	}

	var port int
	if portStr := u.Port(); portStr != "" {
		port, err = strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			return nil, errors.NewValidationError("invalid proxy port: " + portStr)
		}
	} else {
		switch kind {
		case ProxyHTTP:
			port = 8080
		case ProxyHTTPS:
			port = 443
		case ProxySOCKS5:
			port = 1080
		}
	}

	p := &Proxy{
		Kind:               kind,
		Host:               host,
		Port:               port,
		ResolveDNSViaProxy: kind == ProxySOCKS5,
	}
	if u.User != nil {
		username := u.User.Username()
		password, _ := u.User.Password()
		p.Credentials = credentials.NewBasic(username, password)
	}
	return p, nil
}

// ProxyProvider resolves the Proxy to route a given connection through,
// or nil to connect directly. Grounded on original_source's
// HttpProxyConnectorLayer<P> provider generic: Hardcoded, FromEnv,
// FromContext, and a Chain combinator that tries providers in order.
type ProxyProvider interface {
	ProxyFor(ctx context.Context, targetHost string) (*Proxy, error)
}

// HardcodedProvider always returns the same Proxy.
type HardcodedProvider struct {
	Proxy *Proxy
}

func (p HardcodedProvider) ProxyFor(ctx context.Context, targetHost string) (*Proxy, error) {
	return p.Proxy, nil
}

// contextKey is unexported so only this package can populate/read it via
// FromContextProvider, mirroring original_source's private::FromContext
// provider that reads proxy info the caller inserted into its Context.
type contextKey struct{}

// WithProxy returns a child context carrying p for FromContextProvider to
// pick up later in the pipeline.
func WithProxy(ctx context.Context, p *Proxy) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContextProvider reads the Proxy previously attached with WithProxy,
// connecting directly if none was attached.
type FromContextProvider struct{}

func (FromContextProvider) ProxyFor(ctx context.Context, targetHost string) (*Proxy, error) {
	p, _ := ctx.Value(contextKey{}).(*Proxy)
	return p, nil
}

// FromEnvProvider reads a proxy URL from the named environment variable
// (e.g. "HTTP_PROXY"), connecting directly if it is unset or empty.
type FromEnvProvider struct {
	Key string
}

func (p FromEnvProvider) ProxyFor(ctx context.Context, targetHost string) (*Proxy, error) {
	raw := os.Getenv(p.Key)
	if raw == "" {
		return nil, nil
	}
	return ParseProxyURL(raw)
}

// ChainProvider tries each provider in order, returning the first
// non-nil Proxy. A provider error aborts the chain immediately (per
// original_source's TODO-turned-decision in layer.rs: "on first error:
// return err; if returned None, try next").
type ChainProvider []ProxyProvider

func (c ChainProvider) ProxyFor(ctx context.Context, targetHost string) (*Proxy, error) {
	for _, p := range c {
		proxy, err := p.ProxyFor(ctx, targetHost)
		if err != nil {
			return nil, err
		}
		if proxy != nil {
			return proxy, nil
		}
	}
	return nil, nil
}
