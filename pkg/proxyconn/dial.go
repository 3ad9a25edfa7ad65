package proxyconn

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/WhileEndless/corehttp/pkg/errors"
)

// Dial runs the full connector pipeline and returns an established
// net.Conn ready for the H1 wire codec to speak over:
// resolve/dial the first hop (proxy if configured, else the origin),
// optionally upgrade that hop to TLS, run the proxy layer (HTTP-CONNECT or
// SOCKS5) if a proxy is configured, then optionally upgrade to TLS again
// for the tunnelled origin connection.
func Dial(ctx context.Context, cfg Config) (net.Conn, *Metadata, error) {
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = DefaultResolver
	}
	tlsDialer := cfg.TLSDialer
	if tlsDialer == nil {
		tlsDialer = DefaultTLSDialer
	}

	meta := &Metadata{}

	firstHopHost, firstHopPort := cfg.Host, cfg.Port
	if cfg.Proxy != nil {
		firstHopHost, firstHopPort = cfg.Proxy.Host, cfg.Proxy.Port
		meta.UsedProxy = true
		meta.ProxyAddr = cfg.Proxy.addr()
	}

	dialIP := cfg.ConnectIP
	if dialIP == nil && (cfg.Proxy == nil || !cfg.Proxy.ResolveDNSViaProxy) {
		ip, err := resolver.ResolveIPAddr(ctx, firstHopHost)
		if err != nil {
			return nil, meta, errors.NewDNSError(firstHopHost, err)
		}
		dialIP = ip
	}
	if dialIP != nil {
		meta.ResolvedIP = dialIP.String()
	}

	dialAddr := net.JoinHostPort(firstHopHost, strconv.Itoa(firstHopPort))
	if dialIP != nil {
		dialAddr = net.JoinHostPort(dialIP.String(), strconv.Itoa(firstHopPort))
	}

	conn, err := dialTCP(ctx, dialAddr, cfg.SourceIP, cfg.ConnTimeout)
	if err != nil {
		return nil, meta, errors.NewConnectionError(firstHopHost, firstHopPort, err)
	}
	if cfg.SourceIP != nil {
		meta.SourceIP = cfg.SourceIP.String()
	}

	if cfg.Proxy != nil && cfg.Proxy.Kind == ProxyHTTPS {
		tlsCfg := cfg.Proxy.TLSConfig
		if tlsCfg == nil {
			tlsCfg = &tls.Config{ServerName: cfg.Proxy.Host, InsecureSkipVerify: cfg.InsecureTLS}
		} else {
			tlsCfg = tlsCfg.Clone()
			if cfg.InsecureTLS {
				tlsCfg.InsecureSkipVerify = true
			}
			if tlsCfg.ServerName == "" {
				tlsCfg.ServerName = cfg.Proxy.Host
			}
		}
		tconn, state, herr := tlsDialer.Handshake(ctx, conn, tlsCfg)
		if herr != nil {
			conn.Close()
			return nil, meta, errors.NewTLSError(cfg.Proxy.Host, cfg.Proxy.Port, herr)
		}
		conn = tconn
		meta.TLSToProxy = true
		if state != nil {
			meta.TLSVersion = tlsVersionString(state.Version)
		}
	}

	if cfg.Proxy != nil {
		pconn, perr := negotiateProxyLayer(ctx, conn, cfg)
		if perr != nil {
			conn.Close()
			return nil, meta, perr
		}
		conn = pconn
	}

	if cfg.Secure {
		tlsCfg := buildOriginTLSConfig(cfg)
		tconn, state, herr := tlsDialer.Handshake(ctx, conn, tlsCfg)
		if herr != nil {
			conn.Close()
			return nil, meta, errors.NewTLSError(cfg.Host, cfg.Port, herr)
		}
		conn = tconn
		meta.TLSToOrigin = true
		if state != nil {
			meta.TLSVersion = tlsVersionString(state.Version)
			meta.CipherSuite = tls.CipherSuiteName(state.CipherSuite)
			meta.NegotiatedProto = state.NegotiatedProtocol
		}
	}

	return conn, meta, nil
}

func dialTCP(ctx context.Context, addr string, sourceIP net.IP, timeout time.Duration) (net.Conn, error) {
	d := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	if sourceIP != nil {
		d.LocalAddr = &net.TCPAddr{IP: sourceIP}
	}
	return d.DialContext(ctx, "tcp", addr)
}

// buildOriginTLSConfig applies the HTTP inspector stage's ALPN hinting:
// since only HTTP/1.1 is spoken over the resulting connection, NextProtos
// is pinned to http/1.1 so a TLS-terminating origin does not attempt to
// negotiate a protocol this codec cannot decode.
func buildOriginTLSConfig(cfg Config) *tls.Config {
	var tlsCfg *tls.Config
	if cfg.TLSConfig != nil {
		tlsCfg = cfg.TLSConfig.Clone()
	} else {
		tlsCfg = &tls.Config{}
	}
	if cfg.InsecureTLS {
		tlsCfg.InsecureSkipVerify = true
	}
	ConfigureSNI(tlsCfg, cfg.SNI, cfg.DisableSNI, cfg.Host)
	tlsCfg.NextProtos = []string{"http/1.1"}
	return tlsCfg
}

// ConfigureSNI applies SNI to tlsConfig following the priority order an
// explicit ServerName > disableSNI (leave empty) > customSNI > fallbackHost,
// grounded on the teacher's transport.ConfigureSNI (DEF-4).
func ConfigureSNI(tlsConfig *tls.Config, customSNI string, disableSNI bool, fallbackHost string) {
	if tlsConfig == nil || tlsConfig.ServerName != "" || disableSNI {
		return
	}
	if customSNI != "" {
		tlsConfig.ServerName = customSNI
	} else {
		tlsConfig.ServerName = fallbackHost
	}
}

func tlsVersionString(version uint16) string {
	switch version {
	case tls.VersionTLS10:
		return "TLS1.0"
	case tls.VersionTLS11:
		return "TLS1.1"
	case tls.VersionTLS12:
		return "TLS1.2"
	case tls.VersionTLS13:
		return "TLS1.3"
	default:
		return fmt.Sprintf("0x%04x", version)
	}
}
