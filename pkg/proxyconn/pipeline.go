package proxyconn

import (
	"context"

	"github.com/WhileEndless/corehttp/pkg/h1wire"
)

// Inspector runs just-in-time against a RequestHead before the handshake,
// step 2 ("HTTP request inspectors"). ALPN-to-version hinting and the
// version adapter both read and write req.Version, so they run in
// sequence, in the order supplied, rather than fanned out: nothing in
// spec.md §4.3 requires these steps to overlap in wall-clock time, and
// running them concurrently over the same mutable RequestHead would be a
// write/write race on that field.
type Inspector interface {
	Inspect(ctx context.Context, req *RequestHead) error
}

// InspectorFunc adapts a plain function to Inspector.
type InspectorFunc func(ctx context.Context, req *RequestHead) error

func (f InspectorFunc) Inspect(ctx context.Context, req *RequestHead) error { return f(ctx, req) }

// ALPNVersionHint downgrades req.Version to HTTP/1.1 whenever TLS-to-origin
// is configured but the pipeline speaks only H1 over it: the core's wire
// codec never emits anything above HTTP/1.1 (frame-level HTTP/2 handling
// is out of scope), so a request built for a later version is coerced
// down here rather than inside the codec's encode path.
func ALPNVersionHint(secure bool) Inspector {
	return InspectorFunc(func(ctx context.Context, req *RequestHead) error {
		if secure && req.Version > int(h1wire.HTTP11) {
			req.Version = int(h1wire.HTTP11)
		}
		return nil
	})
}

// VersionAdapter clamps req.Version into the {HTTP/0.9, HTTP/1.0,
// HTTP/1.1} range the codec understands, independent of TLS.
func VersionAdapter() Inspector {
	return InspectorFunc(func(ctx context.Context, req *RequestHead) error {
		if req.Version < int(h1wire.HTTP09) {
			req.Version = int(h1wire.HTTP09)
		}
		if req.Version > int(h1wire.HTTP11) {
			req.Version = int(h1wire.HTTP11)
		}
		return nil
	})
}

// runInspectors runs every Inspector in order over a shared RequestHead,
// stopping at the first error. Inspectors commonly read-then-write the
// same fields (both ALPNVersionHint and VersionAdapter clamp
// req.Version), so running them sequentially is both correct and
// sufficient: none of them blocks on I/O, so there is no wall-clock
// benefit to fanning them out.
func runInspectors(ctx context.Context, req *RequestHead, inspectors []Inspector) error {
	for _, ins := range inspectors {
		if err := ins.Inspect(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// Connect runs the full pipeline: inspectors, then Dial (which itself
// performs TLS-to-proxy, the proxy layer, and TLS-to-origin in that
// order). Pool lookup is out of scope here and is the caller's
// responsibility before calling
// Connect.
func Connect(ctx context.Context, req RequestHead, cfg Config, inspectors ...Inspector) (*EstablishedClientConnection, error) {
	if len(inspectors) == 0 {
		inspectors = []Inspector{ALPNVersionHint(cfg.Secure), VersionAdapter()}
	}
	if err := runInspectors(ctx, &req, inspectors); err != nil {
		return nil, err
	}

	conn, meta, err := Dial(ctx, cfg)
	if err != nil {
		return nil, err
	}

	remote := conn.RemoteAddr().String()
	return &EstablishedClientConnection{
		ID:         newConnectionID(),
		Request:    req,
		Conn:       conn,
		RemoteAddr: remote,
		Metadata:   meta,
	}, nil
}
