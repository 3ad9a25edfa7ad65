package proxyconn

import (
	"net"

	"github.com/google/uuid"
)

// RequestHead is the minimal view of an outgoing request the pipeline
// needs before a connection exists: target authority, scheme, and the
// HTTP version the caller wants to speak. It stands in for the
// (context, request) pair fed to each connector.
type RequestHead struct {
	Scheme string // "http" or "https"
	Host   string
	Port   int

	// Version is the version the caller's request was built for; the
	// inspector stage may coerce it to the version actually negotiated
	// with the origin, by the pipeline's version-adapter inspector.
	Version int
}

// EstablishedClientConnection is the pipeline's terminal output: the
// (possibly version-adapted) request, the live connection, the remote
// address actually dialed, and the dial metadata. ID gives
// callers a stable handle to correlate logs/metrics/pool entries across
// the lifetime of one connection, mirroring the teacher's
// transport.ConnectionMetadata but using github.com/google/uuid (the way
// other_examples/86676766_HakAl-langley__internal-proxy-mitm.go.go tags
// its own flow records with uuid.New()) instead of a hand-rolled counter.
type EstablishedClientConnection struct {
	ID         uuid.UUID
	Request    RequestHead
	Conn       net.Conn
	RemoteAddr string
	Metadata   *Metadata
}

// newConnectionID allocates the trace id for a freshly established
// connection. Pulled out as a var so tests can substitute a deterministic
// generator without touching the pipeline logic.
var newConnectionID = uuid.New
