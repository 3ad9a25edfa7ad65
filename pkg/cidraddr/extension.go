// Package cidraddr picks a deterministic or random source IP address
// within a CIDR block, keyed off a per-connection "extension" value
// (a session id, a TTL window bucket, or a range key).
package cidraddr

import "fmt"

// ExtensionKind distinguishes the four ways a source IP can be selected
// within a CIDR block.
type ExtensionKind int

const (
	// ExtensionNone selects a uniformly random host address.
	ExtensionNone ExtensionKind = iota
	// ExtensionTTL selects a host address deterministic within a TTL window.
	ExtensionTTL
	// ExtensionRange selects a host address that is part-deterministic,
	// part-random, per a configured range length.
	ExtensionRange
	// ExtensionSession selects a host address deterministic for a session key.
	ExtensionSession
)

func (k ExtensionKind) String() string {
	switch k {
	case ExtensionNone:
		return "none"
	case ExtensionTTL:
		return "ttl"
	case ExtensionRange:
		return "range"
	case ExtensionSession:
		return "session"
	default:
		return fmt.Sprintf("ExtensionKind(%d)", int(k))
	}
}

// Extension is the tagged value that drives IP selection. The zero value
// is None (uniform random).
type Extension struct {
	Kind ExtensionKind
	// Value carries the TTL window bucket (already normalised by the
	// caller or by ParseUsernameExtension), the range key, or the session
	// key, depending on Kind. Unused when Kind is None.
	Value uint64
}

// None is the uniform-random extension.
var None = Extension{Kind: ExtensionNone}

// TTL returns a TTL extension for an already-normalised window bucket.
func TTL(windowBucket uint64) Extension {
	return Extension{Kind: ExtensionTTL, Value: windowBucket}
}

// Range returns a range extension for the given deterministic range key.
func Range(key uint64) Extension {
	return Extension{Kind: ExtensionRange, Value: key}
}

// Session returns a session extension for the given session key.
func Session(key uint64) Extension {
	return Extension{Kind: ExtensionSession, Value: key}
}
