// Package eigrperr holds the design-level error taxonomy from §7: wire
// errors are logged and dropped, session errors tear down a neighbor,
// topology errors are logged and the table keeps running, and fatal errors
// abort process init.
package eigrperr

import "github.com/pkg/errors"

// Wire errors — §4.1/§7. Caused by a malformed or unauthenticated packet;
// the packet is dropped, the neighbor survives.
var (
	ErrShort    = errors.New("eigrp: short or truncated TLV")
	ErrChecksum = errors.New("eigrp: header checksum mismatch")
	ErrAuth     = errors.New("eigrp: authentication failed")
	ErrCorrupt  = errors.New("eigrp: corrupt packet")
)

// Session errors — §4.4/§7. Cause the owning neighbor to be deleted.
var (
	ErrKMismatch       = errors.New("eigrp: K-vector mismatch")
	ErrHoldExpired     = errors.New("eigrp: hold timer expired")
	ErrRetransExhausted = errors.New("eigrp: retransmit count exhausted")
	ErrPeerTerm        = errors.New("eigrp: peer sent termination")
)

// Topology errors — §7. Logged and ignored; the table does not crash.
var (
	ErrUnknownPrefix = errors.New("eigrp: reply for unknown prefix")
)

// Fatal errors — §7. Surfaced to the process entry point; abort init.
var (
	ErrSocket          = errors.New("eigrp: raw socket setup failed")
	ErrKeychainMissing = errors.New("eigrp: required authentication key not found")
)

// Wire wraps a causal error (typically one of the io/codec-level errors)
// with context, preserving Cause() so callers can still classify it back to
// a sentinel with Is/Cause.
func Wire(cause error, context string) error {
	return errors.Wrap(cause, context)
}

// Is reports whether err is, or wraps, target.
func Is(err, target error) bool {
	return errors.Cause(err) == target || errors.Is(err, target)
}
