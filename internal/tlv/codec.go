package tlv

import "github.com/diivious/eigrpd/internal/eigrperr"

// Codec decodes and encodes the two route TLV types (IPv4-Internal/
// External). Every other TLV type has a single wire form regardless of
// peer revision and is handled directly by Message; only the route vector
// metric's wire encoding varies by EIGRP revision, which is what the
// per-neighbor codec vtable of §4.1 actually selects between.
type Codec interface {
	// DecodeRoute decodes one IPv4-Internal or IPv4-External TLV value.
	DecodeRoute(typ Type, value []byte) (RouteTLV, error)
	// EncodeRoute appends the wire form of r to buf.
	EncodeRoute(buf []byte, r RouteTLV) []byte
}

// ClassicCodec implements the mandatory 32-bit vector metric codec
// (EIGRP revision 1). It is the only fully specified codec and is the
// default for every neighbor until proven otherwise.
type ClassicCodec struct{}

func (ClassicCodec) DecodeRoute(typ Type, value []byte) (RouteTLV, error) {
	switch typ {
	case TypeIPv4Internal:
		return parseIPv4Internal(value)
	case TypeIPv4External:
		return parseIPv4External(value)
	default:
		return RouteTLV{}, eigrperr.ErrCorrupt
	}
}

func (ClassicCodec) EncodeRoute(buf []byte, r RouteTLV) []byte {
	return r.Marshal(buf)
}

// WideCodec is the 64-bit ("wide") metric codec for EIGRP revision 2.
// §4.1/§9 deliberately leave this wire form unspecified; per the Non-goals
// in spec.md it is recognized but never emitted. A neighbor that
// advertises revision 2 stays on ClassicCodec until this type is filled
// in against a live peer.
type WideCodec struct{}

func (WideCodec) DecodeRoute(Type, []byte) (RouteTLV, error) {
	return RouteTLV{}, eigrperr.ErrCorrupt
}

func (WideCodec) EncodeRoute(buf []byte, _ RouteTLV) []byte {
	return buf
}

// SelectCodec returns the codec vtable for a peer's advertised EIGRP
// revision. Unknown/zero revisions and revision 2 both default to the
// classic codec per §4.1.
func SelectCodec(eigrpRevisionMajor uint8) Codec {
	if eigrpRevisionMajor == 1 {
		return ClassicCodec{}
	}
	return ClassicCodec{}
}
