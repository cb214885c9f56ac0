package tlv

// Message is a fully decoded EIGRP packet: the header plus every TLV the
// core understands. Unknown or ignored TLVs (Peer-MTR-List, Peer-TID-List)
// are preserved as raw bytes so an emitter that copies them through stays
// correct, but the core never interprets them.
type Message struct {
	Header Header

	Parameter       *ParameterTLV
	Auth            *AuthenticationTLV
	Sequence        *SequenceTLV
	SoftwareVersion *SoftwareVersionTLV
	NextMcastSeq    *NextMulticastSeqTLV
	PeerTermination *PeerTerminationTLV
	Routes          []RouteTLV
	Ignored         []Raw
}

// ParseMessage decodes a full EIGRP packet: header, then every TLV up to
// the end of buf. codec resolves the wire form of route TLVs; pass nil to
// use ClassicCodec.
func ParseMessage(buf []byte, codec Codec) (Message, error) {
	if codec == nil {
		codec = ClassicCodec{}
	}
	h, err := ParseHeader(buf)
	if err != nil {
		return Message{}, err
	}
	var m Message
	m.Header = h
	err = Split(buf[HeaderLen:], func(typ Type, value []byte) error {
		switch typ {
		case TypeParameter:
			p, err := parseParameter(value)
			if err != nil {
				return err
			}
			m.Parameter = &p
		case TypeAuthentication:
			a, err := parseAuthentication(value)
			if err != nil {
				return err
			}
			m.Auth = &a
		case TypeSequence:
			s, err := parseSequence(value)
			if err != nil {
				return err
			}
			m.Sequence = &s
		case TypeSoftwareVersion:
			sv, err := parseSoftwareVersion(value)
			if err != nil {
				return err
			}
			m.SoftwareVersion = &sv
		case TypeNextMcastSeq:
			n, err := parseNextMulticastSeq(value)
			if err != nil {
				return err
			}
			m.NextMcastSeq = &n
		case TypePeerTermination:
			p, err := parsePeerTermination(value)
			if err != nil {
				return err
			}
			m.PeerTermination = &p
		case TypePeerMTRList, TypePeerTIDList:
			cp := make([]byte, len(value))
			copy(cp, value)
			m.Ignored = append(m.Ignored, Raw{Type: typ, Value: cp})
		case TypeIPv4Internal, TypeIPv4External:
			r, err := codec.DecodeRoute(typ, value)
			if err != nil {
				return err
			}
			m.Routes = append(m.Routes, r)
		default:
			cp := make([]byte, len(value))
			copy(cp, value)
			m.Ignored = append(m.Ignored, Raw{Type: typ, Value: cp})
		}
		return nil
	})
	if err != nil {
		return Message{}, err
	}
	return m, nil
}

// Marshal serializes m's header and TLVs into a fresh byte slice, Auth
// TLV first as eigrp_hello_encode does. The checksum is not sealed here:
// an Auth TLV's digest (when MD5/SHA-256 is in use) is computed over this
// buffer after every other TLV is written, so only the caller — once it
// has written that digest in place, or immediately if there's no Auth TLV
// to seal — knows the buffer is ready for SealChecksum.
func (m Message) Marshal(codec Codec) []byte {
	if codec == nil {
		codec = ClassicCodec{}
	}
	buf := make([]byte, HeaderLen)
	m.Header.Marshal(buf)

	if m.Auth != nil {
		buf = m.Auth.Marshal(buf)
	}
	if m.Parameter != nil {
		buf = m.Parameter.Marshal(buf)
	}
	if m.Sequence != nil {
		buf = m.Sequence.Marshal(buf)
	}
	if m.SoftwareVersion != nil {
		buf = m.SoftwareVersion.Marshal(buf)
	}
	if m.NextMcastSeq != nil {
		buf = m.NextMcastSeq.Marshal(buf)
	}
	if m.PeerTermination != nil {
		buf = m.PeerTermination.Marshal(buf)
	}
	for _, raw := range m.Ignored {
		buf = putTLVHeader(buf, raw.Type, len(raw.Value))
		buf = append(buf, raw.Value...)
	}
	for _, r := range m.Routes {
		buf = codec.EncodeRoute(buf, r)
	}

	return buf
}
