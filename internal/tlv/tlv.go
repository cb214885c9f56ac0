package tlv

import (
	"encoding/binary"

	"github.com/diivious/eigrpd/internal/addr"
	"github.com/diivious/eigrpd/internal/eigrperr"
	"github.com/diivious/eigrpd/internal/metric"
)

// Type identifies a TLV's on-wire type.
type Type uint16

// TLV types used by the core — §4.1.
const (
	TypeParameter        Type = 0x0001
	TypeAuthentication   Type = 0x0002
	TypeSequence         Type = 0x0003
	TypeSoftwareVersion  Type = 0x0004
	TypeNextMcastSeq     Type = 0x0005
	TypePeerTermination  Type = 0x0009
	TypePeerMTRList      Type = 0x000A
	TypePeerTIDList      Type = 0x000B
	TypeIPv4Internal     Type = 0x0102
	TypeIPv4External     Type = 0x0103
)

const tlvHeaderLen = 4 // type:u16, length:u16

// Raw is an undecoded TLV as it sits on the wire: its Type, and as Value
// the bytes that follow the 4-byte type+length header (the wire length
// field minus 4).
type Raw struct {
	Type  Type
	Value []byte
}

// readTLVHeader reads one TLV's type and declared length from the front of
// buf and validates that buf holds at least that many bytes.
func readTLVHeader(buf []byte) (typ Type, length int, rest []byte, err error) {
	if len(buf) < tlvHeaderLen {
		return 0, 0, nil, eigrperr.ErrShort
	}
	typ = Type(binary.BigEndian.Uint16(buf[0:2]))
	length = int(binary.BigEndian.Uint16(buf[2:4]))
	if length < tlvHeaderLen || length > len(buf) {
		return 0, 0, nil, eigrperr.ErrShort
	}
	return typ, length, buf[tlvHeaderLen:length], nil
}

// Split iterates the TLV stream in buf, invoking f once per TLV with its
// type and value slice. It stops and returns an error on the first
// malformed TLV.
func Split(buf []byte, f func(typ Type, value []byte) error) error {
	for len(buf) > 0 {
		typ, length, value, err := readTLVHeader(buf)
		if err != nil {
			return err
		}
		if err := f(typ, value); err != nil {
			return err
		}
		buf = buf[length:]
	}
	return nil
}

func putTLVHeader(buf []byte, typ Type, valueLen int) []byte {
	hdr := make([]byte, tlvHeaderLen)
	binary.BigEndian.PutUint16(hdr[0:2], uint16(typ))
	binary.BigEndian.PutUint16(hdr[2:4], uint16(tlvHeaderLen+valueLen))
	return append(buf, hdr...)
}

// --- Parameter (0x0001) ---

// ParameterTLV carries the K-vector and hold time exchanged in Hellos.
type ParameterTLV struct {
	K metric.KVector
	HoldTime uint16
}

func (p ParameterTLV) Marshal(buf []byte) []byte {
	buf = putTLVHeader(buf, TypeParameter, 8)
	buf = append(buf, p.K.K1, p.K.K2, p.K.K3, p.K.K4, p.K.K5, p.K.K6)
	ht := make([]byte, 2)
	binary.BigEndian.PutUint16(ht, p.HoldTime)
	return append(buf, ht...)
}

func parseParameter(value []byte) (ParameterTLV, error) {
	if len(value) < 8 {
		return ParameterTLV{}, eigrperr.ErrShort
	}
	return ParameterTLV{
		K: metric.KVector{K1: value[0], K2: value[1], K3: value[2], K4: value[3], K5: value[4], K6: value[5]},
		HoldTime: binary.BigEndian.Uint16(value[6:8]),
	}, nil
}

// --- Authentication (0x0002) ---

const (
	AuthMD5    = 2
	AuthSHA256 = 3
)

// AuthenticationTLV is the MD5/HMAC-SHA256 digest carried on authenticated
// packets — §4.2.
type AuthenticationTLV struct {
	SubType     uint16
	KeyID       uint32
	KeySequence uint32
	Digest      []byte // 16 bytes for MD5, 32 for SHA256
}

func (a AuthenticationTLV) Marshal(buf []byte) []byte {
	digestLen := len(a.Digest)
	authLen := 2 + 2 + 4 + 4 + 8 + digestLen // sub-type,auth-len fields + keyid + keyseq + 8 zero + digest
	buf = putTLVHeader(buf, TypeAuthentication, authLen)
	st := make([]byte, 2)
	binary.BigEndian.PutUint16(st, a.SubType)
	buf = append(buf, st...)
	al := make([]byte, 2)
	binary.BigEndian.PutUint16(al, uint16(16+digestLen)) // key-block + digest per historical field meaning
	buf = append(buf, al...)
	kid := make([]byte, 4)
	binary.BigEndian.PutUint32(kid, a.KeyID)
	buf = append(buf, kid...)
	kseq := make([]byte, 4)
	binary.BigEndian.PutUint32(kseq, a.KeySequence)
	buf = append(buf, kseq...)
	buf = append(buf, make([]byte, 8)...)
	return append(buf, a.Digest...)
}

func parseAuthentication(value []byte) (AuthenticationTLV, error) {
	const fixed = 2 + 2 + 4 + 4 + 8
	if len(value) < fixed {
		return AuthenticationTLV{}, eigrperr.ErrShort
	}
	subType := binary.BigEndian.Uint16(value[0:2])
	digest := make([]byte, len(value)-fixed)
	copy(digest, value[fixed:])
	if subType == AuthMD5 && len(digest) != 16 {
		return AuthenticationTLV{}, eigrperr.ErrShort
	}
	if subType == AuthSHA256 && len(digest) != 32 {
		return AuthenticationTLV{}, eigrperr.ErrShort
	}
	return AuthenticationTLV{
		SubType:     subType,
		KeyID:       binary.BigEndian.Uint32(value[4:8]),
		KeySequence: binary.BigEndian.Uint32(value[8:12]),
		Digest:      digest,
	}, nil
}

// --- Sequence (0x0003) ---

// SequenceTLV lists addresses that MUST suppress acceptance of the
// multicast this TLV rides in (conditional receive) — §4.3.
type SequenceTLV struct {
	Addresses []addr.Address
}

func (s SequenceTLV) Marshal(buf []byte) []byte {
	var valueLen int
	for range s.Addresses {
		valueLen += 1 + 4
	}
	buf = putTLVHeader(buf, TypeSequence, valueLen)
	for _, a := range s.Addresses {
		buf = append(buf, 4)
		ip := a.IP4()
		buf = append(buf, ip...)
	}
	return buf
}

func parseSequence(value []byte) (SequenceTLV, error) {
	var s SequenceTLV
	for len(value) > 0 {
		if len(value) < 1 {
			return SequenceTLV{}, eigrperr.ErrShort
		}
		alen := int(value[0])
		value = value[1:]
		if alen != 4 || len(value) < alen {
			return SequenceTLV{}, eigrperr.ErrShort
		}
		a, err := addr.V4(value[:alen], 32)
		if err != nil {
			return SequenceTLV{}, eigrperr.ErrCorrupt
		}
		s.Addresses = append(s.Addresses, a)
		value = value[alen:]
	}
	return s, nil
}

// --- Software-Version (0x0004) ---

// SoftwareVersionTLV identifies the peer's OS and EIGRP protocol revision.
// The EIGRP revision selects the per-neighbor codec vtable — §4.1.
type SoftwareVersionTLV struct {
	OSMajor, OSMinor       uint8
	EIGRPMajor, EIGRPMinor uint8
}

func (s SoftwareVersionTLV) Marshal(buf []byte) []byte {
	buf = putTLVHeader(buf, TypeSoftwareVersion, 4)
	return append(buf, s.OSMajor, s.OSMinor, s.EIGRPMajor, s.EIGRPMinor)
}

func parseSoftwareVersion(value []byte) (SoftwareVersionTLV, error) {
	if len(value) < 4 {
		return SoftwareVersionTLV{}, eigrperr.ErrShort
	}
	return SoftwareVersionTLV{value[0], value[1], value[2], value[3]}, nil
}

// --- Next-Multicast-Sequence (0x0005) ---

type NextMulticastSeqTLV struct {
	Sequence uint32
}

func (n NextMulticastSeqTLV) Marshal(buf []byte) []byte {
	buf = putTLVHeader(buf, TypeNextMcastSeq, 4)
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, n.Sequence)
	return append(buf, b...)
}

func parseNextMulticastSeq(value []byte) (NextMulticastSeqTLV, error) {
	if len(value) < 4 {
		return NextMulticastSeqTLV{}, eigrperr.ErrShort
	}
	return NextMulticastSeqTLV{binary.BigEndian.Uint32(value)}, nil
}

// --- Peer-Termination (0x0009) ---

type PeerTerminationTLV struct {
	NeighborIP uint32
}

func (p PeerTerminationTLV) Marshal(buf []byte) []byte {
	buf = putTLVHeader(buf, TypePeerTermination, 5)
	buf = append(buf, 0) // reserved
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, p.NeighborIP)
	return append(buf, b...)
}

func parsePeerTermination(value []byte) (PeerTerminationTLV, error) {
	if len(value) < 5 {
		return PeerTerminationTLV{}, eigrperr.ErrShort
	}
	return PeerTerminationTLV{binary.BigEndian.Uint32(value[1:5])}, nil
}

// --- IPv4-Internal (0x0102) ---

// RouteTLV is the decoded form of both IPv4-Internal and IPv4-External
// route TLVs; External is nil for an internal route.
type RouteTLV struct {
	NextHop  uint32
	Metric   metric.VectorMetric
	Ext      *metric.ExtData
	Dest     addr.Address
}

func marshalVectorMetric(buf []byte, m metric.VectorMetric) []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint32(b[0:4], uint32(m.Delay/256))
	binary.BigEndian.PutUint32(b[4:8], uint32(m.Bandwidth))
	b[8], b[9], b[10] = m.MTU[0], m.MTU[1], m.MTU[2]
	b[11] = m.HopCount
	b[12] = m.Reliability
	b[13] = m.Load
	b[14] = m.Tag
	b[15] = m.Flags
	return append(buf, b...)
}

func parseVectorMetric(value []byte) (metric.VectorMetric, error) {
	if len(value) < 16 {
		return metric.VectorMetric{}, eigrperr.ErrShort
	}
	wireDelay := binary.BigEndian.Uint32(value[0:4])
	wireBW := binary.BigEndian.Uint32(value[4:8])
	return metric.VectorMetric{
		Delay:       uint64(wireDelay) * 256,
		Bandwidth:   uint64(wireBW),
		MTU:         [3]byte{value[8], value[9], value[10]},
		HopCount:    value[11],
		Reliability: value[12],
		Load:        value[13],
		Tag:         value[14],
		Flags:       value[15],
	}, nil
}

func (r RouteTLV) marshalInternal(buf []byte) []byte {
	n := packedLen(r.Dest.PrefixLen)
	valueLen := 4 + 16 + 1 + n
	buf = putTLVHeader(buf, TypeIPv4Internal, valueLen)
	nh := make([]byte, 4)
	binary.BigEndian.PutUint32(nh, r.NextHop)
	buf = append(buf, nh...)
	buf = marshalVectorMetric(buf, r.Metric)
	buf = append(buf, r.Dest.PrefixLen)
	return putPrefix(buf, r.Dest)
}

func parseIPv4Internal(value []byte) (RouteTLV, error) {
	if len(value) < 4+16+1 {
		return RouteTLV{}, eigrperr.ErrShort
	}
	nextHop := binary.BigEndian.Uint32(value[0:4])
	m, err := parseVectorMetric(value[4:20])
	if err != nil {
		return RouteTLV{}, err
	}
	prefixLen := value[20]
	dest, _, err := readPrefix(value[21:], prefixLen)
	if err != nil {
		return RouteTLV{}, err
	}
	return RouteTLV{NextHop: nextHop, Metric: m, Dest: dest}, nil
}

// --- IPv4-External (0x0103) ---

func (r RouteTLV) marshalExternal(buf []byte) []byte {
	n := packedLen(r.Dest.PrefixLen)
	valueLen := 4 + 20 + 16 + 1 + n
	buf = putTLVHeader(buf, TypeIPv4External, valueLen)
	nh := make([]byte, 4)
	binary.BigEndian.PutUint32(nh, r.NextHop)
	buf = append(buf, nh...)
	buf = marshalExtData(buf, *r.Ext)
	buf = marshalVectorMetric(buf, r.Metric)
	buf = append(buf, r.Dest.PrefixLen)
	return putPrefix(buf, r.Dest)
}

func marshalExtData(buf []byte, e metric.ExtData) []byte {
	b := make([]byte, 20)
	binary.BigEndian.PutUint32(b[0:4], e.OriginRouterID)
	binary.BigEndian.PutUint32(b[4:8], e.OriginAS)
	binary.BigEndian.PutUint32(b[8:12], e.AdminTag)
	binary.BigEndian.PutUint32(b[12:16], e.ExternalMetric)
	b[16] = e.ProtocolID
	b[17] = e.Flags
	binary.BigEndian.PutUint16(b[18:20], e.Reserved)
	return append(buf, b...)
}

func parseExtData(value []byte) (metric.ExtData, error) {
	if len(value) < 20 {
		return metric.ExtData{}, eigrperr.ErrShort
	}
	return metric.ExtData{
		OriginRouterID: binary.BigEndian.Uint32(value[0:4]),
		OriginAS:       binary.BigEndian.Uint32(value[4:8]),
		AdminTag:       binary.BigEndian.Uint32(value[8:12]),
		ExternalMetric: binary.BigEndian.Uint32(value[12:16]),
		ProtocolID:     value[16],
		Flags:          value[17],
		Reserved:       binary.BigEndian.Uint16(value[18:20]),
	}, nil
}

func parseIPv4External(value []byte) (RouteTLV, error) {
	if len(value) < 4+20+16+1 {
		return RouteTLV{}, eigrperr.ErrShort
	}
	nextHop := binary.BigEndian.Uint32(value[0:4])
	ext, err := parseExtData(value[4:24])
	if err != nil {
		return RouteTLV{}, err
	}
	m, err := parseVectorMetric(value[24:40])
	if err != nil {
		return RouteTLV{}, err
	}
	prefixLen := value[40]
	dest, _, err := readPrefix(value[41:], prefixLen)
	if err != nil {
		return RouteTLV{}, err
	}
	return RouteTLV{NextHop: nextHop, Metric: m, Ext: &ext, Dest: dest}, nil
}

// Marshal dispatches to the internal or external wire form based on
// whether Ext is set.
func (r RouteTLV) Marshal(buf []byte) []byte {
	if r.Ext != nil {
		return r.marshalExternal(buf)
	}
	return r.marshalInternal(buf)
}
