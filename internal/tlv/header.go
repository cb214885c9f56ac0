// Package tlv implements the EIGRP packet header, the TLV framing layer,
// and the classic (32-bit) TLV codec — §4.1.
package tlv

import (
	"encoding/binary"

	"github.com/diivious/eigrpd/internal/eigrperr"
)

// Opcode identifies the EIGRP message type carried in the header.
type Opcode uint8

// Opcodes recognized on the wire — §4.1. Request and Probe are accepted and
// silently dropped; Ack is accepted but never emitted; every other listed
// opcode is both accepted and actively emitted.
const (
	OpcodeUpdate   Opcode = 1
	OpcodeRequest  Opcode = 2
	OpcodeQuery    Opcode = 3
	OpcodeReply    Opcode = 4
	OpcodeHello    Opcode = 5
	OpcodeProbe    Opcode = 7
	OpcodeAck      Opcode = 8
	OpcodeSIAQuery Opcode = 10
	OpcodeSIAReply Opcode = 11
)

// Flags are the header's per-packet bit flags.
type Flags uint32

const (
	FlagInit Flags = 0x1
	FlagCR   Flags = 0x2
	FlagRS   Flags = 0x4
	FlagEOT  Flags = 0x8
)

// Version is the only EIGRP header version this codec understands.
const Version = 2

// HeaderLen is the fixed 20-byte header size.
const HeaderLen = 20

// Header is the 20-byte EIGRP message header, always big-endian.
type Header struct {
	Version  uint8
	Opcode   Opcode
	Checksum uint16
	Flags    Flags
	Sequence uint32
	Ack      uint32
	VRID     uint16
	AS       uint16
}

// Marshal writes the header into the first HeaderLen bytes of buf. buf must
// be at least HeaderLen bytes.
func (h Header) Marshal(buf []byte) {
	buf[0] = h.Version
	buf[1] = byte(h.Opcode)
	binary.BigEndian.PutUint16(buf[2:4], h.Checksum)
	binary.BigEndian.PutUint32(buf[4:8], uint32(h.Flags))
	binary.BigEndian.PutUint32(buf[8:12], h.Sequence)
	binary.BigEndian.PutUint32(buf[12:16], h.Ack)
	binary.BigEndian.PutUint16(buf[16:18], h.VRID)
	binary.BigEndian.PutUint16(buf[18:20], h.AS)
}

// ParseHeader decodes the first HeaderLen bytes of buf into a Header.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderLen {
		return Header{}, eigrperr.ErrShort
	}
	return Header{
		Version:  buf[0],
		Opcode:   Opcode(buf[1]),
		Checksum: binary.BigEndian.Uint16(buf[2:4]),
		Flags:    Flags(binary.BigEndian.Uint32(buf[4:8])),
		Sequence: binary.BigEndian.Uint32(buf[8:12]),
		Ack:      binary.BigEndian.Uint32(buf[12:16]),
		VRID:     binary.BigEndian.Uint16(buf[16:18]),
		AS:       binary.BigEndian.Uint16(buf[18:20]),
	}, nil
}

// Checksum computes the standard IP-style 16-bit one's-complement checksum
// over msg, which MUST have its checksum field already zeroed.
func Checksum(msg []byte) uint16 {
	var sum uint32
	n := len(msg)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(msg[i])<<8 | uint32(msg[i+1])
	}
	if n%2 == 1 {
		sum += uint32(msg[n-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum)
}

// SealChecksum zeroes the checksum field, computes the checksum over msg,
// and writes it back.
func SealChecksum(msg []byte) {
	msg[2] = 0
	msg[3] = 0
	cs := Checksum(msg)
	binary.BigEndian.PutUint16(msg[2:4], cs)
}

// VerifyChecksum reports whether msg's stored checksum is correct. msg is
// restored to its original state before returning.
func VerifyChecksum(msg []byte) bool {
	if len(msg) < HeaderLen {
		return false
	}
	saved0, saved1 := msg[2], msg[3]
	msg[2], msg[3] = 0, 0
	cs := Checksum(msg)
	msg[2], msg[3] = saved0, saved1
	want := binary.BigEndian.Uint16(msg[2:4])
	return cs == want
}
