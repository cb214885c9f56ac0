package tlv

import (
	"bytes"
	"testing"

	"github.com/diivious/eigrpd/internal/addr"
	"github.com/diivious/eigrpd/internal/metric"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Version: Version, Opcode: OpcodeHello, Sequence: 42, Ack: 7, VRID: 0, AS: 100}
	buf := make([]byte, HeaderLen)
	h.Marshal(buf)
	got, err := ParseHeader(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, h)
	}
}

func TestChecksumValidates(t *testing.T) {
	msg := make([]byte, 24)
	for i := range msg {
		msg[i] = byte(i)
	}
	SealChecksum(msg)
	if !VerifyChecksum(msg) {
		t.Fatal("expected checksum to validate")
	}
	msg[10] ^= 0xFF
	if VerifyChecksum(msg) {
		t.Fatal("expected checksum mismatch after corruption")
	}
}

func TestMessageRoundTripHello(t *testing.T) {
	m := Message{
		Header: Header{Version: Version, Opcode: OpcodeHello, AS: 100},
		Parameter: &ParameterTLV{
			K:        metric.KVector{K1: 1, K3: 1},
			HoldTime: 15,
		},
		SoftwareVersion: &SoftwareVersionTLV{OSMajor: 1, OSMinor: 0, EIGRPMajor: 1, EIGRPMinor: 2},
	}
	wire := m.Marshal(nil)
	SealChecksum(wire)

	got, err := ParseMessage(wire, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Parameter == nil || *got.Parameter != *m.Parameter {
		t.Fatalf("parameter mismatch: %+v", got.Parameter)
	}
	if got.SoftwareVersion == nil || *got.SoftwareVersion != *m.SoftwareVersion {
		t.Fatalf("software version mismatch: %+v", got.SoftwareVersion)
	}
	if !VerifyChecksum(wire) {
		t.Fatal("expected sealed checksum to validate")
	}
}

func TestRouteTLVRoundTripShortestPrefixForm(t *testing.T) {
	dest, err := addr.ParseCIDR("10.0.0.0/8")
	if err != nil {
		t.Fatal(err)
	}
	r := RouteTLV{
		NextHop: 0x0A000001,
		Metric:  metric.VectorMetric{Delay: 100 * 256, Bandwidth: 1000, HopCount: 1, Reliability: 255},
		Dest:    dest,
	}
	var buf []byte
	buf = r.Marshal(buf)

	// shortest form: /8 packs to 1 destination byte, total value len = 4+16+1+1 = 22, TLV = 26
	if len(buf) != 26 {
		t.Fatalf("expected shortest-form TLV of 26 bytes, got %d", len(buf))
	}

	var decoded RouteTLV
	err = Split(buf, func(typ Type, value []byte) error {
		rt, err := ClassicCodec{}.DecodeRoute(typ, value)
		if err != nil {
			return err
		}
		decoded = rt
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !decoded.Dest.Equal(dest) {
		t.Fatalf("dest mismatch: got %s want %s", decoded.Dest, dest)
	}
	if decoded.NextHop != r.NextHop {
		t.Fatalf("next hop mismatch")
	}
}

func TestRouteTLVDefaultRoutePacksZeroBytes(t *testing.T) {
	dest, _ := addr.ParseCIDR("0.0.0.0/0")
	r := RouteTLV{Dest: dest, Metric: metric.VectorMetric{}}
	var buf []byte
	buf = r.Marshal(buf)
	if len(buf) != 4+4+16+1 {
		t.Fatalf("expected default route to pack 0 destination bytes, got len %d", len(buf))
	}
}

func TestAuthenticationTLVRoundTrip(t *testing.T) {
	a := AuthenticationTLV{SubType: AuthMD5, KeyID: 1, KeySequence: 99, Digest: bytes.Repeat([]byte{0xAB}, 16)}
	var buf []byte
	buf = a.Marshal(buf)

	var decoded AuthenticationTLV
	err := Split(buf, func(typ Type, value []byte) error {
		d, err := parseAuthentication(value)
		if err != nil {
			return err
		}
		decoded = d
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if decoded.KeySequence != a.KeySequence || !bytes.Equal(decoded.Digest, a.Digest) {
		t.Fatalf("auth round trip mismatch: %+v", decoded)
	}
}

func TestShortTLVRejected(t *testing.T) {
	buf := []byte{0x00, 0x01, 0x00, 0xFF} // declares length 255 but no data follows
	err := Split(buf, func(Type, []byte) error { return nil })
	if err == nil {
		t.Fatal("expected ErrShort for truncated TLV")
	}
}
