package auth

import (
	"bytes"
	"testing"
)

func TestMD5RoundTripBasicHello(t *testing.T) {
	msg := bytes.Repeat([]byte{0x11}, 80)
	key := []byte("shortkey")

	digest := SealMD5(msg, key, KindBasicHelloOrUpdate)
	if !VerifyMD5(msg, key, KindBasicHelloOrUpdate, digest) {
		t.Fatal("expected digest to verify")
	}
}

func TestMD5UpdateInitIgnoresKey(t *testing.T) {
	msg := bytes.Repeat([]byte{0x22}, 60)
	d1 := SealMD5(msg, []byte("key-one"), KindUpdateInit)
	d2 := SealMD5(msg, []byte("totally-different"), KindUpdateInit)
	if d1 != d2 {
		t.Fatal("expected UpdateInit digest to be independent of key")
	}
}

func TestMD5DetectsTamper(t *testing.T) {
	msg := bytes.Repeat([]byte{0x33}, 100)
	key := []byte("k")
	digest := SealMD5(msg, key, KindBasicHelloOrUpdate)
	msg[70] ^= 0xFF
	if VerifyMD5(msg, key, KindBasicHelloOrUpdate, digest) {
		t.Fatal("expected tampering to invalidate digest")
	}
}

func TestSHA256RoundTrip(t *testing.T) {
	msg := []byte("hello eigrp")
	d := SealSHA256(msg, []byte("secret"), "10.0.0.1")
	if !VerifySHA256(msg, []byte("secret"), "10.0.0.1", d) {
		t.Fatal("expected sha256 digest to verify")
	}
}
