// Package auth implements the two EIGRP authentication modes of §4.2: MD5
// (fully specified, grounded in the original eigrp_auth.c) and HMAC-SHA256
// (deliberately left unspecified per §9's open question — its source
// hashes a pointer instead of the key bytes and always accepts on
// receive, so there is nothing safe to mirror beyond the wire sub-type).
package auth

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"

	"github.com/diivious/eigrpd/internal/tlv"
)

// Keychain is the external collaborator contract of §4.6: the core asks
// for the current send key on transmit and looks a key up by id on
// receive. Failure to find a key fails the whole authentication.
type Keychain interface {
	CurrentSendKey() (keyID uint32, keyString []byte, err error)
	Lookup(keyID uint32) (keyString []byte, ok bool)
}

// Kind selects which of the three MD5 hashing branches in the original
// applies to the packet being sealed or verified.
type Kind int

const (
	// KindBasicHelloOrUpdate covers Hello packets and non-INIT Update
	// packets — both hash the same leading range plus the key.
	KindBasicHelloOrUpdate Kind = iota
	// KindUpdateInit covers the INIT Update sent while bringing a
	// neighbor up — it hashes the leading range only, no key bytes.
	KindUpdateInit
)

// md5TLVSize is the fixed wire size of an MD5 Authentication TLV: 4-byte
// TLV header + 2 (sub-type) + 2 (auth-length) + 4 (key id) + 4 (key
// sequence) + 8 (zero pad) + 16 (digest) = 40 bytes.
const md5TLVSize = 40

// basicComputeLen is EIGRP_MD5_BASIC_COMPUTE / EIGRP_MD5_UPDATE_INIT_COMPUTE
// from the original: header plus one full MD5 auth TLV, both the same size
// since a message carries exactly one authentication TLV.
const basicComputeLen = tlv.HeaderLen + md5TLVSize

// trailingExclude is the literal 20-byte tail the original excludes from
// the trailing hash range on non-INIT Updates ("end-20" in eigrp_auth.c).
// Mirrored verbatim rather than re-derived, per §9's instruction to treat
// this algorithm as pinned rather than re-interpreted.
const trailingExclude = 20

// SealMD5 computes the MD5 digest over msg (which must already carry a
// zeroed Authentication TLV digest field at byte offset
// tlv.HeaderLen+24) and returns the 16-byte digest to write into it.
func SealMD5(msg []byte, key []byte, kind Kind) [16]byte {
	h := md5.New()
	writeMD5Input(h, msg, key, kind)
	var out [16]byte
	copy(out[:], h.Sum(nil))
	return out
}

// VerifyMD5 recomputes the digest the same way SealMD5 does and compares
// it against the digest embedded in msg (already zeroed by the caller
// before this is invoked), reporting whether they match.
func VerifyMD5(msg []byte, key []byte, kind Kind, want [16]byte) bool {
	got := SealMD5(msg, key, kind)
	return hmac.Equal(got[:], want[:])
}

func writeMD5Input(h writer, msg []byte, key []byte, kind Kind) {
	end := basicComputeLen
	if end > len(msg) {
		end = len(msg)
	}
	h.Write(msg[:end])

	if kind == KindUpdateInit {
		return
	}

	writeKeyPadded16(h, key)

	if len(msg) > basicComputeLen+trailingExclude {
		tailEnd := len(msg) - trailingExclude
		h.Write(msg[basicComputeLen:tailEnd])
	}
}

func writeKeyPadded16(h writer, key []byte) {
	h.Write(key)
	if len(key) < 16 {
		var zero [16]byte
		h.Write(zero[:16-len(key)])
	}
}

type writer interface {
	Write(p []byte) (int, error)
}

// SealSHA256 and VerifySHA256 exist to keep the sub-type wireable, but
// per §9 the original's HMAC key material is corrupted (it hashes a
// pointer, not the key string) and its verify path always accepts. This
// implementation keys the HMAC with a leading newline, the key and
// 'source_ip_text' concatenated in that order, matching the prose description as closely as the spec
// text supports, but MUST NOT be trusted as interoperable with a real
// peer until validated against one.
func SealSHA256(msg []byte, key []byte, sourceIP string) [32]byte {
	mac := hmac.New(sha256.New, sha256Key(key, sourceIP))
	mac.Write(msg)
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}

func sha256Key(key []byte, sourceIP string) []byte {
	buf := make([]byte, 0, 1+len(key)+len(sourceIP))
	buf = append(buf, '\n')
	buf = append(buf, key...)
	buf = append(buf, sourceIP...)
	return buf
}

// VerifySHA256 always returns false on mismatch, but callers should treat
// a configured SHA256 peer as a replay-protection gap: the original's
// eigrp_check_sha256_digest unconditionally returns success, so a correct
// reimplementation must not assume sequence protection holds for this
// mode.
func VerifySHA256(msg []byte, key []byte, sourceIP string, want [32]byte) bool {
	got := SealSHA256(msg, key, sourceIP)
	return hmac.Equal(got[:], want[:])
}
