package tlv

import (
	"github.com/diivious/eigrpd/internal/addr"
	"github.com/diivious/eigrpd/internal/eigrperr"
)

// packedLen returns the number of destination bytes transmitted for a
// prefix of the given length: 0 for default, 1..4 bytes for /1-8, /9-16,
// /17-24, /25-32 respectively. Trailing zero bytes are never transmitted.
func packedLen(prefixLen uint8) int {
	if prefixLen == 0 {
		return 0
	}
	return int((prefixLen-1)/8) + 1
}

// putPrefix appends the packed destination bytes for a to buf.
func putPrefix(buf []byte, a addr.Address) []byte {
	n := packedLen(a.PrefixLen)
	ip := a.IP4()
	return append(buf, ip[:n]...)
}

// readPrefix reads a packed destination of prefixLen bits from buf,
// returning the resulting Address and the number of bytes consumed.
func readPrefix(buf []byte, prefixLen uint8) (addr.Address, int, error) {
	n := packedLen(prefixLen)
	if len(buf) < n {
		return addr.Address{}, 0, eigrperr.ErrCorrupt
	}
	var ip [4]byte
	copy(ip[:n], buf[:n])
	a, err := addr.V4(ip[:], prefixLen)
	if err != nil {
		return addr.Address{}, 0, eigrperr.ErrCorrupt
	}
	return a, n, nil
}
