// Package addr holds the tagged address container the codec and topology
// layers pass around. The core is IPv4-only, but addresses travel tagged by
// family so decode paths can reject IPv6 cleanly instead of misreading it.
package addr

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Family identifies the address family carried by an Address.
type Family uint8

const (
	// FamilyIPv4 is the only family the core implements.
	FamilyIPv4 Family = 4
	// FamilyIPv6 is recognized only so decode paths can reject it cleanly.
	FamilyIPv6 Family = 6
)

// Address is an IPv4 prefix, or a bare IPv4 host when PrefixLen == 32.
type Address struct {
	Family   Family
	IP       uint32 // host byte order, valid only when Family == FamilyIPv4
	PrefixLen uint8
}

// V4 builds an Address from a net.IP (which must be a 4-byte address) and a
// prefix length.
func V4(ip net.IP, prefixLen uint8) (Address, error) {
	ip4 := ip.To4()
	if ip4 == nil {
		return Address{}, fmt.Errorf("addr: %s is not an IPv4 address", ip)
	}
	return Address{
		Family:    FamilyIPv4,
		IP:        binary.BigEndian.Uint32(ip4),
		PrefixLen: prefixLen,
	}, nil
}

// Host returns an Address representing a /32 host route.
func Host(ip net.IP) (Address, error) {
	return V4(ip, 32)
}

// ParseCIDR parses a "a.b.c.d/n" string into an Address.
func ParseCIDR(s string) (Address, error) {
	ip, ipnet, err := net.ParseCIDR(s)
	if err != nil {
		return Address{}, err
	}
	ones, _ := ipnet.Mask.Size()
	return V4(ip, uint8(ones))
}

// IP4 returns the net.IP form of the address.
func (a Address) IP4() net.IP {
	b := make(net.IP, 4)
	binary.BigEndian.PutUint32(b, a.IP)
	return b
}

// Network masks the address down to its network/prefix portion.
func (a Address) Network() Address {
	if a.PrefixLen >= 32 {
		return a
	}
	mask := uint32(0xFFFFFFFF) << (32 - a.PrefixLen)
	a.IP = a.IP & mask
	return a
}

// String renders the address as "a.b.c.d/n".
func (a Address) String() string {
	return fmt.Sprintf("%s/%d", a.IP4(), a.PrefixLen)
}

// Key is a comparable value suitable for use as a map key identifying this
// exact prefix (address+length), the unit the topology table indexes on.
func (a Address) Key() [5]byte {
	var k [5]byte
	binary.BigEndian.PutUint32(k[:4], a.Network().IP)
	k[4] = a.PrefixLen
	return k
}

// Equal reports whether two addresses denote the same prefix.
func (a Address) Equal(b Address) bool {
	return a.Family == b.Family && a.PrefixLen == b.PrefixLen && a.Network().IP == b.Network().IP
}

// Contains reports whether a (as a network) contains b (as a host or a more
// specific network) — used by the prefix index to nest prefixes under
// their covering prefix; that index does exact-match lookups only.
func (a Address) Contains(b Address) bool {
	if a.PrefixLen > b.PrefixLen {
		return false
	}
	if a.PrefixLen == 0 {
		return true
	}
	mask := uint32(0xFFFFFFFF) << (32 - a.PrefixLen)
	return (a.IP & mask) == (b.IP & mask)
}
