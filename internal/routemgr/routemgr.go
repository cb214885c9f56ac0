// Package routemgr defines the route-manager external-collaborator
// contract of §4.6 and a Linux netlink-backed default implementation.
// The contract is idempotent on unchanged input: two successive Install
// calls with equal arguments MUST produce exactly one underlying kernel
// write (§8).
package routemgr

import "github.com/diivious/eigrpd/internal/addr"

// Gateway is one ECMP next hop for an installed prefix.
type Gateway struct {
	NextHop  addr.Address
	OutIntf  string
}

// Manager is the contract §4.6 names: install/withdraw plus an
// interface-event callback the core subscribes to.
type Manager interface {
	Install(prefix addr.Address, gateways []Gateway, adminDistance uint32) error
	Withdraw(prefix addr.Address) error
	Subscribe(handler func(InterfaceEvent))
}

// InterfaceEventKind enumerates the events §4.6 and the supplemental
// §12 bandwidth/MTU reporting define.
type InterfaceEventKind int

const (
	InterfaceUp InterfaceEventKind = iota
	InterfaceDown
	AddrAdd
	AddrDel
	MTUChanged
	BandwidthChanged
)

// InterfaceEvent is one notification from the route manager about a link
// the instance cares about.
type InterfaceEvent struct {
	Kind      InterfaceEventKind
	IfName    string
	Addr      addr.Address // valid for AddrAdd/AddrDel
	MTU       uint32       // valid for MTUChanged
	Bandwidth uint64       // kbit/s, valid for BandwidthChanged
}
