// Package iface implements the per-link state of §2/§3: interface
// parameters, the neighbor set, the shared output queue, and statistics.
// Reliable-transport orchestration and socket I/O live in package
// instance; this package owns the data an Interface is responsible for.
package iface

import (
	"time"

	"github.com/diivious/eigrpd/internal/addr"
	"github.com/diivious/eigrpd/internal/neighbor"
	"github.com/diivious/eigrpd/internal/timerutil"
	"github.com/diivious/eigrpd/internal/transport"
)

// Params are the per-interface config inputs of §6: metric and timer
// parameters plus authentication.
type Params struct {
	BandwidthKbps uint64
	DelayTens     uint32 // delay in tens of microseconds, the classic wire unit
	HelloInterval time.Duration
	HoldTime      time.Duration
	Passive       bool

	AuthMode   AuthMode
	KeyChain   string

	// DistributeListIn/Out name the filter.Lists entry (if any) applied
	// to routes received from, or advertised out, this interface — §6's
	// distribute-list config surface.
	DistributeListIn  string
	DistributeListOut string
}

// AuthMode selects the per-interface authentication mode of §6.
type AuthMode int

const (
	AuthNone AuthMode = iota
	AuthMD5
	AuthSHA256
)

// VersionCounters tracks the EIGRP revision mix seen on this interface —
// §4.4's "version.v1"/"version.v2"/"version.mixed" bookkeeping.
type VersionCounters struct {
	V1, V2 int
	Mixed  bool
}

// Observe records one neighbor's advertised revision.
func (v *VersionCounters) Observe(major uint8) {
	if major <= 1 {
		v.V1++
	} else {
		v.V2++
	}
	v.Mixed = v.V1 > 0 && v.V2 > 0
}

// Stats are interface-level packet counters. No code path updates them;
// sent and received packet counts are recorded only in the prometheus
// registry of internal/metrics.
type Stats struct {
	HellosSent, HellosRcvd     uint64
	UpdatesSent, UpdatesRcvd   uint64
	QueriesSent, QueriesRcvd   uint64
	RepliesSent, RepliesRcvd   uint64
}

// Interface is one enabled L3 interface bound to the Instance.
type Interface struct {
	Name    string
	Address addr.Address // this router's address on the link
	Params  Params

	Neighbors map[[4]byte]*neighbor.Neighbor // keyed by peer IPv4 host bytes

	// Output is a per-interface packet queue. The send paths in package
	// instance write straight to the socket and never push to it.
	Output *transport.Queue

	MemberAllRouters bool // joined 224.0.0.10 — §3 invariant
	Version          VersionCounters
	Stats            Stats

	HelloTimer *timerutil.Timer
}

// New creates an Interface with default LAN timing and an empty neighbor
// set.
func New(name string, address addr.Address) *Interface {
	return &Interface{
		Name:    name,
		Address: address,
		Params: Params{
			HelloInterval: neighbor.DefaultHelloIntervalLAN,
			HoldTime:      neighbor.DefaultHoldTimeLAN,
		},
		Neighbors: map[[4]byte]*neighbor.Neighbor{},
		Output:    transport.New(),
	}
}

func hostKey(a addr.Address) [4]byte {
	var k [4]byte
	ip := a.IP4()
	copy(k[:], ip)
	return k
}

// NeighborByAddr looks up a neighbor by its peer address.
func (ifc *Interface) NeighborByAddr(a addr.Address) (*neighbor.Neighbor, bool) {
	n, ok := ifc.Neighbors[hostKey(a)]
	return n, ok
}

// AddNeighbor registers a newly created neighbor.
func (ifc *Interface) AddNeighbor(n *neighbor.Neighbor) {
	ifc.Neighbors[hostKey(n.Addr)] = n
}

// RemoveNeighbor drops a neighbor from the interface's set. Callers MUST
// have already drained its queues and scrubbed it from the topology layer
// (§3's ownership-teardown order) before calling this.
func (ifc *Interface) RemoveNeighbor(a addr.Address) {
	delete(ifc.Neighbors, hostKey(a))
}

// UpNeighbors returns every neighbor currently in the Up state — used by
// DUAL's rij snapshot (§4.5) and by split-horizon evaluation.
func (ifc *Interface) UpNeighbors() []*neighbor.Neighbor {
	var up []*neighbor.Neighbor
	for _, n := range ifc.Neighbors {
		if n.State == neighbor.Up {
			up = append(up, n)
		}
	}
	return up
}

// JoinMulticast marks this interface as a member of the all-EIGRP-routers
// group. The actual socket-level join happens in package instance, which
// owns the raw socket; this just flips the bookkeeping flag the §3
// invariant names.
func (ifc *Interface) JoinMulticast() {
	ifc.MemberAllRouters = true
}

// LeaveMulticast clears the membership flag.
func (ifc *Interface) LeaveMulticast() {
	ifc.MemberAllRouters = false
}
