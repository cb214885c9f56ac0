// Package instance ties neighbor, iface, transport, and topology together
// into the running router: the single-threaded event loop of §5, reliable
// send/ack orchestration, and TLV dispatch into the DUAL state machine.
// Everything below this package only owns data and pure methods; this is
// where they get wired to each other and to the raw socket.
package instance

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/diivious/eigrpd/internal/addr"
	"github.com/diivious/eigrpd/internal/auth"
	"github.com/diivious/eigrpd/internal/filter"
	"github.com/diivious/eigrpd/internal/iface"
	"github.com/diivious/eigrpd/internal/metric"
	"github.com/diivious/eigrpd/internal/metrics"
	"github.com/diivious/eigrpd/internal/neighbor"
	"github.com/diivious/eigrpd/internal/routemgr"
	"github.com/diivious/eigrpd/internal/timerutil"
	"github.com/diivious/eigrpd/internal/topology"
)

// Instance is one EIGRP process bound to a VRF — §3's top-level entity.
type Instance struct {
	AS   uint16
	VRID uint16

	K        metric.KVector
	Variance uint64
	MaxPaths int

	Interfaces map[string]*iface.Interface
	Table      *topology.Table
	RouteMgr   routemgr.Manager
	Keychain   auth.Keychain
	Filters    filter.Lists

	Log     *logrus.Logger
	Metrics *metrics.Registry
	limiter *rate.Limiter

	selfSeq uint32

	// siaTimers holds the recurring stuck-in-active check for every
	// prefix currently Active, keyed by its prefix.Key(). Armed on the
	// Passive->Active transition, stopped when the prefix returns to
	// Passive.
	siaTimers map[[5]byte]*timerutil.Timer

	events chan event
	sock   Socket
}

// Config bundles the construction-time parameters of an Instance.
type Config struct {
	AS         uint16
	VRID       uint16
	K          metric.KVector
	Variance   uint64
	MaxPaths   int
	RouteMgr   routemgr.Manager
	Keychain   auth.Keychain
	Filters    filter.Lists
	Log        *logrus.Logger
	MetricsReg *metrics.Registry
	Socket     Socket
}

// New creates an Instance with an empty interface set and topology table.
// variance == 0 is rejected — §6 requires config-time validation before a
// caller ever reaches this point, but New double-checks it as well (the
// topology table itself treats any variance of 1 or less as equal-cost
// successors only).
func New(cfg Config) (*Instance, error) {
	if cfg.Variance == 0 {
		return nil, fmt.Errorf("instance: variance must be >= 1")
	}
	if cfg.MaxPaths <= 0 {
		cfg.MaxPaths = 4
	}
	if cfg.Log == nil {
		cfg.Log = logrus.New()
	}
	in := &Instance{
		AS:         cfg.AS,
		VRID:       cfg.VRID,
		K:          cfg.K,
		Variance:   cfg.Variance,
		MaxPaths:   cfg.MaxPaths,
		Interfaces: map[string]*iface.Interface{},
		Table:      topology.New(cfg.K, cfg.Variance, cfg.MaxPaths),
		RouteMgr:   cfg.RouteMgr,
		Keychain:   cfg.Keychain,
		Filters:    cfg.Filters,
		Log:        cfg.Log,
		Metrics:    cfg.MetricsReg,
		limiter:    rate.NewLimiter(rate.Every(0), 0),
		siaTimers:  map[[5]byte]*timerutil.Timer{},
		events:     make(chan event, 256),
		sock:       cfg.Socket,
	}
	if in.RouteMgr != nil {
		in.watchRouteMgr()
	}
	return in, nil
}

// AddInterface enables ei on this instance, arms its Hello timer, and
// fires the LINK-UP(ei) FSM input event of §4.5.
func (in *Instance) AddInterface(ei *iface.Interface) {
	in.Interfaces[ei.Name] = ei
	ei.JoinMulticast()
	if in.sock != nil {
		if err := in.sock.JoinGroup(ei.Name); err != nil {
			in.Log.WithError(err).WithField("iface", ei.Name).Warn("multicast join failed")
		}
	}
	in.armHelloTimer(ei)
	in.handleLinkUp(ei.Name)
}

// RemoveInterface fires LINK-DOWN(ei), then forgets the interface entirely
// — unlike a transient link flap, this is a permanent removal.
func (in *Instance) RemoveInterface(name string) {
	if _, ok := in.Interfaces[name]; !ok {
		return
	}
	in.handleLinkDown(name)
	delete(in.Interfaces, name)
}

// handleLinkUp installs ei's connected network as a Self-origin route —
// §4.4's directly-connected entries, driven by the LINK-UP(ei) FSM input
// event (§4.5). Reached both from AddInterface and from a kernel-observed
// link-up notification relayed through RouteMgr.Subscribe.
func (in *Instance) handleLinkUp(ifName string) {
	ei, ok := in.Interfaces[ifName]
	if !ok {
		return
	}
	out := in.Table.ApplyLinkUp(ei.Address.Network(), ei.Name, selfMetric(ei), in.upNeighborAddrs())
	in.applyOutcome(out)
}

// handleLinkDown tears down every neighbor on ifName and withdraws its
// connected route — LINK-DOWN(ei), §4.5. Reached both from RemoveInterface
// and from a kernel-observed link-down notification.
func (in *Instance) handleLinkDown(ifName string) {
	ei, ok := in.Interfaces[ifName]
	if !ok {
		return
	}
	for peer := range ei.Neighbors {
		in.teardownNeighbor(ei, addrFromHostKey(peer), eigrpLinkDown)
	}
	out := in.Table.ApplyLinkDown(ei.Address.Network(), in.upNeighborAddrs())
	in.applyOutcome(out)
}

// watchRouteMgr subscribes to the route manager's interface-event feed so
// a kernel-observed link flap drives the same LINK-UP/LINK-DOWN FSM input
// events AddInterface/RemoveInterface drive explicitly. The callback runs
// on RouteMgr's own goroutine, so it only ever Posts, per §5.
func (in *Instance) watchRouteMgr() {
	in.RouteMgr.Subscribe(func(ev routemgr.InterfaceEvent) {
		switch ev.Kind {
		case routemgr.InterfaceUp, routemgr.AddrAdd:
			in.Post(event{kind: evLinkState, ifName: ev.IfName, up: true})
		case routemgr.InterfaceDown, routemgr.AddrDel:
			in.Post(event{kind: evLinkState, ifName: ev.IfName, up: false})
		}
	})
}

// nextSequence returns this router's next self-originated sequence number
// for a reliable packet — §4.3 requires these to be strictly increasing
// per instance, not per neighbor.
func (in *Instance) nextSequence() uint32 {
	in.selfSeq++
	if in.Metrics != nil {
		in.Metrics.Sequence.Set(float64(in.selfSeq))
	}
	return in.selfSeq
}

func addrFromHostKey(k [4]byte) addr.Address {
	a, _ := addr.V4(k[:], 32)
	return a
}

// upNeighborAddrs collects every Up neighbor across every interface, the
// rij snapshot §4.5 requires when a prefix goes Active.
func (in *Instance) upNeighborAddrs() []addr.Address {
	var out []addr.Address
	for _, ei := range in.Interfaces {
		for _, n := range ei.UpNeighbors() {
			out = append(out, n.Addr)
		}
	}
	return out
}

// findNeighbor locates a neighbor by address across every interface.
func (in *Instance) findNeighbor(a addr.Address) (*neighbor.Neighbor, *iface.Interface, bool) {
	for _, ei := range in.Interfaces {
		if n, ok := ei.NeighborByAddr(a); ok {
			return n, ei, true
		}
	}
	return nil, nil, false
}
