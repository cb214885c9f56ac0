// Package topology implements the prefix-indexed routing information
// base and the DUAL finite state machine of §4.5: PrefixDescriptor,
// RouteDescriptor, successor selection, split horizon, and the
// Passive/Active-k state transitions.
package topology

import (
	"github.com/diivious/eigrpd/internal/addr"
	"github.com/diivious/eigrpd/internal/metric"
)

// DualState is a PrefixDescriptor's position in the five-state FSM of
// §4.5. goActive always enters Active0 and nothing moves a prefix on to
// Active1..3; those values exist so String can name them, and the
// transition logic treats every Active-k value the same (DESIGN.md
// records this decision).
type DualState int

const (
	Passive DualState = iota
	Active0
	Active1
	Active2
	Active3
)

func (s DualState) String() string {
	switch s {
	case Passive:
		return "Passive"
	case Active0:
		return "Active0"
	case Active1:
		return "Active1"
	case Active2:
		return "Active2"
	case Active3:
		return "Active3"
	default:
		return "Unknown"
	}
}

// Active reports whether s is any of the Active-k substates.
func (s DualState) Active() bool {
	return s != Passive
}

// RouteOrigin identifies who advertised a RouteDescriptor: either a
// neighbor address+interface, or the self-originated connected route.
type RouteOrigin struct {
	Self     bool
	Neighbor addr.Address
	IfName   string
}

// RouteDescriptor is one advertiser's contribution to a PrefixDescriptor
// — §3.
type RouteDescriptor struct {
	Origin RouteOrigin

	ReportedMetric metric.VectorMetric
	TotalMetric    metric.VectorMetric

	ReportedDistance uint64
	Distance         uint64

	Successor         bool
	FeasibleSuccessor bool
	InKernel          bool
}

// Feasible reports whether this route satisfies the feasibility condition
// against fdistance: reported_distance < fdistance.
func (r *RouteDescriptor) Feasible(fdistance uint64) bool {
	return r.ReportedDistance < fdistance
}

// PrefixDescriptor is one destination in the topology table — §3.
type PrefixDescriptor struct {
	Prefix addr.Address

	// Routes is stable-sorted by Distance on every recompute, so routes
	// of equal distance keep their insertion order; ties in successor
	// selection are broken by that order (§4.5).
	Routes []*RouteDescriptor

	// Rij is the outstanding-reply neighbor set while Active, keyed by
	// neighbor host address bytes.
	Rij map[[4]byte]addr.Address

	FDistance uint64
	RDistance uint64
	Distance  uint64
	State     DualState

	// ActiveOrigin is the neighbor whose Query started the current
	// Active phase, if any; a locally triggered Active phase (own link
	// down/cost increase) leaves this unset, and on return to Passive
	// no Reply is sent anywhere.
	ActiveOrigin   *addr.Address
	ActiveOriginIf string

	// SIAStrikes counts consecutive SIA-timer firings with no Reply
	// received since the last one; two strikes force the unresponsive
	// neighbor down (§4.5).
	SIAStrikes int
}

// NewPrefixDescriptor creates an empty, Passive descriptor for prefix.
func NewPrefixDescriptor(prefix addr.Address) *PrefixDescriptor {
	return &PrefixDescriptor{
		Prefix:    prefix,
		FDistance: metric.Infinity,
		RDistance: metric.Infinity,
		Distance:  metric.Infinity,
		State:     Passive,
		Rij:       map[[4]byte]addr.Address{},
	}
}

func hostKey(a addr.Address) [4]byte {
	var k [4]byte
	ip := a.IP4()
	copy(k[:], ip)
	return k
}

// routeFor finds (or, if create is true, creates and appends) the
// RouteDescriptor for origin, preserving insertion order.
func (p *PrefixDescriptor) routeFor(origin RouteOrigin, create bool) *RouteDescriptor {
	for _, r := range p.Routes {
		if sameOrigin(r.Origin, origin) {
			return r
		}
	}
	if !create {
		return nil
	}
	r := &RouteDescriptor{Origin: origin, Distance: metric.Infinity, ReportedDistance: metric.Infinity}
	p.Routes = append(p.Routes, r)
	return r
}

func sameOrigin(a, b RouteOrigin) bool {
	if a.Self != b.Self {
		return false
	}
	if a.Self {
		return true
	}
	return a.Neighbor.Equal(b.Neighbor)
}

// RemoveRoute deletes the RouteDescriptor from the given neighbor,
// preserving the order of the rest — used on neighbor-down (§3).
func (p *PrefixDescriptor) RemoveRoute(neighborAddr addr.Address) bool {
	for i, r := range p.Routes {
		if !r.Origin.Self && r.Origin.Neighbor.Equal(neighborAddr) {
			p.Routes = append(p.Routes[:i], p.Routes[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveSelfRoute deletes the directly-connected RouteDescriptor, if any
// — used on LINK-DOWN (§4.5's FSM input event list).
func (p *PrefixDescriptor) RemoveSelfRoute() bool {
	for i, r := range p.Routes {
		if r.Origin.Self {
			p.Routes = append(p.Routes[:i], p.Routes[i+1:]...)
			return true
		}
	}
	return false
}

// Empty reports whether the descriptor has no routes at all (neither
// learned nor connected) — the condition under which it should be
// destroyed (§3).
func (p *PrefixDescriptor) Empty() bool {
	return len(p.Routes) == 0
}

// Successors returns the current successor set.
func (p *PrefixDescriptor) Successors() []*RouteDescriptor {
	var succ []*RouteDescriptor
	for _, r := range p.Routes {
		if r.Successor {
			succ = append(succ, r)
		}
	}
	return succ
}
