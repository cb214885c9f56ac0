package topology

import (
	"github.com/diivious/eigrpd/internal/addr"
	"github.com/diivious/eigrpd/internal/metric"
)

// Outcome describes the side effects a Table event produced, for the
// instance layer to carry out: which packets to emit and whether the
// route-manager adapter needs an install/withdraw call (§4.5/§168).
type Outcome struct {
	Prefix addr.Address

	StateChanged bool
	State        DualState

	// SendQueryTo/SendSIAQueryTo list the neighbors a Query/SIA-Query
	// must reach; the instance layer is responsible for routing each
	// through its owning interface and applying split horizon.
	SendQueryTo    []addr.Address
	SendSIAQueryTo []addr.Address

	// SendReplyTo is set when returning to Passive after being asked a
	// Query — nil if this Active phase was self-triggered.
	SendReplyTo *addr.Address

	// SendUpdate signals a new reported distance must be advertised to
	// all neighbors (subject to split horizon).
	SendUpdate bool

	// ForceDown lists neighbors an expired, twice-fired SIA timer
	// deems unresponsive; the instance layer tears them down.
	ForceDown []addr.Address

	InstallChanged bool
	Withdraw       bool
	Successors     []*RouteDescriptor
	Distance       uint64
}

// Table is the prefix-indexed topology table of §3, holding every
// PrefixDescriptor and driving their DUAL transitions.
type Table struct {
	K        metric.KVector
	Variance uint64
	MaxPaths int

	tree *ptree
}

// New creates an empty Table. variance must be >= 1 (§6: variance == 0 is
// rejected at config time, enforced by the caller before this point).
func New(k metric.KVector, variance uint64, maxPaths int) *Table {
	return &Table{K: k, Variance: variance, MaxPaths: maxPaths, tree: newPtree()}
}

// Get looks up the descriptor for an exact prefix.
func (t *Table) Get(prefix addr.Address) (*PrefixDescriptor, bool) {
	return t.tree.exact(prefix)
}

func (t *Table) getOrCreate(prefix addr.Address) *PrefixDescriptor {
	if p, ok := t.tree.exact(prefix); ok {
		return p
	}
	p := NewPrefixDescriptor(prefix.Network())
	t.tree.insert(p)
	return p
}

// Delete removes a prefix entirely — only valid once Empty().
func (t *Table) Delete(prefix addr.Address) {
	t.tree.remove(prefix)
}

// Walk visits every descriptor, in no particular order.
func (t *Table) Walk(fn func(*PrefixDescriptor)) {
	t.tree.walk(fn)
}

// applyData unconditionally overwrites (or creates) the RouteDescriptor for
// origin with freshly reported data — valid whether the prefix is Passive
// or Active, since an Active prefix still needs to remember what each
// advertiser last said in order to reselect once rij drains (§4.5).
func (p *PrefixDescriptor) applyData(origin RouteOrigin, reported, total metric.VectorMetric) {
	r := p.routeFor(origin, true)
	r.ReportedMetric = reported
	r.TotalMetric = total
}

// goActive snapshots rij from upNeighbors (every Up neighbor on every
// interface, minus the neighbor this event arrived from when it is itself
// the Query/Reply originator — callers pass the full up-neighbor set and
// this applies no further filtering, matching §4.5's literal "all
// up-neighbors on all interfaces minus split-horizon exclusions": the
// split-horizon exclusion is evaluated by the instance layer when it
// actually emits each Query, not by narrowing rij itself) and returns the
// neighbors a Query must be sent to.
func (t *Table) goActive(p *PrefixDescriptor, upNeighbors []addr.Address, queryOrigin *addr.Address, queryOriginIf string) Outcome {
	p.State = Active0
	p.Rij = make(map[[4]byte]addr.Address, len(upNeighbors))
	for _, n := range upNeighbors {
		p.Rij[hostKey(n)] = n
	}
	p.ActiveOrigin = queryOrigin
	p.ActiveOriginIf = queryOriginIf
	p.SIAStrikes = 0

	return Outcome{
		Prefix:       p.Prefix,
		StateChanged: true,
		State:        p.State,
		SendQueryTo:  upNeighbors,
		Distance:     p.Distance,
	}
}

// goPassive reselects the successor set across all feasible routes
// (including ones that arrived while Active), replies to whoever started
// this Active phase, and advertises the new reported distance (§4.5).
func (t *Table) goPassive(p *PrefixDescriptor) Outcome {
	prevSuccessors := successorSet(p)
	// Unfreeze fdistance so every route is feasibility-checked against the
	// true best available distance, then let recompute settle it to the
	// new minimum.
	p.FDistance = metric.Infinity
	p.recompute(t.K, t.Variance, t.MaxPaths)

	p.State = Passive
	origin := p.ActiveOrigin
	p.ActiveOrigin = nil
	p.ActiveOriginIf = ""
	p.Rij = map[[4]byte]addr.Address{}
	p.SIAStrikes = 0

	changed := !sameSet(prevSuccessors, successorSet(p))

	out := Outcome{
		Prefix:         p.Prefix,
		StateChanged:   true,
		State:          Passive,
		SendReplyTo:    origin,
		SendUpdate:     true,
		InstallChanged: changed,
		Successors:     p.Successors(),
		Distance:       p.Distance,
	}
	if len(p.Successors()) == 0 {
		out.Withdraw = true
	}
	return out
}

// ApplyUpdate handles a received Update TLV for prefix from origin — §4.5's
// Passive-row processing: data is always applied, and if Passive, the
// successor set is recomputed; losing the last feasible successor starts a
// diffusing computation.
func (t *Table) ApplyUpdate(prefix addr.Address, origin RouteOrigin, reported, total metric.VectorMetric, upNeighbors []addr.Address) Outcome {
	p := t.getOrCreate(prefix)
	p.applyData(origin, reported, total)

	if p.State != Passive {
		return Outcome{Prefix: p.Prefix, State: p.State}
	}

	prevSuccessors := successorSet(p)
	p.recompute(t.K, t.Variance, t.MaxPaths)

	if p.hasFeasibleSuccessor() {
		changed := !sameSet(prevSuccessors, successorSet(p))
		out := Outcome{
			Prefix:         p.Prefix,
			State:          Passive,
			SendUpdate:     changed,
			InstallChanged: changed,
			Successors:     p.Successors(),
			Distance:       p.Distance,
		}
		if changed && len(p.Successors()) == 0 {
			out.Withdraw = true
		}
		return out
	}

	return t.goActive(p, upNeighbors, nil, "")
}

// ApplyLinkUp installs ei's own connected network as a Self-origin route
// with reported distance 0 — §4.4's directly-connected entries, driven by
// the LINK-UP(ei) FSM input event (§4.5). It is processed exactly like a
// received Update from that origin.
func (t *Table) ApplyLinkUp(prefix addr.Address, ifName string, linkMetric metric.VectorMetric, upNeighbors []addr.Address) Outcome {
	return t.ApplyUpdate(prefix, RouteOrigin{Self: true, IfName: ifName}, metric.VectorMetric{}, linkMetric, upNeighbors)
}

// ApplyLinkDown withdraws ei's connected route on LINK-DOWN(ei) (§4.5),
// then recomputes or goes Active the same way ApplyUpdate does.
func (t *Table) ApplyLinkDown(prefix addr.Address, upNeighbors []addr.Address) Outcome {
	p, ok := t.Get(prefix)
	if !ok || !p.RemoveSelfRoute() {
		return Outcome{Prefix: prefix}
	}

	if p.State != Passive {
		return Outcome{Prefix: p.Prefix, State: p.State}
	}

	prevSuccessors := successorSet(p)
	p.recompute(t.K, t.Variance, t.MaxPaths)

	if p.hasFeasibleSuccessor() {
		changed := !sameSet(prevSuccessors, successorSet(p))
		out := Outcome{
			Prefix:         p.Prefix,
			State:          Passive,
			SendUpdate:     changed,
			InstallChanged: changed,
			Successors:     p.Successors(),
			Distance:       p.Distance,
		}
		if changed && len(p.Successors()) == 0 {
			out.Withdraw = true
		}
		return out
	}

	return t.goActive(p, upNeighbors, nil, "")
}

// ApplyQuery handles a received Query TLV: the data is applied exactly as
// an Update, and in addition the querying neighbor must always get a Reply
// once this prefix (re)settles in Passive — if it is already Passive that
// Reply is immediate.
func (t *Table) ApplyQuery(prefix addr.Address, origin RouteOrigin, reported, total metric.VectorMetric, queryFrom addr.Address, queryFromIf string, upNeighbors []addr.Address) Outcome {
	p := t.getOrCreate(prefix)
	p.applyData(origin, reported, total)

	if p.State != Passive {
		return Outcome{Prefix: p.Prefix, State: p.State}
	}

	prevSuccessors := successorSet(p)
	p.recompute(t.K, t.Variance, t.MaxPaths)

	if p.hasFeasibleSuccessor() {
		changed := !sameSet(prevSuccessors, successorSet(p))
		from := queryFrom
		out := Outcome{
			Prefix:         p.Prefix,
			State:          Passive,
			SendReplyTo:    &from,
			SendUpdate:     changed,
			InstallChanged: changed,
			Successors:     p.Successors(),
			Distance:       p.Distance,
		}
		if changed && len(p.Successors()) == 0 {
			out.Withdraw = true
		}
		return out
	}

	return t.goActive(p, upNeighbors, &queryFrom, queryFromIf)
}

// ApplyReply handles a received Reply TLV: data is applied, the replying
// neighbor is cleared from rij, and an empty rij returns the prefix to
// Passive.
func (t *Table) ApplyReply(prefix addr.Address, origin RouteOrigin, reported, total metric.VectorMetric) Outcome {
	p, ok := t.Get(prefix)
	if !ok {
		return Outcome{Prefix: prefix}
	}
	p.applyData(origin, reported, total)

	if p.State == Passive {
		return Outcome{Prefix: p.Prefix, State: Passive}
	}

	if !origin.Self {
		delete(p.Rij, hostKey(origin.Neighbor))
	}

	if len(p.Rij) == 0 {
		return t.goPassive(p)
	}
	return Outcome{Prefix: p.Prefix, State: p.State}
}

// ApplySIAReply marks nbr as still alive without removing it from rij —
// §4.5: the computation keeps waiting, but the strike counter resets.
func (t *Table) ApplySIAReply(prefix addr.Address, nbr addr.Address) Outcome {
	p, ok := t.Get(prefix)
	if !ok || p.State == Passive {
		return Outcome{Prefix: prefix}
	}
	if _, outstanding := p.Rij[hostKey(nbr)]; outstanding {
		p.SIAStrikes = 0
	}
	return Outcome{Prefix: p.Prefix, State: p.State}
}

// SIATimerFired implements §4.5's two-strike SIA escalation: the first
// firing re-queries every still-outstanding neighbor, the second forces
// them down (their pending replies are then synthesized as infinite-metric
// replies via NeighborDown).
func (t *Table) SIATimerFired(prefix addr.Address) Outcome {
	p, ok := t.Get(prefix)
	if !ok || p.State == Passive {
		return Outcome{Prefix: prefix}
	}

	outstanding := make([]addr.Address, 0, len(p.Rij))
	for _, n := range p.Rij {
		outstanding = append(outstanding, n)
	}

	if p.SIAStrikes == 0 {
		p.SIAStrikes = 1
		return Outcome{Prefix: p.Prefix, State: p.State, SendSIAQueryTo: outstanding}
	}

	return Outcome{Prefix: p.Prefix, State: p.State, ForceDown: outstanding}
}

// NeighborDown applies the consequences of a neighbor's session ending
// (§3's teardown order) to every prefix in the table: its RouteDescriptor
// is removed everywhere, and if it was an outstanding rij entry for an
// Active prefix that is treated as an infinite-metric Reply.
func (t *Table) NeighborDown(nbr addr.Address) []Outcome {
	var outcomes []Outcome
	t.Walk(func(p *PrefixDescriptor) {
		hadRoute := p.RemoveRoute(nbr)

		_, wasOutstanding := p.Rij[hostKey(nbr)]
		if wasOutstanding {
			delete(p.Rij, hostKey(nbr))
		}

		switch {
		case wasOutstanding && len(p.Rij) == 0:
			outcomes = append(outcomes, t.goPassive(p))
		case hadRoute && p.State == Passive:
			prevSuccessors := successorSet(p)
			p.recompute(t.K, t.Variance, t.MaxPaths)
			if p.hasFeasibleSuccessor() {
				changed := !sameSet(prevSuccessors, successorSet(p))
				out := Outcome{
					Prefix:         p.Prefix,
					State:          Passive,
					SendUpdate:     changed,
					InstallChanged: changed,
					Successors:     p.Successors(),
					Distance:       p.Distance,
				}
				if changed && len(p.Successors()) == 0 {
					out.Withdraw = true
				}
				outcomes = append(outcomes, out)
			}
			// else: no upNeighbors snapshot available here — a neighbor
			// loss that also strips the last feasible successor must be
			// driven through LinkDown/ApplyUpdate by the instance layer,
			// which has the current up-neighbor set to pass along.
		}
	})
	return outcomes
}
