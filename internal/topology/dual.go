package topology

import (
	"sort"

	"github.com/diivious/eigrpd/internal/metric"
)

// recompute re-scores every route against k, re-sorts by distance, and —
// only meaningful while Passive — recomputes the feasible-successor and
// successor flags per §4.5. It reports whether the successor set changed.
// Callers must not invoke this while Active: a diffusing computation's
// fdistance stays frozen and its successor set is left untouched until
// rij drains and the prefix returns to Passive (§4.5).
func (p *PrefixDescriptor) recompute(k metric.KVector, variance uint64, maxPaths int) bool {
	for _, r := range p.Routes {
		r.Distance = metric.Composite(r.TotalMetric, k)
		r.ReportedDistance = metric.Composite(r.ReportedMetric, k)
	}

	sort.SliceStable(p.Routes, func(i, j int) bool {
		return p.Routes[i].Distance < p.Routes[j].Distance
	})

	before := successorSet(p)

	for _, r := range p.Routes {
		r.FeasibleSuccessor = r.Distance != metric.Infinity && r.Feasible(p.FDistance)
	}

	var best uint64 = metric.Infinity
	for _, r := range p.Routes {
		if r.FeasibleSuccessor && r.Distance < best {
			best = r.Distance
		}
	}

	selected := 0
	for _, r := range p.Routes {
		r.Successor = false
		if !r.FeasibleSuccessor || best == metric.Infinity {
			continue
		}
		if selected >= maxPaths {
			continue
		}
		if withinVariance(r.Distance, best, variance) {
			r.Successor = true
			selected++
		}
	}

	if selected == 0 {
		p.Distance = metric.Infinity
	} else {
		p.Distance = best
	}
	p.FDistance = p.Distance

	after := successorSet(p)
	return !sameSet(before, after)
}

// withinVariance reports whether d is within best*variance, saturating to
// "always true" on overflow rather than wrapping (§6's `variance N`).
func withinVariance(d, best, variance uint64) bool {
	if variance <= 1 {
		return d == best
	}
	scaled, ok := mulSat(best, variance)
	if !ok {
		return true
	}
	return d <= scaled
}

func mulSat(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	r := a * b
	if r/a != b {
		return 0, false
	}
	return r, true
}

func successorSet(p *PrefixDescriptor) map[RouteOrigin]bool {
	set := map[RouteOrigin]bool{}
	for _, r := range p.Routes {
		if r.Successor {
			set[r.Origin] = true
		}
	}
	return set
}

func sameSet(a, b map[RouteOrigin]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// hasFeasibleSuccessor reports whether any route currently qualifies as a
// feasible successor, the condition that decides Passive vs Active on a
// worsening event (§4.5).
func (p *PrefixDescriptor) hasFeasibleSuccessor() bool {
	for _, r := range p.Routes {
		if r.FeasibleSuccessor {
			return true
		}
	}
	return false
}

// LearnedVia reports whether any current successor's best path was learned
// on ifName.
func (p *PrefixDescriptor) LearnedVia(ifName string) bool {
	for _, r := range p.Routes {
		if r.Successor && r.Origin.IfName == ifName {
			return true
		}
	}
	return false
}

// SplitHorizonSuppress reports whether a Update/Query/Reply about this
// prefix must be withheld from outIfName — §4.5: suppressed unless the
// prefix is at Infinity, in which case poisoning it back out is required,
// not suppressed.
func (p *PrefixDescriptor) SplitHorizonSuppress(outIfName string) bool {
	if p.Distance == metric.Infinity {
		return false
	}
	return p.LearnedVia(outIfName)
}
