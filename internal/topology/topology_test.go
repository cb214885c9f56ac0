package topology

import (
	"testing"

	"github.com/diivious/eigrpd/internal/addr"
	"github.com/diivious/eigrpd/internal/metric"
)

func mustAddr(t *testing.T, s string) addr.Address {
	t.Helper()
	a, err := addr.ParseCIDR(s)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func nbrOrigin(t *testing.T, ip, ifName string) RouteOrigin {
	t.Helper()
	return RouteOrigin{Neighbor: mustAddr(t, ip+"/32"), IfName: ifName}
}

func TestPtreeExactAndRemove(t *testing.T) {
	tree := newPtree()
	p1 := NewPrefixDescriptor(mustAddr(t, "10.1.1.0/24"))
	p2 := NewPrefixDescriptor(mustAddr(t, "10.1.2.0/24"))
	tree.insert(p1)
	tree.insert(p2)

	if got, ok := tree.exact(mustAddr(t, "10.1.1.0/24")); !ok || got != p1 {
		t.Fatal("expected exact match for p1")
	}
	if !tree.remove(mustAddr(t, "10.1.1.0/24")) {
		t.Fatal("expected remove to report success")
	}
	if _, ok := tree.exact(mustAddr(t, "10.1.1.0/24")); ok {
		t.Fatal("expected p1 gone")
	}
	if got, ok := tree.exact(mustAddr(t, "10.1.2.0/24")); !ok || got != p2 {
		t.Fatal("expected p2 still present after sibling removal")
	}
}

func TestSuccessorSelectionEqualCostVarianceOne(t *testing.T) {
	tbl := New(metric.DefaultKVector, 1, 4)
	prefix := mustAddr(t, "192.168.1.0/24")

	a := nbrOrigin(t, "10.0.0.1", "eth0")
	b := nbrOrigin(t, "10.0.0.2", "eth1")

	reported := metric.VectorMetric{Delay: 5, Bandwidth: 1000}
	total := metric.VectorMetric{Delay: 10, Bandwidth: 1000}

	out := tbl.ApplyUpdate(prefix, a, reported, total, nil)
	if out.State != Passive {
		t.Fatalf("expected Passive after first update, got %s", out.State)
	}
	out = tbl.ApplyUpdate(prefix, b, reported, total, nil)
	if out.State != Passive || len(out.Successors) != 2 {
		t.Fatalf("expected 2 equal-cost successors, got %d (state %s)", len(out.Successors), out.State)
	}
}

func TestFeasibilityConditionRejectsNonFeasible(t *testing.T) {
	p := NewPrefixDescriptor(mustAddr(t, "192.168.1.0/24"))
	p.FDistance = 100
	good := &RouteDescriptor{ReportedDistance: 50, Distance: 10}
	bad := &RouteDescriptor{ReportedDistance: 150, Distance: 5}

	if !good.Feasible(p.FDistance) {
		t.Fatal("expected reported_distance < fdistance to be feasible")
	}
	if bad.Feasible(p.FDistance) {
		t.Fatal("expected reported_distance >= fdistance to be infeasible even with a lower total distance")
	}
}

func TestSplitHorizonSuppressesExceptPoisoned(t *testing.T) {
	p := NewPrefixDescriptor(mustAddr(t, "192.168.1.0/24"))
	p.Routes = []*RouteDescriptor{
		{Origin: RouteOrigin{Neighbor: mustAddr(t, "10.0.0.1/32"), IfName: "eth0"}, Successor: true, Distance: 10},
	}
	p.Distance = 10

	if !p.SplitHorizonSuppress("eth0") {
		t.Fatal("expected advertisement suppressed back out the learned interface")
	}
	if p.SplitHorizonSuppress("eth1") {
		t.Fatal("expected no suppression on a different interface")
	}

	p.Distance = metric.Infinity
	if p.SplitHorizonSuppress("eth0") {
		t.Fatal("expected poisoned (infinite) route allowed back out the learned interface")
	}
}

// TestActivePhaseThreeNodeString reproduces the scenario of the testable
// properties list: a three-node string A-B-C where A's route withdraws, B
// loses its only feasible successor and goes Active, C eventually replies
// with infinity, and B returns to Passive and withdraws.
func TestActivePhaseThreeNodeString(t *testing.T) {
	tbl := New(metric.DefaultKVector, 1, 4)
	prefix := mustAddr(t, "10.9.9.0/24")

	a := nbrOrigin(t, "10.0.0.1", "eth0") // toward A, via eth0
	c := mustAddr(t, "10.0.1.2/32")       // B's neighbor C, reachable via eth1

	// B first learns the route only from A.
	out := tbl.ApplyUpdate(prefix, a, metric.VectorMetric{Delay: 5, Bandwidth: 1000}, metric.VectorMetric{Delay: 10, Bandwidth: 1000}, nil)
	if out.State != Passive || len(out.Successors) != 1 {
		t.Fatalf("expected single passive successor, got state=%s succ=%d", out.State, len(out.Successors))
	}

	// A withdraws (infinite metric Update) -> B has no feasible successor
	// left -> goes Active and must Query every up-neighbor, including C.
	upNeighbors := []addr.Address{c}
	out = tbl.ApplyUpdate(prefix, a, metric.VectorMetric{Delay: metric.Infinity, Bandwidth: metric.Infinity}, metric.VectorMetric{Delay: metric.Infinity, Bandwidth: metric.Infinity}, upNeighbors)
	if !out.StateChanged || out.State != Active0 {
		t.Fatalf("expected transition to Active0, got %s (changed=%v)", out.State, out.StateChanged)
	}
	if len(out.SendQueryTo) != 1 || !out.SendQueryTo[0].Equal(c) {
		t.Fatalf("expected Query sent to C, got %+v", out.SendQueryTo)
	}

	// C replies with infinity.
	cOrigin := RouteOrigin{Neighbor: c, IfName: "eth1"}
	out = tbl.ApplyReply(prefix, cOrigin, metric.VectorMetric{Delay: metric.Infinity, Bandwidth: metric.Infinity}, metric.VectorMetric{Delay: metric.Infinity, Bandwidth: metric.Infinity})
	if !out.StateChanged || out.State != Passive {
		t.Fatalf("expected return to Passive once rij drains, got %s", out.State)
	}
	if !out.Withdraw {
		t.Fatal("expected a withdraw once every route is infinite")
	}
}

func TestSIATimerEscalatesThenForcesNeighborDown(t *testing.T) {
	tbl := New(metric.DefaultKVector, 1, 4)
	prefix := mustAddr(t, "10.9.9.0/24")

	a := nbrOrigin(t, "10.0.0.1", "eth0")
	c := mustAddr(t, "10.0.1.2/32")

	tbl.ApplyUpdate(prefix, a, metric.VectorMetric{Delay: 5, Bandwidth: 1000}, metric.VectorMetric{Delay: 10, Bandwidth: 1000}, nil)
	tbl.ApplyUpdate(prefix, a, metric.VectorMetric{Delay: metric.Infinity, Bandwidth: metric.Infinity}, metric.VectorMetric{Delay: metric.Infinity, Bandwidth: metric.Infinity}, []addr.Address{c})

	out := tbl.SIATimerFired(prefix)
	if len(out.SendSIAQueryTo) != 1 {
		t.Fatalf("expected first SIA timer firing to send SIA-Query, got %+v", out)
	}

	out = tbl.SIATimerFired(prefix)
	if len(out.ForceDown) != 1 || !out.ForceDown[0].Equal(c) {
		t.Fatalf("expected second firing to force C down, got %+v", out)
	}

	// An SIA-Reply between the two firings should have reset the strike
	// counter instead of forcing anything down.
	tbl2 := New(metric.DefaultKVector, 1, 4)
	tbl2.ApplyUpdate(prefix, a, metric.VectorMetric{Delay: 5, Bandwidth: 1000}, metric.VectorMetric{Delay: 10, Bandwidth: 1000}, nil)
	tbl2.ApplyUpdate(prefix, a, metric.VectorMetric{Delay: metric.Infinity, Bandwidth: metric.Infinity}, metric.VectorMetric{Delay: metric.Infinity, Bandwidth: metric.Infinity}, []addr.Address{c})
	tbl2.SIATimerFired(prefix)
	tbl2.ApplySIAReply(prefix, c)
	out = tbl2.SIATimerFired(prefix)
	if len(out.SendSIAQueryTo) != 1 {
		t.Fatal("expected SIA-Reply to reset strikes, re-triggering the query step")
	}
}

func TestNeighborDownRemovesRouteAndReselects(t *testing.T) {
	tbl := New(metric.DefaultKVector, 1, 4)
	prefix := mustAddr(t, "172.16.0.0/24")

	a := nbrOrigin(t, "10.0.0.1", "eth0")
	b := nbrOrigin(t, "10.0.0.2", "eth1")

	tbl.ApplyUpdate(prefix, a, metric.VectorMetric{Delay: 5, Bandwidth: 1000}, metric.VectorMetric{Delay: 10, Bandwidth: 1000}, nil)
	tbl.ApplyUpdate(prefix, b, metric.VectorMetric{Delay: 5, Bandwidth: 1000}, metric.VectorMetric{Delay: 20, Bandwidth: 1000}, nil)

	outcomes := tbl.NeighborDown(a.Neighbor)
	if len(outcomes) != 1 || outcomes[0].State != Passive {
		t.Fatalf("expected a reselect outcome, got %+v", outcomes)
	}
	p, _ := tbl.Get(prefix)
	if len(p.Routes) != 1 {
		t.Fatalf("expected only b's route left, got %d", len(p.Routes))
	}
}
