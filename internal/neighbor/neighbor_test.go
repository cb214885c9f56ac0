package neighbor

import (
	"testing"

	"github.com/diivious/eigrpd/internal/addr"
)

func newTestNeighbor(t *testing.T) *Neighbor {
	t.Helper()
	a, err := addr.ParseCIDR("10.0.0.2/32")
	if err != nil {
		t.Fatal(err)
	}
	return New(a, "eth0")
}

func TestNewNeighborStartsDownWithEmptyQueues(t *testing.T) {
	n := newTestNeighbor(t)
	if n.State != Down {
		t.Fatalf("expected Down, got %s", n.State)
	}
	if !n.EmptyQueues() {
		t.Fatal("expected empty queues on a fresh Down neighbor")
	}
}

func TestAcceptSequenceMonotone(t *testing.T) {
	n := newTestNeighbor(t)
	if !n.AcceptSequence(5) {
		t.Fatal("expected first sequence accepted")
	}
	if !n.AcceptSequence(5) {
		t.Fatal("expected equal sequence accepted (non-decreasing)")
	}
	if !n.AcceptSequence(6) {
		t.Fatal("expected higher sequence accepted")
	}
	if n.AcceptSequence(4) {
		t.Fatal("expected lower sequence rejected")
	}
}

func TestAcceptCryptSequenceRejectsReplay(t *testing.T) {
	n := newTestNeighbor(t)
	n.AcceptCryptSequence(10)
	if n.AcceptCryptSequence(9) {
		t.Fatal("expected replayed key_sequence rejected")
	}
}

func TestGracefulRestartLifecycle(t *testing.T) {
	n := newTestNeighbor(t)
	p1, _ := addr.ParseCIDR("10.1.1.0/24")
	p2, _ := addr.ParseCIDR("10.1.2.0/24")
	snapshot := map[[5]byte]addr.Address{p1.Key(): p1, p2.Key(): p2}

	n.BeginGR(snapshot)
	if !n.GRActive {
		t.Fatal("expected GR active")
	}
	n.AckGR(p1.Key())
	remaining := n.EndGR()
	if len(remaining) != 1 || !remaining[0].Equal(p2) {
		t.Fatalf("expected only p2 remaining, got %+v", remaining)
	}
	if n.GRActive {
		t.Fatal("expected GR cleared after EndGR")
	}
}
