package iface

import (
	"testing"

	"github.com/diivious/eigrpd/internal/addr"
	"github.com/diivious/eigrpd/internal/neighbor"
)

func TestAddAndLookupNeighbor(t *testing.T) {
	ifAddr, _ := addr.ParseCIDR("10.0.0.1/30")
	ifc := New("eth0", ifAddr)

	peer, _ := addr.ParseCIDR("10.0.0.2/32")
	n := neighbor.New(peer, ifc.Name)
	ifc.AddNeighbor(n)

	got, ok := ifc.NeighborByAddr(peer)
	if !ok || got != n {
		t.Fatal("expected to find neighbor by address")
	}

	n.State = neighbor.Up
	if len(ifc.UpNeighbors()) != 1 {
		t.Fatal("expected one Up neighbor")
	}

	ifc.RemoveNeighbor(peer)
	if _, ok := ifc.NeighborByAddr(peer); ok {
		t.Fatal("expected neighbor removed")
	}
}

func TestVersionCountersMixed(t *testing.T) {
	var v VersionCounters
	v.Observe(1)
	if v.Mixed {
		t.Fatal("expected not mixed with only v1 seen")
	}
	v.Observe(2)
	if !v.Mixed {
		t.Fatal("expected mixed after v1 and v2 both seen")
	}
}
