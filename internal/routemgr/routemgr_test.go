package routemgr

import "testing"

import "github.com/diivious/eigrpd/internal/addr"

func TestMemoryInstallIdempotent(t *testing.T) {
	m := NewMemory()
	prefix, _ := addr.ParseCIDR("10.1.1.0/24")
	gw := []Gateway{{NextHop: mustAddr("10.0.0.1/32"), OutIntf: "eth0"}}

	if err := m.Install(prefix, gw, 90); err != nil {
		t.Fatal(err)
	}
	if err := m.Install(prefix, gw, 90); err != nil {
		t.Fatal(err)
	}
	if m.InstallCalls != 1 {
		t.Fatalf("expected exactly one install call, got %d", m.InstallCalls)
	}
}

func TestMemoryWithdrawRemovesPrefix(t *testing.T) {
	m := NewMemory()
	prefix, _ := addr.ParseCIDR("10.1.2.0/24")
	gw := []Gateway{{NextHop: mustAddr("10.0.0.1/32"), OutIntf: "eth0"}}
	m.Install(prefix, gw, 90)
	if !m.Has(prefix) {
		t.Fatal("expected prefix installed")
	}
	m.Withdraw(prefix)
	if m.Has(prefix) {
		t.Fatal("expected prefix withdrawn")
	}
}

func mustAddr(s string) addr.Address {
	a, err := addr.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return a
}
