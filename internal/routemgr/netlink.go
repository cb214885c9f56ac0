package routemgr

import (
	"fmt"
	"net"

	"github.com/diivious/eigrpd/internal/addr"
	"github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
)

// eigrpAdminDistance is the default administrative distance eigrpd
// installs internal routes with, matching the well-known EIGRP internal
// AD of 90 used by deployed implementations.
const eigrpAdminDistance = 90

// installed tracks the last-written gateway set for a prefix so repeat
// Install calls with unchanged arguments are no-ops, per §8.
type installed struct {
	gateways []Gateway
	distance uint32
}

// Netlink installs and withdraws routes via the Linux netlink route
// table, and reports link/address changes observed on an
// netlink.LinkSubscribe feed.
type Netlink struct {
	table int // kernel routing table number, 0 = main
	last  map[[5]byte]installed
	log   *logrus.Entry
}

// NewNetlink creates a netlink-backed Manager writing into the given
// kernel routing table (0 selects the main table).
func NewNetlink(table int, log *logrus.Entry) *Netlink {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Netlink{table: table, last: map[[5]byte]installed{}, log: log.WithField("component", "routemgr")}
}

func (n *Netlink) Install(prefix addr.Address, gateways []Gateway, adminDistance uint32) error {
	key := prefix.Key()
	if adminDistance == 0 {
		adminDistance = eigrpAdminDistance
	}
	if prev, ok := n.last[key]; ok && sameGateways(prev.gateways, gateways) && prev.distance == adminDistance {
		return nil
	}

	ipnet := &net.IPNet{
		IP:   prefix.Network().IP4(),
		Mask: net.CIDRMask(int(prefix.PrefixLen), 32),
	}

	route := &netlink.Route{
		Dst:      ipnet,
		Table:    n.table,
		Priority: int(adminDistance),
	}
	if len(gateways) == 1 {
		route.Gw = gateways[0].NextHop.IP4()
		if link, err := netlink.LinkByName(gateways[0].OutIntf); err == nil {
			route.LinkIndex = link.Attrs().Index
		}
	} else if len(gateways) > 1 {
		for _, gw := range gateways {
			nh := &netlink.NexthopInfo{Gw: gw.NextHop.IP4()}
			if link, err := netlink.LinkByName(gw.OutIntf); err == nil {
				nh.LinkIndex = link.Attrs().Index
			}
			route.MultiPath = append(route.MultiPath, nh)
		}
	} else {
		return n.Withdraw(prefix)
	}

	if err := netlink.RouteReplace(route); err != nil {
		n.log.WithError(err).WithField("prefix", prefix.String()).Warn("route install failed")
		return fmt.Errorf("routemgr: install %s: %w", prefix, err)
	}
	n.last[key] = installed{gateways: gateways, distance: adminDistance}
	return nil
}

func (n *Netlink) Withdraw(prefix addr.Address) error {
	key := prefix.Key()
	if _, ok := n.last[key]; !ok {
		return nil
	}
	ipnet := &net.IPNet{
		IP:   prefix.Network().IP4(),
		Mask: net.CIDRMask(int(prefix.PrefixLen), 32),
	}
	route := &netlink.Route{Dst: ipnet, Table: n.table}
	if err := netlink.RouteDel(route); err != nil {
		n.log.WithError(err).WithField("prefix", prefix.String()).Warn("route withdraw failed")
		return fmt.Errorf("routemgr: withdraw %s: %w", prefix, err)
	}
	delete(n.last, key)
	return nil
}

// Subscribe starts a background netlink link-state watch and invokes
// handler for every up/down transition observed. Address and metric
// change events are left to a fuller link-monitor integration; the
// link-updown path is what the instance layer needs to drive §4.4's
// "interface down" neighbor-teardown trigger.
func (n *Netlink) Subscribe(handler func(InterfaceEvent)) {
	updates := make(chan netlink.LinkUpdate)
	done := make(chan struct{})
	if err := netlink.LinkSubscribe(updates, done); err != nil {
		n.log.WithError(err).Warn("link subscribe failed")
		return
	}
	go func() {
		for u := range updates {
			kind := InterfaceDown
			if u.Attrs().OperState == netlink.OperUp {
				kind = InterfaceUp
			}
			handler(InterfaceEvent{Kind: kind, IfName: u.Attrs().Name})
		}
	}()
}

func sameGateways(a, b []Gateway) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
