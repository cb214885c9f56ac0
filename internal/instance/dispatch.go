package instance

import (
	"time"

	"github.com/diivious/eigrpd/internal/addr"
	"github.com/diivious/eigrpd/internal/auth"
	"github.com/diivious/eigrpd/internal/eigrperr"
	"github.com/diivious/eigrpd/internal/filter"
	"github.com/diivious/eigrpd/internal/iface"
	"github.com/diivious/eigrpd/internal/metric"
	"github.com/diivious/eigrpd/internal/neighbor"
	"github.com/diivious/eigrpd/internal/routemgr"
	"github.com/diivious/eigrpd/internal/timerutil"
	"github.com/diivious/eigrpd/internal/tlv"
	"github.com/diivious/eigrpd/internal/topology"
)

// siaInterval is the recurring stuck-in-active check interval while a
// prefix is Active — half of the classic 3-minute active-time default.
const siaInterval = 90 * time.Second

// handlePacket authenticates and dispatches one received datagram — §4.1's
// receive path: checksum, then authentication, then per-opcode handling.
func (in *Instance) handlePacket(ifName string, src addr.Address, raw []byte) error {
	ei, ok := in.Interfaces[ifName]
	if !ok {
		return nil
	}
	if !tlv.VerifyChecksum(raw) {
		if in.Metrics != nil {
			in.Metrics.WireErrors.WithLabelValues(ifName, "checksum").Inc()
		}
		return eigrperr.ErrChecksum
	}

	n, _ := ei.NeighborByAddr(src)
	codec := tlv.Codec(tlv.ClassicCodec{})
	if n != nil {
		codec = n.Codec
	}
	msg, err := tlv.ParseMessage(raw, codec)
	if err != nil {
		if in.Metrics != nil {
			in.Metrics.WireErrors.WithLabelValues(ifName, "parse").Inc()
		}
		return eigrperr.Wire(err, "parse")
	}
	if msg.Header.AS != in.AS || msg.Header.VRID != in.VRID {
		return nil
	}

	if in.Metrics != nil {
		in.Metrics.PacketsReceived.WithLabelValues(ifName, opcodeName(msg.Header.Opcode)).Inc()
	}

	if err := in.verifyAuth(ei, n, msg, raw); err != nil {
		if in.Metrics != nil {
			in.Metrics.AuthFailures.WithLabelValues(ifName).Inc()
		}
		return err
	}

	if msg.Header.Opcode == tlv.OpcodeHello {
		in.handleHello(ei, src, msg)
		return nil
	}
	if n == nil {
		return nil
	}
	if msg.Header.Sequence != 0 && !n.AcceptSequence(msg.Header.Sequence) {
		return nil
	}
	if msg.Header.Ack != 0 {
		in.handleAck(ei, n, msg.Header.Ack)
	}

	switch msg.Header.Opcode {
	case tlv.OpcodeUpdate:
		in.handleUpdate(ei, n, msg)
	case tlv.OpcodeQuery:
		in.handleQuery(ei, n, msg)
	case tlv.OpcodeReply:
		in.handleReply(ei, n, msg)
	case tlv.OpcodeSIAQuery:
		in.handleSIAQueryRecv(ei, n, msg)
	case tlv.OpcodeSIAReply:
		in.handleSIAReplyRecv(ei, n, msg)
	case tlv.OpcodeAck, tlv.OpcodeRequest, tlv.OpcodeProbe:
		// ack already applied above; Request/Probe are accepted and
		// silently dropped per §4.1's opcode table.
	}
	return nil
}

// verifyAuth enforces ei's configured authentication mode against a
// received message.
func (in *Instance) verifyAuth(ei *iface.Interface, n *neighbor.Neighbor, msg tlv.Message, raw []byte) error {
	if ei.Params.AuthMode == iface.AuthNone {
		return nil
	}
	if msg.Auth == nil {
		return eigrperr.ErrAuth
	}
	switch msg.Auth.SubType {
	case tlv.AuthMD5:
		if in.Keychain == nil {
			return eigrperr.ErrAuth
		}
		key, ok := in.Keychain.Lookup(msg.Auth.KeyID)
		if !ok {
			return eigrperr.ErrAuth
		}
		if n != nil && !n.AcceptCryptSequence(msg.Auth.KeySequence) {
			return eigrperr.ErrAuth
		}
		kind := auth.KindBasicHelloOrUpdate
		if msg.Header.Opcode == tlv.OpcodeUpdate && msg.Header.Flags&tlv.FlagInit != 0 {
			kind = auth.KindUpdateInit
		}
		var want [16]byte
		copy(want[:], msg.Auth.Digest)
		if !auth.VerifyMD5(zeroDigestAndChecksum(raw), key, kind, want) {
			return eigrperr.ErrAuth
		}
	case tlv.AuthSHA256:
		// Left unspecified — the original's SHA256 verify path always
		// accepts, so there is no replay protection to enforce here.
	default:
		return eigrperr.ErrAuth
	}
	return nil
}

// zeroDigestAndChecksum reproduces the exact buffer state seal() hashed:
// a copy of raw with the authentication digest zeroed and the checksum
// field zeroed, since seal() computes the digest before SealChecksum runs.
func zeroDigestAndChecksum(raw []byte) []byte {
	cp := make([]byte, len(raw))
	copy(cp, raw)
	tlv.Split(cp[tlv.HeaderLen:], func(typ tlv.Type, value []byte) error {
		if typ == tlv.TypeAuthentication && len(value) >= 20+16 {
			for i := 20; i < 36; i++ {
				value[i] = 0
			}
		}
		return nil
	})
	cp[2], cp[3] = 0, 0
	return cp
}

// classicScaler is EIGRP_CLASSIC_SCALER: the IGRP-to-EIGRP unit conversion
// eigrp_bandwidth_to_scaled/eigrp_delay_to_scaled apply before a link's
// configured bandwidth/delay enter the composite-metric vector.
const classicScaler = 256

// totalMetric composes a neighbor's reported vector into this router's
// total distance through ei — §3's "minimum bandwidth along the path,
// cumulative delay, incremented hop count" composition rule.
func (in *Instance) totalMetric(ei *iface.Interface, reported metric.VectorMetric) metric.VectorMetric {
	total := reported
	total.Delay = addSat(reported.Delay, uint64(ei.Params.DelayTens)*classicScaler)
	if ifBW := scaledBandwidth(ei.Params.BandwidthKbps); ifBW > total.Bandwidth {
		total.Bandwidth = ifBW
	}
	if total.HopCount < 255 {
		total.HopCount = reported.HopCount + 1
	}
	return total
}

func addSat(a, b uint64) uint64 {
	if a == metric.Infinity || b == metric.Infinity {
		return metric.Infinity
	}
	sum := a + b
	if sum < a {
		return metric.Infinity
	}
	return sum
}

// scaledBandwidth converts a configured link bandwidth into the classic
// scaled-inverse unit (256*10,000,000/kbps) — eigrp_bandwidth_to_scaled's
// EIGRP_CLASSIC_SCALER * EIGRP_BANDWIDTH_SCALER.
func scaledBandwidth(kbps uint64) uint64 {
	if kbps == 0 {
		return metric.Infinity
	}
	return (classicScaler * 10_000_000) / kbps
}

// selfMetric is the vector metric a directly connected network advertises
// for itself: reported distance 0, hop count 0, scaled straight from ei's
// own configured bandwidth/delay (§4.4).
func selfMetric(ei *iface.Interface) metric.VectorMetric {
	return metric.VectorMetric{
		Bandwidth: scaledBandwidth(ei.Params.BandwidthKbps),
		Delay:     uint64(ei.Params.DelayTens) * classicScaler,
	}
}

func (in *Instance) handleUpdate(ei *iface.Interface, n *neighbor.Neighbor, msg tlv.Message) {
	if msg.Header.Flags&tlv.FlagRS != 0 && !n.GRActive {
		in.beginGR(n)
	}

	origin := topology.RouteOrigin{Neighbor: n.Addr, IfName: ei.Name}
	up := in.upNeighborAddrs()
	for _, r := range msg.Routes {
		if !in.Filters.Permit(ei.Params.DistributeListIn, filter.In, r.Dest) {
			if n.GRActive {
				n.AckGR(r.Dest.Key())
			}
			continue
		}
		total := in.totalMetric(ei, r.Metric)
		out := in.Table.ApplyUpdate(r.Dest, origin, r.Metric, total, up)
		in.applyOutcome(out)
		if n.GRActive {
			n.AckGR(r.Dest.Key())
		}
	}

	if msg.Header.Flags&tlv.FlagEOT != 0 && n.GRActive {
		in.endGR(ei, n, up)
	}
}

func (in *Instance) handleQuery(ei *iface.Interface, n *neighbor.Neighbor, msg tlv.Message) {
	origin := topology.RouteOrigin{Neighbor: n.Addr, IfName: ei.Name}
	up := in.upNeighborAddrs()
	for _, r := range msg.Routes {
		total := in.totalMetric(ei, r.Metric)
		out := in.Table.ApplyQuery(r.Dest, origin, r.Metric, total, n.Addr, ei.Name, up)
		in.applyOutcome(out)
	}
}

func (in *Instance) handleReply(ei *iface.Interface, n *neighbor.Neighbor, msg tlv.Message) {
	origin := topology.RouteOrigin{Neighbor: n.Addr, IfName: ei.Name}
	for _, r := range msg.Routes {
		total := in.totalMetric(ei, r.Metric)
		out := in.Table.ApplyReply(r.Dest, origin, r.Metric, total)
		in.applyOutcome(out)
	}
}

// handleSIAQueryRecv answers a stuck-in-active probe: we report our
// current state for the prefix without disturbing the topology table,
// since the probe carries no new routing information of its own.
func (in *Instance) handleSIAQueryRecv(ei *iface.Interface, n *neighbor.Neighbor, msg tlv.Message) {
	for _, r := range msg.Routes {
		in.sendSIAReply(ei, n, r.Dest)
	}
}

// handleSIAReplyRecv records that a neighbor we SIA-queried is still
// working on a Reply — §4.5: the computation keeps waiting.
func (in *Instance) handleSIAReplyRecv(_ *iface.Interface, n *neighbor.Neighbor, msg tlv.Message) {
	for _, r := range msg.Routes {
		out := in.Table.ApplySIAReply(r.Dest, n.Addr)
		in.applyOutcome(out)
	}
}

// beginGR snapshots every prefix currently attributed to n, ahead of a
// restart-flagged Update sequence — §4.5's graceful-restart reception.
func (in *Instance) beginGR(n *neighbor.Neighbor) {
	snapshot := map[[5]byte]addr.Address{}
	in.Table.Walk(func(p *topology.PrefixDescriptor) {
		for _, r := range p.Routes {
			if !r.Origin.Self && r.Origin.Neighbor.Equal(n.Addr) {
				snapshot[p.Prefix.Key()] = p.Prefix
			}
		}
	})
	n.BeginGR(snapshot)
}

// endGR force-withdraws whatever prefixes n never re-advertised by the
// time its restart sequence's End-Of-Table marker was ACKed.
func (in *Instance) endGR(ei *iface.Interface, n *neighbor.Neighbor, up []addr.Address) {
	remaining := n.EndGR()
	origin := topology.RouteOrigin{Neighbor: n.Addr, IfName: ei.Name}
	inf := metric.VectorMetric{Delay: metric.Infinity, Bandwidth: metric.Infinity}
	for _, prefix := range remaining {
		out := in.Table.ApplyUpdate(prefix, origin, inf, inf, up)
		in.applyOutcome(out)
	}
}

// handleSIATimer fires on a prefix's recurring stuck-in-active check.
func (in *Instance) handleSIATimer(prefix addr.Address) {
	out := in.Table.SIATimerFired(prefix)
	in.applyOutcome(out)
}

// applyOutcome carries out every side effect a Table event produced:
// route-manager install/withdraw, and Update/Query/Reply/SIA-Query
// fan-out, plus forcing down unresponsive neighbors and the SIA-timer
// lifecycle tied to the Active/Passive transition.
func (in *Instance) applyOutcome(out topology.Outcome) {
	if out.InstallChanged {
		if out.Withdraw {
			in.RouteMgr.Withdraw(out.Prefix)
		} else {
			gateways := make([]routemgr.Gateway, 0, len(out.Successors))
			for _, s := range out.Successors {
				if s.Origin.Self {
					// Directly connected: already reachable via the
					// interface itself, nothing for the route manager
					// to install.
					continue
				}
				gateways = append(gateways, routemgr.Gateway{NextHop: s.Origin.Neighbor, OutIntf: s.Origin.IfName})
			}
			if len(gateways) > 0 {
				in.RouteMgr.Install(out.Prefix, gateways, 0)
			}
		}
	}

	if out.SendUpdate {
		in.advertiseUpdate(out)
	}
	m := advertisedMetric(out)
	for _, nbrAddr := range out.SendQueryTo {
		in.sendQuery(out.Prefix, nbrAddr, m)
	}
	if out.SendReplyTo != nil {
		in.sendReply(out.Prefix, *out.SendReplyTo, m)
	}
	for _, nbrAddr := range out.SendSIAQueryTo {
		in.sendSIAQueryTo(out.Prefix, nbrAddr)
	}
	for _, nbrAddr := range out.ForceDown {
		if n, ei, ok := in.findNeighbor(nbrAddr); ok {
			in.teardownNeighbor(ei, n.Addr, eigrpForcedBySIA)
		}
	}

	if out.StateChanged {
		key := out.Prefix.Key()
		if out.State == topology.Passive {
			if t, ok := in.siaTimers[key]; ok {
				t.Stop()
				delete(in.siaTimers, key)
			}
			if in.Metrics != nil {
				in.Metrics.ActivePrefixes.Dec()
			}
		} else if _, ok := in.siaTimers[key]; !ok {
			in.siaTimers[key] = in.armSIATimer(out.Prefix)
			if in.Metrics != nil {
				in.Metrics.ActivePrefixes.Inc()
				in.Metrics.ActivePhases.Inc()
			}
		}
	}
}

func (in *Instance) armSIATimer(prefix addr.Address) *timerutil.Timer {
	return newRecurringTimer(siaInterval, func() {
		in.Post(event{kind: evSIATimer, prefix: prefix})
	})
}

func advertisedMetric(out topology.Outcome) metric.VectorMetric {
	if len(out.Successors) > 0 {
		return out.Successors[0].TotalMetric
	}
	return metric.VectorMetric{Delay: metric.Infinity, Bandwidth: metric.Infinity}
}

func (in *Instance) buildRouteMessage(opcode tlv.Opcode, flags tlv.Flags, prefix addr.Address, m metric.VectorMetric) tlv.Message {
	return tlv.Message{
		Header: tlv.Header{Version: tlv.Version, Opcode: opcode, Flags: flags, VRID: in.VRID, AS: in.AS},
		Routes: []tlv.RouteTLV{{Dest: prefix, Metric: m}},
	}
}

// advertiseUpdate fans a prefix's new reported distance out to every
// interface's Up neighbors, honoring split horizon per outgoing
// interface (§4.5).
func (in *Instance) advertiseUpdate(out topology.Outcome) {
	p, ok := in.Table.Get(out.Prefix)
	if !ok {
		return
	}
	m := advertisedMetric(out)
	for _, ei := range in.Interfaces {
		if p.SplitHorizonSuppress(ei.Name) {
			continue
		}
		if len(ei.UpNeighbors()) == 0 {
			continue
		}
		if !in.Filters.Permit(ei.Params.DistributeListOut, filter.Out, out.Prefix) {
			continue
		}
		msg := in.buildRouteMessage(tlv.OpcodeUpdate, 0, out.Prefix, m)
		in.sendReliableMulticast(ei, msg)
	}
}

// sendEOTUpdate sends the reliable, EOT-flagged Update that completes a
// newly Up neighbor's initial topology exchange (spec.md:133) — every
// Passive route this router currently carries, split-horizoned and
// distribute-listed against ei exactly as a steady-state advertisement
// would be.
func (in *Instance) sendEOTUpdate(ei *iface.Interface, n *neighbor.Neighbor) {
	var routes []tlv.RouteTLV
	in.Table.Walk(func(p *topology.PrefixDescriptor) {
		if p.State != topology.Passive || p.Distance == metric.Infinity {
			return
		}
		if p.SplitHorizonSuppress(ei.Name) {
			return
		}
		if !in.Filters.Permit(ei.Params.DistributeListOut, filter.Out, p.Prefix) {
			return
		}
		succ := p.Successors()
		if len(succ) == 0 {
			return
		}
		routes = append(routes, tlv.RouteTLV{Dest: p.Prefix, Metric: succ[0].TotalMetric})
	})
	msg := tlv.Message{
		Header: tlv.Header{Version: tlv.Version, Opcode: tlv.OpcodeUpdate, Flags: tlv.FlagEOT, VRID: in.VRID, AS: in.AS},
		Routes: routes,
	}
	in.sendReliableUnicast(ei, n, msg)
}

func (in *Instance) sendQuery(prefix addr.Address, nbrAddr addr.Address, m metric.VectorMetric) {
	n, ei, ok := in.findNeighbor(nbrAddr)
	if !ok || n.State != neighbor.Up {
		return
	}
	if p, ok := in.Table.Get(prefix); ok && p.SplitHorizonSuppress(ei.Name) {
		return
	}
	if !in.Filters.Permit(ei.Params.DistributeListOut, filter.Out, prefix) {
		return
	}
	msg := in.buildRouteMessage(tlv.OpcodeQuery, 0, prefix, m)
	in.sendReliableUnicast(ei, n, msg)
}

func (in *Instance) sendReply(prefix addr.Address, nbrAddr addr.Address, m metric.VectorMetric) {
	n, ei, ok := in.findNeighbor(nbrAddr)
	if !ok {
		return
	}
	msg := in.buildRouteMessage(tlv.OpcodeReply, 0, prefix, m)
	in.sendReliableUnicast(ei, n, msg)
}

func (in *Instance) sendSIAQueryTo(prefix addr.Address, nbrAddr addr.Address) {
	n, ei, ok := in.findNeighbor(nbrAddr)
	if !ok || n.State != neighbor.Up {
		return
	}
	msg := in.buildRouteMessage(tlv.OpcodeSIAQuery, 0, prefix, in.currentAdvertisedMetric(prefix))
	in.sendReliableUnicast(ei, n, msg)
}

func (in *Instance) sendSIAReply(ei *iface.Interface, n *neighbor.Neighbor, prefix addr.Address) {
	msg := in.buildRouteMessage(tlv.OpcodeSIAReply, 0, prefix, in.currentAdvertisedMetric(prefix))
	in.sendReliableUnicast(ei, n, msg)
}

func (in *Instance) currentAdvertisedMetric(prefix addr.Address) metric.VectorMetric {
	p, ok := in.Table.Get(prefix)
	if !ok {
		return metric.VectorMetric{Delay: metric.Infinity, Bandwidth: metric.Infinity}
	}
	succ := p.Successors()
	if len(succ) == 0 {
		return metric.VectorMetric{Delay: metric.Infinity, Bandwidth: metric.Infinity}
	}
	return succ[0].TotalMetric
}

// opcodeName labels metrics with a stable string instead of a raw integer.
func opcodeName(op tlv.Opcode) string {
	switch op {
	case tlv.OpcodeUpdate:
		return "update"
	case tlv.OpcodeRequest:
		return "request"
	case tlv.OpcodeQuery:
		return "query"
	case tlv.OpcodeReply:
		return "reply"
	case tlv.OpcodeHello:
		return "hello"
	case tlv.OpcodeProbe:
		return "probe"
	case tlv.OpcodeAck:
		return "ack"
	case tlv.OpcodeSIAQuery:
		return "sia-query"
	case tlv.OpcodeSIAReply:
		return "sia-reply"
	default:
		return "unknown"
	}
}
