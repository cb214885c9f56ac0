package instance

import (
	"github.com/sirupsen/logrus"

	"github.com/diivious/eigrpd/internal/addr"
	"github.com/diivious/eigrpd/internal/iface"
	"github.com/diivious/eigrpd/internal/metric"
	"github.com/diivious/eigrpd/internal/neighbor"
	"github.com/diivious/eigrpd/internal/tlv"
)

// armHelloTimer schedules the recurring Hello send for ei. The callback
// only posts an event; Run's loop goroutine does the actual send. A
// passive interface (§6's passive-interface config) never emits a Hello
// and so never forms an adjacency, but still receives and processes one
// from a peer that treats the link as active.
func (in *Instance) armHelloTimer(ei *iface.Interface) {
	if ei.Params.Passive {
		return
	}
	name := ei.Name
	ei.HelloTimer = newRecurringTimer(ei.Params.HelloInterval, func() {
		in.Post(event{kind: evHelloTimer, ifName: name})
	})
}

// sendHello emits an unreliable Hello out ei carrying this instance's
// K-vector and hold time — §4.4.
func (in *Instance) sendHello(ifName string) {
	ei, ok := in.Interfaces[ifName]
	if !ok {
		return
	}
	msg := tlv.Message{
		Header: tlv.Header{
			Version: tlv.Version,
			Opcode:  tlv.OpcodeHello,
			VRID:    in.VRID,
			AS:      in.AS,
		},
		Parameter: &tlv.ParameterTLV{K: in.K, HoldTime: uint16(ei.Params.HoldTime.Seconds())},
	}
	in.sendUnreliableMulticast(ei, msg)
}

// Shutdown sends a graceful-shutdown Hello (all-ones K-vector) out every
// enabled, non-passive interface — §6's "SIGTERM after graceful Hello"
// clean-exit behavior. It does not stop the event loop; the caller
// cancels Run's context once this has gone out.
func (in *Instance) Shutdown() {
	allOnes := metric.KVector{K1: 0xFF, K2: 0xFF, K3: 0xFF, K4: 0xFF, K5: 0xFF}
	for _, ei := range in.Interfaces {
		if ei.Params.Passive {
			continue
		}
		msg := tlv.Message{
			Header: tlv.Header{Version: tlv.Version, Opcode: tlv.OpcodeHello, VRID: in.VRID, AS: in.AS},
			Parameter: &tlv.ParameterTLV{K: allOnes, HoldTime: uint16(ei.Params.HoldTime.Seconds())},
		}
		in.sendUnreliableMulticast(ei, msg)
	}
}

// handleHello processes a received Hello — §4.4: a graceful-shutdown
// (all-ones K-vector) Hello tears the neighbor down immediately; a
// K-vector mismatch against a live neighbor tears it down; otherwise the
// neighbor is created (Pending) or its hold timer is simply reset.
func (in *Instance) handleHello(ei *iface.Interface, src addr.Address, msg tlv.Message) {
	if msg.Parameter == nil {
		return
	}
	if msg.Parameter.K.AllOnes() {
		if n, ok := ei.NeighborByAddr(src); ok {
			in.teardownNeighbor(ei, n.Addr, eigrpPeerTerminated)
		}
		return
	}

	n, ok := ei.NeighborByAddr(src)
	if !ok {
		n = neighbor.New(src, ei.Name)
		n.State = neighbor.Pending
		n.K = in.K
		n.HoldTime = ei.Params.HoldTime
		ei.AddNeighbor(n)
		if in.Metrics != nil {
			in.Metrics.NeighborChanges.WithLabelValues(ei.Name, "pending").Inc()
		}
		in.armHoldTimer(ei, n)
		in.sendInit(ei, n)
		return
	}

	if !n.K.Equal(msg.Parameter.K) {
		in.teardownNeighbor(ei, n.Addr, eigrpKMismatch)
		return
	}
	n.HoldTimer.Reset()
}

// armHoldTimer (re)schedules a neighbor's hold-timer expiry.
func (in *Instance) armHoldTimer(ei *iface.Interface, n *neighbor.Neighbor) {
	ifName, peer := ei.Name, n.Addr
	n.HoldTimer = newOneShotTimer(n.HoldTime, func() {
		in.Post(event{kind: evHoldExpired, ifName: ifName, peer: peer})
	})
}

func (in *Instance) handleHoldExpired(ifName string, peer addr.Address) {
	ei, ok := in.Interfaces[ifName]
	if !ok {
		return
	}
	if _, ok := ei.NeighborByAddr(peer); !ok {
		return
	}
	in.teardownNeighbor(ei, peer, eigrpHoldExpired)
}

// sendInit sends the reliable INIT Update that starts a new neighbor's
// topology exchange — §4.4. Its ACK is what moves the neighbor to Up.
func (in *Instance) sendInit(ei *iface.Interface, n *neighbor.Neighbor) {
	msg := tlv.Message{
		Header: tlv.Header{
			Version: tlv.Version,
			Opcode:  tlv.OpcodeUpdate,
			Flags:   tlv.FlagInit,
			VRID:    in.VRID,
			AS:      in.AS,
		},
	}
	seq := in.sendReliableUnicast(ei, n, msg)
	n.InitSequenceNumber = seq
}

// teardownNeighbor deletes n from ei, scrubbing it from the topology table
// and draining its queues — §3's ownership-teardown order.
func (in *Instance) teardownNeighbor(ei *iface.Interface, peer addr.Address, reason teardownReason) {
	n, ok := ei.NeighborByAddr(peer)
	if !ok {
		return
	}
	in.Log.WithFields(logrus.Fields{
		"iface": ei.Name, "neighbor": peer.String(), "reason": reason.String(),
	}).Info("neighbor down")
	if in.Metrics != nil {
		in.Metrics.NeighborChanges.WithLabelValues(ei.Name, "down").Inc()
		in.Metrics.RetransQueueDepth.DeleteLabelValues(n.Addr.String())
	}

	if n.HoldTimer != nil {
		n.HoldTimer.Stop()
	}
	n.RetransQueue.Drain()
	n.MulticastQueue.Drain()

	outcomes := in.Table.NeighborDown(n.Addr)
	for _, out := range outcomes {
		in.applyOutcome(out)
	}

	ei.RemoveNeighbor(peer)
}
