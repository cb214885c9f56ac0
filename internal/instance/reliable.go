package instance

import (
	"encoding/binary"

	"github.com/diivious/eigrpd/internal/addr"
	"github.com/diivious/eigrpd/internal/auth"
	"github.com/diivious/eigrpd/internal/iface"
	"github.com/diivious/eigrpd/internal/neighbor"
	"github.com/diivious/eigrpd/internal/timerutil"
	"github.com/diivious/eigrpd/internal/tlv"
	"github.com/diivious/eigrpd/internal/transport"
)

// seal marshals msg with n's codec, applying ei's authentication mode if
// configured, and returns the finished, checksummed wire bytes.
func (in *Instance) seal(ei *iface.Interface, n *neighbor.Neighbor, msg tlv.Message) []byte {
	kind := auth.KindBasicHelloOrUpdate
	if msg.Header.Opcode == tlv.OpcodeUpdate && msg.Header.Flags&tlv.FlagInit != 0 {
		kind = auth.KindUpdateInit
	}

	var key []byte
	authed := false
	if ei.Params.AuthMode == iface.AuthMD5 && in.Keychain != nil {
		if id, k, err := in.Keychain.CurrentSendKey(); err == nil {
			key, authed = k, true
			msg.Auth = &tlv.AuthenticationTLV{SubType: tlv.AuthMD5, KeyID: id, Digest: make([]byte, 16)}
		}
	}

	codec := tlv.Codec(tlv.ClassicCodec{})
	if n != nil {
		codec = n.Codec
	}
	buf := msg.Marshal(codec)

	if authed {
		tlv.Split(buf[tlv.HeaderLen:], func(typ tlv.Type, value []byte) error {
			if typ == tlv.TypeAuthentication && len(value) >= 20+16 {
				digest := auth.SealMD5(buf, key, kind)
				copy(value[20:36], digest[:])
			}
			return nil
		})
	}
	tlv.SealChecksum(buf)
	return buf
}

// sendUnreliableMulticast sends msg out ei's multicast group with sequence
// 0 — Hellos are never acked or retransmitted (§4.4).
func (in *Instance) sendUnreliableMulticast(ei *iface.Interface, msg tlv.Message) {
	msg.Header.Sequence = 0
	msg.Header.Ack = 0
	buf := in.seal(ei, nil, msg)
	in.writeMulticast(ei, buf)
	in.countSent(ei, msg.Header.Opcode)
}

// sendReliableUnicast assigns the next self sequence number, enqueues the
// packet on n's retransmit queue, and transmits it immediately if it is
// the only packet outstanding (§5: only the queue head is ever in flight).
func (in *Instance) sendReliableUnicast(ei *iface.Interface, n *neighbor.Neighbor, msg tlv.Message) uint32 {
	seq := in.nextSequence()
	msg.Header.Sequence = seq
	msg.Header.Ack = n.RecvSequence
	buf := in.seal(ei, n, msg)

	pkt := &transport.Packet{Bytes: buf, Dest: n.Addr, Sequence: seq}
	wasEmpty := n.RetransQueue.Empty()
	n.RetransQueue.Push(pkt)
	in.countSent(ei, msg.Header.Opcode)
	in.setRetransDepth(n)
	if wasEmpty {
		in.transmit(ei, n, pkt)
	}
	return seq
}

// sendReliableMulticast sends msg once out ei's multicast group, and
// enqueues a per-neighbor copy on every Up neighbor's multicast-hold queue
// so an unresponsive one can be retried unicast (§4.3).
func (in *Instance) sendReliableMulticast(ei *iface.Interface, msg tlv.Message) uint32 {
	seq := in.nextSequence()
	msg.Header.Sequence = seq
	msg.Header.Ack = 0
	buf := in.seal(ei, nil, msg)
	in.writeMulticast(ei, buf)
	in.countSent(ei, msg.Header.Opcode)

	for _, n := range ei.UpNeighbors() {
		pkt := &transport.Packet{Bytes: buf, Dest: n.Addr, Multicast: true, Sequence: seq}
		wasEmpty := n.MulticastQueue.Empty()
		n.MulticastQueue.Push(pkt)
		if wasEmpty {
			pkt.Timer = in.armRetransTimer(ei, n)
		}
	}
	return seq
}

// countSent records one transmitted packet against ei/op.
func (in *Instance) countSent(ei *iface.Interface, op tlv.Opcode) {
	if in.Metrics != nil {
		in.Metrics.PacketsSent.WithLabelValues(ei.Name, opcodeName(op)).Inc()
	}
}

// setRetransDepth refreshes the retransmit-queue-depth gauge for n.
func (in *Instance) setRetransDepth(n *neighbor.Neighbor) {
	if in.Metrics != nil {
		in.Metrics.RetransQueueDepth.WithLabelValues(n.Addr.String()).Set(float64(n.RetransQueue.Len()))
	}
}

// transmit writes pkt to the wire and arms its retransmit timer.
func (in *Instance) transmit(ei *iface.Interface, n *neighbor.Neighbor, pkt *transport.Packet) {
	in.writeUnicast(ei, pkt.Dest, pkt.Bytes)
	pkt.Timer = in.armRetransTimer(ei, n)
}

func (in *Instance) armRetransTimer(ei *iface.Interface, n *neighbor.Neighbor) *timerutil.Timer {
	ifName, peer := ei.Name, n.Addr
	return newOneShotTimer(transport.RetransTime, func() {
		in.Post(event{kind: evRetransTimer, ifName: ifName, peer: peer})
	})
}

// handleRetransTimer retries whichever queue's head packet is still
// waiting, tearing the neighbor down once RetransMax is exceeded (§4.3).
func (in *Instance) handleRetransTimer(ifName string, peer addr.Address) {
	ei, ok := in.Interfaces[ifName]
	if !ok {
		return
	}
	n, ok := ei.NeighborByAddr(peer)
	if !ok {
		return
	}

	if pkt := n.RetransQueue.Head(); pkt != nil {
		if !in.retry(ei, n, pkt) {
			return
		}
	}
	if pkt := n.MulticastQueue.Head(); pkt != nil {
		in.retry(ei, n, pkt)
	}
}

// retry resends pkt with a refreshed ack field, tearing the neighbor down
// and reporting false instead once RetransMax is exceeded.
func (in *Instance) retry(ei *iface.Interface, n *neighbor.Neighbor, pkt *transport.Packet) bool {
	pkt.Retransmits++
	if pkt.Retransmits > transport.RetransMax {
		in.teardownNeighbor(ei, n.Addr, eigrpRetransExhausted)
		return false
	}
	refreshAck(pkt.Bytes, n.RecvSequence)
	tlv.SealChecksum(pkt.Bytes)
	in.writeUnicast(ei, pkt.Dest, pkt.Bytes)
	if in.Metrics != nil {
		in.Metrics.PacketsSent.WithLabelValues(ei.Name, "retransmit").Inc()
	}
	pkt.Timer = in.armRetransTimer(ei, n)
	return true
}

// handleAck advances whichever of n's queues has ack at its head — §5: an
// ACK advances a queue by exactly one head element.
func (in *Instance) handleAck(ei *iface.Interface, n *neighbor.Neighbor, ack uint32) {
	if head := n.RetransQueue.Head(); head != nil && head.Sequence == ack {
		head.Timer.Stop()
		n.RetransQueue.Pop()
		in.setRetransDepth(n)
		if n.State == neighbor.Pending && ack == n.InitSequenceNumber {
			n.State = neighbor.Up
			in.Log.WithField("neighbor", n.Addr.String()).Info("neighbor up")
			if in.Metrics != nil {
				in.Metrics.NeighborChanges.WithLabelValues(ei.Name, "up").Inc()
			}
			in.sendEOTUpdate(ei, n)
		}
		if next := n.RetransQueue.Head(); next != nil {
			in.transmit(ei, n, next)
		}
	}
	if head := n.MulticastQueue.Head(); head != nil && head.Sequence == ack {
		head.Timer.Stop()
		n.MulticastQueue.Pop()
		if next := n.MulticastQueue.Head(); next != nil {
			in.writeUnicast(ei, next.Dest, next.Bytes)
			next.Timer = in.armRetransTimer(ei, n)
		}
	}
}

func refreshAck(buf []byte, ack uint32) {
	binary.BigEndian.PutUint32(buf[12:16], ack)
}
