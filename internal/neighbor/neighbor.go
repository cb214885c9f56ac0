// Package neighbor implements the per-peer session state of §4.4: the
// Down/Pending/Up lifecycle, hold timer bookkeeping, sequence counters,
// and the two per-neighbor packet queues. The reliable-transport send/ack
// procedures that drive these queues live one layer up, in package
// instance, since they need to reach the owning Interface's output queue
// and the raw socket — this package only owns the data a Neighbor is
// responsible for (§3's ownership tree).
package neighbor

import (
	"time"

	"github.com/diivious/eigrpd/internal/addr"
	"github.com/diivious/eigrpd/internal/metric"
	"github.com/diivious/eigrpd/internal/timerutil"
	"github.com/diivious/eigrpd/internal/tlv"
	"github.com/diivious/eigrpd/internal/transport"
)

// State is a Neighbor's position in the Down -> Pending -> Up lifecycle.
// Down is also terminal: a Neighbor that returns to Down is deleted, never
// reused.
type State int

const (
	Down State = iota
	Pending
	Up
)

func (s State) String() string {
	switch s {
	case Down:
		return "Down"
	case Pending:
		return "Pending"
	case Up:
		return "Up"
	default:
		return "Unknown"
	}
}

// Default hold/hello timing — §4.4.
const (
	DefaultHoldTimeLAN        = 15 * time.Second
	DefaultHelloIntervalLAN   = 5 * time.Second
	DefaultHoldTimeNBMA       = 180 * time.Second
	DefaultHelloIntervalNBMA  = 60 * time.Second
)

// Neighbor is one discovered EIGRP peer on an Interface.
type Neighbor struct {
	Addr   addr.Address // peer's unicast IPv4 address
	IfName string

	State State

	K        metric.KVector
	HoldTime time.Duration

	HoldTimer *timerutil.Timer

	// RetransQueue holds reliable unicast packets awaiting ACK; the head
	// is the packet currently being retransmitted.
	RetransQueue *transport.Queue
	// MulticastQueue holds reliable multicast packets this neighbor has
	// not yet acknowledged.
	MulticastQueue *transport.Queue

	// RecvSequence is this neighbor's highest accepted sequence number;
	// monotone non-decreasing across accepted packets (§3), and the
	// value echoed back in the ack field of packets sent to it.
	RecvSequence uint32

	// CryptSequence is the replay-protection counter of §4.2: an
	// incoming authenticated packet with a lower key_sequence is
	// rejected.
	CryptSequence uint32

	// InitSequenceNumber is the sequence number of the INIT Update sent
	// while Pending; an ACK carrying this value transitions the
	// neighbor to Up (§4.3/§4.4).
	InitSequenceNumber uint32

	// Codec is the per-neighbor TLV vtable selected by the peer's
	// advertised EIGRP revision (§4.1). Defaults to ClassicCodec.
	Codec tlv.Codec

	// VersionSeen records whether a Software-Version TLV has been
	// received yet, and its advertised EIGRP major revision.
	VersionSeen       bool
	EIGRPRevisionMajor uint8

	// GRExpected is the graceful-restart snapshot of §4.5: prefixes
	// attributed to this neighbor when an INIT|RS Update sequence
	// began, cleared as matching Updates arrive, and force-withdrawn
	// for whatever remains when EOT is ACKed.
	GRExpected map[[5]byte]addr.Address
	GRActive   bool
}

// New creates a Down neighbor with empty queues and the classic codec.
func New(peerAddr addr.Address, ifName string) *Neighbor {
	return &Neighbor{
		Addr:           peerAddr,
		IfName:         ifName,
		State:          Down,
		RetransQueue:   transport.New(),
		MulticastQueue: transport.New(),
		Codec:          tlv.ClassicCodec{},
	}
}

// EmptyQueues reports whether both per-neighbor queues are empty, the
// invariant required of a Down neighbor (§3 invariant 4).
func (n *Neighbor) EmptyQueues() bool {
	return n.RetransQueue.Empty() && n.MulticastQueue.Empty()
}

// AcceptSequence applies the monotone-non-decreasing rule of §3: a packet
// whose header sequence is less than RecvSequence is stale and must not
// be accepted (used by the instance layer before processing a packet's
// TLVs, separate from the crypt_seqnum replay check of §4.2).
func (n *Neighbor) AcceptSequence(seq uint32) bool {
	if seq < n.RecvSequence {
		return false
	}
	n.RecvSequence = seq
	return true
}

// AcceptCryptSequence applies §4.2/§8's authentication replay rule.
func (n *Neighbor) AcceptCryptSequence(seq uint32) bool {
	if seq < n.CryptSequence {
		return false
	}
	n.CryptSequence = seq
	return true
}

// BeginGR starts a graceful-restart snapshot: the topology layer supplies
// every prefix currently attributed to this neighbor.
func (n *Neighbor) BeginGR(current map[[5]byte]addr.Address) {
	n.GRActive = true
	n.GRExpected = make(map[[5]byte]addr.Address, len(current))
	for k, v := range current {
		n.GRExpected[k] = v
	}
}

// AckGR removes a prefix from the GR-expected set as a matching Update
// arrives.
func (n *Neighbor) AckGR(key [5]byte) {
	if n.GRExpected != nil {
		delete(n.GRExpected, key)
	}
}

// EndGR returns whatever prefixes remain unacknowledged when EOT is ACKed
// — these are treated as if the neighbor had sent an infinite-metric
// Update for them — and clears GR state.
func (n *Neighbor) EndGR() []addr.Address {
	remaining := make([]addr.Address, 0, len(n.GRExpected))
	for _, v := range n.GRExpected {
		remaining = append(remaining, v)
	}
	n.GRActive = false
	n.GRExpected = nil
	return remaining
}
