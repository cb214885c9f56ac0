// Package transport implements the packet and per-neighbor queue
// primitives behind §4.3's reliable transport: retransmit queues,
// multicast-hold queues, and the retransmit policy constants. The
// EIGRP-specific send/ack logic that wires these into a Neighbor lives in
// package instance; this package only owns the data structures, matching
// the dependency order of §2 (packet queues/reliable transport sits below
// neighbor session).
package transport

import (
	"time"

	"github.com/diivious/eigrpd/internal/addr"
	"github.com/diivious/eigrpd/internal/timerutil"
)

// RetransTime is the fixed retransmit interval of §4.3. Deployed EIGRP
// scales this with hold time; the design here uses the pinned 2s default.
const RetransTime = 2 * time.Second

// RetransMax is the number of unsuccessful retransmits after which a
// neighbor is declared down (§4.3).
const RetransMax = 16

// Packet is one outstanding reliable or multicast-held message: an owned
// byte buffer plus the retransmit bookkeeping the queue needs. While a
// Packet sits in a retransmit queue its Dest and Sequence are fixed; Bytes
// is rewritten in place on each retransmit to refresh the ack field,
// re-seal authentication, and re-seal the checksum.
type Packet struct {
	Bytes       []byte
	Dest        addr.Address
	Multicast   bool
	Sequence    uint32
	Retransmits int
	Timer       *timerutil.Timer
}

// Queue is a FIFO of outstanding Packets. It is not safe for concurrent
// use — the core's single-threaded event loop is the only caller, per §5.
type Queue struct {
	items []*Packet
}

// New creates an empty Queue.
func New() *Queue {
	return &Queue{items: make([]*Packet, 0, 8)}
}

// Push appends p to the tail of the queue.
func (q *Queue) Push(p *Packet) {
	q.items = append(q.items, p)
}

// Head returns the queue's first element without removing it, or nil if
// the queue is empty.
func (q *Queue) Head() *Packet {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// Pop removes and returns the head element, or nil if the queue is empty.
// An ACK advances the queue by exactly one head element, per §5.
func (q *Queue) Pop() *Packet {
	if len(q.items) == 0 {
		return nil
	}
	p := q.items[0]
	q.items = q.items[1:]
	return p
}

// Len returns the number of outstanding packets.
func (q *Queue) Len() int {
	return len(q.items)
}

// Empty reports whether the queue holds no packets — used by §3's Down
// invariant (both queues MUST be empty while a neighbor is Down).
func (q *Queue) Empty() bool {
	return len(q.items) == 0
}

// Drain removes every packet from the queue, stopping each one's
// retransmit timer, and returns them. Used when a neighbor is deleted.
func (q *Queue) Drain() []*Packet {
	items := q.items
	q.items = nil
	for _, p := range items {
		if p.Timer != nil {
			p.Timer.Stop()
		}
	}
	return items
}
