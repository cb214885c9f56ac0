package instance

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/diivious/eigrpd/internal/addr"
)

// eventKind identifies what woke the event loop. Timer callbacks never
// touch Instance state directly — time.AfterFunc runs them on their own
// goroutine — they only post an event; every actual mutation happens in
// Run's single consumer goroutine, which is what keeps the core lock-free
// per §5.
type eventKind int

const (
	evPacket eventKind = iota
	evHelloTimer
	evHoldExpired
	evRetransTimer
	evSIATimer
	evLinkState
)

// teardownReason explains why a neighbor is being deleted, for logging.
type teardownReason int

const (
	eigrpHoldExpired teardownReason = iota
	eigrpLinkDown
	eigrpRetransExhausted
	eigrpKMismatch
	eigrpPeerTerminated
	eigrpForcedBySIA
)

func (r teardownReason) String() string {
	switch r {
	case eigrpHoldExpired:
		return "hold timer expired"
	case eigrpLinkDown:
		return "interface disabled"
	case eigrpRetransExhausted:
		return "retransmit count exhausted"
	case eigrpKMismatch:
		return "K-vector mismatch"
	case eigrpPeerTerminated:
		return "peer sent termination"
	case eigrpForcedBySIA:
		return "unresponsive during diffusing computation"
	default:
		return "unknown"
	}
}

type event struct {
	kind eventKind

	ifName string
	peer   addr.Address

	raw []byte
	src addr.Address

	prefix addr.Address

	up bool // valid for evLinkState
}

// Post enqueues ev for processing by Run. It never blocks: a full queue
// means the loop is falling behind, and blocking the socket reader or a
// timer goroutine on it would just compound the backlog, so the event is
// logged and dropped instead.
func (in *Instance) Post(ev event) {
	select {
	case in.events <- ev:
	default:
		in.Log.WithField("kind", ev.kind).Warn("event queue full, dropping")
	}
}

// Run is the single-threaded cooperative event loop of §5: every state
// mutation in the core happens here, serialized, never behind a lock.
func (in *Instance) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-in.events:
			in.dispatch(ev)
		}
	}
}

func (in *Instance) dispatch(ev event) {
	switch ev.kind {
	case evPacket:
		if err := in.handlePacket(ev.ifName, ev.src, ev.raw); err != nil {
			in.Log.WithError(err).WithFields(logrus.Fields{"iface": ev.ifName, "src": ev.src.String()}).Debug("dropped packet")
		}
	case evHelloTimer:
		in.sendHello(ev.ifName)
	case evHoldExpired:
		in.handleHoldExpired(ev.ifName, ev.peer)
	case evRetransTimer:
		in.handleRetransTimer(ev.ifName, ev.peer)
	case evSIATimer:
		in.handleSIATimer(ev.prefix)
	case evLinkState:
		if ev.up {
			in.handleLinkUp(ev.ifName)
		} else {
			in.handleLinkDown(ev.ifName)
		}
	}
}
