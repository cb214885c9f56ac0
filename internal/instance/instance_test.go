package instance

import (
	"net"
	"testing"
	"time"

	"github.com/diivious/eigrpd/internal/addr"
	"github.com/diivious/eigrpd/internal/filter"
	"github.com/diivious/eigrpd/internal/iface"
	"github.com/diivious/eigrpd/internal/keychain"
	"github.com/diivious/eigrpd/internal/metric"
	"github.com/diivious/eigrpd/internal/neighbor"
	"github.com/diivious/eigrpd/internal/routemgr"
	"github.com/diivious/eigrpd/internal/timerutil"
	"github.com/diivious/eigrpd/internal/tlv"
	"github.com/diivious/eigrpd/internal/transport"
)

// fakeSocket records every write instead of touching the network.
type fakeSocket struct {
	writes [][]byte
	joined []string
}

func (f *fakeSocket) WriteTo(ifName string, dest net.IP, b []byte) error {
	cp := make([]byte, len(b))
	copy(cp, b)
	f.writes = append(f.writes, cp)
	return nil
}

func (f *fakeSocket) WriteMulticast(ifName string, b []byte) error {
	return f.WriteTo(ifName, nil, b)
}

func (f *fakeSocket) JoinGroup(ifName string) error {
	f.joined = append(f.joined, ifName)
	return nil
}

func (f *fakeSocket) Close() error { return nil }

func newTestInstance(t *testing.T, sock Socket) *Instance {
	t.Helper()
	in, err := New(Config{
		AS:       100,
		Variance: 1,
		MaxPaths: 4,
		RouteMgr: routemgr.NewMemory(),
		Filters:  *filter.New(),
		Socket:   sock,
	})
	if err != nil {
		t.Fatal(err)
	}
	return in
}

func newTestIface(t *testing.T, name, cidr string) *iface.Interface {
	t.Helper()
	a, err := addr.ParseCIDR(cidr)
	if err != nil {
		t.Fatal(err)
	}
	ei := iface.New(name, a)
	ei.Params.HelloInterval = time.Hour
	ei.Params.HoldTime = time.Hour
	return ei
}

func TestNextSequenceStrictlyMonotonic(t *testing.T) {
	in := newTestInstance(t, &fakeSocket{})
	var last uint32
	for i := 0; i < 3; i++ {
		seq := in.nextSequence()
		if seq <= last {
			t.Fatalf("expected strictly increasing sequence, got %d after %d", seq, last)
		}
		last = seq
	}
}

func TestHandleHelloCreatesPendingNeighborAndSendsInit(t *testing.T) {
	sock := &fakeSocket{}
	in := newTestInstance(t, sock)
	ei := newTestIface(t, "eth0", "10.0.0.1/30")
	in.AddInterface(ei)

	src, _ := addr.ParseCIDR("10.0.0.2/32")
	msg := tlv.Message{
		Header:    tlv.Header{Version: tlv.Version, Opcode: tlv.OpcodeHello, AS: in.AS},
		Parameter: &tlv.ParameterTLV{K: in.K, HoldTime: 15},
	}
	in.handleHello(ei, src, msg)

	n, ok := ei.NeighborByAddr(src)
	if !ok {
		t.Fatal("expected neighbor created")
	}
	if n.State != neighbor.Pending {
		t.Fatalf("expected Pending, got %s", n.State)
	}
	if len(sock.writes) != 1 {
		t.Fatalf("expected one INIT write, got %d", len(sock.writes))
	}
	if n.RetransQueue.Empty() {
		t.Fatal("expected the INIT Update queued for retransmission")
	}
}

func TestHandleHelloKVectorMismatchTearsDownNeighbor(t *testing.T) {
	sock := &fakeSocket{}
	in := newTestInstance(t, sock)
	ei := newTestIface(t, "eth0", "10.0.0.1/30")
	in.AddInterface(ei)

	src, _ := addr.ParseCIDR("10.0.0.2/32")
	n := neighbor.New(src, ei.Name)
	n.State = neighbor.Up
	n.K = in.K
	n.HoldTime = ei.Params.HoldTime
	ei.AddNeighbor(n)
	in.armHoldTimer(ei, n)

	mismatched := in.K
	mismatched.K2 = 7
	msg := tlv.Message{
		Header:    tlv.Header{Version: tlv.Version, Opcode: tlv.OpcodeHello, AS: in.AS},
		Parameter: &tlv.ParameterTLV{K: mismatched, HoldTime: 15},
	}
	in.handleHello(ei, src, msg)

	if _, ok := ei.NeighborByAddr(src); ok {
		t.Fatal("expected neighbor torn down on K-vector mismatch")
	}
}

func TestHandleAckAdvancesQueueByExactlyOneElement(t *testing.T) {
	in := newTestInstance(t, &fakeSocket{})
	ei := newTestIface(t, "eth0", "10.0.0.1/30")
	in.AddInterface(ei)

	peer, _ := addr.ParseCIDR("10.0.0.2/32")
	n := neighbor.New(peer, ei.Name)
	n.State = neighbor.Pending
	ei.AddNeighbor(n)

	seq1 := in.sendReliableUnicast(ei, n, tlv.Message{
		Header: tlv.Header{Version: tlv.Version, Opcode: tlv.OpcodeUpdate, Flags: tlv.FlagInit, AS: in.AS},
	})
	n.InitSequenceNumber = seq1
	n.RetransQueue.Push(&transport.Packet{
		Sequence: seq1 + 1,
		Timer:    timerutil.New(time.Hour, func() {}),
	})

	if n.RetransQueue.Len() != 2 {
		t.Fatalf("expected two queued packets, got %d", n.RetransQueue.Len())
	}

	in.handleAck(ei, n, seq1)

	// One head popped; reaching Up queues the EOT Update behind seq1+1.
	if n.RetransQueue.Len() != 2 {
		t.Fatalf("expected ack to advance the queue by exactly one and queue the EOT Update, got len %d", n.RetransQueue.Len())
	}
	if n.RetransQueue.Head().Sequence != seq1+1 {
		t.Fatal("expected the second packet to remain queued after one ack")
	}
	if n.State != neighbor.Up {
		t.Fatal("expected neighbor Up once its init sequence was acked")
	}
}

func TestMD5AuthSealVerifyRoundTrip(t *testing.T) {
	sock := &fakeSocket{}
	in := newTestInstance(t, sock)
	kc := keychain.New()
	kc.Add(keychain.Key{ID: 1, String: []byte("secret"), SendOK: true})
	in.Keychain = kc

	ei := newTestIface(t, "eth0", "10.0.0.1/30")
	ei.Params.AuthMode = iface.AuthMD5
	ei.Params.KeyChain = "chain1"
	in.AddInterface(ei)

	msg := tlv.Message{
		Header:    tlv.Header{Version: tlv.Version, Opcode: tlv.OpcodeHello, AS: in.AS},
		Parameter: &tlv.ParameterTLV{K: in.K, HoldTime: 15},
	}
	buf := in.seal(ei, nil, msg)

	parsed, err := tlv.ParseMessage(buf, tlv.ClassicCodec{})
	if err != nil {
		t.Fatal(err)
	}
	if parsed.Auth == nil {
		t.Fatal("expected an authentication TLV in the sealed message")
	}
	if err := in.verifyAuth(ei, nil, parsed, buf); err != nil {
		t.Fatalf("expected verification to succeed, got %v", err)
	}
}

func TestDistributeListInFiltersInboundRoute(t *testing.T) {
	sock := &fakeSocket{}
	in := newTestInstance(t, sock)

	denied, _ := addr.ParseCIDR("192.168.1.0/24")
	fl := filter.New()
	fl.Add(filter.List{Name: "block-192", Rules: []filter.Rule{{Network: denied, Permit: false}}})
	in.Filters = *fl

	ei := newTestIface(t, "eth0", "10.0.0.1/30")
	ei.Params.DistributeListIn = "block-192"
	in.AddInterface(ei)

	peer, _ := addr.ParseCIDR("10.0.0.2/32")
	n := neighbor.New(peer, ei.Name)
	n.State = neighbor.Up
	ei.AddNeighbor(n)

	msg := tlv.Message{
		Header: tlv.Header{Version: tlv.Version, Opcode: tlv.OpcodeUpdate, AS: in.AS},
		Routes: []tlv.RouteTLV{{Dest: denied, Metric: metric.VectorMetric{Delay: 1, Bandwidth: 1}}},
	}
	in.handleUpdate(ei, n, msg)

	if _, ok := in.Table.Get(denied); ok {
		t.Fatal("expected the distribute-list-denied prefix to never reach the topology table")
	}
}
