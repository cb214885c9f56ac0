package instance

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"

	"github.com/diivious/eigrpd/internal/addr"
	"github.com/diivious/eigrpd/internal/eigrperr"
	"github.com/diivious/eigrpd/internal/iface"
)

// eigrpProtocol is the IP protocol number assigned to EIGRP.
const eigrpProtocol = 88

// allEIGRPRouters is the well-known EIGRP multicast group.
var allEIGRPRouters = net.IPv4(224, 0, 0, 10)

// Socket is the raw IP transport contract the instance layer drives.
// rawSocket is the production implementation; tests substitute a fake.
type Socket interface {
	WriteTo(ifName string, dest net.IP, b []byte) error
	WriteMulticast(ifName string, b []byte) error
	JoinGroup(ifName string) error
	Close() error
}

// rawSocket is a protocol-88 raw IPv4 socket shared by every interface.
// Outgoing writes select their egress interface per packet via an IPv4
// control message rather than opening one socket per link.
type rawSocket struct {
	pc *ipv4.PacketConn
}

// eigrpTTL is fixed at 2 so an EIGRP packet can traverse at most one
// hop beyond its egress interface — §6's wire contract, not a link-local
// assumption this code makes on its own.
const eigrpTTL = 2

// tosInternetControl is the IPv4 ToS byte EIGRP traffic carries (DSCP
// CS6, "internetwork control").
const tosInternetControl = 0xc0

// NewRawSocket opens the raw socket this router sends and receives EIGRP
// packets on.
func NewRawSocket() (*rawSocket, error) {
	conn, err := net.ListenIP(fmt.Sprintf("ip4:%d", eigrpProtocol), &net.IPAddr{IP: net.IPv4zero})
	if err != nil {
		return nil, eigrperr.Wire(err, "raw socket")
	}
	if err := setReuseAddr(conn); err != nil {
		conn.Close()
		return nil, eigrperr.Wire(err, "socket options")
	}

	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetControlMessage(ipv4.FlagInterface, true); err != nil {
		conn.Close()
		return nil, eigrperr.Wire(err, "control message")
	}
	if err := pc.SetTTL(eigrpTTL); err != nil {
		conn.Close()
		return nil, eigrperr.Wire(err, "set ttl")
	}
	if err := pc.SetMulticastTTL(eigrpTTL); err != nil {
		conn.Close()
		return nil, eigrperr.Wire(err, "set multicast ttl")
	}
	if err := pc.SetTOS(tosInternetControl); err != nil {
		conn.Close()
		return nil, eigrperr.Wire(err, "set tos")
	}
	return &rawSocket{pc: pc}, nil
}

// setReuseAddr allows several eigrpd processes bound to different VRFs to
// share the protocol-88 socket on the same host.
func setReuseAddr(conn *net.IPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	}); err != nil {
		return err
	}
	return sockErr
}

func (s *rawSocket) JoinGroup(ifName string) error {
	link, err := net.InterfaceByName(ifName)
	if err != nil {
		return eigrperr.Wire(err, "interface lookup")
	}
	return s.pc.JoinGroup(link, &net.IPAddr{IP: allEIGRPRouters})
}

func (s *rawSocket) WriteTo(ifName string, dest net.IP, b []byte) error {
	link, err := net.InterfaceByName(ifName)
	if err != nil {
		return err
	}
	cm := &ipv4.ControlMessage{IfIndex: link.Index}
	_, err = s.pc.WriteTo(b, cm, &net.IPAddr{IP: dest})
	return err
}

func (s *rawSocket) WriteMulticast(ifName string, b []byte) error {
	return s.WriteTo(ifName, allEIGRPRouters, b)
}

func (s *rawSocket) Close() error {
	return s.pc.Close()
}

// serve reads datagrams until ctx is cancelled or the socket errors,
// posting each as an evPacket event. It never touches Instance state
// directly — parsing and dispatch happen on Run's single goroutine.
func (s *rawSocket) serve(ctx context.Context, in *Instance) {
	go func() {
		<-ctx.Done()
		s.pc.Close()
	}()

	buf := make([]byte, 1500)
	for {
		n, cm, peer, err := s.pc.ReadFrom(buf)
		if err != nil {
			return
		}
		srcIP, ok := peer.(*net.IPAddr)
		if !ok {
			continue
		}
		src, err := addr.Host(srcIP.IP)
		if err != nil {
			continue
		}
		raw := make([]byte, n)
		copy(raw, buf[:n])
		in.Post(event{kind: evPacket, ifName: ifNameFromControl(cm), src: src, raw: raw})
	}
}

func ifNameFromControl(cm *ipv4.ControlMessage) string {
	if cm == nil {
		return ""
	}
	link, err := net.InterfaceByIndex(cm.IfIndex)
	if err != nil {
		return ""
	}
	return link.Name
}

// ListenAndServe starts the raw-socket reader (if a real Socket is
// configured) and runs the event loop until ctx is cancelled.
func (in *Instance) ListenAndServe(ctx context.Context) error {
	if rs, ok := in.sock.(*rawSocket); ok && rs != nil {
		go rs.serve(ctx, in)
	}
	return in.Run(ctx)
}

// writeUnicast hands buf to the socket layer addressed to dest out ei.
func (in *Instance) writeUnicast(ei *iface.Interface, dest addr.Address, buf []byte) {
	if in.sock == nil {
		return
	}
	if err := in.sock.WriteTo(ei.Name, dest.IP4(), buf); err != nil {
		in.Log.WithError(err).WithField("iface", ei.Name).Warn("unicast write failed")
	}
}

// writeMulticast hands buf to the socket layer addressed to the
// all-EIGRP-routers group out ei.
func (in *Instance) writeMulticast(ei *iface.Interface, buf []byte) {
	if in.sock == nil {
		return
	}
	if err := in.sock.WriteMulticast(ei.Name, buf); err != nil {
		in.Log.WithError(err).WithField("iface", ei.Name).Warn("multicast write failed")
	}
}
