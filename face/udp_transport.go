package face

import (
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/ndn-go/fw/core"
	"github.com/ndn-go/fw/defn"
	"golang.org/x/sys/unix"
)

// DefaultUDPLifetime is how long an on-demand UDP face survives without
// traffic before it is eligible for expiration (spec.md §3).
const DefaultUDPLifetime = 10 * time.Minute

// DefaultUDPMtu is the default MTU assumed for new UDP faces, overridable
// per transport with SetMTU (spec.md §4.6).
const DefaultUDPMtu = 1400

// UnicastUDPTransport is a point-to-point UDP transport (spec.md §4.6).
type UnicastUDPTransport struct {
	transportBase
	dialer *net.Dialer
	conn   *net.UDPConn
}

// reuseAddrControl sets SO_REUSEADDR on the underlying socket before bind,
// letting multiple unicast faces share a local port the way the source's
// impl.SyscallReuseAddr does.
func reuseAddrControl(_, _ string, c syscall.RawConn) error {
	return c.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
}

// NewUnicastUDPTransport dials remoteAddr (host:port) and constructs a
// transport around the resulting UDP socket.
func NewUnicastUDPTransport(remoteURI, localURI defn.URI, remoteAddr string, persistency defn.Persistency) (*UnicastUDPTransport, error) {
	t := &UnicastUDPTransport{}
	t.init(remoteURI, localURI, persistency, defn.NonLocal, defn.PointToPoint, DefaultUDPMtu)
	t.expirationTime = new(time.Time)
	*t.expirationTime = time.Now().Add(DefaultUDPLifetime)

	host, _, err := net.SplitHostPort(remoteAddr)
	if err == nil {
		if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
			t.scope = defn.Local
		}
	}

	t.dialer = &net.Dialer{Control: reuseAddrControl}
	conn, err := t.dialer.Dial("udp", remoteAddr)
	if err != nil {
		return nil, fmt.Errorf("udp dial %s: %w", remoteAddr, err)
	}
	t.conn = conn.(*net.UDPConn)
	t.running.Store(true)
	return t, nil
}

func (t *UnicastUDPTransport) String() string {
	return fmt.Sprintf("unicast-udp(faceid=%d remote=%s)", t.faceId, t.remoteURI)
}

func (t *UnicastUDPTransport) SetPersistency(p defn.Persistency) bool {
	t.persistency = p
	return true
}

func (t *UnicastUDPTransport) SendQueueSize() uint64 { return 0 }

func (t *UnicastUDPTransport) sendFrame(frame []byte) {
	if !t.running.Load() {
		return
	}
	if len(frame) > t.MTU() {
		core.Log.Error(t, "frame exceeds MTU", "size", len(frame), "mtu", t.MTU())
		return
	}
	if _, err := writeFrame(t.conn, frame); err != nil {
		core.Log.Warn(t, "udp write failed, face down", "err", err)
		t.Close()
		return
	}
	t.nOutBytes.Add(uint64(len(frame)))
	*t.expirationTime = time.Now().Add(DefaultUDPLifetime)
}

func (t *UnicastUDPTransport) runReceive() {
	defer t.Close()
	err := readFrameStream(t.conn, func(b []byte) bool {
		t.nInBytes.Add(uint64(len(b)))
		*t.expirationTime = time.Now().Add(DefaultUDPLifetime)
		t.linkService.handleIncomingFrame(b)
		return true
	}, func(err error) bool {
		return strings.Contains(err.Error(), "connection refused")
	})
	if err != nil && t.running.Load() {
		core.Log.Warn(t, "udp read failed, face down", "err", err)
	}
}

func (t *UnicastUDPTransport) Close() {
	if t.running.CompareAndSwap(true, false) {
		t.conn.Close()
	}
}

// MulticastUDPTransport joins a multicast group for MultiAccess faces on
// broadcast-medium links (spec.md §4.6).
type MulticastUDPTransport struct {
	transportBase
	sendConn *net.UDPConn
	recvConn *net.UDPConn
	group    *net.UDPAddr
	iface    *net.Interface
}

// NewMulticastUDPTransport joins group on iface.
func NewMulticastUDPTransport(localURI defn.URI, iface *net.Interface, group *net.UDPAddr) (*MulticastUDPTransport, error) {
	t := &MulticastUDPTransport{group: group, iface: iface}
	remoteURI := defn.URI(fmt.Sprintf("udp4://%s", group.String()))
	t.init(remoteURI, localURI, defn.PersistencyPermanent, defn.NonLocal, defn.MultiAccess, DefaultUDPMtu)

	sendConn, err := net.DialUDP("udp4", nil, group)
	if err != nil {
		return nil, fmt.Errorf("multicast send dial: %w", err)
	}
	t.sendConn = sendConn

	recvConn, err := net.ListenMulticastUDP("udp4", iface, group)
	if err != nil {
		sendConn.Close()
		return nil, fmt.Errorf("multicast listen on %s: %w", iface.Name, err)
	}
	t.recvConn = recvConn
	t.running.Store(true)
	return t, nil
}

func (t *MulticastUDPTransport) String() string {
	return fmt.Sprintf("multicast-udp(faceid=%d group=%s if=%s)", t.faceId, t.group, t.iface.Name)
}

func (t *MulticastUDPTransport) SetPersistency(p defn.Persistency) bool {
	return p == defn.PersistencyPermanent
}

func (t *MulticastUDPTransport) SendQueueSize() uint64 { return 0 }

func (t *MulticastUDPTransport) sendFrame(frame []byte) {
	if !t.running.Load() {
		return
	}
	if len(frame) > t.MTU() {
		core.Log.Warn(t, "frame exceeds MTU")
		return
	}
	if _, err := writeFrame(t.sendConn, frame); err != nil {
		core.Log.Warn(t, "multicast send failed", "err", err)
		return
	}
	t.nOutBytes.Add(uint64(len(frame)))
}

func (t *MulticastUDPTransport) runReceive() {
	defer t.Close()
	for t.running.Load() {
		err := readFrameStream(t.recvConn, func(b []byte) bool {
			t.nInBytes.Add(uint64(len(b)))
			t.linkService.handleIncomingFrame(b)
			return true
		}, func(err error) bool {
			return strings.Contains(err.Error(), "connection refused")
		})
		if err != nil && t.running.Load() {
			core.Log.Warn(t, "multicast receive error", "err", err)
			return
		}
	}
}

func (t *MulticastUDPTransport) Close() {
	if t.running.CompareAndSwap(true, false) {
		t.sendConn.Close()
		t.recvConn.Close()
	}
}
