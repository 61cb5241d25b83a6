package face

import (
	"fmt"
	"net"

	"github.com/ndn-go/fw/core"
	"github.com/ndn-go/fw/defn"
)

// UnixStreamTransport communicates with local applications over a Unix
// domain socket (spec.md §4.6, local-only face kind).
type UnixStreamTransport struct {
	transportBase
	conn *net.UnixConn
}

// NewUnixStreamTransport wraps an already-accepted Unix socket connection.
func NewUnixStreamTransport(remoteURI, localURI defn.URI, conn *net.UnixConn) *UnixStreamTransport {
	t := &UnixStreamTransport{conn: conn}
	t.init(remoteURI, localURI, defn.PersistencyPersistent, defn.Local, defn.PointToPoint, 8800)
	t.running.Store(true)
	return t
}

func (t *UnixStreamTransport) String() string {
	return fmt.Sprintf("unix-stream(faceid=%d local=%s)", t.faceId, t.localURI)
}

func (t *UnixStreamTransport) SetPersistency(p defn.Persistency) bool {
	return p == defn.PersistencyPersistent
}

func (t *UnixStreamTransport) SendQueueSize() uint64 { return 0 }

func (t *UnixStreamTransport) sendFrame(frame []byte) {
	if !t.running.Load() {
		return
	}
	if len(frame) > t.MTU() {
		core.Log.Warn(t, "frame exceeds MTU")
		return
	}
	if _, err := writeFrame(t.conn, frame); err != nil {
		core.Log.Warn(t, "unix write failed, face down", "err", err)
		t.Close()
		return
	}
	t.nOutBytes.Add(uint64(len(frame)))
}

func (t *UnixStreamTransport) runReceive() {
	defer t.Close()
	err := readFrameStream(t.conn, func(b []byte) bool {
		t.nInBytes.Add(uint64(len(b)))
		t.linkService.handleIncomingFrame(b)
		return true
	}, nil)
	if err != nil && t.running.Load() {
		core.Log.Warn(t, "unix read failed, face down", "err", err)
	}
}

func (t *UnixStreamTransport) Close() {
	if t.running.CompareAndSwap(true, false) {
		t.conn.Close()
	}
}
