package face

import (
	"fmt"
	"net"

	"github.com/gorilla/websocket"
	"github.com/ndn-go/fw/core"
	"github.com/ndn-go/fw/defn"
)

// WebSocketTransport serves browser/JS applications over a WebSocket
// connection (spec.md §4.6's transport list).
type WebSocketTransport struct {
	transportBase
	conn *websocket.Conn
}

// NewWebSocketTransport wraps an already-upgraded WebSocket connection.
func NewWebSocketTransport(localURI defn.URI, conn *websocket.Conn) *WebSocketTransport {
	remoteURI := defn.URI(fmt.Sprintf("ws://%s", conn.RemoteAddr()))
	scope := defn.NonLocal
	if host, _, err := net.SplitHostPort(conn.RemoteAddr().String()); err == nil {
		if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
			scope = defn.Local
		}
	}

	t := &WebSocketTransport{conn: conn}
	t.init(remoteURI, localURI, defn.PersistencyOnDemand, scope, defn.PointToPoint, 8800)
	t.running.Store(true)
	return t
}

func (t *WebSocketTransport) String() string {
	return fmt.Sprintf("websocket(faceid=%d remote=%s)", t.faceId, t.remoteURI)
}

func (t *WebSocketTransport) SetPersistency(p defn.Persistency) bool {
	return p == defn.PersistencyOnDemand
}

func (t *WebSocketTransport) SendQueueSize() uint64 { return 0 }

func (t *WebSocketTransport) sendFrame(frame []byte) {
	if !t.running.Load() {
		return
	}
	if len(frame) > t.MTU() {
		core.Log.Warn(t, "frame exceeds MTU")
		return
	}
	if err := t.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		core.Log.Warn(t, "websocket write failed, face down", "err", err)
		t.Close()
		return
	}
	t.nOutBytes.Add(uint64(len(frame)))
}

func (t *WebSocketTransport) runReceive() {
	defer t.Close()
	for {
		mt, msg, err := t.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				core.Log.Info(t, "websocket closed unexpectedly", "err", err)
			}
			return
		}
		if mt != websocket.BinaryMessage {
			core.Log.Warn(t, "ignored non-binary websocket message")
			continue
		}
		t.nInBytes.Add(uint64(len(msg)))
		t.linkService.handleIncomingFrame(msg)
	}
}

func (t *WebSocketTransport) Close() {
	if t.running.CompareAndSwap(true, false) {
		t.conn.Close()
	}
}
