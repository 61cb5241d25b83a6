package face

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ndn-go/fw/core"
	"github.com/ndn-go/fw/defn"
)

// AcceptFn receives each transport a listener accepts; the daemon wraps it
// into a Face and registers it with the FaceTable.
type AcceptFn func(t Transport)

// UnixStreamListener accepts local application connections on a Unix
// domain socket, the standard local face kind.
type UnixStreamListener struct {
	path     string
	listener *net.UnixListener
	onAccept AcceptFn
}

// NewUnixStreamListener binds the socket at path.
func NewUnixStreamListener(path string, onAccept AcceptFn) (*UnixStreamListener, error) {
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, err
	}
	listener, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, fmt.Errorf("unix listen %s: %w", path, err)
	}
	return &UnixStreamListener{path: path, listener: listener, onAccept: onAccept}, nil
}

func (l *UnixStreamListener) String() string {
	return fmt.Sprintf("unix-listener(%s)", l.path)
}

// Run accepts connections until Close; call from its own goroutine.
func (l *UnixStreamListener) Run() {
	localURI := defn.URI("unix://" + l.path)
	for {
		conn, err := l.listener.AcceptUnix()
		if err != nil {
			return
		}
		remoteURI := defn.URI(fmt.Sprintf("fd://%v", conn.RemoteAddr()))
		l.onAccept(NewUnixStreamTransport(remoteURI, localURI, conn))
	}
}

// Close stops accepting and releases the socket.
func (l *UnixStreamListener) Close() error {
	return l.listener.Close()
}

// WebSocketListener upgrades HTTP connections into WebSocket faces for
// browser applications.
type WebSocketListener struct {
	addr     string
	server   *http.Server
	upgrader websocket.Upgrader
	onAccept AcceptFn
}

// NewWebSocketListener serves the upgrade endpoint on addr (host:port).
func NewWebSocketListener(addr string, onAccept AcceptFn) *WebSocketListener {
	l := &WebSocketListener{
		addr:     addr,
		onAccept: onAccept,
		upgrader: websocket.Upgrader{
			// NDN carries its own trust model; origin checks add nothing.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", l.handle)
	l.server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return l
}

func (l *WebSocketListener) String() string {
	return fmt.Sprintf("websocket-listener(%s)", l.addr)
}

func (l *WebSocketListener) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		core.Log.Warn(l, "websocket upgrade failed", "err", err)
		return
	}
	l.onAccept(NewWebSocketTransport(defn.URI("ws://"+l.addr), conn))
}

// Run serves until Close; call from its own goroutine.
func (l *WebSocketListener) Run() {
	if err := l.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		core.Log.Error(l, "websocket listener failed", "err", err)
	}
}

// Close shuts the HTTP server down.
func (l *WebSocketListener) Close() error {
	return l.server.Close()
}
