package face

import (
	"fmt"

	"github.com/ndn-go/fw/defn"
)

// NullTransport discards every outgoing frame; used for the reserved
// FaceIdNull face (spec.md §3, "the null face, which discards everything").
type NullTransport struct {
	transportBase
	closeOnce chan struct{}
}

// NewNullTransport constructs the singleton null transport.
func NewNullTransport() *NullTransport {
	t := &NullTransport{closeOnce: make(chan struct{})}
	t.init("null://", "null://", defn.PersistencyPermanent, defn.NonLocal, defn.PointToPoint, 8800)
	return t
}

func (t *NullTransport) String() string {
	return fmt.Sprintf("null-transport(faceid=%d)", t.faceId)
}

func (t *NullTransport) SetPersistency(p defn.Persistency) bool {
	return p == defn.PersistencyPermanent
}

func (t *NullTransport) SendQueueSize() uint64 { return 0 }

func (t *NullTransport) sendFrame(pkt []byte) {
	t.nOutBytes.Add(uint64(len(pkt)))
}

func (t *NullTransport) runReceive() {
	t.running.Store(true)
	<-t.closeOnce
}

func (t *NullTransport) Close() {
	if t.running.CompareAndSwap(true, false) {
		close(t.closeOnce)
	}
}
