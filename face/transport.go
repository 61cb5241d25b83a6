// Package face implements the Face abstraction of spec.md §3/§4.6: a
// Transport (raw byte I/O) bound to a LinkService (the NDNLP link-layer
// protocol — fragmentation, reassembly and best-effort reliability) behind
// a single Face facade owning the state machine and packet/byte counters.
package face

import (
	"sync/atomic"
	"time"

	"github.com/ndn-go/fw/defn"
)

// Transport provides byte-level I/O for one face, independent of the
// framing (NDNLP) layered on top by LinkService. Every concrete transport
// embeds transportBase for the bookkeeping common to all of them.
type Transport interface {
	String() string
	setFaceId(id defn.FaceId)
	setLinkService(ls *LinkService)

	RemoteURI() defn.URI
	LocalURI() defn.URI
	Persistency() defn.Persistency
	SetPersistency(p defn.Persistency) bool
	Scope() defn.Scope
	LinkType() defn.LinkType
	MTU() int
	SetMTU(mtu int)
	ExpirationPeriod() time.Duration
	FaceId() defn.FaceId

	// SendQueueSize reports the depth of the outgoing queue, if any.
	SendQueueSize() uint64
	// sendFrame transmits one already-framed link packet.
	sendFrame(pkt []byte)
	// runReceive pumps incoming frames into the bound LinkService until the
	// transport closes; it owns the receive goroutine.
	runReceive()
	IsRunning() bool
	Close()

	NInBytes() uint64
	NOutBytes() uint64
}

// transportBase holds the fields and accessors shared by every Transport
// implementation (spec.md §4.6: "a transport only needs to move bytes").
type transportBase struct {
	linkService *LinkService
	running     atomic.Bool

	faceId         defn.FaceId
	remoteURI      defn.URI
	localURI       defn.URI
	scope          defn.Scope
	persistency    defn.Persistency
	linkType       defn.LinkType
	mtu            int
	expirationTime *time.Time

	nInBytes  atomic.Uint64
	nOutBytes atomic.Uint64
}

func (t *transportBase) init(remoteURI, localURI defn.URI, persistency defn.Persistency, scope defn.Scope, linkType defn.LinkType, mtu int) {
	t.remoteURI = remoteURI
	t.localURI = localURI
	t.persistency = persistency
	t.scope = scope
	t.linkType = linkType
	t.mtu = mtu
}

func (t *transportBase) setFaceId(id defn.FaceId)       { t.faceId = id }
func (t *transportBase) setLinkService(ls *LinkService) { t.linkService = ls }
func (t *transportBase) FaceId() defn.FaceId            { return t.faceId }
func (t *transportBase) LocalURI() defn.URI             { return t.localURI }
func (t *transportBase) RemoteURI() defn.URI            { return t.remoteURI }
func (t *transportBase) Persistency() defn.Persistency  { return t.persistency }
func (t *transportBase) Scope() defn.Scope              { return t.scope }
func (t *transportBase) LinkType() defn.LinkType        { return t.linkType }
func (t *transportBase) MTU() int                       { return t.mtu }
func (t *transportBase) SetMTU(mtu int)                 { t.mtu = mtu }
func (t *transportBase) IsRunning() bool                { return t.running.Load() }
func (t *transportBase) NInBytes() uint64               { return t.nInBytes.Load() }
func (t *transportBase) NOutBytes() uint64              { return t.nOutBytes.Load() }

// ExpirationPeriod returns the time left before an on-demand face expires,
// or zero for any other persistency (spec.md §3).
func (t *transportBase) ExpirationPeriod() time.Duration {
	if t.expirationTime == nil || t.persistency != defn.PersistencyOnDemand {
		return 0
	}
	return time.Until(*t.expirationTime)
}
