// Package fw implements the forwarding plane: the Forwarder and its nine
// pipelines (spec.md §4.9), the Strategy engine (§4.8), and the reference
// strategy implementations.
package fw

import (
	"github.com/ndn-go/fw/defn"
	"github.com/ndn-go/fw/face"
	"github.com/ndn-go/fw/ndn"
)

// Face is the view of a face the forwarding plane needs: identity, scope
// and link-type attributes consulted by the pipelines, and a Send entry
// point. *face.Face satisfies it; tests and the management plane's internal
// face provide their own implementations.
type Face interface {
	Id() defn.FaceId
	State() defn.State
	Scope() defn.Scope
	LinkType() defn.LinkType
	Send(pkt ndn.Pkt)
}

// FaceProvider resolves face ids for the pipelines. References to faces held
// in table entries are weak: they are ids, re-resolved through the provider
// on each use, and a dead id resolves to nil (spec.md §3 Ownership).
type FaceProvider interface {
	Face(id defn.FaceId) Face
	Faces(fn func(Face))
}

// FaceTableProvider adapts face.FaceTable to FaceProvider, overlaying the
// reserved special faces (the internal management face, the null face) that
// live below defn.FaceIdFirst and are never allocated by the table.
type FaceTableProvider struct {
	table   *face.FaceTable
	special map[defn.FaceId]Face
}

// NewFaceTableProvider wraps ft. Special faces are added with AddSpecial.
func NewFaceTableProvider(ft *face.FaceTable) *FaceTableProvider {
	return &FaceTableProvider{table: ft, special: make(map[defn.FaceId]Face)}
}

// AddSpecial registers a reserved face (id < defn.FaceIdFirst).
func (p *FaceTableProvider) AddSpecial(f Face) {
	p.special[f.Id()] = f
}

// Face implements FaceProvider.
func (p *FaceTableProvider) Face(id defn.FaceId) Face {
	if f, ok := p.special[id]; ok {
		return f
	}
	if f := p.table.Get(id); f != nil {
		return f
	}
	return nil
}

// Faces implements FaceProvider. Special faces are enumerated first.
func (p *FaceTableProvider) Faces(fn func(Face)) {
	for _, f := range p.special {
		fn(f)
	}
	p.table.Enumerate(func(f *face.Face) { fn(f) })
}
