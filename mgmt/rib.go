package mgmt

import (
	"github.com/ndn-go/fw/core"
	"github.com/ndn-go/fw/defn"
	"github.com/ndn-go/fw/ndn"
)

// Route is one RIB route: who asked for a prefix to reach a face, at what
// cost. Several routes may exist per (prefix, face) from different origins;
// the FIB carries the cheapest.
type Route struct {
	FaceId defn.FaceId
	Origin ndn.RouteOrigin
	Cost   uint64
	Flags  ndn.RouteFlag
}

// ribEntry is the per-prefix route list, only ever touched on the rib loop.
type ribEntry struct {
	name   ndn.Name
	routes []Route
}

// RIBModule handles route registration (register, unregister, list). Its
// handlers run on the rib loop and post resulting FIB mutations back to the
// main loop, the two-loop split of spec.md §5. Routing computation proper
// stays out of scope (spec.md §1): the RIB here is a bookkeeping layer over
// externally supplied routes.
type RIBModule struct {
	manager *Thread
	rib     map[string]*ribEntry
}

func newRIBModule() *RIBModule {
	return &RIBModule{rib: make(map[string]*ribEntry)}
}

func (r *RIBModule) String() string { return "mgmt-rib" }

func (r *RIBModule) registerManager(manager *Thread) { r.manager = manager }

func (r *RIBModule) handleIncomingInterest(cmd *Command) {
	// Hop to the rib loop; everything below runs there.
	r.manager.ribRt.Post(func() {
		switch cmd.Verb {
		case "register":
			r.register(cmd)
		case "unregister":
			r.unregister(cmd)
		case "list":
			r.list(cmd)
		default:
			r.manager.sendCtrlResp(cmd, ndn.StatusUnknownVerb, "Unknown verb", nil)
		}
	})
}

func (r *RIBModule) register(cmd *Command) {
	params := cmd.Params
	if params == nil || params.Name == nil {
		r.manager.sendCtrlResp(cmd, ndn.StatusBadRequest, "ControlParameters is incorrect", nil)
		return
	}

	faceId := cmd.SelfFaceId()
	route := Route{FaceId: faceId}
	if params.Origin != nil {
		route.Origin = *params.Origin
	}
	if params.Cost != nil {
		route.Cost = *params.Cost
	}
	if params.Flags != nil {
		route.Flags = *params.Flags
	}
	r.addRoute(params.Name, route)

	core.Log.Info(r, "Registered route", "name", params.Name, "faceid", faceId, "origin", route.Origin, "cost", route.Cost)

	fid, cost := uint64(faceId), route.Cost
	origin := route.Origin
	r.manager.sendCtrlResp(cmd, ndn.StatusOK, "OK", &ndn.ControlParameters{
		Name:   params.Name,
		FaceId: &fid,
		Origin: &origin,
		Cost:   &cost,
	})
}

func (r *RIBModule) unregister(cmd *Command) {
	params := cmd.Params
	if params == nil || params.Name == nil {
		r.manager.sendCtrlResp(cmd, ndn.StatusBadRequest, "ControlParameters is incorrect", nil)
		return
	}

	faceId := cmd.SelfFaceId()
	origin := ndn.RouteOriginApp
	if params.Origin != nil {
		origin = *params.Origin
	}
	r.removeRoute(params.Name, faceId, origin)

	core.Log.Info(r, "Unregistered route", "name", params.Name, "faceid", faceId)

	fid := uint64(faceId)
	r.manager.sendCtrlResp(cmd, ndn.StatusOK, "OK", &ndn.ControlParameters{
		Name:   params.Name,
		FaceId: &fid,
	})
}

// RibStatusEntry is one record of the rib list dataset.
type RibStatusEntry struct {
	Name   ndn.Name
	Routes []Route
}

func (r *RIBModule) list(cmd *Command) {
	var dataset []RibStatusEntry
	for _, entry := range r.rib {
		dataset = append(dataset, RibStatusEntry{Name: entry.name, Routes: append([]Route(nil), entry.routes...)})
	}

	name := cmd.Prefix.Append("rib", "list")
	r.manager.sendStatusDataset(cmd, name, encodeDataset(dataset))
}

// addRoute records the route and pushes the cheapest (prefix, face) cost
// into the FIB on the main loop.
func (r *RIBModule) addRoute(name ndn.Name, route Route) {
	key := name.String()
	entry, ok := r.rib[key]
	if !ok {
		entry = &ribEntry{name: name.Clone()}
		r.rib[key] = entry
	}
	for i := range entry.routes {
		if entry.routes[i].FaceId == route.FaceId && entry.routes[i].Origin == route.Origin {
			entry.routes[i] = route
			r.syncFace(entry, route.FaceId)
			return
		}
	}
	entry.routes = append(entry.routes, route)
	r.syncFace(entry, route.FaceId)
}

func (r *RIBModule) removeRoute(name ndn.Name, faceId defn.FaceId, origin ndn.RouteOrigin) {
	key := name.String()
	entry, ok := r.rib[key]
	if !ok {
		return
	}
	for i := range entry.routes {
		if entry.routes[i].FaceId == faceId && entry.routes[i].Origin == origin {
			entry.routes = append(entry.routes[:i], entry.routes[i+1:]...)
			break
		}
	}
	if len(entry.routes) == 0 {
		delete(r.rib, key)
	}
	r.syncFace(entry, faceId)
}

// syncFace reconciles one (prefix, face) pair into the FIB on the main
// loop: cheapest surviving route wins, none means removal.
func (r *RIBModule) syncFace(entry *ribEntry, faceId defn.FaceId) {
	var cheapest *Route
	for i := range entry.routes {
		route := &entry.routes[i]
		if route.FaceId != faceId {
			continue
		}
		if cheapest == nil || route.Cost < cheapest.Cost {
			cheapest = route
		}
	}
	// Copy what crosses the loop boundary; the closure must not reach back
	// into rib-loop state (spec.md §5).
	name := entry.name.Clone()
	remove := cheapest == nil
	var cost uint64
	if cheapest != nil {
		cost = cheapest.Cost
	}
	fwder := r.manager.fwder
	fwder.Runtime().Post(func() {
		if remove {
			fwder.Fib().RemoveNextHop(name, faceId)
			return
		}
		fwder.Fib().AddOrUpdateNextHop(name, faceId, cost)
	})
}

// InstallRoute implements fw.RouteInstaller: the self-learning strategy's
// learned routes land in the RIB like any externally registered ones.
func (r *RIBModule) InstallRoute(name ndn.Name, face defn.FaceId, cost uint64) {
	r.manager.ribRt.Post(func() {
		r.addRoute(name, Route{FaceId: face, Origin: ndn.RouteOriginPrefixAnn, Cost: cost})
	})
}
