// Package mgmt implements the management plane of spec.md §4.10: a
// dispatcher that receives command Interests on the internal face, routes
// them to per-module handlers (fib, strategy-choice, rib, cs, status), and
// answers with ControlResponse Data or segmented status datasets.
package mgmt

import (
	"fmt"
	"time"

	"github.com/ndn-go/fw/core"
	"github.com/ndn-go/fw/defn"
	"github.com/ndn-go/fw/fw"
	"github.com/ndn-go/fw/ndn"
)

// Command is one parsed management command Interest:
// <top-prefix>/<module>/<verb>/<params>/<signing-info> (spec.md §6).
type Command struct {
	Interest *ndn.Interest
	Pkt      ndn.Pkt
	Prefix   ndn.Name // the matched top prefix (localhost or localhop)
	Module   string
	Verb     string
	Params   *ndn.ControlParameters // nil when absent or undecodable

	// IsLocal reports whether the command arrived under the local-only
	// prefix; per-module policy may refuse router-scope commands.
	IsLocal bool
}

// SelfFaceId resolves the face-id parameter, substituting the command's
// ingress face for the self-registration sentinel 0 (spec.md §4.10).
func (c *Command) SelfFaceId() defn.FaceId {
	if c.Params != nil && c.Params.FaceId != nil && *c.Params.FaceId != 0 {
		return defn.FaceId(*c.Params.FaceId)
	}
	return defn.FaceId(c.Pkt.IncomingFaceId)
}

// Module is one management module. Verb dispatch happens inside the
// module.
type Module interface {
	fmt.Stringer
	registerManager(m *Thread)
	handleIncomingInterest(cmd *Command)
}

// Validator authenticates a command against a per-module policy. The
// cryptographic half is an external capability (spec.md §1); the default
// implementation only enforces scope.
type Validator interface {
	Authorize(module string, cmd *Command) bool
}

// localOnlyValidator admits every command that arrived under the
// local-only prefix and rejects router-scope commands for modules that
// mutate state.
type localOnlyValidator struct{}

func (localOnlyValidator) Authorize(module string, cmd *Command) bool {
	if cmd.IsLocal {
		return true
	}
	// Over /localhop only read-only modules are admitted.
	return module == "status"
}

// Thread is the management dispatcher. It doubles as the internal face
// (FaceId 1): the forwarder delivers command Interests to it through the
// normal outgoing-interest pipeline, and responses are injected back as
// incoming Data on the same face.
type Thread struct {
	fwder     *fw.Forwarder
	ribRt     *core.Runtime
	modules   map[string]Module
	validator Validator

	localPrefix    ndn.Name
	localhopPrefix ndn.Name

	segmentSize    int
	datasetVersion uint64
}

// DefaultSegmentSize bounds one status-dataset segment's payload, under
// the maximum NDN packet size of spec.md §6.
const DefaultSegmentSize = 6000

// NewThread builds the dispatcher with the standard module set. ribRt is
// the rib loop's runtime; rib-module handlers run there and post FIB
// mutations back to the main loop (spec.md §5). It may equal the main
// runtime in single-loop deployments.
func NewThread(fwder *fw.Forwarder, ribRt *core.Runtime) *Thread {
	t := &Thread{
		fwder:          fwder,
		ribRt:          ribRt,
		modules:        make(map[string]Module),
		validator:      localOnlyValidator{},
		localPrefix:    ndn.NameFromString(defn.LocalhostPrefix),
		localhopPrefix: ndn.NameFromString(defn.LocalhopPrefix),
		segmentSize:    DefaultSegmentSize,
	}
	t.registerModule("fib", &FIBModule{})
	t.registerModule("strategy-choice", &StrategyChoiceModule{})
	t.registerModule("rib", newRIBModule())
	t.registerModule("cs", &CSModule{})
	t.registerModule("status", &GeneralStatusModule{start: time.Now()})
	return t
}

func (t *Thread) String() string { return "mgmt" }

// SetValidator replaces the command authorizer.
func (t *Thread) SetValidator(v Validator) { t.validator = v }

func (t *Thread) registerModule(name string, m Module) {
	m.registerManager(t)
	t.modules[name] = m
}

// Rib returns the rib module, for wiring it as the forwarder's route
// installer.
func (t *Thread) Rib() *RIBModule { return t.modules["rib"].(*RIBModule) }

// RegisterRoutes installs the FIB routes that steer the management
// namespaces to the internal face.
func (t *Thread) RegisterRoutes() {
	t.fwder.Fib().AddOrUpdateNextHop(t.localPrefix, defn.FaceIdInternal, 0)
	t.fwder.Fib().AddOrUpdateNextHop(t.localhopPrefix, defn.FaceIdInternal, 0)
}

// The fw.Face surface: the dispatcher is the internal face.

func (t *Thread) Id() defn.FaceId         { return defn.FaceIdInternal }
func (t *Thread) State() defn.State       { return defn.StateUp }
func (t *Thread) Scope() defn.Scope       { return defn.Local }
func (t *Thread) LinkType() defn.LinkType { return defn.PointToPoint }

// Send receives a packet the forwarder egressed to the internal face. Only
// Interests are meaningful here.
func (t *Thread) Send(pkt ndn.Pkt) {
	if pkt.Kind != ndn.PktInterest {
		return
	}
	t.dispatch(pkt)
}

// dispatch parses the command name and hands it to the right module
// (spec.md §4.10): unauthorized 403, unknown module 501 (there is no verb
// to dispatch), the rest is the module's business.
func (t *Thread) dispatch(pkt ndn.Pkt) {
	interest := pkt.Interest
	cmd := &Command{Interest: interest, Pkt: pkt}
	switch {
	case t.localPrefix.IsPrefixOf(interest.Name):
		cmd.Prefix, cmd.IsLocal = t.localPrefix, true
	case t.localhopPrefix.IsPrefixOf(interest.Name):
		cmd.Prefix, cmd.IsLocal = t.localhopPrefix, false
	default:
		return
	}

	rest := interest.Name[len(cmd.Prefix):]
	if len(rest) < 2 {
		t.sendCtrlResp(cmd, ndn.StatusBadRequest, "Malformed command name", nil)
		return
	}
	cmd.Module = string(rest[0])
	cmd.Verb = string(rest[1])
	if len(rest) >= 3 {
		cmd.Params = decodeControlParameters(t, rest[2])
	}

	module, ok := t.modules[cmd.Module]
	if !ok {
		core.Log.Warn(t, "Unknown management module", "module", cmd.Module)
		t.sendCtrlResp(cmd, ndn.StatusUnknownVerb, "Unknown module", nil)
		return
	}
	if !t.validator.Authorize(cmd.Module, cmd) {
		core.Log.Warn(t, "Unauthorized command", "module", cmd.Module, "verb", cmd.Verb)
		t.sendCtrlResp(cmd, ndn.StatusUnauthorized, "Unauthorized", nil)
		return
	}
	module.handleIncomingInterest(cmd)
}

// sendCtrlResp answers cmd with a ControlResponse Data named after the
// command Interest. The injection is posted so the response enters the
// incoming-data pipeline only after the current pipeline completes.
func (t *Thread) sendCtrlResp(cmd *Command, code int, text string, body *ndn.ControlParameters) {
	resp := ndn.ControlResponse{StatusCode: code, StatusText: text, Body: body}
	data := &ndn.Data{
		Name:            cmd.Interest.Name.Clone(),
		ContentType:     ndn.ContentTypeBlob,
		FreshnessPeriod: time.Second,
		Content:         encodeControlResponse(resp),
	}
	t.inject(data)
}

// sendStatusDataset answers a list verb with a segmented Data sequence
// under name; the last segment carries FinalBlockID equal to its segment
// number (spec.md §6). Segments beyond the first satisfy later segment
// Interests out of the CS.
func (t *Thread) sendStatusDataset(cmd *Command, name ndn.Name, payload []byte) {
	t.datasetVersion++
	version := ndn.Component(fmt.Sprintf("v=%d", t.datasetVersion))

	nSegments := (len(payload) + t.segmentSize - 1) / t.segmentSize
	if nSegments == 0 {
		nSegments = 1
	}
	finalBlock := ndn.Component(fmt.Sprintf("seg=%d", nSegments-1))
	segments := make([]*ndn.Data, nSegments)
	for i := 0; i < nSegments; i++ {
		start := i * t.segmentSize
		end := start + t.segmentSize
		if end > len(payload) {
			end = len(payload)
		}
		fb := finalBlock
		segments[i] = &ndn.Data{
			Name:            name.Append(version, ndn.Component(fmt.Sprintf("seg=%d", i))),
			ContentType:     ndn.ContentTypeBlob,
			FreshnessPeriod: time.Second,
			FinalBlockID:    &fb,
			Content:         payload[start:end],
		}
	}
	t.inject(segments...)
}

// inject feeds Data into the forwarder as if it arrived on the internal
// face. A multi-segment burst goes in as one job so every segment is
// delivered before the satisfied PIT entry can be reaped.
func (t *Thread) inject(datas ...*ndn.Data) {
	t.fwder.Runtime().Post(func() {
		for _, data := range datas {
			t.fwder.OnIncomingData(t, ndn.Pkt{Kind: ndn.PktData, Data: data, IncomingFaceId: uint64(t.Id())})
		}
	})
}
