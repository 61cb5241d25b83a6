package cmd

import (
	"time"

	"github.com/ndn-go/fw/core"
	"github.com/ndn-go/fw/defn"
	"github.com/ndn-go/fw/face"
	"github.com/ndn-go/fw/fw"
	"github.com/ndn-go/fw/mgmt"
	"github.com/ndn-go/fw/ndn"
	"github.com/ndn-go/fw/table"
)

// Daemon wires the whole forwarder together: the two runtimes (main and
// rib, spec.md §5), the tables, the face table with its listeners, and the
// management dispatcher on the internal face.
type Daemon struct {
	config *core.Config

	mainRt *core.Runtime
	ribRt  *core.Runtime
	sched  *core.Scheduler

	fwder      *fw.Forwarder
	faceTable  *face.FaceTable
	provider   *fw.FaceTableProvider
	mgmtThread *mgmt.Thread

	overflow  *table.BadgerStore
	listeners []interface{ Close() error }
	profiler  *Profiler
}

func (d *Daemon) String() string { return "daemon" }

// NewDaemon assembles (but does not start) a daemon from config.
func NewDaemon(config *core.Config) *Daemon {
	d := &Daemon{
		config:   config,
		mainRt:   core.NewRuntime(config.Faces.QueueSize),
		ribRt:    core.NewRuntime(config.Faces.QueueSize),
		profiler: NewProfiler(config),
	}
	d.sched = core.NewScheduler(d.mainRt)

	d.faceTable = face.NewFaceTable(nil, func(f *face.Face) {
		d.fwder.CleanupFace(f.Id())
	})
	d.provider = fw.NewFaceTableProvider(d.faceTable)

	dnlLifetime := time.Duration(config.Tables.DeadNonceListLifetimeMs) * time.Millisecond
	d.fwder = fw.NewForwarder(d.mainRt, d.sched, d.provider, config.Tables.CsCapacity, dnlLifetime)

	d.mgmtThread = mgmt.NewThread(d.fwder, d.ribRt)
	d.provider.AddSpecial(d.mgmtThread)
	d.fwder.SetRouteInstaller(d.mgmtThread.Rib())

	// The reserved null face, which discards everything sent to it.
	nullFace := face.NewFace(defn.FaceIdNull, face.NewNullTransport(), d.sched,
		face.LinkServiceOptions{}, d.fwder.OnIncomingPkt)
	d.provider.AddSpecial(nullFace)

	return d
}

// Start launches the loops, the overflow store, and the face listeners.
func (d *Daemon) Start() error {
	if err := d.profiler.Start(); err != nil {
		return err
	}
	go d.mainRt.Run()
	go d.ribRt.Run()
	d.mainRt.Post(d.mgmtThread.RegisterRoutes)

	if dir := d.config.Tables.CsOverflowDir; dir != "" {
		store, err := table.NewBadgerStore(dir, 0)
		if err != nil {
			return err
		}
		d.overflow = store
		d.mainRt.Post(func() { d.fwder.Cs().SetOverflow(store) })
	}

	accept := func(local bool) face.AcceptFn {
		opts := face.LinkServiceOptions{
			AllowLocalFields:   local,
			AllowFragmentation: true,
			AllowReassembly:    true,
		}
		return func(t face.Transport) {
			f := d.faceTable.Add(func(id defn.FaceId) *face.Face {
				return face.NewFace(id, t, d.sched, opts, d.fwder.OnIncomingPkt)
			})
			core.Log.Info(d, "Created face", "faceid", f.Id(), "remote", t.RemoteURI())
		}
	}

	if path := d.config.Faces.UnixSocketPath; path != "" {
		unixListener, err := face.NewUnixStreamListener(path, accept(true))
		if err != nil {
			return err
		}
		d.listeners = append(d.listeners, unixListener)
		go unixListener.Run()
		core.Log.Info(d, "Listening", "uri", "unix://"+path)
	}

	if addr := d.config.Faces.WebSocketAddr; addr != "" {
		wsListener := face.NewWebSocketListener(addr, accept(false))
		d.listeners = append(d.listeners, wsListener)
		go wsListener.Run()
		core.Log.Info(d, "Listening", "uri", "ws://"+addr)
	}
	return nil
}

// Stop tears the daemon down in reverse order of Start.
func (d *Daemon) Stop() {
	for _, l := range d.listeners {
		l.Close()
	}
	d.faceTable.Enumerate(func(f *face.Face) { f.Close() })
	d.ribRt.Stop()
	d.mainRt.Stop()
	if d.overflow != nil {
		d.overflow.Close()
	}
	d.profiler.Stop()
}

// Forwarder exposes the forwarder for tooling and tests.
func (d *Daemon) Forwarder() *fw.Forwarder { return d.fwder }

// RegisterStaticRoute seeds a FIB route from configuration or tooling.
func (d *Daemon) RegisterStaticRoute(prefix ndn.Name, faceId defn.FaceId, cost uint64) {
	d.mainRt.Post(func() {
		d.fwder.Fib().AddOrUpdateNextHop(prefix, faceId, cost)
	})
}
