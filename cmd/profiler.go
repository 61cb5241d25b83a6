package cmd

import (
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/ndn-go/fw/core"
)

// Profiler starts and stops the optional CPU/memory profiles the daemon's
// flags enable.
type Profiler struct {
	config  *core.Config
	cpuFile *os.File
}

// NewProfiler constructs a Profiler over config.
func NewProfiler(config *core.Config) *Profiler {
	return &Profiler{config: config}
}

func (p *Profiler) String() string { return "profiler" }

// Start begins CPU profiling if configured.
func (p *Profiler) Start() (err error) {
	if p.config.Core.CPUProfile != "" {
		p.cpuFile, err = os.Create(p.config.Core.CPUProfile)
		if err != nil {
			return err
		}
		core.Log.Info(p, "Profiling CPU", "out", p.config.Core.CPUProfile)
		pprof.StartCPUProfile(p.cpuFile)
	}
	return nil
}

// Stop writes the memory profile (if configured) and finishes the CPU one.
func (p *Profiler) Stop() {
	if p.config.Core.MemProfile != "" {
		memProfileFile, err := os.Create(p.config.Core.MemProfile)
		if err != nil {
			core.Log.Error(p, "Unable to open output file for memory profile", "err", err)
			return
		}
		defer memProfileFile.Close()

		core.Log.Info(p, "Profiling memory", "out", p.config.Core.MemProfile)
		runtime.GC()
		if err := pprof.WriteHeapProfile(memProfileFile); err != nil {
			core.Log.Error(p, "Unable to write memory profile", "err", err)
		}
	}

	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		p.cpuFile.Close()
	}
}
