package core

// Runtime is the explicit replacement for a global scheduler/IO service
// (spec.md §9, "Global state... refactor into an explicit Runtime value
// threaded through constructors"). It is a single serialized job
// queue: every access to the forwarder's tables happens from the goroutine
// draining this queue, so the Forwarder itself never needs locks (spec.md
// §5, "No locks are required because the main loop is the single writer").
//
// A daemon normally has two Runtimes: one for the main forwarding loop and
// one for the optional RIB loop (spec.md §5); cross-loop calls go through
// Post, never direct method calls.
type Runtime struct {
	jobs chan func()
	done chan struct{}
}

// NewRuntime creates a Runtime with the given job queue depth.
func NewRuntime(queueDepth int) *Runtime {
	return &Runtime{
		jobs: make(chan func(), queueDepth),
		done: make(chan struct{}),
	}
}

// Post enqueues fn to run on the runtime's single loop goroutine. Safe to
// call from any goroutine, including transport I/O callbacks.
func (rt *Runtime) Post(fn func()) {
	select {
	case rt.jobs <- fn:
	case <-rt.done:
	}
}

// Run drains the job queue on the calling goroutine until Stop is called.
// This is the loop: call it once, from the goroutine that is to become the
// "main loop" or "rib loop".
func (rt *Runtime) Run() {
	for {
		select {
		case fn := <-rt.jobs:
			fn()
		case <-rt.done:
			rt.drain()
			return
		}
	}
}

func (rt *Runtime) drain() {
	for {
		select {
		case fn := <-rt.jobs:
			fn()
		default:
			return
		}
	}
}

// Stop requests Run to return after draining any already-queued jobs.
func (rt *Runtime) Stop() {
	close(rt.done)
}
