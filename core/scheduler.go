package core

import (
	"sync"
	"time"
)

// EventId identifies a scheduled timer callback, returned by Scheduler.
// Schedule (spec.md §5). The zero value is not a valid event.
type EventId uint64

// Scheduler posts timer callbacks onto a Runtime's job queue, so timer
// firings are serialized with every other pipeline event. Each event has its
// own time.AfterFunc timer, so callbacks due at the same instant are posted
// in the order their timers fire, which is not necessarily the order they
// were scheduled in. Callbacks always run on the runtime loop; Schedule
// and Cancel themselves may be called from transport I/O goroutines, hence
// the lock on the bookkeeping.
type Scheduler struct {
	rt     *Runtime
	mu     sync.Mutex
	nextID EventId
	timers map[EventId]*time.Timer
}

// NewScheduler creates a Scheduler posting onto rt.
func NewScheduler(rt *Runtime) *Scheduler {
	return &Scheduler{rt: rt, timers: make(map[EventId]*time.Timer)}
}

// Schedule arranges for fn to run on the runtime after d elapses. Firing an
// already-cancelled event is impossible by construction; cancelling an
// already-fired event is a no-op (spec.md §5).
func (s *Scheduler) Schedule(d time.Duration, fn func()) EventId {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.timers[id] = time.AfterFunc(d, func() {
		s.rt.Post(func() {
			s.mu.Lock()
			_, live := s.timers[id]
			delete(s.timers, id)
			s.mu.Unlock()
			if !live {
				return // cancelled between fire and dispatch
			}
			fn()
		})
	})
	s.mu.Unlock()
	return id
}

// Cancel stops a pending event. No-op if the event already fired or was
// already cancelled.
func (s *Scheduler) Cancel(id EventId) {
	s.mu.Lock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
}

// ScopedEventId cancels its held event when it goes out of scope (i.e. when
// Close is called) unless Release() was called first, mirroring the
// scoped-event-id wrapper from spec.md §5/§9. Typical use:
//
//	ev := NewScopedEventId(sched, sched.Schedule(d, fn))
//	defer ev.Close()
//	...
//	ev.Reset(sched.Schedule(otherDuration, otherFn)) // cancels the old one
type ScopedEventId struct {
	sched *Scheduler
	id    EventId
	live  bool
}

// NewScopedEventId wraps id so it is cancelled on Close.
func NewScopedEventId(sched *Scheduler, id EventId) *ScopedEventId {
	return &ScopedEventId{sched: sched, id: id, live: true}
}

// Reset cancels the currently held event (if any) and takes ownership of a
// new one, mirroring "assigning a new id cancels the old" (spec.md §5).
func (s *ScopedEventId) Reset(id EventId) {
	if s.live {
		s.sched.Cancel(s.id)
	}
	s.id = id
	s.live = true
}

// Release detaches the held event so Close will not cancel it.
func (s *ScopedEventId) Release() {
	s.live = false
}

// Close cancels the held event unless Release was called.
func (s *ScopedEventId) Close() {
	if s.live {
		s.sched.Cancel(s.id)
		s.live = false
	}
}
