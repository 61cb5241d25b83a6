package face

import (
	"time"

	"github.com/ndn-go/fw/core"
	"github.com/ndn-go/fw/ndn"
)

// Reliability tuning constants (spec.md §4.6.4).
const (
	DefaultSeqNumLossThreshold = 3
	DefaultMaxRetx             = 3
	DefaultIdleAckTimerPeriod  = 5 * time.Millisecond

	rttAlpha   = 0.125 // Jacobson/Karels smoothing, matching TCP's classic values
	rttBeta    = 0.25
	rttMinRTO  = 200 * time.Millisecond
	rttMaxRTO  = 60 * time.Second
	rttKFactor = 4
)

// unackedFragment tracks one outstanding link-layer fragment awaiting an ack
// (spec.md §4.6.4).
type unackedFragment struct {
	seq        uint64
	payload    []byte
	sendTime   time.Time
	retxCount  int
	higherAcks int
	rtoTimer   *core.ScopedEventId
	isFirstTx  bool
}

// rttEstimator implements the Jacobson/Karels RTT/RTO estimator, updated
// only from first-transmission acks (spec.md §4.6.4).
type rttEstimator struct {
	srtt   time.Duration
	rttvar time.Duration
	rto    time.Duration
	have   bool
}

func newRttEstimator() *rttEstimator {
	return &rttEstimator{rto: rttMinRTO}
}

func (e *rttEstimator) addSample(rtt time.Duration) {
	if !e.have {
		e.srtt = rtt
		e.rttvar = rtt / 2
		e.have = true
	} else {
		diff := e.srtt - rtt
		if diff < 0 {
			diff = -diff
		}
		e.rttvar = e.rttvar + time.Duration(rttBeta*float64(diff-e.rttvar))
		e.srtt = e.srtt + time.Duration(rttAlpha*float64(rtt-e.srtt))
	}
	e.rto = e.srtt + rttKFactor*e.rttvar
	if e.rto < rttMinRTO {
		e.rto = rttMinRTO
	}
	if e.rto > rttMaxRTO {
		e.rto = rttMaxRTO
	}
}

// Reliability runs the per-face ARQ loop: retransmission on RTO or loss
// threshold, and ack piggybacking/idle-ack emission (spec.md §4.6.4).
type Reliability struct {
	sched *core.Scheduler

	estimator   *rttEstimator
	unacked     map[uint64]*unackedFragment
	pendingAcks []uint64

	idleAckTimer *core.ScopedEventId

	// sendIdle emits an LP packet carrying only the queued acks when no
	// outgoing data packet is available to piggyback them on (spec.md
	// §4.6.4's IDLE packet).
	sendIdle func(acks []uint64)
	// onExhausted is called with the seq whose containing network packet
	// failed after maxRetx retransmissions (spec.md §4.6.4, nRetxExhausted).
	onExhausted func(seq uint64)
	// retransmit resends the fragment's payload.
	retransmit func(f *unackedFragment)

	maxRetx             int
	seqNumLossThreshold int
	idleAckTimerPeriod  time.Duration

	nRetxExhausted uint64
}

// NewReliability constructs a Reliability engine posting timers on sched.
func NewReliability(sched *core.Scheduler, sendIdle func([]uint64), retransmit func(*unackedFragment), onExhausted func(uint64)) *Reliability {
	return &Reliability{
		sched:               sched,
		estimator:           newRttEstimator(),
		unacked:             make(map[uint64]*unackedFragment),
		sendIdle:            sendIdle,
		retransmit:          retransmit,
		onExhausted:         onExhausted,
		maxRetx:             DefaultMaxRetx,
		seqNumLossThreshold: DefaultSeqNumLossThreshold,
		idleAckTimerPeriod:  DefaultIdleAckTimerPeriod,
	}
}

// TrackOutgoing registers a freshly sent fragment for ack tracking and arms
// its RTO timer.
func (r *Reliability) TrackOutgoing(seq uint64, payload []byte) {
	f := &unackedFragment{seq: seq, payload: payload, sendTime: time.Now(), isFirstTx: true}
	f.rtoTimer = core.NewScopedEventId(r.sched, r.sched.Schedule(r.estimator.rto, func() {
		r.onLoss(f)
	}))
	r.unacked[seq] = f
}

// ReceiveAck processes an incoming ack, releasing the fragment and (for a
// first-transmission fragment) feeding the RTT sample to the estimator.
func (r *Reliability) ReceiveAck(seq uint64) {
	f, ok := r.unacked[seq]
	if !ok {
		return
	}
	delete(r.unacked, seq)
	f.rtoTimer.Close()
	if f.isFirstTx {
		r.estimator.addSample(time.Since(f.sendTime))
	}

	// Acks with greater sequence numbers than a still-outstanding fragment
	// count toward its loss threshold (spec.md §4.6.4's condition (b)),
	// compared modulo 2^64 so the rule holds across sequence wraparound.
	for otherSeq, other := range r.unacked {
		if ndn.SeqAfter(seq, otherSeq) {
			other.higherAcks++
			if other.higherAcks >= r.seqNumLossThreshold {
				r.onLoss(other)
			}
		}
	}
}

func (r *Reliability) onLoss(f *unackedFragment) {
	if _, stillOutstanding := r.unacked[f.seq]; !stillOutstanding {
		return
	}
	if f.retxCount >= r.maxRetx {
		delete(r.unacked, f.seq)
		r.nRetxExhausted++
		if r.onExhausted != nil {
			r.onExhausted(f.seq)
		}
		return
	}
	f.retxCount++
	f.isFirstTx = false
	f.sendTime = time.Now()
	f.rtoTimer.Close()
	f.rtoTimer = core.NewScopedEventId(r.sched, r.sched.Schedule(r.estimator.rto, func() {
		r.onLoss(f)
	}))
	if r.retransmit != nil {
		r.retransmit(f)
	}
}

// QueueAck marks seq to be piggybacked on the next outgoing link packet, or
// emitted in an IDLE packet if none arrives within idleAckTimerPeriod.
func (r *Reliability) QueueAck(seq uint64) {
	r.pendingAcks = append(r.pendingAcks, seq)
	if r.idleAckTimer == nil {
		r.idleAckTimer = core.NewScopedEventId(r.sched, r.sched.Schedule(r.idleAckTimerPeriod, r.flushIdleAcks))
	}
}

func (r *Reliability) flushIdleAcks() {
	r.idleAckTimer = nil
	if len(r.pendingAcks) == 0 {
		return
	}
	acks := r.pendingAcks
	r.pendingAcks = nil
	if r.sendIdle != nil {
		r.sendIdle(acks)
	}
}

// DrainAcks returns and clears the queued acks, for piggybacking onto an
// outgoing data-bearing packet (called instead of waiting for the idle
// timer whenever one is available).
func (r *Reliability) DrainAcks(budget int) []uint64 {
	if len(r.pendingAcks) == 0 {
		return nil
	}
	if budget <= 0 || budget > len(r.pendingAcks) {
		budget = len(r.pendingAcks)
	}
	out := r.pendingAcks[:budget]
	r.pendingAcks = r.pendingAcks[budget:]
	if len(r.pendingAcks) == 0 && r.idleAckTimer != nil {
		r.idleAckTimer.Close()
		r.idleAckTimer = nil
	}
	return out
}

// NRetxExhausted returns the count of network packets abandoned after
// exhausting retransmissions.
func (r *Reliability) NRetxExhausted() uint64 { return r.nRetxExhausted }
