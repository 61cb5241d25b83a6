package face

import (
	"testing"

	"github.com/ndn-go/fw/core"
	"github.com/ndn-go/fw/defn"
	"github.com/ndn-go/fw/ndn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFaceTableAllocatesIdsFromFirst(t *testing.T) {
	rt := core.NewRuntime(8)
	sched := core.NewScheduler(rt)
	go rt.Run()
	defer rt.Stop()

	ft := NewFaceTable(nil, nil)
	var received []ndn.Pkt
	f1 := ft.Add(func(id defn.FaceId) *Face {
		return NewFace(id, NewNullTransport(), sched, LinkServiceOptions{}, func(id defn.FaceId, p ndn.Pkt) {
			received = append(received, p)
		})
	})
	f2 := ft.Add(func(id defn.FaceId) *Face {
		return NewFace(id, NewNullTransport(), sched, LinkServiceOptions{}, func(id defn.FaceId, p ndn.Pkt) {})
	})

	assert.Equal(t, defn.FaceIdFirst, f1.Id())
	assert.Equal(t, defn.FaceIdFirst+1, f2.Id())
	assert.Equal(t, 2, ft.Len())

	ft.Remove(f1.Id())
	assert.Equal(t, 1, ft.Len())
	assert.Nil(t, ft.Get(f1.Id()))
	require.NotNil(t, ft.Get(f2.Id()))
}

func TestFaceStateChangeSignalFires(t *testing.T) {
	rt := core.NewRuntime(8)
	sched := core.NewScheduler(rt)
	go rt.Run()
	defer rt.Stop()

	f := NewFace(defn.FaceIdFirst, NewNullTransport(), sched, LinkServiceOptions{}, func(defn.FaceId, ndn.Pkt) {})
	var transitions [][2]defn.State
	f.OnStateChange(func(old, new defn.State) {
		transitions = append(transitions, [2]defn.State{old, new})
	})

	f.SetState(defn.StateDown)
	f.SetState(defn.StateUp)
	f.Close()

	require.Len(t, transitions, 3)
	assert.Equal(t, [2]defn.State{defn.StateUp, defn.StateDown}, transitions[0])
	assert.Equal(t, [2]defn.State{defn.StateDown, defn.StateUp}, transitions[1])
	assert.Equal(t, [2]defn.State{defn.StateUp, defn.StateClosing}, transitions[2])
}

func TestFaceStateTransitionsRejectInvalid(t *testing.T) {
	rt := core.NewRuntime(8)
	sched := core.NewScheduler(rt)
	go rt.Run()
	defer rt.Stop()

	f := NewFace(defn.FaceIdFirst, NewNullTransport(), sched, LinkServiceOptions{}, func(defn.FaceId, ndn.Pkt) {})
	assert.Panics(t, func() { f.SetState(defn.StateClosed) })
}
