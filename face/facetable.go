package face

import (
	"sync"

	"github.com/ndn-go/fw/defn"
)

// FaceTable owns every live Face, allocating ids from defn.FaceIdFirst
// upward (spec.md §3: ids below that are reserved for internal/null/CS
// marker faces).
type FaceTable struct {
	mu     sync.RWMutex
	faces  map[defn.FaceId]*Face
	nextId defn.FaceId

	onAdd    func(*Face)
	onRemove func(*Face)
}

// NewFaceTable constructs an empty FaceTable. onAdd/onRemove (either may be
// nil) are invoked whenever membership changes, after the table's lock has
// been released, so the forwarder can wire default routes, strategy lookups,
// etc.
func NewFaceTable(onAdd, onRemove func(*Face)) *FaceTable {
	return &FaceTable{
		faces:    make(map[defn.FaceId]*Face),
		nextId:   defn.FaceIdFirst,
		onAdd:    onAdd,
		onRemove: onRemove,
	}
}

// Add allocates the next face id for f and registers it, then starts its
// receive loop in a new goroutine.
func (ft *FaceTable) Add(newFace func(id defn.FaceId) *Face) *Face {
	ft.mu.Lock()
	id := ft.nextId
	ft.nextId++
	f := newFace(id)
	ft.faces[id] = f
	ft.mu.Unlock()

	if ft.onAdd != nil {
		ft.onAdd(f)
	}
	go f.Run()
	return f
}

// Get returns the face with id, or nil.
func (ft *FaceTable) Get(id defn.FaceId) *Face {
	ft.mu.RLock()
	defer ft.mu.RUnlock()
	return ft.faces[id]
}

// Remove closes and forgets the face with id.
func (ft *FaceTable) Remove(id defn.FaceId) {
	ft.mu.Lock()
	f, ok := ft.faces[id]
	if ok {
		delete(ft.faces, id)
	}
	ft.mu.Unlock()
	if !ok {
		return
	}
	f.Close()
	if ft.onRemove != nil {
		ft.onRemove(f)
	}
}

// Enumerate calls fn for every currently registered face.
func (ft *FaceTable) Enumerate(fn func(*Face)) {
	ft.mu.RLock()
	defer ft.mu.RUnlock()
	for _, f := range ft.faces {
		fn(f)
	}
}

// Len returns the number of registered faces.
func (ft *FaceTable) Len() int {
	ft.mu.RLock()
	defer ft.mu.RUnlock()
	return len(ft.faces)
}
