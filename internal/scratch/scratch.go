// Package scratch implements the typed per-strategy scratch slots attached
// to PIT and Measurements entries (spec.md §3/§9: "Map TypeId -> Box<dyn
// Any>. Access is get<T>() -> Option<&T> / insert<T>(T)."). Go lacks RTTI
// beyond reflect.Type, which is exactly the stable type identifier the
// design notes ask for.
package scratch

import "reflect"

// Slots holds at most one value per distinct type T.
type Slots struct {
	m map[reflect.Type]any
}

// Get returns the stored value of type T, if any.
func Get[T any](s *Slots) (T, bool) {
	var zero T
	if s == nil || s.m == nil {
		return zero, false
	}
	v, ok := s.m[reflect.TypeFor[T]()]
	if !ok {
		return zero, false
	}
	return v.(T), true
}

// Insert stores v, replacing any previous value of the same type.
func Insert[T any](s *Slots, v T) {
	if s.m == nil {
		s.m = make(map[reflect.Type]any)
	}
	s.m[reflect.TypeFor[T]()] = v
}

// Clear empties all slots, used when a Measurements entry's effective
// strategy changes (spec.md §4.5).
func (s *Slots) Clear() {
	s.m = nil
}

// Empty reports whether no slots are set.
func (s *Slots) Empty() bool {
	return len(s.m) == 0
}
