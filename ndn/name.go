// Package ndn defines the network-layer packet model (Interest, Data, Nack),
// the Name type that anchors every forwarding table, and the link-layer (LP)
// envelope exchanged between LinkService instances. The wire TLV codec that
// turns these in-memory values into bytes is external to this package, per
// spec.md §1 and §6: the types here are the already-parsed
// representation, not raw octets.
package ndn

import (
	"strings"
)

// Component is a single opaque element of a Name. Two components compare
// equal iff their bytes are identical; ordering is NDN's canonical one,
// shorter components first and byte-lexicographic among equal lengths.
type Component string

// Compare returns -1, 0 or 1 comparing c to other, first by length then by
// byte value, matching NDN's canonical component ordering.
func (c Component) Compare(other Component) int {
	if len(c) != len(other) {
		if len(c) < len(other) {
			return -1
		}
		return 1
	}
	return strings.Compare(string(c), string(other))
}

func (c Component) String() string { return string(c) }

// Name is an ordered sequence of components. Names are comparable with ==
// only after conversion to string via Name.String(); use Equal for value
// comparison of the slice form.
type Name []Component

// NameFromString parses a "/"-delimited name string into a Name. A leading
// slash is optional; consecutive slashes produce empty components, which
// are permitted (NDN components may be zero-length).
func NameFromString(s string) Name {
	s = strings.TrimPrefix(s, "/")
	if s == "" {
		return Name{}
	}
	parts := strings.Split(s, "/")
	name := make(Name, len(parts))
	for i, p := range parts {
		name[i] = Component(p)
	}
	return name
}

// String renders the name in "/"-delimited form.
func (n Name) String() string {
	var sb strings.Builder
	for _, c := range n {
		sb.WriteByte('/')
		sb.WriteString(string(c))
	}
	if len(n) == 0 {
		return "/"
	}
	return sb.String()
}

// Equal reports whether n and other have identical components.
func (n Name) Equal(other Name) bool {
	if len(n) != len(other) {
		return false
	}
	for i := range n {
		if n[i] != other[i] {
			return false
		}
	}
	return true
}

// Compare returns -1, 0, 1 using canonical NDN name ordering: component by
// component, shorter-is-prefix-is-smaller.
func (n Name) Compare(other Name) int {
	for i := 0; i < len(n) && i < len(other); i++ {
		if c := n[i].Compare(other[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(n) < len(other):
		return -1
	case len(n) > len(other):
		return 1
	default:
		return 0
	}
}

// IsPrefixOf reports whether n is a prefix of other (including n == other).
func (n Name) IsPrefixOf(other Name) bool {
	if len(n) > len(other) {
		return false
	}
	for i := range n {
		if n[i] != other[i] {
			return false
		}
	}
	return true
}

// Append returns a new Name with the given components appended.
func (n Name) Append(comps ...Component) Name {
	out := make(Name, 0, len(n)+len(comps))
	out = append(out, n...)
	out = append(out, comps...)
	return out
}

// Prefix returns the first k components of n. Panics if k > len(n).
func (n Name) Prefix(k int) Name {
	return n[:k]
}

// Clone makes a deep copy of n.
func (n Name) Clone() Name {
	out := make(Name, len(n))
	copy(out, n)
	return out
}

// EachPrefix calls fn with every prefix of n from length 0 (the empty name)
// through length len(n) (n itself).
func (n Name) EachPrefix(fn func(prefix Name)) {
	for k := 0; k <= len(n); k++ {
		fn(n[:k])
	}
}
