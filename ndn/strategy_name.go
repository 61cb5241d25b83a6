package ndn

import (
	"fmt"
	"strconv"
)

// StrategyName is a Name whose last component, if present, is the escaped
// form of a version integer (spec.md §4.5), written in plain decimal.
// "/localhost/nfd/strategy/best-route/4" has base "best-route" and
// version 4.
type StrategyName struct {
	Name Name
}

// HasVersion reports whether the last component of n parses as a version.
func (s StrategyName) HasVersion() bool {
	_, ok := s.Version()
	return ok
}

// Version returns the version encoded in the last component, if any.
func (s StrategyName) Version() (uint64, bool) {
	if len(s.Name) == 0 {
		return 0, false
	}
	last := string(s.Name[len(s.Name)-1])
	v, err := strconv.ParseUint(last, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Base returns the name with any trailing version component stripped.
func (s StrategyName) Base() Name {
	if s.HasVersion() {
		return s.Name[:len(s.Name)-1]
	}
	return s.Name
}

// WithVersion returns a new StrategyName with the given version appended
// (replacing an existing version component, if any).
func (s StrategyName) WithVersion(v uint64) StrategyName {
	return StrategyName{Name: s.Base().Append(Component(strconv.FormatUint(v, 10)))}
}

func (s StrategyName) String() string {
	return fmt.Sprintf("%s", s.Name.String())
}
