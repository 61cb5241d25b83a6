package ndn

import (
	"errors"
	"fmt"
)

// ErrInvalidValue is a typed error naming the offending field and value
// rather than a bare string.
type ErrInvalidValue struct {
	Item  string
	Value any
}

func (e ErrInvalidValue) Error() string {
	return fmt.Sprintf("invalid value for %s: %v", e.Item, e.Value)
}

// ErrNotSupported is returned for a recognized but unimplemented field or
// capability.
type ErrNotSupported struct {
	Item string
}

func (e ErrNotSupported) Error() string {
	return fmt.Sprintf("not supported: %s", e.Item)
}

var (
	// ErrFragmentation is returned when splitting a network packet would
	// exceed nMaxFragments (spec.md §4.6.1).
	ErrFragmentation = errors.New("fragmentation would exceed the maximum fragment count")

	// ErrScopeViolation marks a packet dropped by the scope enforcement
	// matrix (spec.md §4.9.9). Never surfaced to a sender.
	ErrScopeViolation = errors.New("packet violates scope restrictions")

	// ErrParse marks malformed wire bytes; always recovered locally
	// (spec.md §7).
	ErrParse = errors.New("failed to parse packet")

	// ErrFaceDown is returned by Transport.Send when the face is not in
	// the UP or DOWN state.
	ErrFaceDown = errors.New("face is not open")

	// ErrLocalFieldOnNonLocalFace marks an LP local field present on a
	// face whose scope is non-local (spec.md §4.6.3).
	ErrLocalFieldOnNonLocalFace = errors.New("local field present on non-local face")

	// ErrUnauthorizedCommand, ErrUnknownVerb, ErrUnsupportedStrategy,
	// ErrStrategyNotFound back the management-plane status codes of
	// spec.md §4.10/§7.
	ErrUnauthorizedCommand = errors.New("unauthorized command")
	ErrUnknownVerb         = errors.New("unknown verb")
	ErrUnsupportedStrategy = errors.New("unsupported strategy")
	ErrStrategyNotFound    = errors.New("strategy not found")
)
