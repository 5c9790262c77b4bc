// Package errcode defines the stable, machine-readable error codes shared
// by the ledger, the game mirror and the websocket surface. Every rejection
// a client can observe carries one of these codes.
package errcode

import "errors"

// Kind groups codes into the rejection taxonomy used by the orchestrator to
// decide whether state may have mutated.
type Kind int

const (
	Validation Kind = iota
	Authorization
	StateConflict
	LedgerUnavailable
	FatalDesync
)

// Error is a coded error. Message is human-readable; Code is stable.
type Error struct {
	Code    string
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Is matches two coded errors by code, so sentinel comparisons via
// errors.Is work across wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// New creates a coded error.
func New(kind Kind, code, message string) *Error {
	return &Error{Code: code, Kind: kind, Message: message}
}

// CodeOf extracts the stable code from err, or "internal" if err carries
// no code.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}

// KindOf extracts the taxonomy kind, defaulting to Validation for uncoded
// errors since those are never retried.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Validation
}
