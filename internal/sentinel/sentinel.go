package sentinel

import (
	"errors"
	"fmt"
)

// Sentinel errors for the outcomes callers are expected to act on. Stores and
// services return these (usually wrapped with a human-readable reason) and the
// HTTP layer maps them to status codes with errors.Is.
//
//   - ErrNotFound: referenced entity does not exist
//   - ErrConflict: uniqueness violation (biometric code, email, duplicate check-in)
//   - ErrInvalidState: operation illegal for the entity's lifecycle state
//   - ErrInvalidInput: request is missing or has malformed fields
//   - ErrUnavailable: storage or transport temporarily unavailable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnavailable  = errors.New("unavailable")
)

type reasonError struct {
	kind   error
	reason string
}

func (e *reasonError) Error() string { return e.reason }
func (e *reasonError) Unwrap() error { return e.kind }

// Newf returns an error that reads as the formatted reason and matches kind
// under errors.Is.
func Newf(kind error, format string, args ...any) error {
	return &reasonError{kind: kind, reason: fmt.Sprintf(format, args...)}
}

// Kind returns the sentinel err matches, or nil for unexpected errors.
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrConflict, ErrInvalidState, ErrInvalidInput, ErrUnavailable} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Expected reports whether err is a user-actionable outcome rather than a
// fault: not found, conflict, invalid state or invalid input.
func Expected(err error) bool {
	switch Kind(err) {
	case ErrNotFound, ErrConflict, ErrInvalidState, ErrInvalidInput:
		return true
	}
	return false
}
