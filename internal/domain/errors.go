package domain

import (
	"errors"
	"fmt"
)

// Failure kinds. No failure kind is fatal to the process.
var (
	ErrTransport   = errors.New("transport failure")
	ErrParse       = errors.New("parse failure")
	ErrPersistence = errors.New("persistence failure")
)

// Normalization drop reasons.
var (
	ErrMissingField  = errors.New("missing required field")
	ErrInvalidField  = errors.New("invalid field")
	ErrNotCandidate  = errors.New("not a tsunami candidate")
	ErrUnknownSource = errors.New("unknown source")
)

// SourceError tags a failure with the source it happened in. errors.Is
// matches both the failure kind and the underlying cause.
type SourceError struct {
	Source SourceID
	Kind   error
	Err    error
}

// NewSourceError wraps err as a failure of the given kind for source.
func NewSourceError(source SourceID, kind, err error) *SourceError {
	return &SourceError{Source: source, Kind: kind, Err: err}
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Source, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// FailureKind returns the failure kind label for err, or "" when err does not
// belong to the taxonomy.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return ""
	}
}
