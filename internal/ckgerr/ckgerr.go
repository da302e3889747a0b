// Package ckgerr defines the error taxonomy shared by every CKG component.
//
// Every exported operation wraps failures with a Kind so callers can branch
// with errors.Is against the package-level sentinels, while still carrying
// the underlying cause via %w, matching the sentinel-error style the
// vector-store layer this engine grew out of used.
package ckgerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure the way callers need to branch on it.
type Kind string

const (
	InvalidInput       Kind = "invalid_input"
	NotFound           Kind = "not_found"
	Conflict           Kind = "conflict"
	Backend            Kind = "backend"
	Timeout            Kind = "timeout"
	Cancelled          Kind = "cancelled"
	UnsupportedVersion Kind = "unsupported_version"
	RetrievalFailed    Kind = "retrieval_failed"
)

// Sentinels for errors.Is. Each Kind has exactly one sentinel; component
// packages raise more specific leaf errors (e.g. ErrCollectionExists) that
// wrap the matching sentinel via Is, not a fresh unrelated error.
var (
	ErrInvalidInput       = errors.New(string(InvalidInput))
	ErrNotFound           = errors.New(string(NotFound))
	ErrConflict           = errors.New(string(Conflict))
	ErrBackend            = errors.New(string(Backend))
	ErrTimeout            = errors.New(string(Timeout))
	ErrCancelled          = errors.New(string(Cancelled))
	ErrUnsupportedVersion = errors.New(string(UnsupportedVersion))
	ErrRetrievalFailed    = errors.New(string(RetrievalFailed))
)

func sentinel(k Kind) error {
	switch k {
	case InvalidInput:
		return ErrInvalidInput
	case NotFound:
		return ErrNotFound
	case Conflict:
		return ErrConflict
	case Backend:
		return ErrBackend
	case Timeout:
		return ErrTimeout
	case Cancelled:
		return ErrCancelled
	case UnsupportedVersion:
		return ErrUnsupportedVersion
	case RetrievalFailed:
		return ErrRetrievalFailed
	default:
		return errors.New(string(k))
	}
}

// Error is a Kind-tagged, op-scoped error. It unwraps both to its Kind's
// sentinel (for errors.Is(err, ckgerr.ErrNotFound)) and to its cause (for
// errors.Is(err, someLeafSentinel) or errors.As).
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target == sentinel(e.Kind)
}

// New wraps err (which may be nil) as a Kind-tagged error attributed to op.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf is New with a formatted cause.
func Newf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return errors.Is(err, sentinel(kind))
}

// KindOf extracts the Kind from err, if any component of its chain is a
// *Error. Returns "" when err carries no Kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
