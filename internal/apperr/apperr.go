// Package apperr defines the error taxonomy shared by every layer of the
// storage engine. Handlers outside this module (HTTP, CLI) map Kind to
// whatever status code or exit code is appropriate for their transport —
// this package never prescribes one.
package apperr

import (
	"errors"
	"fmt"
)

// Kind categorises a failure the way §7 of the spec requires: every error
// that crosses an orchestrator boundary carries exactly one of these.
type Kind int

const (
	// Unknown is the zero value; Wrap and New always set a real Kind, so
	// seeing Unknown means a caller built an Error by hand and forgot to.
	Unknown Kind = iota
	InvalidRequest
	NotFound
	StorageIO
	Persistence
	Integrity
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case InvalidRequest:
		return "INVALID_REQUEST"
	case NotFound:
		return "NOT_FOUND"
	case StorageIO:
		return "STORAGE_IO"
	case Persistence:
		return "PERSISTENCE"
	case Integrity:
		return "INTEGRITY"
	case Cancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Error is the concrete error type produced by this module. Op names the
// failing operation ("upload.commit", "cas.write") for log correlation; Err
// is the wrapped cause and is reachable via errors.Unwrap/errors.Is/As.
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

// New builds an Error with no wrapped cause — used for domain-layer
// invariant violations that originate here rather than from a lower layer.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

// Wrap attaches a Kind and Op to an existing error. Wrapping nil returns nil
// so callers can write `return apperr.Wrap(op, kind, err)` unconditionally
// after an `if err != nil` has already been skipped is still safe.
func Wrap(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		// Already categorised deeper in the stack — keep the original Kind,
		// just extend the Op chain so logs show the full call path.
		return &Error{Kind: ae.Kind, Op: op + ": " + ae.Op, Err: ae.Err}
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind from err, defaulting to Unknown for plain errors
// that never passed through this package.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Unknown
}

// Is reports whether err is categorised as kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
