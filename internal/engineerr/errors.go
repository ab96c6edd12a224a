// Package engineerr defines the engine's error taxonomy: a small, closed
// set of kinds every component wraps its failures in so callers can
// branch on `errors.Is` instead of string-matching messages.
package engineerr

import (
	"errors"
	"fmt"
)

// Kind identifies which of the taxonomy's eight buckets an error belongs to.
type Kind string

const (
	KindValidation       Kind = "ValidationError"
	KindNotFound         Kind = "NotFound"
	KindPermissionDenied Kind = "PermissionDenied"
	KindStateConflict    Kind = "StateConflict"
	KindNodeExecution    Kind = "NodeExecutionFailure"
	KindNodeTimeout      Kind = "NodeTimeout"
	KindTransient        Kind = "Transient"
	KindExpired          Kind = "Expired"
)

// Sentinel values for errors.Is comparisons.
var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrStateConflict    = errors.New("state conflict")
	ErrNodeExecution    = errors.New("node execution failure")
	ErrNodeTimeout      = errors.New("node timeout")
	ErrTransient        = errors.New("transient error")
	ErrExpired          = errors.New("expired")
)

var sentinelByKind = map[Kind]error{
	KindValidation:       ErrValidation,
	KindNotFound:         ErrNotFound,
	KindPermissionDenied: ErrPermissionDenied,
	KindStateConflict:    ErrStateConflict,
	KindNodeExecution:    ErrNodeExecution,
	KindNodeTimeout:      ErrNodeTimeout,
	KindTransient:        ErrTransient,
	KindExpired:          ErrExpired,
}

// Error carries a Kind, a short caller-facing reason, and an optional
// wrapped cause. Stack traces never surface in Reason — callers outside
// the engine only ever see Kind + Reason (§7 propagation policy).
type Error struct {
	Kind   Kind
	Reason string
	Cause  error
}

func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

func Wrap(kind Kind, reason string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	if s, ok := sentinelByKind[e.Kind]; ok {
		return s
	}
	return nil
}

// Is allows errors.Is(err, engineerr.ErrNotFound) to match any *Error
// of the corresponding kind, not just the sentinel itself.
func (e *Error) Is(target error) bool {
	s, ok := sentinelByKind[e.Kind]
	return ok && errors.Is(s, target)
}

// KindOf extracts the Kind from err, defaulting to "" if err does not
// wrap an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether the engine should internally retry the
// operation that produced err (Transient per §7), as opposed to surfacing
// it to the caller immediately.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
