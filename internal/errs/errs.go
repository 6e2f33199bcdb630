// internal/errs/errs.go
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can map it to a response without
// inspecting messages.
type Kind string

const (
	// KindConfiguration means required credentials or endpoints are missing.
	// Raised before any remote call is attempted.
	KindConfiguration Kind = "ConfigurationError"
	// KindConnection means the browser backend is unreachable or the handle it
	// returned is not connected.
	KindConnection Kind = "ConnectionError"
	// KindNavigation means an expected UI affordance was not found, most
	// likely because the target site changed.
	KindNavigation Kind = "NavigationError"
	// KindResponseTimeout means an expected network call was never observed
	// within its bound.
	KindResponseTimeout Kind = "ResponseTimeoutError"
	// KindRemoteCall means an authenticated portal API call returned
	// non-success or failed in transport. Always captured into result
	// payloads, never raised past a controller.
	KindRemoteCall Kind = "RemoteCallError"
	// KindValidation means the caller's request is missing a required field.
	KindValidation Kind = "ValidationError"
	// KindInternal covers anything unexpected, including recovered panics.
	KindInternal Kind = "InternalError"
)

// Sentinels for errors.Is comparisons against a Kind.
var (
	ErrConfiguration   = &Error{Kind: KindConfiguration}
	ErrConnection      = &Error{Kind: KindConnection}
	ErrNavigation      = &Error{Kind: KindNavigation}
	ErrResponseTimeout = &Error{Kind: KindResponseTimeout}
	ErrRemoteCall      = &Error{Kind: KindRemoteCall}
	ErrValidation      = &Error{Kind: KindValidation}
	ErrInternal        = &Error{Kind: KindInternal}
)

// Error is a classified failure. Op names the step that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// New wraps err as a failure of the given kind during op.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf is New with a formatted message as the underlying error.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return string(e.Kind)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	case e.Op == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
