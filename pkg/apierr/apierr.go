// Package apierr classifies errors raised anywhere in the control plane
// core into the fixed taxonomy consumed by HTTP/gRPC adapters, so that a
// handler never has to pattern-match on error strings.
package apierr

import (
	"errors"
	"fmt"
)

// Kind is one of the fixed error categories the core ever raises.
type Kind string

const (
	Validation         Kind = "validation"
	NotFound           Kind = "not_found"
	Forbidden          Kind = "forbidden"
	Conflict           Kind = "conflict"
	ServiceUnavailable Kind = "service_unavailable"
	Config             Kind = "config"
	Backend            Kind = "backend"
	Internal           Kind = "internal"
)

// Error wraps an underlying cause with a Kind and an optional resource
// identifier, so adapters can map it to a status code without parsing
// messages.
type Error struct {
	Kind     Kind
	Resource string
	Name     string
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, allowing
// errors.Is(err, apierr.New(apierr.NotFound, "", "", nil)) style checks,
// and also supports comparing directly against a Kind via KindOf.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New constructs an *Error of the given kind.
func New(kind Kind, resource, name string, err error) *Error {
	return &Error{Kind: kind, Resource: resource, Name: name, Err: err}
}

// Wrap is a convenience for New with no resource context.
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// NotFoundf builds a NotFound error that never leaks whether the resource
// exists outside the caller's tenant boundary — callers should use this
// uniformly for both "doesn't exist" and "exists but not yours".
func NotFoundf(resource, name string) *Error {
	return &Error{Kind: NotFound, Resource: resource, Name: name, Err: fmt.Errorf("%s %q not found", resource, name)}
}

// Forbiddenf builds a Forbidden error for a caller who has proven
// knowledge of a resource it may not act on.
func Forbiddenf(resource, name, action string) *Error {
	return &Error{Kind: Forbidden, Resource: resource, Name: name, Err: fmt.Errorf("%s access to %s %q denied", action, resource, name)}
}

// Validationf builds a Validation error.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: Validation, Err: fmt.Errorf(format, args...)}
}

// Conflictf builds a Conflict error.
func Conflictf(resource, name string, err error) *Error {
	return &Error{Kind: Conflict, Resource: resource, Name: name, Err: err}
}

// KindOf extracts the Kind of err, defaulting to Internal when err does
// not carry one — any unclassified error is treated as an invariant
// violation rather than silently passed through.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err was classified with the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
