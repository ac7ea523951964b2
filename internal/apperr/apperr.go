// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package apperr defines the error taxonomy shared by every SensorHub
// component so collaborators (HTTP layers, CLIs, other services) can map
// a returned error to a stable behavior without depending on component
// internals.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of a small, stable set of categories.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindInvalid         Kind = "invalid"
	KindRateLimited     Kind = "rate_limited"
	KindShed            Kind = "shed"
	KindCircuitOpen     Kind = "circuit_open"
	KindLockUnavailable Kind = "lock_unavailable"
	KindSagaFailed      Kind = "saga_failed"
	KindTransient       Kind = "transient"

	// KindInternal is not part of the classified taxonomy above; it is
	// KindOf's fallback for an error that never passed through New/Wrap.
	KindInternal Kind = "internal"
)

// Error wraps an underlying cause with a Kind and a resource identifier.
type Error struct {
	Kind     Kind
	Resource string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Message != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind.
func New(kind Kind, resource, message string) *Error {
	return &Error{Kind: kind, Resource: resource, Message: message}
}

// Wrap builds an *Error of the given kind around an existing error.
func Wrap(kind Kind, resource string, err error) *Error {
	return &Error{Kind: kind, Resource: resource, Err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to KindInternal when err
// is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// NotFound builds a KindNotFound error for the named resource.
func NotFound(resource, id string) *Error {
	return New(KindNotFound, resource, fmt.Sprintf("%s %q not found", resource, id))
}

// Invalid builds a KindInvalid error.
func Invalid(resource, message string) *Error {
	return New(KindInvalid, resource, message)
}

// RateLimited builds a KindRateLimited error.
func RateLimited(resource, message string) *Error {
	return New(KindRateLimited, resource, message)
}

// Shed builds a KindShed error for a queue-depth overload rejection.
func Shed(resource, message string) *Error {
	return New(KindShed, resource, message)
}

// CircuitOpen builds a KindCircuitOpen error around a breaker rejection.
// Per policy this is always swallowed by the caller, never returned to a
// client; it exists so the rejection is still logged with a stable Kind.
func CircuitOpen(resource string, err error) *Error {
	return Wrap(KindCircuitOpen, resource, err)
}

// LockUnavailable builds a KindLockUnavailable error around a failed lock
// acquisition.
func LockUnavailable(resource string, err error) *Error {
	return Wrap(KindLockUnavailable, resource, err)
}

// SagaFailed builds a KindSagaFailed error around the step error that ended
// a saga.
func SagaFailed(resource string, err error) *Error {
	return Wrap(KindSagaFailed, resource, err)
}
