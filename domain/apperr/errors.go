// Package apperr defines the error taxonomy shared by all modules.
//
// Errors returned from request-reply handlers reach the caller only as text,
// so every Error renders with a stable "apperr[<kind>]: " marker that
// FromRemote can recover on the other side of the bus.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error for the HTTP edge.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindUnexpected     Kind = "unexpected"
)

const marker = "apperr["

// Error is a classified error carrying a message that is safe to show users.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return marker + string(e.Kind) + "]: " + e.Message
}

// Is reports whether target is an *Error of the same kind and message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Validation returns a validation error (HTTP 400).
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Authentication returns an authentication error (HTTP 401).
func Authentication(msg string) *Error {
	return &Error{Kind: KindAuthentication, Message: msg}
}

// NotFound returns a not-found error (HTTP 404).
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Conflict returns a conflict error (HTTP 409).
func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// KindOf returns the kind of err, or KindUnexpected when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// FromRemote recovers a classified error from err, which may have crossed a
// request-reply boundary and lost its type. Errors without a marker are
// returned unchanged and classify as unexpected.
func FromRemote(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	text := err.Error()
	start := strings.Index(text, marker)
	if start < 0 {
		return err
	}
	rest := text[start+len(marker):]
	end := strings.Index(rest, "]: ")
	if end < 0 {
		return err
	}

	kind := Kind(rest[:end])
	switch kind {
	case KindValidation, KindAuthentication, KindNotFound, KindConflict:
	default:
		return err
	}
	return &Error{Kind: kind, Message: rest[end+len("]: "):]}
}

// Remote translates the error of a request-reply call to service. Classified
// errors are restored; anything else is wrapped with the service name.
func Remote(service string, err error) error {
	if err == nil {
		return nil
	}
	if classified := FromRemote(err); KindOf(classified) != KindUnexpected {
		return classified
	}
	return fmt.Errorf("%s request failed: %w", service, err)
}
