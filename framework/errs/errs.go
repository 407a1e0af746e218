// Package errs defines the error taxonomy shared by the composition and
// dispatch layers.
//
// Every error carries a Kind. errors.Is matches an *Error against the
// package sentinels by kind, so callers never compare messages:
//
//	if errors.Is(err, errs.ErrUnregistered) { ... }
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error.
type Kind string

const (
	KindDefinition    Kind = "definition"
	KindUnregistered  Kind = "unregistered"
	KindConfiguration Kind = "configuration"
	KindServer        Kind = "server"
	KindHandler       Kind = "handler"
	KindDatabase      Kind = "database"
	KindBadRequest    Kind = "bad_request"
)

// Error is the concrete error type of the framework.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Sentinels for errors.Is.
var (
	ErrDefinition    = &Error{Kind: KindDefinition}
	ErrUnregistered  = &Error{Kind: KindUnregistered}
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrServer        = &Error{Kind: KindServer}
	ErrHandler       = &Error{Kind: KindHandler}
	ErrDatabase      = &Error{Kind: KindDatabase}
	ErrBadRequest    = &Error{Kind: KindBadRequest}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind) + " error"
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func newf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Definition reports a type used as a module, provider, controller, action or
// entity without the matching declaration.
func Definition(format string, args ...any) *Error {
	return newf(KindDefinition, nil, format, args...)
}

// Unregistered reports a token with no reachable provider.
func Unregistered(token string) *Error {
	return newf(KindUnregistered, nil, "no provider registered for [%s]", token)
}

// Configuration reports invalid start-up configuration.
func Configuration(cause error, format string, args ...any) *Error {
	return newf(KindConfiguration, cause, format, args...)
}

// Server reports a broken runtime contract, such as an unrecognized handler
// result or stopping an application that never started.
func Server(format string, args ...any) *Error {
	return newf(KindServer, nil, format, args...)
}

// Handler wraps a panic value recovered from handler code.
func Handler(cause error, format string, args ...any) *Error {
	return newf(KindHandler, cause, format, args...)
}

// Database wraps a storage-layer failure.
func Database(cause error, format string, args ...any) *Error {
	return newf(KindDatabase, cause, format, args...)
}

// BadRequest reports a request that could not be bound to an action.
func BadRequest(cause error, format string, args ...any) *Error {
	return newf(KindBadRequest, cause, format, args...)
}

// StatusOf maps err to the HTTP status the diagnostic renderer should use.
func StatusOf(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnregistered, KindDefinition, KindConfiguration, KindServer, KindHandler, KindDatabase:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}
