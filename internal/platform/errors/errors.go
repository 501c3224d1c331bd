// Package errors defines typed application errors and their HTTP mapping.
package errors

import (
	stderrors "errors"
	"net/http"
	"sort"
	"strings"
)

// Kind classifies application failures for consistent HTTP mapping.
type Kind string

const (
	KindUnknown      Kind = "unknown"
	KindInvalidInput Kind = "invalid_input"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindInternal     Kind = "internal"
)

// Error is a typed application failure.
type Error struct {
	Kind    Kind
	Message string
	// Fields lists per-field validation messages for invalid input.
	Fields map[string][]string
	Err    error
}

// Error renders the human-readable message.
func (e Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Unwrap exposes the underlying cause.
func (e Error) Unwrap() error {
	return e.Err
}

// E builds a typed Error.
func E(kind Kind, message string) error {
	return Error{Kind: kind, Message: message}
}

// Wrap builds a typed Error around a cause.
func Wrap(kind Kind, message string, err error) error {
	return Error{Kind: kind, Message: message, Err: err}
}

// FieldErrors accumulates validation messages keyed by field name.
type FieldErrors map[string][]string

// Add records a message for a field.
func (f FieldErrors) Add(field, message string) {
	f[field] = append(f[field], message)
}

// Err returns an invalid input error listing every field, or nil when empty.
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	message := "invalid fields: " + strings.Join(names, ", ")
	return Error{Kind: KindInvalidInput, Message: message, Fields: map[string][]string(f)}
}

// KindOf returns the kind of a typed error, or KindUnknown.
func KindOf(err error) Kind {
	var appErr Error
	if !stderrors.As(err, &appErr) {
		return KindUnknown
	}
	return appErr.Kind
}

// FieldsOf returns the field messages of a validation error.
func FieldsOf(err error) map[string][]string {
	var appErr Error
	if !stderrors.As(err, &appErr) {
		return nil
	}
	return appErr.Fields
}

// HTTPStatus maps an error to an HTTP status code.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch KindOf(err) {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show a client. Internal failures
// never leak their cause.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr Error
	if !stderrors.As(err, &appErr) || appErr.Kind == KindInternal || appErr.Kind == KindUnknown {
		return http.StatusText(http.StatusInternalServerError)
	}
	return appErr.Error()
}
