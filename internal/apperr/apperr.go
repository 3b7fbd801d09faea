// Package apperr defines the error taxonomy shared by every service in the
// clinic backend and renders it as HTTP responses.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Kind classifies an error for propagation and HTTP status mapping.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindValidation Kind = "validation_error"
	KindConflict   Kind = "conflict"
	KindTransient  Kind = "transient_storage_failure"
	KindInternal   Kind = "internal_error"
)

// Upload rejection codes. They are all validation errors but clients need to
// tell them apart.
const (
	CodeFileTooLarge       = "file_too_large"
	CodeTooManyFiles       = "too_many_files"
	CodeFileTypeNotAllowed = "file_type_not_allowed"
	CodeUnexpectedField    = "unexpected_field"
	CodeMissingFile        = "missing_file"
)

// Error is the error value returned across package boundaries.
// Message is safe to show to clients; Err carries the underlying cause and is
// only ever logged.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind and code, so sentinel values
// declared with New can be used with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.code() == t.code() && e.Message == t.Message
}

func (e *Error) code() string {
	if e.Code != "" {
		return e.Code
	}
	return string(e.Kind)
}

// New builds an error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// ValidationCode builds a validation error carrying a specific client code.
func ValidationCode(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func Conflict(message string, err error) *Error {
	return &Error{Kind: KindConflict, Message: message, Err: err}
}

func Transient(message string, err error) *Error {
	return &Error{Kind: KindTransient, Message: message, Err: err}
}

func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsNotFound reports whether err is classified as not found.
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}

// Status maps a kind to its HTTP status code.
func Status(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteError renders err as {"error", "code"}. Storage and unexpected errors
// get a generic message; the full chain is logged.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var e *Error
	if !errors.As(err, &e) {
		e = Internal("internal server error", err)
	}

	status := Status(e.Kind)
	message := e.Message
	switch e.Kind {
	case KindInternal:
		message = "internal server error"
	case KindTransient:
		message = "storage temporarily unavailable, please retry"
	}

	evt := log.Warn()
	if status >= http.StatusInternalServerError {
		evt = log.Error()
	}
	evt.Err(err).
		Str("kind", string(e.Kind)).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("request failed")

	WriteJSON(w, status, errorBody{Error: message, Code: e.code()})
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
