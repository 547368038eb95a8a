// Package apperror defines the application's error taxonomy.
//
// Every layer wraps errors with fmt.Errorf("...: %w", err). The sentinels below
// survive that wrapping, so the handler layer can classify any error with
// errors.Is and pick the right status code or page.
package apperror

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUpstream marks failures of the external identity provider
	// (token exchange, user info lookup, revocation).
	ErrUpstream = errors.New("upstream identity provider failure")
)

type AppError struct {
	Err     error             // sentinel this error classifies as
	Message string            // Human-readable error message
	Field   string            // Optional: field causing the error
	Fields  map[string]string // Optional: every invalid field and its message
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
		Fields:  map[string]string{field: message},
	}
}

// Invalid reports several invalid fields at once. Field is set to the first
// field in alphabetical order so single-field callers still get a value.
func Invalid(fields map[string]string) *AppError {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	msgs := make([]string, 0, len(names))
	for _, name := range names {
		msgs = append(msgs, fields[name])
	}

	e := &AppError{
		Err:     ErrValidation,
		Message: strings.Join(msgs, "; "),
		Fields:  fields,
	}
	if len(names) > 0 {
		e.Field = names[0]
	}
	return e
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized means the caller has no valid session or presented a bad
// anti-forgery state.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Upstream wraps a failure of the identity provider. The cause is kept in the
// chain for logging while Message stays safe to show.
func Upstream(message string, cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrUpstream, cause),
		Message: message,
	}
}
