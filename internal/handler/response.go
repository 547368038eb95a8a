package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses, error pages, and
// errors from the service layer.
//
// CONSISTENT ERROR FORMAT:
// Every JSON error response has the same shape:
//   {"error": "not_found", "message": "location not found with id abc123"}
//
// HTML routes go through Pages.Fail instead, which maps the same error kinds
// to a page, a redirect, or a flash message.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/trading-post/internal/apperror"
)

// ErrorResponse is the standard error format returned by the JSON endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set BEFORE writing the body.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// classify maps a domain error to an HTTP status and a machine-readable kind.
//
// errors.Is walks the whole chain, so this works however many layers wrapped
// the error:
//
//	handler gets:  "service/catalog: fetching item x: item not found with id x"
//	which wraps:   AppError{Err: ErrNotFound}
//	errors.Is:     outer → AppError → ErrNotFound ✓
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusUnprocessableEntity, "validation_error"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrUpstream):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// publicMessage returns the AppError message, or a generic one for anything
// else. Raw errors may contain SQL or file paths and are never shown.
func publicMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "An internal error occurred"
}

// writeError sends err as a JSON error response.
func writeError(w http.ResponseWriter, err error) {
	status, kind := classify(err)
	writeJSON(w, status, ErrorResponse{Error: kind, Message: publicMessage(err)})
}

// Fail responds to a service error on an HTML route.
//
//	Forbidden     → flash "User not authorized", 303 to safe
//	Unauthorized  → 303 to /login
//	anything else → error page with the mapped status
//
// safe is a listing page the user is allowed to see.
func (p *Pages) Fail(w http.ResponseWriter, r *http.Request, err error, safe string) {
	status, _ := classify(err)

	switch status {
	case http.StatusForbidden:
		p.Redirect(w, r, safe, publicMessage(err))
		return
	case http.StatusUnauthorized:
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	case http.StatusInternalServerError:
		p.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	case http.StatusBadGateway:
		p.logger.Warn("identity provider failure",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}

	p.RenderError(w, r, status, publicMessage(err))
}

// fieldErrors extracts per-field messages from a validation error.
func fieldErrors(err error) map[string]string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Fields != nil {
		return appErr.Fields
	}
	return map[string]string{}
}
