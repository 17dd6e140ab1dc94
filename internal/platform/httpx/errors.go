// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for the failure taxonomy.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrDuplicate     = errors.New("duplicate entry")
	ErrValidation    = errors.New("malformed input")
	ErrForbidden     = errors.New("forbidden")
	ErrUnauthorized  = errors.New("unauthenticated")
	ErrRateLimited   = errors.New("rate limited")
	ErrMisconfigured = errors.New("misconfigured")
)

// Failure is a gate or handler rejection carrying a machine code, a client-safe
// message and extra payload fields. The wrapped cause is never rendered.
type Failure struct {
	Kind    error
	Code    string
	Message string
	Details map[string]any
	Cause   error
}

// Fail builds a Failure of the given kind.
func Fail(kind error, code, message string) *Failure {
	return &Failure{Kind: kind, Code: code, Message: message}
}

func (f *Failure) Error() string {
	if f.Cause != nil {
		return f.Code + ": " + f.Message + ": " + f.Cause.Error()
	}
	return f.Code + ": " + f.Message
}

func (f *Failure) Unwrap() []error {
	if f.Cause == nil {
		return []error{f.Kind}
	}
	return []error{f.Kind, f.Cause}
}

// With returns a copy of f with an extra payload field.
func (f *Failure) With(key string, value any) *Failure {
	out := *f
	out.Details = make(map[string]any, len(f.Details)+1)
	for k, v := range f.Details {
		out.Details[k] = v
	}
	out.Details[key] = value
	return &out
}

// Wrap returns a copy of f recording cause.
func (f *Failure) Wrap(cause error) *Failure {
	out := *f
	out.Cause = cause
	return &out
}

// StatusOf maps an error onto the HTTP status of its taxonomy class.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes the structured failure envelope for err.
// Server errors carry a generic message and no detail fields.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	body := map[string]any{"success": false}
	if status >= http.StatusInternalServerError {
		body["message"] = "internal server error"
		if errors.Is(err, ErrMisconfigured) {
			body["code"] = "MISCONFIGURED"
		}
		JSON(w, status, body)
		return
	}
	var f *Failure
	if errors.As(err, &f) {
		for k, v := range f.Details {
			body[k] = v
		}
		body["message"] = f.Message
		if f.Code != "" {
			body["code"] = f.Code
		}
	} else {
		body["message"] = err.Error()
	}
	JSON(w, status, body)
}
