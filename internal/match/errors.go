package match

import (
	"fmt"
	"net/http"
)

// Kind classifies an engine failure for propagation policy purposes.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindPrecondition  Kind = "precondition"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindInfra         Kind = "infra"
)

// Error is the structured failure every action returns instead of raw
// errors. Validation/authorization/precondition/not-found/conflict are
// recovered locally and surfaced to the caller; only infra errors
// represent storage failures.
type Error struct {
	Kind    Kind   `json:"-"`
	Code    string `json:"code,omitempty"`
	Message string `json:"error"`
	From    Status `json:"fromStatus,omitempty"`
	To      Status `json:"toStatus,omitempty"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// HTTPStatus maps the taxonomy onto the caller-visible status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindPrecondition, KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func errValidation(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: msg}
}

func errAuthorization(msg string) *Error {
	return &Error{Kind: KindAuthorization, Message: msg}
}

func errNotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func errConflict(code, msg string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: msg}
}

func errInfra(msg string, cause error) *Error {
	return &Error{Kind: KindInfra, Message: msg, Cause: cause}
}

// errTransition folds a guard failure into the conflict class, keeping the
// violating edge visible to the caller.
func errTransition(f *TransitionFailure) *Error {
	e := &Error{Kind: KindPrecondition, Code: f.Code, Message: f.Message, From: f.From, To: f.To}
	if f.Required != "" {
		e.To = f.Required
	}
	return e
}
