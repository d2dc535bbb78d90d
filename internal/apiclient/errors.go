package apiclient

import (
	"errors"
	"net/http"
)

// ErrSessionExpired is returned when a 401 could not be recovered by refreshing.
var ErrSessionExpired = errors.New("session expired, please log in again")

// Kind classifies a failed call.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not-found"
	case KindConflict:
		return "conflict"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error is a failed API call. StatusCode is 0 for transport failures.
type Error struct {
	Message    string
	StatusCode int
	// Errors holds per-field validation messages when the server sent them.
	Errors map[string]string

	cause error
}

func (e *Error) Error() string { return e.Message }

// Unwrap returns the transport error or ErrSessionExpired, if any.
func (e *Error) Unwrap() error { return e.cause }

// Kind classifies the error by status code.
func (e *Error) Kind() Kind {
	switch {
	case e.StatusCode == 0:
		return KindNetwork
	case e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnprocessableEntity:
		return KindValidation
	case e.StatusCode == http.StatusUnauthorized:
		return KindUnauthorized
	case e.StatusCode == http.StatusForbidden:
		return KindForbidden
	case e.StatusCode == http.StatusNotFound:
		return KindNotFound
	case e.StatusCode == http.StatusConflict:
		return KindConflict
	case e.StatusCode >= 500:
		return KindServer
	}
	return KindUnknown
}

// KindOf returns the kind of err, or KindUnknown if it is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind()
	}
	return KindUnknown
}

// IsConflict reports whether the server answered 409.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsNotFound reports whether the server answered 404.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsForbidden reports whether the server answered 403.
func IsForbidden(err error) bool { return KindOf(err) == KindForbidden }
