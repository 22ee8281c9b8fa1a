package apperr

import (
	"errors"
	"net/http"
)

// Envelope is the single result shape returned across the RPC boundary.
type Envelope struct {
	OK    bool       `json:"ok"`
	Data  any        `json:"data,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Kind      Kind   `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func OK(data any) Envelope { return Envelope{OK: true, Data: data} }

// Fail converts any error into an envelope; unknown errors become unclassified.
func Fail(err error) Envelope {
	body := &ErrorBody{Kind: KindOf(err), Message: err.Error()}
	if e, ok := asError(err); ok {
		body.Retryable = e.Retryable()
	}
	return Envelope{OK: false, Error: body}
}

// HTTPStatus maps a kind to the status code used by the HTTP transport.
func HTTPStatus(kind Kind) int {
	switch kind {
	case "":
		return http.StatusOK
	case KindInvalid, KindSerialization:
		return http.StatusBadRequest
	case KindAuth, KindSessionExpired:
		return http.StatusUnauthorized
	case KindVersionNotFound, KindRuntimeNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindNetwork:
		return http.StatusBadGateway
	case KindInsufficientMemory:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func asError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
