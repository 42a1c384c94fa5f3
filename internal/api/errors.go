package api

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is an error with an HTTP status code
type StatusError struct {
	StatusCode   int    `json:"-"`
	ErrorMessage string `json:"error"`
}

func (e *StatusError) Error() string { return e.ErrorMessage }

// ErrBadRequest creates a 400 Bad Request error
func ErrBadRequest(msg string) *StatusError {
	return &StatusError{
		StatusCode:   http.StatusBadRequest,
		ErrorMessage: msg,
	}
}

// ErrNotFound creates a 404 Not Found error
func ErrNotFound(msg string) *StatusError {
	return &StatusError{
		StatusCode:   http.StatusNotFound,
		ErrorMessage: msg,
	}
}

// ErrUnsupportedMediaType creates a 415 Unsupported Media Type error
func ErrUnsupportedMediaType(msg string) *StatusError {
	return &StatusError{
		StatusCode:   http.StatusUnsupportedMediaType,
		ErrorMessage: msg,
	}
}

// ErrInternalServer creates a 500 Internal Server Error
func ErrInternalServer(msg string) *StatusError {
	return &StatusError{
		StatusCode:   http.StatusInternalServerError,
		ErrorMessage: msg,
	}
}

// ErrBadGateway creates a 502 Bad Gateway error
func ErrBadGateway(msg string) *StatusError {
	return &StatusError{
		StatusCode:   http.StatusBadGateway,
		ErrorMessage: msg,
	}
}

// Kind classifies a node failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalidArgument: a required parameter is missing. Raised before any network call.
	KindInvalidArgument
	// KindRequestFailure: non-2xx status or transport failure.
	KindRequestFailure
	// KindMalformedResponse: the upstream JSON lacks choices or content.
	KindMalformedResponse
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid argument"
	case KindRequestFailure:
		return "request failure"
	case KindMalformedResponse:
		return "malformed response"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument}
	ErrRequestFailure    = &Error{Kind: KindRequestFailure}
	ErrMalformedResponse = &Error{Kind: KindMalformedResponse}
)

// Error is returned by the nodes and the chat client.
type Error struct {
	Kind    Kind
	Message string

	// Set for HTTP-level request failures.
	StatusCode int
	Reason     string
	Body       string

	// Raw upstream payload for malformed responses.
	Payload string

	// Underlying transport error, if any.
	Err error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so callers can test against the sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// InvalidArgument reports a missing required parameter.
func InvalidArgument(field string) *Error {
	return &Error{
		Kind:    KindInvalidArgument,
		Message: fmt.Sprintf("invalid argument: %s is required", field),
	}
}

// HTTPFailure reports a non-2xx upstream response.
func HTTPFailure(code int, reason, body string) *Error {
	return &Error{
		Kind:       KindRequestFailure,
		Message:    fmt.Sprintf("request failed: HTTP %d %s %s", code, reason, body),
		StatusCode: code,
		Reason:     reason,
		Body:       body,
	}
}

// TransportFailure reports a network-level failure (DNS, refused, timeout).
func TransportFailure(err error) *Error {
	return &Error{
		Kind:    KindRequestFailure,
		Message: fmt.Sprintf("request failed: %v", err),
		Err:     err,
	}
}

// MissingChoices reports a response without a usable choices array.
func MissingChoices(payload string) *Error {
	return &Error{
		Kind:    KindMalformedResponse,
		Message: "response missing choices: " + payload,
		Payload: payload,
	}
}

// MissingContent reports a response whose first choice has no message content.
func MissingContent(payload string) *Error {
	return &Error{
		Kind:    KindMalformedResponse,
		Message: "response missing message content: " + payload,
		Payload: payload,
	}
}

// KindOf returns the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// HTTPStatus maps a node error to the status the node server answers with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindRequestFailure, KindMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WrapError wraps an existing error into a StatusError
func WrapError(err error, code int, msg string) *StatusError {
	fullMsg := msg
	if err != nil {
		fullMsg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &StatusError{
		StatusCode:   code,
		ErrorMessage: fullMsg,
	}
}
