package faults

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure into one of the categories the service cares
// about when deciding HTTP status codes and retry behavior.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindSecretUnavailable
	KindSecretMalformed
	KindFilesystem
	KindTokenRefresh
	KindBadRequest
	KindAuthentication
	KindForbidden
	KindMerchantNotFound
	KindValidationFailed
	KindRateLimited
	KindUpstreamServer
	KindUpstreamUnavailable
	KindUpstreamTimeout
	KindUnexpectedStatus
	KindResponseParse
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindSecretUnavailable:
		return "SECRET_UNAVAILABLE"
	case KindSecretMalformed:
		return "SECRET_MALFORMED"
	case KindFilesystem:
		return "FILESYSTEM_ERROR"
	case KindTokenRefresh:
		return "TOKEN_REFRESH_FAILED"
	case KindBadRequest:
		return "BAD_REQUEST"
	case KindAuthentication:
		return "AUTHENTICATION_FAILED"
	case KindForbidden:
		return "ACCESS_FORBIDDEN"
	case KindMerchantNotFound:
		return "MERCHANT_NOT_FOUND"
	case KindValidationFailed:
		return "VALIDATION_FAILED"
	case KindRateLimited:
		return "RATE_LIMITED"
	case KindUpstreamServer:
		return "UPSTREAM_SERVER_ERROR"
	case KindUpstreamUnavailable:
		return "UPSTREAM_UNAVAILABLE"
	case KindUpstreamTimeout:
		return "UPSTREAM_TIMEOUT"
	case KindUnexpectedStatus:
		return "UNEXPECTED_STATUS"
	case KindResponseParse:
		return "RESPONSE_PARSE_ERROR"
	}
	return "INTERNAL_ERROR"
}

// Retryable reports whether a failure of this kind may succeed on a later
// attempt against the same upstream. Client-side failures never retry.
func (k Kind) Retryable() bool {
	switch k {
	case KindUpstreamServer, KindUpstreamUnavailable, KindUpstreamTimeout:
		return true
	}
	return false
}

// HTTPStatus returns the status code reported to the caller for this kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindBadRequest:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindMerchantNotFound:
		return http.StatusNotFound
	case KindValidationFailed:
		return http.StatusUnprocessableEntity
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindTokenRefresh, KindUpstreamServer, KindUnexpectedStatus, KindResponseParse:
		return http.StatusBadGateway
	case KindSecretUnavailable, KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// Error is a classified failure. The zero Kind means unclassified.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error, keeping it reachable via errors.Is/As.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the classification of err, or KindUnknown if it carries none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is classified as k.
func IsKind(err error, k Kind) bool { return KindOf(err) == k }
