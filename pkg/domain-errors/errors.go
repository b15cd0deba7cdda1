// Package domainerrors defines the domain error vocabulary shared by services
// and the HTTP layer. Services return these; httputil translates them to JSON
// responses. Infrastructure facts (not found, conflict) use pkg/platform/sentinel
// instead and get translated at the service boundary.
//
// Import as: dErrors "chefmate/pkg/domain-errors"
package domainerrors

import "net/http"

// Code identifies a class of domain failure.
type Code string

const (
	CodeBadRequest        Code = "bad_request"
	CodeUnauthorized      Code = "unauthorized"
	CodeForbidden         Code = "forbidden"
	CodeNotFound          Code = "not_found"
	CodeConflict          Code = "conflict"
	CodeTooManyRequests   Code = "too_many_requests"
	CodeUnavailable       Code = "unavailable"
	CodeInternal          Code = "internal_error"
	CodeSignatureMissing  Code = "signature_missing"
	CodeSignatureInvalid  Code = "signature_invalid"
	CodeIdentityNotFound  Code = "identity_not_found"
	CodeAmbiguousIdentity Code = "ambiguous_identity"
)

// Error carries a code plus an operator-facing message. The message is only
// surfaced to clients for 4xx codes; httputil omits it for internal errors.
type Error struct {
	Code    Code
	Message string
}

func (e Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Message
}

// New constructs a domain error.
func New(code Code, message string) Error {
	return Error{Code: code, Message: message}
}

// CodeOf extracts the domain code from an error, defaulting to CodeInternal.
func CodeOf(err error) Code {
	if de, ok := err.(Error); ok {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a domain code to an HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeSignatureInvalid:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeSignatureMissing:
		return http.StatusForbidden
	case CodeNotFound, CodeIdentityNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeAmbiguousIdentity:
		return http.StatusConflict
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
