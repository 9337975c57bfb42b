// Package errors provides structured error handling for the auth domain.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// User errors
	CodeUserEmptyUsername   Code = "USER_EMPTY_USERNAME"
	CodeUserInvalidUsername Code = "USER_INVALID_USERNAME"

	// Ceremony errors
	CodeNoPendingCeremony  Code = "NO_PENDING_CEREMONY"
	CodeVerificationFailed Code = "VERIFICATION_FAILED"
	CodeCounterRegression  Code = "COUNTER_REGRESSION"
	CodeCredentialNotFound Code = "CREDENTIAL_NOT_FOUND"

	// Session errors
	CodeUnauthenticated Code = "UNAUTHENTICATED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
	CodeConflict Code = "CONFLICT"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUserEmptyUsername,
		CodeUserInvalidUsername,
		CodeNoPendingCeremony,
		CodeVerificationFailed,
		CodeCounterRegression,
		CodeCredentialNotFound:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
