package api

import (
	"fmt"
	"net/http"
)

// Error is the standard error shape for the API. Code is the HTTP status the
// boundary should answer with; Message is safe to show the caller; Log carries
// the original error for server-side logging only.
type Error struct {
	Code    int
	Message string
	Log     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Log
}

// StatusOf returns the HTTP status attached to err, defaulting to 500.
func StatusOf(err error) int {
	if apiErr, ok := err.(*Error); ok {
		return apiErr.Code
	}
	return http.StatusInternalServerError
}

// MissingCredential is returned before any network call when no API key was
// supplied with the request and no fallback is configured.
func MissingCredential() *Error {
	return &Error{Code: http.StatusBadRequest, Message: "API key is required"}
}

// UnknownProvider is returned when the requested provider id is not in the catalog.
func UnknownProvider(id string) *Error {
	return &Error{Code: http.StatusBadRequest, Message: fmt.Sprintf("Provider %s not found", id)}
}

// UnknownModel is returned when the model id is not listed under the provider.
func UnknownModel(provider, model string) *Error {
	return &Error{Code: http.StatusBadRequest, Message: fmt.Sprintf("Model %s not found for provider %s", model, provider)}
}

// SchemaViolation is returned when a structured-output response cannot be
// coerced to the declared schema.
func SchemaViolation(err error) *Error {
	return &Error{Code: http.StatusUnprocessableEntity, Message: "Model output did not match the requested schema", Log: err}
}

// UpstreamRejected maps a provider's refusal (bad credential, rate limit) to a
// caller-facing error, carrying the upstream message verbatim.
func UpstreamRejected(status int, msg string) *Error {
	code := http.StatusBadRequest
	if status == http.StatusTooManyRequests {
		code = http.StatusTooManyRequests
	}
	return &Error{Code: code, Message: msg}
}

// UpstreamUnavailable covers transport-level failures reaching a provider.
func UpstreamUnavailable(err error) *Error {
	return &Error{Code: http.StatusBadGateway, Message: "Failed to reach the provider", Log: err}
}

// BadRequest is a generic 400 with a caller-facing detail.
func BadRequest(msg string) *Error {
	return &Error{Code: http.StatusBadRequest, Message: msg}
}

// Internal wraps an unexpected server-side failure.
func Internal(msg string, err error) *Error {
	return &Error{Code: http.StatusInternalServerError, Message: msg, Log: err}
}
