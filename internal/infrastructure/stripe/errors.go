package stripe

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a failure reported by the provider's API.
type APIError struct {
	Type       string
	Code       string
	Message    string
	StatusCode int
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider error [%s/%s]: %s (status: %d)", e.Type, e.Code, e.Message, e.StatusCode)
}

// Retryable reports whether the failure is in the whitelisted transient set:
// rate limits and provider-side 5xx. Everything else surfaces immediately.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsAuthFailure reports a rejected or missing API credential.
func (e *APIError) IsAuthFailure() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
