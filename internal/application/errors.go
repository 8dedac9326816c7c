package application

import (
	"errors"
	"fmt"
	"net/http"
)

// APPLICATION-LEVEL ERRORS (Orchestration)

type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeSignatureInvalid    = "SIGNATURE_INVALID"
	ErrCodeUnsupportedProvider = "UNSUPPORTED_PROVIDER"
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeInternal            = "INTERNAL_ERROR"
	ErrCodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	ErrCodeActionNotSupported  = "ACTION_NOT_SUPPORTED"
)

// NewSignatureInvalidError fails closed: 403, no side effects.
func NewSignatureInvalidError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeSignatureInvalid,
		Message:    "webhook signature verification failed",
		HTTPStatus: http.StatusForbidden,
		Err:        err,
	}
}

func NewUnsupportedProviderError(provider string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeUnsupportedProvider,
		Message:    fmt.Sprintf("unsupported provider %q", provider),
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

func NewValidationError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeValidation,
		Message:    "invalid request",
		HTTPStatus: http.StatusUnprocessableEntity,
		Err:        err,
	}
}

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternal,
		Message:    "An internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewProviderUnavailableError wraps an exhausted retry against the provider.
func NewProviderUnavailableError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeProviderUnavailable,
		Message:    "payment provider is unavailable",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewActionNotSupportedError marks a management action on a provider that
// does not implement it.
func NewActionNotSupportedError(action, provider string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeActionNotSupported,
		Message:    fmt.Sprintf("%s is not supported by provider %q", action, provider),
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}
