package application

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dispatchly/payments/internal/domain"
	"github.com/dispatchly/payments/internal/infrastructure/stripe"
)

// ErrorCategory represents the nature of an error for retry and response
// mapping. Mirrors the taxonomy the webhook and management paths act on.
type ErrorCategory string

const (
	CategoryTransient ErrorCategory = "TRANSIENT"
	CategoryPermanent ErrorCategory = "PERMANENT"
	CategoryClient    ErrorCategory = "CLIENT_ERROR"
	CategorySignature ErrorCategory = "SIGNATURE"
)

// CategorizeError determines error category for retry and logging purposes
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	// Context errors (transient - network/timeout issues)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CategoryTransient
	}

	if svcErr, ok := IsServiceError(err); ok {
		switch svcErr.Code {
		case ErrCodeSignatureInvalid:
			return CategorySignature
		case ErrCodeUnsupportedProvider, ErrCodeValidation, ErrCodeActionNotSupported:
			return CategoryClient
		case ErrCodeProviderUnavailable:
			return CategoryTransient
		}
	}

	// Domain errors are caller mistakes or invariant violations, never
	// retried.
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return CategoryClient
	}

	// Provider API errors carry their own retry classification.
	if apiErr, ok := stripe.IsAPIError(err); ok {
		if apiErr.Retryable() {
			return CategoryTransient
		}
		return CategoryPermanent
	}

	// Default: transient (safe fallback)
	return CategoryTransient
}

// ToHTTPStatus maps error to appropriate HTTP status code
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.HTTPStatus
	}

	switch {
	case domain.IsErrorCode(err, domain.ErrCodePaymentNotFound):
		return http.StatusNotFound
	case domain.IsErrorCode(err, domain.ErrCodeInvalidTransition),
		domain.IsErrorCode(err, domain.ErrCodeDuplicateExternalID):
		return http.StatusConflict
	case domain.IsErrorCode(err, domain.ErrCodeUnsupportedProvider),
		domain.IsErrorCode(err, domain.ErrCodeInvalidPayableType),
		domain.IsErrorCode(err, domain.ErrCodeInvalidAmount),
		domain.IsErrorCode(err, domain.ErrCodeMissingRequiredField),
		domain.IsErrorCode(err, domain.ErrCodeMissingProviderID):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	}

	if apiErr, ok := stripe.IsAPIError(err); ok {
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}

// ToErrorCode returns a stable error code for API responses.
func ToErrorCode(err error) string {
	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.Code
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}

	if apiErr, ok := stripe.IsAPIError(err); ok {
		if apiErr.Code != "" {
			return strings.ToUpper(apiErr.Code)
		}
		return "PROVIDER_ERROR"
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "TIMEOUT"
	}

	return ErrCodeInternal
}
