package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business logic error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Domain validation errors
const (
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
	ErrCodePaymentNotFound      = "PAYMENT_NOT_FOUND"
	ErrCodeInvalidAmount        = "INVALID_AMOUNT"
	ErrCodeMissingRequiredField = "MISSING_REQUIRED_FIELD"
	ErrCodeMissingProviderID    = "MISSING_PROVIDER_ID"
	ErrCodeUnsupportedProvider  = "UNSUPPORTED_PROVIDER"
	ErrCodeInvalidPayableType   = "INVALID_PAYABLE_TYPE"
	ErrCodeDuplicateExternalID  = "DUPLICATE_EXTERNAL_ID"
)

func NewMissingRequiredFieldError(field string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMissingRequiredField,
		Message: fmt.Sprintf("%s is required", field),
	}
}

// NewMissingProviderIDError marks a management action attempted on a payment
// that never received the provider identifier the action needs. Hard error,
// never retried.
func NewMissingProviderIDError(field string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMissingProviderID,
		Message: fmt.Sprintf("payment has no %s", field),
	}
}

func NewInvalidAmountError(amount int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("invalid amount %d", amount),
	}
}

func NewInvalidTransitionError(from, to GatewayStatus) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

func NewPaymentNotFoundError(id string) *DomainError {
	return &DomainError{
		Code:    ErrCodePaymentNotFound,
		Message: fmt.Sprintf("payment with ID %s not found", id),
	}
}

func NewUnsupportedProviderError(provider string) *DomainError {
	return &DomainError{
		Code:    ErrCodeUnsupportedProvider,
		Message: fmt.Sprintf("unsupported provider %q", provider),
	}
}

// NewDuplicateExternalIDError marks an attempt to store a second payment
// under a provider identifier that is already taken.
func NewDuplicateExternalIDError(provider, externalID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeDuplicateExternalID,
		Message: fmt.Sprintf("payment for %s external id %q already exists", provider, externalID),
	}
}

func NewInvalidPayableTypeError(t string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidPayableType,
		Message: fmt.Sprintf("payable type %q is not allowed", t),
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
