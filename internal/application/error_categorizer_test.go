package application

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dispatchly/payments/internal/domain"
	"github.com/dispatchly/payments/internal/infrastructure/stripe"
)

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ""},
		{"deadline exceeded", context.DeadlineExceeded, CategoryTransient},
		{"signature rejected", NewSignatureInvalidError(errors.New("bad hmac")), CategorySignature},
		{"unsupported provider", NewUnsupportedProviderError("paypal"), CategoryClient},
		{"domain invariant", domain.NewInvalidTransitionError(domain.StatusFailed, domain.StatusRefunded), CategoryClient},
		{"missing provider id", domain.NewMissingProviderIDError("charge_id"), CategoryClient},
		{"provider rate limited", &stripe.APIError{StatusCode: 429}, CategoryTransient},
		{"provider 5xx", &stripe.APIError{StatusCode: 503}, CategoryTransient},
		{"provider rejects request", &stripe.APIError{StatusCode: 402}, CategoryPermanent},
		{"unknown", errors.New("connection reset"), CategoryTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CategorizeError(tt.err))
		})
	}
}

func TestToHTTPStatus_DomainCodes(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, ToHTTPStatus(domain.NewPaymentNotFoundError("x")))
	assert.Equal(t, http.StatusConflict, ToHTTPStatus(domain.NewInvalidTransitionError(domain.StatusFailed, domain.StatusRefunded)))
	assert.Equal(t, http.StatusConflict, ToHTTPStatus(domain.NewDuplicateExternalIDError("stripe", "cs_1")))
	assert.Equal(t, http.StatusUnprocessableEntity, ToHTTPStatus(domain.NewMissingProviderIDError("charge_id")))
}
