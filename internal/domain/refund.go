package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Refund is an immutable audit record of money returned against a payment.
// Uniqueness on (provider, refund_id) gives duplicate refund webhooks upsert
// semantics instead of double-accounting.
type Refund struct {
	ID        uuid.UUID
	PaymentID uuid.UUID
	Provider  Provider

	// RefundID is the provider's identifier for this refund.
	RefundID    string
	AmountCents int64
	Currency    string
	Reason      string
	Status      string

	BalanceTransactionID *string

	// Raw keeps the verbatim provider payload for audit.
	Raw json.RawMessage

	OccurredAt time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewRefund(paymentID uuid.UUID, provider Provider, refundID string, amountCents int64, currency string) (*Refund, error) {
	if refundID == "" {
		return nil, NewMissingRequiredFieldError("refund_id")
	}
	if amountCents <= 0 {
		return nil, NewInvalidAmountError(amountCents)
	}
	now := time.Now().UTC()
	return &Refund{
		ID:          uuid.New(),
		PaymentID:   paymentID,
		Provider:    provider,
		RefundID:    refundID,
		AmountCents: amountCents,
		Currency:    currency,
		OccurredAt:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
