// Package domain encodes the payment entity, its status state machine and
// the provider-facing value types shared by the gateways.
package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Provider identifies the gateway implementation that owns a payment.
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderStripe Provider = "stripe"
)

// ParseProvider validates a caller-supplied provider name.
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderLocal:
		return ProviderLocal, nil
	case ProviderStripe:
		return ProviderStripe, nil
	default:
		return "", NewUnsupportedProviderError(s)
	}
}

// GatewayStatus represents the settlement state of a payment as reported by
// the provider. Transitions are monotonic: terminal states are never left.
type GatewayStatus string

const (
	StatusPending   GatewayStatus = "pending"
	StatusSucceeded GatewayStatus = "succeeded"
	StatusFailed    GatewayStatus = "failed"
	StatusCanceled  GatewayStatus = "canceled"
	StatusRefunded  GatewayStatus = "refunded"
)

// PayableTypes is the allow-list of owner types a payment may be attached to.
var PayableTypes = []string{"task", "order", "subscription", "customer"}

func IsAllowedPayableType(t string) bool {
	return slices.Contains(PayableTypes, t)
}

type Payment struct {
	ID       uuid.UUID
	Provider Provider

	// ExternalID is the provider's opaque identifier. Unique per provider,
	// immutable once assigned.
	ExternalID        string
	CheckoutSessionID *string
	PaymentIntentID   *string
	ChargeID          *string

	AmountCents int64
	Currency    string
	Status      GatewayStatus
	PaymentURL  string
	Metadata    Metadata

	PayableType string
	PayableID   *uuid.UUID
	TaskID      *uuid.UUID

	CreatedAt   time.Time
	UpdatedAt   time.Time
	SucceededAt *time.Time
	RefundedAt  *time.Time
}

func NewPayment(provider Provider, amountCents int64, currency string) (*Payment, error) {
	if amountCents <= 0 {
		return nil, NewInvalidAmountError(amountCents)
	}
	if len(currency) != 3 {
		return nil, NewMissingRequiredFieldError("currency")
	}
	now := time.Now().UTC()
	return &Payment{
		ID:          uuid.New(),
		Provider:    provider,
		AmountCents: amountCents,
		Currency:    currency,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ApplyStatus moves the payment to target. Re-applying the current status is
// a no-op (changed=false, nil error) so duplicate webhook deliveries stay
// idempotent. Moves out of a terminal state are rejected.
func (p *Payment) ApplyStatus(target GatewayStatus) (bool, error) {
	if p.Status == target {
		return false, nil
	}
	if err := p.canTransitionTo(target); err != nil {
		return false, err
	}
	p.Status = target
	now := time.Now().UTC()
	p.UpdatedAt = now
	switch target {
	case StatusSucceeded:
		p.SucceededAt = &now
	case StatusRefunded:
		p.RefundedAt = &now
	}
	return true, nil
}

// CanApply reports whether ApplyStatus(target) would be accepted, without
// mutating the payment. Callers use it to validate a transition before
// committing side effects that cannot be rolled back.
func (p *Payment) CanApply(target GatewayStatus) error {
	if p.Status == target {
		return nil
	}
	return p.canTransitionTo(target)
}

func (p *Payment) canTransitionTo(target GatewayStatus) error {
	switch p.Status {
	case StatusPending:
		return p.allow(target, StatusSucceeded, StatusFailed, StatusCanceled)
	case StatusSucceeded:
		return p.allow(target, StatusRefunded)
	}
	return NewInvalidTransitionError(p.Status, target)
}

// Helper to check allowed state transitions
func (p *Payment) allow(target GatewayStatus, allowed ...GatewayStatus) error {
	if slices.Contains(allowed, target) {
		return nil
	}
	return NewInvalidTransitionError(p.Status, target)
}

// helper to identify payment statuses that are terminal
func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case StatusFailed, StatusCanceled, StatusRefunded:
		return true
	default:
		return false
	}
}

// ExternalIDCandidates lists every identifier a webhook event may carry for
// this payment, most specific first.
func (p *Payment) ExternalIDCandidates() []string {
	var out []string
	for _, id := range []string{p.ExternalID, deref(p.PaymentIntentID), deref(p.CheckoutSessionID), deref(p.ChargeID)} {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Reconstitute - special constructor for loading from the database.
func Reconstitute(
	id uuid.UUID, provider Provider,
	externalID string, checkoutSessionID, paymentIntentID, chargeID *string,
	amountCents int64, currency string,
	status GatewayStatus, paymentURL string, metadata Metadata,
	payableType string, payableID, taskID *uuid.UUID,
	createdAt, updatedAt time.Time, succeededAt, refundedAt *time.Time,
) *Payment {
	return &Payment{
		ID:                id,
		Provider:          provider,
		ExternalID:        externalID,
		CheckoutSessionID: checkoutSessionID,
		PaymentIntentID:   paymentIntentID,
		ChargeID:          chargeID,
		AmountCents:       amountCents,
		Currency:          currency,
		Status:            status,
		PaymentURL:        paymentURL,
		Metadata:          metadata,
		PayableType:       payableType,
		PayableID:         payableID,
		TaskID:            taskID,
		CreatedAt:         createdAt,
		UpdatedAt:         updatedAt,
		SucceededAt:       succeededAt,
		RefundedAt:        refundedAt,
	}
}
