package rest

import (
	"time"

	"github.com/google/uuid"

	"github.com/dispatchly/payments/internal/domain"
)

// PaymentResponse is the wire representation of a payment. Provider secrets
// and raw provider payloads never appear here.
type PaymentResponse struct {
	ID                uuid.UUID        `json:"id"`
	Provider          string           `json:"provider"`
	ExternalID        string           `json:"external_id"`
	CheckoutSessionID *string          `json:"checkout_session_id,omitempty"`
	PaymentIntentID   *string          `json:"payment_intent_id,omitempty"`
	ChargeID          *string          `json:"charge_id,omitempty"`
	AmountCents       int64            `json:"amount_cents"`
	Currency          string           `json:"currency"`
	Status            string           `json:"status"`
	PaymentURL        string           `json:"payment_url,omitempty"`
	PayableType       string           `json:"payable_type,omitempty"`
	PayableID         *uuid.UUID       `json:"payable_id,omitempty"`
	TaskID            *uuid.UUID       `json:"task_id,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	SucceededAt       *time.Time       `json:"succeeded_at,omitempty"`
	RefundedAt        *time.Time       `json:"refunded_at,omitempty"`
	Refunds           []RefundResponse `json:"refunds,omitempty"`
}

type RefundResponse struct {
	ID          uuid.UUID `json:"id"`
	RefundID    string    `json:"refund_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Reason      string    `json:"reason,omitempty"`
	Status      string    `json:"status"`
	OccurredAt  time.Time `json:"occurred_at"`
	CreatedAt   time.Time `json:"created_at"`
}

func ToPaymentResponse(p *domain.Payment, refunds []*domain.Refund) PaymentResponse {
	resp := PaymentResponse{
		ID:                p.ID,
		Provider:          string(p.Provider),
		ExternalID:        p.ExternalID,
		CheckoutSessionID: p.CheckoutSessionID,
		PaymentIntentID:   p.PaymentIntentID,
		ChargeID:          p.ChargeID,
		AmountCents:       p.AmountCents,
		Currency:          p.Currency,
		Status:            string(p.Status),
		PaymentURL:        p.PaymentURL,
		PayableType:       p.PayableType,
		PayableID:         p.PayableID,
		TaskID:            p.TaskID,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
		SucceededAt:       p.SucceededAt,
		RefundedAt:        p.RefundedAt,
	}

	for _, r := range refunds {
		resp.Refunds = append(resp.Refunds, ToRefundResponse(r))
	}

	return resp
}

func ToRefundResponse(r *domain.Refund) RefundResponse {
	return RefundResponse{
		ID:          r.ID,
		RefundID:    r.RefundID,
		AmountCents: r.AmountCents,
		Currency:    r.Currency,
		Reason:      r.Reason,
		Status:      r.Status,
		OccurredAt:  r.OccurredAt,
		CreatedAt:   r.CreatedAt,
	}
}
